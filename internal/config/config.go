package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Session  SessionConfig  `mapstructure:"session"`
	Credits  CreditsConfig  `mapstructure:"credits"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Mail     MailConfig     `mapstructure:"mail"`
	Business BusinessConfig `mapstructure:"business"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	FrontendURL string   `mapstructure:"frontend_url"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig driver 可选 sqlite / mysql / postgres
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CreditEvents  string `mapstructure:"credit_events"`
	PaymentEvents string `mapstructure:"payment_events"`
}

type SessionConfig struct {
	Secret      string `mapstructure:"secret"`
	CookieName  string `mapstructure:"cookie_name"`
	MaxAgeHours int    `mapstructure:"max_age_hours"`
	Secure      bool   `mapstructure:"secure"`
}

type CreditsConfig struct {
	SignupBonus  int64 `mapstructure:"signup_bonus"`
	AnalysisCost int64 `mapstructure:"analysis_cost"`
}

// PaymentConfig provider 可选 razorpay / stripe
type PaymentConfig struct {
	Provider       string `mapstructure:"provider"`
	KeyID          string `mapstructure:"key_id"`
	KeySecret      string `mapstructure:"key_secret"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	StripeKey      string `mapstructure:"stripe_key"`
	StripePubKey   string `mapstructure:"stripe_publishable_key"`
	Currency       string `mapstructure:"currency"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LLMConfig provider 可选 gemini / openai
type LLMConfig struct {
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type MailConfig struct {
	APIKey         string `mapstructure:"api_key"`
	FromAddress    string `mapstructure:"from_address"`
	FromName       string `mapstructure:"from_name"`
	FeedbackTo     string `mapstructure:"feedback_to"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BusinessConfig struct {
	ReconcileAfterMinutes   int  `mapstructure:"reconcile_after_minutes"`
	MaxRetryCount           int  `mapstructure:"max_retry_count"`
	RefundOnAnalyzerFailure bool `mapstructure:"refund_on_analyzer_failure"`
}

type JobsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// 兼容原部署使用的环境变量名
var legacyEnv = map[string][]string{
	"server.port":                    {"PORT"},
	"server.frontend_url":            {"FRONTEND_URL"},
	"database.dsn":                   {"DATABASE_URL"},
	"session.secret":                 {"SESSION_SECRET", "SECRET_KEY"},
	"payment.key_id":                 {"RAZORPAY_KEY_ID"},
	"payment.key_secret":             {"RAZORPAY_KEY_SECRET"},
	"payment.webhook_secret":         {"RAZORPAY_WEBHOOK_SECRET"},
	"payment.stripe_key":             {"STRIPE_SECRET_KEY"},
	"payment.stripe_publishable_key": {"STRIPE_PUBLISHABLE_KEY"},
	"mail.api_key":                   {"RESEND_API_KEY"},
	"mail.from_address":              {"EMAIL_FROM_ADDRESS"},
	"mail.feedback_to":               {"FEEDBACK_EMAIL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "newsscope.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.credit_events", "newsscope.credit.events")
	v.SetDefault("kafka.topic.payment_events", "newsscope.payment.events")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "newsscope_session")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.max_age_hours", 24*7)

	v.SetDefault("credits.signup_bonus", 5)
	v.SetDefault("credits.analysis_cost", 1)

	v.SetDefault("payment.provider", "razorpay")
	v.SetDefault("payment.key_id", "")
	v.SetDefault("payment.key_secret", "")
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.stripe_key", "")
	v.SetDefault("payment.stripe_publishable_key", "")
	v.SetDefault("payment.currency", "INR")
	v.SetDefault("payment.timeout_seconds", 10)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout_seconds", 60)

	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.feedback_to", "")
	v.SetDefault("mail.from_address", "noreply@newsscope.app")
	v.SetDefault("mail.from_name", "NewsScope")
	v.SetDefault("mail.timeout_seconds", 10)

	v.SetDefault("business.reconcile_after_minutes", 15)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.refund_on_analyzer_failure", false)

	v.SetDefault("jobs.enabled", false)
}

// Load 加载配置: 默认值 < 配置文件 < 环境变量
// configPath 为空或文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)...); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// LLM key 按 provider 兜底
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查互相矛盾或缺失的必填项
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	switch c.Payment.Provider {
	case "razorpay", "stripe":
	default:
		return fmt.Errorf("不支持的支付渠道: %q", c.Payment.Provider)
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("不支持的 LLM provider: %q", c.LLM.Provider)
	}
	if c.Mode() == "release" && c.Session.Secret == "" {
		return errors.New("release 模式必须配置 session.secret")
	}
	if c.Credits.AnalysisCost <= 0 {
		return errors.New("credits.analysis_cost 必须大于 0")
	}
	return nil
}

func (c *Config) Mode() string {
	return c.Server.Mode
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GatewayConfigured 支付渠道凭证是否齐全
func (p PaymentConfig) GatewayConfigured() bool {
	if p.Provider == "stripe" {
		return p.StripeKey != ""
	}
	return p.KeyID != "" && p.KeySecret != ""
}
