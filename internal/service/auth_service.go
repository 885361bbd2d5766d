package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"newsscope/internal/infrastructure/mail"
	"newsscope/internal/model"
	"newsscope/internal/repository"
	"newsscope/pkg/password"
	"newsscope/pkg/session"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	resetTokenTTL     = time.Hour
)

// EmailSender 事务邮件
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

type AuthOptions struct {
	SignupBonus int64
	FrontendURL string
}

// AuthService 注册、登录、会话和密码重置
type AuthService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	ledger   *LedgerService
	sessions *session.Manager
	mailer   EmailSender
	opts     AuthOptions
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService mailer 为 nil 时重置链接只写日志
func NewAuthService(db *gorm.DB, ledger *LedgerService, sessions *session.Manager, mailer EmailSender, opts AuthOptions, log *zap.Logger) *AuthService {
	return &AuthService{
		db:       db,
		userRepo: repository.NewUserRepository(db),
		ledger:   ledger,
		sessions: sessions,
		mailer:   mailer,
		opts:     opts,
		log:      log.Named("auth"),
		now:      time.Now,
	}
}

// Session 登录成功后签发的会话
type Session struct {
	User  *model.User
	Token string
	TTL   time.Duration
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// Signup 创建用户并在同一事务内发放注册赠送积分
func (s *AuthService) Signup(ctx context.Context, email, plain, name string) (*Session, error) {
	email, name = normalizeEmail(email), strings.TrimSpace(name)
	if email == "" || plain == "" || name == "" {
		return nil, ErrMissingFields
	}
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(plain) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return ErrUserExists
			}
			return fmt.Errorf("创建用户失败: %w", err)
		}
		if s.opts.SignupBonus <= 0 {
			return nil
		}
		// 新用户的行对其他请求不可见，无需账户锁
		trans, err := s.ledger.CreditInTx(ctx, tx, AddRequest{
			UserID:      user.ID,
			Amount:      s.opts.SignupBonus,
			Type:        model.TransactionTypePurchase,
			Description: "Signup bonus",
		})
		if err != nil {
			return err
		}
		user.Credits = trans.CreditsAfter
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("用户注册成功", zap.Int64("user_id", user.ID), zap.Int64("credits", user.Credits))
	return s.issue(user)
}

// Login 校验密码，成功后更新 last_login
func (s *AuthService) Login(ctx context.Context, email, plain string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || plain == "" {
		return nil, ErrMissingFields
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := password.Compare(user.PasswordHash, plain); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("更新登录时间失败", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*Session, error) {
	token, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, TTL: s.sessions.TTL()}, nil
}

// Authenticate 解析会话并加载仍处于启用状态的用户
func (s *AuthService) Authenticate(ctx context.Context, token string) (*session.Claims, error) {
	claims, err := s.sessions.Parse(ctx, token)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.UserID()
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, session.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, session.ErrInvalidToken
	}
	return claims, nil
}

// Logout 注销会话，token 无效时静默成功
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.sessions.Parse(ctx, token)
	if err != nil {
		return nil
	}
	return s.sessions.Revoke(ctx, claims)
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return user, nil
}

// ForgotPassword 邮箱不存在时同样返回成功，避免枚举账户
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return invalid("Email required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return fmt.Errorf("保存重置令牌失败: %w", err)
	}

	link := strings.TrimRight(s.opts.FrontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	if s.mailer == nil {
		s.log.Warn("邮件服务未配置，重置链接仅写入日志", zap.Int64("user_id", user.ID), zap.String("link", link))
		return nil
	}

	// 发送失败只记日志，令牌保留，响应与未注册邮箱一致
	html, err := mail.RenderResetPassword(link)
	if err != nil {
		s.log.Error("渲染重置邮件失败", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil
	}
	id, err := s.mailer.Send(ctx, user.Email, "Reset Your NewsScope Password", html)
	if err != nil {
		s.log.Error("发送重置邮件失败", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil
	}
	s.log.Info("重置邮件已发送", zap.Int64("user_id", user.ID), zap.String("email_id", id))
	return nil
}

// ResetPassword 令牌一次有效，1 小时过期
func (s *AuthService) ResetPassword(ctx context.Context, token, plain string) error {
	token = strings.TrimSpace(token)
	if token == "" || plain == "" {
		return ErrMissingFields
	}
	if len(plain) < minPasswordLength {
		return ErrWeakPassword
	}

	user, err := s.userRepo.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if !user.ResetTokenValid(s.now()) {
		return ErrInvalidResetToken
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return err
	}
	if err := s.userRepo.ResetPassword(ctx, user.ID, token, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	s.log.Info("密码已重置", zap.Int64("user_id", user.ID))
	return nil
}

// DeleteAccount 级联删除用户的全部数据并注销当前会话
func (s *AuthService) DeleteAccount(ctx context.Context, userID int64, claims *session.Claims) error {
	if err := s.userRepo.DeleteCascade(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("删除用户失败: %w", err)
	}
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		s.log.Warn("注销会话失败", zap.Int64("user_id", userID), zap.Error(err))
	}
	s.log.Info("用户已删除", zap.Int64("user_id", userID))
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("生成重置令牌失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
