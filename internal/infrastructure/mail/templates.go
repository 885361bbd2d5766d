package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ResetPasswordData 重置密码邮件
type ResetPasswordData struct {
	ResetLink string
	Year      int
}

// FeedbackData 用户反馈邮件
type FeedbackData struct {
	Name    string
	Email   string
	Message string
	Year    int
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("渲染邮件模板 %s 失败: %w", name, err)
	}
	return buf.String(), nil
}

func RenderResetPassword(link string) (string, error) {
	return render("reset_password.html", ResetPasswordData{ResetLink: link, Year: time.Now().Year()})
}

func RenderFeedback(name, email, message string) (string, error) {
	return render("feedback.html", FeedbackData{Name: name, Email: email, Message: message, Year: time.Now().Year()})
}
