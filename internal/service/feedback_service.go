package service

import (
	"context"
	"strings"

	"newsscope/internal/infrastructure/mail"

	"go.uber.org/zap"
)

const maxFeedbackLength = 5000

// FeedbackService 把用户反馈转发到配置的收件箱
type FeedbackService struct {
	mailer EmailSender
	to     string
	log    *zap.Logger
}

// NewFeedbackService mailer 为 nil 或 to 为空时反馈只写日志
func NewFeedbackService(mailer EmailSender, to string, log *zap.Logger) *FeedbackService {
	return &FeedbackService{mailer: mailer, to: to, log: log.Named("feedback")}
}

func (s *FeedbackService) Send(ctx context.Context, name, email, message string) error {
	name, email, message = strings.TrimSpace(name), normalizeEmail(email), strings.TrimSpace(message)
	if name == "" || email == "" || message == "" {
		return ErrMissingFields
	}
	if !validEmail(email) {
		return ErrInvalidEmail
	}
	if len([]rune(message)) > maxFeedbackLength {
		return invalid("Feedback message is too long")
	}

	if s.mailer == nil || s.to == "" {
		s.log.Info("收到反馈（邮件未配置）",
			zap.String("name", name),
			zap.String("email", email),
			zap.String("message", message),
		)
		return nil
	}

	html, err := mail.RenderFeedback(name, email, message)
	if err != nil {
		return err
	}
	id, err := s.mailer.Send(ctx, s.to, "NewsScope Feedback from "+name, html)
	if err != nil {
		s.log.Error("发送反馈邮件失败", zap.String("email", email), zap.Error(err))
		return wrap(ErrMailFailure, err)
	}
	s.log.Info("反馈邮件已发送", zap.String("email_id", id))
	return nil
}
