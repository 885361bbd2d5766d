package mail

import (
	"context"
	"fmt"
	"time"

	"newsscope/pkg/ctxcall"

	"github.com/resendlabs/resend-go"
)

// ResendSender 通过 Resend 发送 HTML 邮件
type ResendSender struct {
	client   *resend.Client
	from     string
	fromName string
	timeout  time.Duration
}

func NewResendSender(apiKey, from, fromName string, timeout time.Duration) *ResendSender {
	return &ResendSender{
		client:   resend.NewClient(apiKey),
		from:     from,
		fromName: fromName,
		timeout:  timeout,
	}
}

// Send 返回渠道侧的邮件 ID
func (s *ResendSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.from),
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	id, err := ctxcall.Do(ctx, func() (string, error) {
		resp, err := s.client.Emails.Send(params)
		if err != nil {
			return "", err
		}
		return resp.Id, nil
	})
	if err != nil {
		return "", fmt.Errorf("发送邮件失败: %w", err)
	}
	return id, nil
}
