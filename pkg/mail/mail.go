package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"lcs-classroom/backend/config"
)

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NewSender 根据配置创建发送器；未配置 SMTPHost 时返回仅记录日志的空实现
func NewSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	if cfg == nil || cfg.SMTPHost == "" {
		logger.Info("未配置 SMTP，邮件通知已禁用")
		return &nopSender{logger: logger}
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:   from,
		logger: logger,
	}
}

// smtpSender 基于 gomail 的 SMTP 实现
type smtpSender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

func (s *smtpSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	s.logger.Debug("邮件已发送", zap.String("to", to), zap.String("subject", subject))
	return nil
}

type nopSender struct {
	logger *zap.Logger
}

func (s *nopSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Debug("邮件通知已跳过", zap.String("to", to), zap.String("subject", subject))
	return nil
}
