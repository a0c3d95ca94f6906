// Package notify delivers operator alerts. Delivery is best effort and never
// blocks the caller's path.
package notify

import (
	"fmt"
	"time"

	"github.com/talkincode/waconsole/config"
	"github.com/talkincode/waconsole/internal/session"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer sends alert mail through the configured SMTP relay. A mailer with
// incomplete configuration silently drops alerts.
type Mailer struct {
	cfg config.MailConfig
}

func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) enabled() bool {
	return m.cfg.SmtpHost != "" && m.cfg.NotifyTo != ""
}

// SessionFailed alerts the operator that a session entered the failed state.
// Suitable as the registry failure hook.
func (m *Mailer) SessionFailed(s session.Session) {
	if !m.enabled() {
		zap.L().Debug("notify: mail disabled, skipping session failure alert",
			zap.String("session_id", s.ID))
		return
	}
	subject := fmt.Sprintf("[waconsole] session %s failed", s.ID)
	body := fmt.Sprintf(
		"Session %s entered the failed state at %s.\n\nPhone: %s\nReason: %s\n\nThe session must be recreated from the console.",
		s.ID, time.Now().Format(time.RFC3339), s.PhoneNumber, s.FailReason)
	if err := m.send(subject, body); err != nil {
		zap.L().Warn("notify: session failure mail not delivered",
			zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	zap.L().Info("notify: session failure mail sent",
		zap.String("session_id", s.ID), zap.String("to", m.cfg.NotifyTo))
}

func (m *Mailer) send(subject, body string) error {
	msg := gomail.NewMessage()
	from := m.cfg.From
	if from == "" {
		from = m.cfg.SmtpUser
	}
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.cfg.NotifyTo)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(m.cfg.SmtpHost, m.cfg.SmtpPort, m.cfg.SmtpUser, m.cfg.SmtpPwd)
	return d.DialAndSend(msg)
}
