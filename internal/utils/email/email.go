package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/vesting-service/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Enabled reports whether an SMTP host is configured
func (s *Sender) Enabled() bool {
	return s.cfg.SMTPHost != ""
}

// SendReleaseNotification tells the beneficiary that tokens were released to them
func (s *Sender) SendReleaseNotification(to, beneficiary, token, amount, released, total string, at time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("%s Vesting Release", token)

	body := fmt.Sprintf("Dear %s,\n\n", beneficiary)
	body += fmt.Sprintf(
		"%s %s has been released to your address.\n"+
			"Release time: %s\n"+
			"Released so far: %s of %s %s\n",
		amount, token, at.UTC().Format("2006-01-02 15:04:05"), released, total, token,
	)
	body += "\nBest regards,\nVesting Service"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send release notification to %s: %v", to, err)
		return fmt.Errorf("failed to send release notification: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
