package alert

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"

	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

// Alerter defines an interface for sending alerts
type Alerter interface {
	Alert(subject, message string) error
}

// New returns an EmailAlerter when alerting is enabled and a NoOpAlerter otherwise.
func New(cfg config.AlertConfig) Alerter {
	if !cfg.Enabled || cfg.SMTPHost == "" || len(cfg.To) == 0 {
		return &NoOpAlerter{}
	}
	return NewEmailAlerter(cfg)
}

// EmailAlerter implements Alerter using SMTP
type EmailAlerter struct {
	cfg  config.AlertConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailAlerter creates a new email alerter
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{
		cfg:  cfg,
		send: smtp.SendMail,
	}
}

// Alert sends an email with the given subject and message
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: [lexigraph] %s\r\n"+
		"\r\n"+
		"%s\r\n", strings.Join(a.cfg.To, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	if err := a.send(addr, auth, a.cfg.From, a.cfg.To, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// NoOpAlerter is a dummy alerter for when alerting is disabled
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}

// RecordingAlerter keeps alerts in memory. Used by tests and local runs.
type RecordingAlerter struct {
	mu       sync.Mutex
	Subjects []string
}

func (r *RecordingAlerter) Alert(subject, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Subjects = append(r.Subjects, subject)
	return nil
}

// Count returns the number of recorded alerts.
func (r *RecordingAlerter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Subjects)
}

// NotifyStateChange logs a circuit breaker transition and alerts when the breaker
// opened. Alerting happens asynchronously so the breaker is never blocked by SMTP.
func NotifyStateChange(alerter Alerter, logger *slog.Logger, name, from, to string, opened bool) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Circuit breaker state changed", "name", name, "from", from, "to", to)
	if !opened || alerter == nil {
		return
	}
	subject := fmt.Sprintf("Circuit Breaker Open: %s", name)
	message := fmt.Sprintf("Circuit breaker %s has transitioned from %s to %s.", name, from, to)
	utils.Go(logger, "alert.send", func() {
		if err := alerter.Alert(subject, message); err != nil {
			logger.Error("Failed to send alert", "error", err)
		}
	})
}
