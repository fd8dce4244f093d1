// Package email delivers outbound account emails over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/modernapi/identity-system/internal/api/metrics"
	"github.com/modernapi/identity-system/internal/core/domain"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// Config is the SMTP account used to send mail.
type Config struct {
	Host     string
	Port     int
	UserName string
	Password string
	From     string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends each message synchronously, retrying transient failures
// with exponential backoff.
type SMTPNotifier struct {
	cfg      Config
	auth     smtp.Auth
	send     sendFunc
	attempts uint64
	backoff  time.Duration
	log      zerolog.Logger
}

func NewSMTPNotifier(cfg Config, log zerolog.Logger) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.UserName != "" {
		auth = smtp.PlainAuth("", cfg.UserName, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		cfg:      cfg,
		auth:     auth,
		send:     smtp.SendMail,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		log:      log,
	}
}

// Send delivers msg and records the outcome in the email metrics.
func (n *SMTPNotifier) Send(ctx context.Context, msg domain.EmailMessage) error {
	start := time.Now()
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	body := n.compose(msg)

	b := retry.WithMaxRetries(n.attempts-1, retry.NewExponential(n.backoff))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := n.send(addr, n.auth, n.cfg.From, []string{msg.To}, body); err != nil {
			n.log.Warn().Err(err).Int("attempt", attempt).Str("to", msg.To).Msg("smtp send failed")
			return retry.RetryableError(err)
		}
		return nil
	})

	metrics.EmailDeliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmailsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("send %q to %s: %w", msg.Subject, msg.To, err)
	}
	metrics.EmailsTotal.WithLabelValues("sent").Inc()
	return nil
}

// compose renders msg as a single-part HTML message.
func (n *SMTPNotifier) compose(msg domain.EmailMessage) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.cfg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// LogNotifier stands in for SMTP when no mail host is configured. It only
// logs the recipient and subject.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg domain.EmailMessage) error {
	n.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email delivery disabled, message dropped")
	metrics.EmailsTotal.WithLabelValues("skipped").Inc()
	return nil
}
