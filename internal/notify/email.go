package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends one digest email per batch of alerts over SMTP.
type EmailNotifier struct {
	cfg    config.EmailConfig
	deps   Deps
	logger *slog.Logger

	SendMail SendMailFunc
}

func NewEmailNotifier(cfg config.EmailConfig, deps Deps) *EmailNotifier {
	deps = deps.withDefaults()
	return &EmailNotifier{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With("notifier", "email"),
		SendMail: smtp.SendMail,
	}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Notify(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if n.cfg.SMTPServer == "" || n.cfg.FromAddress == "" || len(n.cfg.ToAddresses) == 0 {
		return errors.New("email notifier misconfigured")
	}

	addr := net.JoinHostPort(n.cfg.SMTPServer, strconv.Itoa(n.cfg.SMTPPort))
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.SMTPServer)
	}
	msg := n.buildMessage(alerts)

	err := n.deps.run(ctx, "notify.email", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return n.SendMail(addr, auth, n.cfg.FromAddress, n.cfg.ToAddresses, msg)
	}, classifySMTP)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	n.logger.Info("email_alert_sent", "alerts", len(alerts), "recipients", len(n.cfg.ToAddresses))
	return nil
}

func (n *EmailNotifier) buildMessage(alerts []models.Alert) []byte {
	var b strings.Builder
	subject := fmt.Sprintf("EU Grants Monitor: %d new alert", len(alerts))
	if len(alerts) != 1 {
		subject += "s"
	}
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.cfg.ToAddresses, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")

	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s\r\n", strings.ToUpper(a.Priority), a.Message)
		fmt.Fprintf(&b, "  grant: %s  type: %s\r\n\r\n", a.GrantID, a.Type)
	}
	return []byte(b.String())
}

// classifySMTP retries network failures and 4xx transient replies.
func classifySMTP(err error) resilience.Classification {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 400 && tpErr.Code < 500 {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
	return resilience.ClassifyHTTP(err)
}
