// Package notify delivers grant alerts to operators: log, email, Slack,
// Telegram and a NATS subject.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

type Notifier interface {
	Name() string
	Notify(ctx context.Context, alerts []models.Alert) error
}

// FormatAlertMessage renders the one-line alert text for a grant.
func FormatAlertMessage(g models.Grant) string {
	return fmt.Sprintf("%s (Priority: %.1f)", g.Title, g.PriorityScore)
}

func FormatDeadlineMessage(g models.Grant, days int) string {
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s closes in %d %s (%s)", g.Title, days, unit, g.Deadline.Format("2006-01-02"))
}

// Deps are the collaborators shared by the network notifiers.
type Deps struct {
	Client *http.Client
	Exec   *resilience.Executor
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// run executes fn through the executor when one is configured.
func (d Deps) run(ctx context.Context, op string, fn func(context.Context) error, classify resilience.Classifier) error {
	if d.Exec == nil {
		return fn(ctx)
	}
	return d.Exec.Execute(ctx, op, fn, classify)
}

// Multi fans alerts out to every notifier and joins their errors. One failing
// channel does not stop the others.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Notifiers() []Notifier { return m.notifiers }

func (m *Multi) Notify(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, alerts); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes each alert to the structured log. It is always part of
// the configured fan-out.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, alerts []models.Alert) error {
	for _, a := range alerts {
		n.logger.Info("grant_alert",
			"grant_id", a.GrantID,
			"alert_type", string(a.Type),
			"priority", a.Priority,
			"score", a.Score,
			"message", a.Message,
		)
	}
	return nil
}

// FromConfig builds the fan-out for the enabled channels. The NATS
// connection, when enabled, is returned so the caller can close it.
func FromConfig(cfg config.NotificationsConfig, deps Deps) (*Multi, func(), error) {
	deps = deps.withDefaults()
	notifiers := []Notifier{NewLogNotifier(deps.Logger)}
	closer := func() {}

	if cfg.Email.Enabled {
		notifiers = append(notifiers, NewEmailNotifier(cfg.Email, deps))
	}
	if cfg.Slack.Enabled {
		notifiers = append(notifiers, NewSlackNotifier(cfg.Slack.WebhookURL, deps))
	}
	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, NewTelegramNotifier(cfg.Telegram, deps))
	}
	if cfg.NATS.Enabled {
		pub, err := NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, deps)
		if err != nil {
			return nil, closer, err
		}
		notifiers = append(notifiers, pub)
		closer = pub.Close
	}
	return NewMulti(notifiers...), closer, nil
}
