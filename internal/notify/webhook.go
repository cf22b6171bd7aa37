package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	deps       Deps
}

func NewSlackNotifier(webhookURL string, deps Deps) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, deps: deps.withDefaults()}
}

func (n *SlackNotifier) Name() string { return "slack" }

func (n *SlackNotifier) Notify(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if n.webhookURL == "" {
		return errors.New("slack notifier misconfigured")
	}
	body, err := json.Marshal(map[string]string{"text": digestText(alerts, "*")})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	return n.deps.run(ctx, "notify.slack", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return n.deps.do(req, "notify.slack")
	}, resilience.ClassifyHTTP)
}

// TelegramNotifier sends alerts through the Bot API sendMessage method.
type TelegramNotifier struct {
	cfg  config.TelegramConfig
	deps Deps
}

func NewTelegramNotifier(cfg config.TelegramConfig, deps Deps) *TelegramNotifier {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	return &TelegramNotifier{cfg: cfg, deps: deps.withDefaults()}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Notify(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if n.cfg.BotToken == "" || n.cfg.ChatID == "" {
		return errors.New("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(n.cfg.APIBase, "/"), n.cfg.BotToken)
	form := url.Values{}
	form.Set("chat_id", n.cfg.ChatID)
	form.Set("text", digestText(alerts, "*"))
	form.Set("parse_mode", "Markdown")
	encoded := form.Encode()

	return n.deps.run(ctx, "notify.telegram", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return n.deps.do(req, "notify.telegram")
	}, resilience.ClassifyHTTP)
}

func (d Deps) do(req *http.Request, op string) error {
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &resilience.StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}

// digestText renders alerts as a short message, bolding each line with the
// given marker.
func digestText(alerts []models.Alert, bold string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%sEU Grants Monitor%s: %d alert(s)\n", bold, bold, len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(&b, "- [%s] %s\n", a.Priority, a.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}
