// Package alerts routes job status-change notifications to Discord or
// Telegram webhooks. Sends are fail-soft: a missing credential or a failed
// POST logs and returns false, never an error, so alerting problems cannot
// cascade into the health-check flow.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"db-auditor/internal/config"
	"db-auditor/internal/telemetry"
)

// Criticality levels accepted by Send.
const (
	CriticalityImportant = "important"
	CriticalityCritical  = "critical"
)

// Alert is one job status-change notification.
type Alert struct {
	JobName     string
	Project     string
	Status      string // failed, missed, recovered
	Criticality string
	Error       *string
	LastRun     *time.Time
}

// Dispatcher sends alerts over HTTP webhooks with a bounded timeout.
type Dispatcher struct {
	discordURL      string
	telegramToken   string
	telegramChatID  string
	telegramAPIBase string
	client          *http.Client
}

func NewDispatcher(cfg config.Config) *Dispatcher {
	timeout := cfg.AlertTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		discordURL:      cfg.DiscordWebhookURL,
		telegramToken:   cfg.TelegramBotToken,
		telegramChatID:  cfg.TelegramChatID,
		telegramAPIBase: "https://api.telegram.org",
		client:          &http.Client{Timeout: timeout},
	}
}

// Send routes the alert by criticality: critical goes to Telegram, anything
// else to Discord. Returns whether the message was delivered.
func (d *Dispatcher) Send(ctx context.Context, a Alert) bool {
	if a.Criticality == CriticalityCritical {
		return d.sendTelegram(ctx, formatTelegram(a))
	}
	return d.sendDiscord(ctx, formatDiscord(a))
}

func (d *Dispatcher) sendDiscord(ctx context.Context, message string) bool {
	if d.discordURL == "" {
		log.Printf("alerts: discord webhook not configured, dropping alert")
		telemetry.AlertsFailed.Inc()
		return false
	}
	return d.post(ctx, d.discordURL, map[string]any{"content": message})
}

func (d *Dispatcher) sendTelegram(ctx context.Context, message string) bool {
	if d.telegramToken == "" || d.telegramChatID == "" {
		log.Printf("alerts: telegram credentials not configured, dropping alert")
		telemetry.AlertsFailed.Inc()
		return false
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", d.telegramAPIBase, d.telegramToken)
	return d.post(ctx, url, map[string]any{
		"chat_id":    d.telegramChatID,
		"text":       message,
		"parse_mode": "Markdown",
	})
}

func (d *Dispatcher) post(ctx context.Context, url string, payload map[string]any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("alerts: marshal payload: %v", err)
		telemetry.AlertsFailed.Inc()
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("alerts: build request: %v", err)
		telemetry.AlertsFailed.Inc()
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("alerts: send failed: %v", err)
		telemetry.AlertsFailed.Inc()
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("alerts: webhook returned %d", resp.StatusCode)
		telemetry.AlertsFailed.Inc()
		return false
	}
	telemetry.AlertsSent.Inc()
	return true
}

func statusTitle(status string) string {
	switch status {
	case "failed":
		return "⚠️ Cron Job Failed"
	case "missed":
		return "⏰ Dead Man's Switch: Job Missed"
	case "recovered":
		return "✅ Cron Job Recovered"
	}
	return "ℹ️ Cron Job Status"
}

func formatDiscord(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", statusTitle(a.Status))
	fmt.Fprintf(&b, "Job: `%s`\nProject: `%s`", a.JobName, a.Project)
	if a.Error != nil {
		fmt.Fprintf(&b, "\nError: %s", *a.Error)
	}
	if a.LastRun != nil {
		fmt.Fprintf(&b, "\nLast run: %s", a.LastRun.UTC().Format(time.RFC3339))
	}
	return b.String()
}

func formatTelegram(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", statusTitle(a.Status))
	fmt.Fprintf(&b, "Job: %s\nProject: %s", a.JobName, a.Project)
	if a.Error != nil {
		fmt.Fprintf(&b, "\nError: %s", *a.Error)
	}
	if a.LastRun != nil {
		fmt.Fprintf(&b, "\nLast run: %s", a.LastRun.UTC().Format(time.RFC3339))
	}
	return b.String()
}
