package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pressdesk/internal/config"
	"pressdesk/internal/press"
)

const (
	userAgent        = "pressdesk/1.0"
	defaultServer    = "https://ntfy.sh/"
	maxListedItems   = 5
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 2048
)

// Service defines the notification surface used by the pipeline.
type Service interface {
	NotifyNewItems(ctx context.Context, items []press.Item) error
	NotifyRunFailed(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	endpoint := topic
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		endpoint = defaultServer + strings.TrimPrefix(topic, "/")
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyNewItems(ctx context.Context, items []press.Item) error {
	if len(items) == 0 {
		return nil
	}
	data := payload{
		title:   fmt.Sprintf("pressdesk - %d new item%s", len(items), plural(len(items))),
		message: formatItems(items),
		tags:    []string{"pressdesk", "tv", "new"},
	}
	for _, item := range items {
		if item.SeasonStart {
			data.priority = "high"
			data.tags = append(data.tags, "season_start")
			break
		}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, runErr error) error {
	message := "unknown error"
	if runErr != nil {
		message = strings.TrimSpace(runErr.Error())
	}
	return n.send(ctx, payload{
		title:    "pressdesk - Run failed",
		message:  message,
		tags:     []string{"pressdesk", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "pressdesk - Test",
		message:  "Notification system test",
		tags:     []string{"pressdesk", "test"},
		priority: "low",
	})
}

func formatItems(items []press.Item) string {
	var b strings.Builder
	for i, item := range items {
		if i == maxListedItems {
			fmt.Fprintf(&b, "... and %d more", len(items)-maxListedItems)
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%s) %s", item.Title, item.Channel, item.AirDate)
		if item.HasAirTime() {
			fmt.Fprintf(&b, " %s", *item.AirTime)
		}
		if item.SeasonStart {
			b.WriteString(" [season start]")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyNewItems(context.Context, []press.Item) error { return nil }
func (noopService) NotifyRunFailed(context.Context, error) error       { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
