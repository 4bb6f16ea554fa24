package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rowjay/content-restore/internal/config"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial" // restore point complete, some items failed
	StatusFailed  = "failed"
)

// Event summarises one restore run.
type Event struct {
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	Status         string    `json:"status"`
	RestorePoint   string    `json:"restore_point"`
	RestorePointID string    `json:"restore_point_id,omitempty"`
	Folders        int       `json:"folders"`
	Imported       int       `json:"imported"`
	Failed         int       `json:"failed"`
	AuditFile      string    `json:"audit_file,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Duration       string    `json:"duration"`
	Error          string    `json:"error,omitempty"`
}

// Text is the one-line form used by chat targets.
func (e Event) Text() string {
	return fmt.Sprintf("[%s] %s (folders=%d imported=%d failed=%d)", e.Status, e.Message, e.Folders, e.Imported, e.Failed)
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi delivers an event to every target concurrently and returns the first error.
type Multi struct {
	Targets []Notifier
}

func (m Multi) Notify(ctx context.Context, event Event) error {
	var eg errgroup.Group
	for _, target := range m.Targets {
		if target == nil {
			continue
		}
		eg.Go(func() error {
			return target.Notify(ctx, event)
		})
	}
	return eg.Wait()
}

type Webhook struct {
	Name    string
	URL     string
	Headers map[string]string
}

func (w Webhook) Notify(ctx context.Context, event Event) error {
	return post(ctx, "webhook "+w.Name, w.URL, w.Headers, event)
}

type Mattermost struct {
	Name string
	URL  string
}

func (m Mattermost) Notify(ctx context.Context, event Event) error {
	return post(ctx, "mattermost "+m.Name, m.URL, nil, map[string]string{"text": event.Text()})
}

type Matrix struct {
	Name        string
	ServerURL   string
	AccessToken string
	RoomID      string
}

func (m Matrix) Notify(ctx context.Context, event Event) error {
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%d",
		m.ServerURL, url.PathEscape(m.RoomID), time.Now().UnixNano())
	payload := map[string]any{
		"msgtype": "m.text",
		"body":    event.Text(),
	}
	headers := map[string]string{"Authorization": "Bearer " + m.AccessToken}
	return post(ctx, "matrix "+m.Name, endpoint, headers, payload)
}

func FromConfig(cfg config.NotificationsConfig) Multi {
	var targets []Notifier
	for _, w := range cfg.Webhooks {
		targets = append(targets, Webhook{Name: w.Name, URL: w.URL, Headers: w.Headers})
	}
	for _, mm := range cfg.Mattermost {
		targets = append(targets, Mattermost{Name: mm.Name, URL: mm.URL})
	}
	for _, mx := range cfg.Matrix {
		targets = append(targets, Matrix{Name: mx.Name, ServerURL: mx.ServerURL, AccessToken: mx.AccessToken, RoomID: mx.RoomID})
	}
	return Multi{Targets: targets}
}

func post(ctx context.Context, target, endpoint string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", target, resp.Status)
	}
	return nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
