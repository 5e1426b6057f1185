package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"notifeeder/internal/httpclient"
)

// Notifier presents one notification. Presenting the same ID twice should
// replace, not duplicate, where the backend supports it.
type Notifier interface {
	Present(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *log.Entry
}

func (l LogNotifier) Present(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	logger.WithFields(log.Fields{
		"link":     n.ID,
		"subtitle": n.Subtitle,
		"body":     n.Body,
	}).Info(n.Title)
	return nil
}

// NtfyNotifier posts notifications to an ntfy topic.
type NtfyNotifier struct {
	url         string
	token       string
	client      *httpclient.Client
	maxAttempts uint64
	initial     time.Duration
}

// NewNtfy creates a notifier for topic, which is either a bare topic name on
// ntfy.sh or a full URL to a self-hosted server.
func NewNtfy(topic, token string, client *httpclient.Client) *NtfyNotifier {
	u := topic
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		u = "https://ntfy.sh/" + topic
	}
	if client == nil {
		client = httpclient.New(10 * time.Second)
	}
	return &NtfyNotifier{url: u, token: token, client: client, maxAttempts: 3, initial: 500 * time.Millisecond}
}

// URL is the endpoint notifications are posted to.
func (n *NtfyNotifier) URL() string { return n.url }

func (n *NtfyNotifier) Present(ctx context.Context, note Notification) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.initial
	b.MaxInterval = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, n.maxAttempts-1), ctx)

	return backoff.Retry(func() error {
		return n.post(ctx, note)
	}, policy)
}

func (n *NtfyNotifier) post(ctx context.Context, note Notification) error {
	title := note.Title
	if note.Subtitle != "" {
		title = note.Subtitle + ": " + note.Title
	}
	headers := map[string]string{
		"Title": headerValue(title),
		"Tags":  "newspaper",
	}
	if id := headerValue(note.ID); id != "" {
		headers["Click"] = id
	}
	if n.token != "" {
		headers["Authorization"] = "Bearer " + n.token
	}
	resp, err := n.client.Post(ctx, n.url, strings.NewReader(note.Body), headers)
	if err != nil {
		return fmt.Errorf("ntfy: post failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == 429:
		return fmt.Errorf("ntfy: HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("ntfy: HTTP %d", resp.StatusCode))
	}
	return nil
}

// headerValue turns control characters into spaces and collapses runs of
// whitespace, since net/http rejects header values with line breaks.
func headerValue(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Recorder keeps every presented notification in memory.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *Recorder) Present(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

// Presented returns a copy of what was presented so far.
func (r *Recorder) Presented() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// Reset forgets recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}
