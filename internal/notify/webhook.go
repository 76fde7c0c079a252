package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/nholik/rauc-health/internal/health"
	"github.com/nholik/rauc-health/internal/report"
	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"host":{{ toJson .Host }},"result":{{ toJson .Result }},"failures":{{ toJson .Failures }},"attempts":{{ .Attempts }},"elapsed_seconds":{{ seconds .Elapsed }}}`

// WebhookPayload is the template context for webhook notifications. The
// report fields are promoted, so templates refer to {{ .Host }} directly.
type WebhookPayload struct {
	report.Report
	GeneratedAt time.Time
}

// WebhookNotifier renders each outcome through a text/template and posts
// the result to a generic endpoint.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *httpPoster
	now      func() time.Time
}

// WebhookOption customizes WebhookNotifier behavior.
type WebhookOption func(*WebhookNotifier)

// WithWebhookClock overrides the GeneratedAt time source.
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(n *WebhookNotifier) {
		n.now = now
	}
}

// NewWebhookNotifier creates a webhook notifier with the provided template.
// It returns nil when no URL is configured and the default JSON body when
// tmpl is empty.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, tmpl string, opts ...WebhookOption) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}

	parsed, err := parseWebhookTemplate(tmpl)
	if err != nil {
		return nil, err
	}

	notifier := &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newHTTPPoster(logger, "webhook", webhookURL, "application/json", defaultTiming),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier, nil
}

func parseWebhookTemplate(tmpl string) (*template.Template, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultWebhookTemplate
	}

	funcs := template.FuncMap{
		"toJson": func(v any) (string, error) {
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		},
		"seconds": func(d time.Duration) float64 {
			return d.Seconds()
		},
		"names": func(failures []health.FailedService) string {
			names := make([]string, 0, len(failures))
			for _, failure := range failures {
				names = append(names, failure.Name)
			}
			return strings.Join(names, ", ")
		},
	}

	parsed, err := template.New("webhook").Funcs(funcs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}
	return parsed, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, outcome report.Report) error {
	if n == nil {
		return nil
	}
	if outcome.Failures == nil {
		outcome.Failures = []health.FailedService{}
	}

	var body bytes.Buffer
	payload := WebhookPayload{Report: outcome, GeneratedAt: n.now().UTC()}
	if err := n.template.Execute(&body, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}

	if err := n.poster.deliver(ctx, hostKey(outcome), body.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Str("result", string(outcome.Result)).
		Int("failures", len(outcome.Failures)).
		Int("bytes", body.Len()).
		Msg("webhook notification sent")
	return nil
}
