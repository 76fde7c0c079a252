package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nholik/rauc-health/internal/health"
	"github.com/nholik/rauc-health/internal/report"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	slackMaxBlocks = 50
	// header + context block in each message
	slackReservedBlocks = 2
	slackMaxFailures    = slackMaxBlocks - slackReservedBlocks
)

// SlackNotifier posts outcome summaries to a Slack incoming webhook.
type SlackNotifier struct {
	logger zerolog.Logger
	timing timingConfig
	poster *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger: logger,
		timing: defaultTiming,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, outcome report.Report) error {
	messages := buildSlackMessages(outcome)
	payloads := make([][]byte, 0, len(messages))
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		payloads = append(payloads, payload)
	}

	if err := n.poster.deliver(ctx, hostKey(outcome), payloads...); err != nil {
		return err
	}

	n.logger.Debug().
		Str("result", string(outcome.Result)).
		Int("messages", len(messages)).
		Msg("slack notification sent")

	return nil
}

func (n *SlackNotifier) postOnce(ctx context.Context, payload []byte) error {
	return n.poster.postOnce(ctx, payload)
}

// buildSlackMessages renders one message for a confirmed slot and as many
// messages as needed to list every failure of a rollback.
func buildSlackMessages(outcome report.Report) []slack.WebhookMessage {
	total := len(outcome.Failures)
	if total == 0 {
		return []slack.WebhookMessage{buildSlackMessage(outcome, nil, 1, 1)}
	}

	parts := (total + slackMaxFailures - 1) / slackMaxFailures
	messages := make([]slack.WebhookMessage, 0, parts)
	for i := 0; i < total; i += slackMaxFailures {
		end := min(i+slackMaxFailures, total)
		messages = append(messages, buildSlackMessage(outcome, outcome.Failures[i:end], i/slackMaxFailures+1, parts))
	}
	return messages
}

func buildSlackMessage(outcome report.Report, failures []health.FailedService, part, parts int) slack.WebhookMessage {
	summary := slackSummary(outcome)
	if parts > 1 {
		summary = fmt.Sprintf("%s (part %d/%d)", summary, part, parts)
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))

	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Host: *%s*", hostKey(outcome)), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Checks: %d in %s", outcome.Attempts, outcome.Elapsed.Round(time.Millisecond)), false, false),
	}
	if outcome.Runlevel != "" {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Runlevel: `%s`", outcome.Runlevel), false, false))
	}

	blocks := []slack.Block{header, slack.NewContextBlock("", contextElements...)}
	for _, failure := range failures {
		blocks = append(blocks, buildFailureBlock(failure))
	}

	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func slackSummary(outcome report.Report) string {
	if outcome.Confirmed() {
		return fmt.Sprintf("%s: slot marked good", hostKey(outcome))
	}
	return fmt.Sprintf("%s: slot marked bad, %d required service(s) not started", hostKey(outcome), len(outcome.Failures))
}

func buildFailureBlock(failure health.FailedService) slack.Block {
	state := failure.State
	if state == "" {
		state = "unknown"
	}
	text := slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*%s*: `%s`", failure.Name, state), false, false)
	return slack.NewSectionBlock(text, nil, nil)
}
