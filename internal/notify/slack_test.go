package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

func fastSlackTiming() SlackOption {
	return WithSlackTiming(time.Millisecond, 1, time.Millisecond, 2*time.Millisecond, 20*time.Millisecond)
}

func TestBuildSlackMessagesConfirmed(t *testing.T) {
	messages := buildSlackMessages(makeConfirmed())
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if !strings.Contains(msg.Text, "gateway-01: slot marked good") {
		t.Fatalf("unexpected summary: %q", msg.Text)
	}
	if msg.Blocks == nil || len(msg.Blocks.BlockSet) != slackReservedBlocks {
		t.Fatalf("expected only header and context blocks")
	}
}

func TestBuildSlackMessagesRollback(t *testing.T) {
	messages := buildSlackMessages(makeRollback(2))
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if !strings.Contains(msg.Text, "2 required service(s) not started") {
		t.Fatalf("expected failure count in summary, got %q", msg.Text)
	}
	if len(msg.Blocks.BlockSet) != slackReservedBlocks+2 {
		t.Fatalf("expected %d blocks, got %d", slackReservedBlocks+2, len(msg.Blocks.BlockSet))
	}
	section, ok := msg.Blocks.BlockSet[2].(*slack.SectionBlock)
	if !ok {
		t.Fatalf("expected section block, got %T", msg.Blocks.BlockSet[2])
	}
	if !strings.Contains(section.Text.Text, "svc-01") || !strings.Contains(section.Text.Text, "stopped") {
		t.Fatalf("unexpected failure block: %q", section.Text.Text)
	}
}

func TestBuildSlackMessagesChunking(t *testing.T) {
	total := slackMaxFailures*2 + 3
	messages := buildSlackMessages(makeRollback(total))
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}

	for i, msg := range messages {
		if msg.Blocks == nil {
			t.Fatalf("message %d missing blocks", i)
		}
		if len(msg.Blocks.BlockSet) > slackMaxBlocks {
			t.Fatalf("message %d exceeds block limit: %d", i, len(msg.Blocks.BlockSet))
		}
		if !strings.Contains(msg.Text, fmt.Sprintf("part %d/3", i+1)) {
			t.Fatalf("message %d missing part marker: %q", i, msg.Text)
		}
		if !strings.Contains(msg.Text, fmt.Sprintf("%d required service(s)", total)) {
			t.Fatalf("message %d missing total count: %q", i, msg.Text)
		}
	}
	if got := len(messages[2].Blocks.BlockSet); got != slackReservedBlocks+3 {
		t.Fatalf("expected remainder in last message, got %d blocks", got)
	}
}

func TestSlackNotifierPostsJSON(t *testing.T) {
	t.Parallel()

	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL, fastSlackTiming())
	if err := notifier.Notify(context.Background(), makeRollback(1)); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if text, _ := decoded["text"].(string); !strings.Contains(text, "slot marked bad") {
		t.Fatalf("unexpected text: %v", decoded["text"])
	}
}

func TestSlackNotifierEmptyWebhookIsNoop(t *testing.T) {
	if _, ok := NewSlackNotifier(zerolog.Nop(), "").(*NoopNotifier); !ok {
		t.Fatalf("expected noop notifier for empty webhook")
	}
}

func TestSlackNotifierRetriesOnServerError(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL,
		WithSlackTiming(time.Millisecond, 1, 5*time.Millisecond, 10*time.Millisecond, 50*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := notifier.Notify(ctx, makeRollback(1)); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSlackNotifierRetryAfterError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	notifier, ok := NewSlackNotifier(zerolog.Nop(), server.URL, fastSlackTiming()).(*SlackNotifier)
	if !ok {
		t.Fatalf("expected SlackNotifier")
	}

	err := notifier.postOnce(context.Background(), []byte(`{}`))
	var retryAfterErr *retryAfterError
	if !errors.As(err, &retryAfterErr) {
		t.Fatalf("expected retry-after error, got %v", err)
	}
	if retryAfterErr.Duration != time.Second {
		t.Fatalf("expected 1s retry-after, got %s", retryAfterErr.Duration)
	}
}

func TestSlackNotifierRateLimitBlocks(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL,
		WithSlackTiming(500*time.Millisecond, 1, time.Millisecond, 2*time.Millisecond, 20*time.Millisecond),
	)

	if err := notifier.Notify(context.Background(), makeConfirmed()); err != nil {
		t.Fatalf("expected first notify to succeed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := notifier.Notify(ctx, makeConfirmed()); err == nil {
		t.Fatalf("expected rate limit error, got nil")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected rate limit to block second call, got %d", got)
	}
}

func TestSlackNotifierClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid_payload"))
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL, fastSlackTiming())

	err := notifier.Notify(context.Background(), makeRollback(1))
	if err == nil {
		t.Fatalf("expected error for 400 response, got nil")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "invalid_payload") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 call, got %d", got)
	}
}

func TestSlackNotifierContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL,
		WithSlackTiming(time.Millisecond, 1, 100*time.Millisecond, 200*time.Millisecond, time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := notifier.Notify(ctx, makeRollback(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled error, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{value: "", ok: false},
		{value: "0", ok: false},
		{value: "-3", ok: false},
		{value: " 2 ", want: 2 * time.Second, ok: true},
		{value: "garbage", ok: false},
		{value: "Mon, 01 Jan 2001 00:00:00 GMT", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseRetryAfter(tt.value)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("parseRetryAfter(%q) = %s, %v; want %s, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}
