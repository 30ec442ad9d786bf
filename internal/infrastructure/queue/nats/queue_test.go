package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chirplabs/chirp/internal/core/domain"
)

func TestSourceAcceptedEventRoundTrip(t *testing.T) {
	accepted := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(sourceAcceptedEvent{SourceID: "src-1", AcceptedAt: accepted})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded sourceAcceptedEvent
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.SourceID != "src-1" || !decoded.AcceptedAt.Equal(accepted) {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"cancelled", context.Canceled, false, false},
		{"no servers", nats.ErrNoServers, true, true},
		{"timeout", nats.ErrTimeout, true, true},
		{"connection closed", nats.ErrConnectionClosed, true, true},
		{"other", errors.New("bad subject"), false, true},
	}
	for _, tc := range cases {
		class := classifyNATSError(tc.err)
		if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, class)
		}
	}
}

func TestWrapTemporaryOnRetryableErrors(t *testing.T) {
	wrapped := wrapTemporaryIfNeeded(nats.ErrTimeout)
	if !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", wrapped)
	}

	fatal := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(fatal); got != fatal {
		t.Fatalf("fatal error must pass through, got %v", got)
	}

	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
