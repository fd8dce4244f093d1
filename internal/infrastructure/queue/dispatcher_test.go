package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/modernapi/identity-system/internal/core/domain"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]string
	fail string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(map[string][]string)}
}

func (n *recordingNotifier) Send(_ context.Context, msg domain.EmailMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if msg.Subject == n.fail {
		return errors.New("smtp: connection refused")
	}
	n.sent[msg.To] = append(n.sent[msg.To], msg.Subject)
	return nil
}

func TestDispatcher_PreservesPerRecipientOrder(t *testing.T) {
	delivery := newRecordingNotifier()
	d := NewDispatcher(3, delivery, zerolog.Nop())
	d.Start(context.Background())

	recipients := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}
	const perRecipient = 50
	for i := 0; i < perRecipient; i++ {
		for _, to := range recipients {
			msg := domain.EmailMessage{To: to, Subject: fmt.Sprintf("msg-%02d", i)}
			if err := d.Send(context.Background(), msg); err != nil {
				t.Fatalf("send: %v", err)
			}
		}
	}
	d.Close()

	for _, to := range recipients {
		got := delivery.sent[to]
		if len(got) != perRecipient {
			t.Fatalf("%s: expected %d messages, got %d", to, perRecipient, len(got))
		}
		for i, subject := range got {
			if want := fmt.Sprintf("msg-%02d", i); subject != want {
				t.Fatalf("%s: message %d out of order: got %s", to, i, subject)
			}
		}
	}
}

func TestDispatcher_FailureDoesNotStopWorker(t *testing.T) {
	delivery := newRecordingNotifier()
	delivery.fail = "broken"
	d := NewDispatcher(1, delivery, zerolog.Nop())
	d.Start(context.Background())

	_ = d.Send(context.Background(), domain.EmailMessage{To: "a@example.com", Subject: "broken"})
	_ = d.Send(context.Background(), domain.EmailMessage{To: "a@example.com", Subject: "next"})
	d.Close()

	if got := delivery.sent["a@example.com"]; len(got) != 1 || got[0] != "next" {
		t.Fatalf("expected only the second message to be delivered, got %v", got)
	}
}

func TestDispatcher_SendAfterClose(t *testing.T) {
	d := NewDispatcher(2, newRecordingNotifier(), zerolog.Nop())
	d.Start(context.Background())
	d.Close()
	d.Close()

	err := d.Send(context.Background(), domain.EmailMessage{To: "a@example.com"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDispatcher_ShardIndexIgnoresCase(t *testing.T) {
	d := NewDispatcher(8, newRecordingNotifier(), zerolog.Nop())

	if d.shardIndex("John.Doe@Example.com") != d.shardIndex("john.doe@example.com") {
		t.Fatalf("expected addresses differing in case to share a worker")
	}
	for _, to := range []string{"a@example.com", "b@example.com", ""} {
		if idx := d.shardIndex(to); idx < 0 || idx >= 8 {
			t.Fatalf("shard index %d out of range for %q", idx, to)
		}
	}
}

func TestNewDispatcher_DefaultWorkers(t *testing.T) {
	d := NewDispatcher(0, newRecordingNotifier(), zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("expected %d workers, got %d", defaultWorkers, len(d.workers))
	}
}
