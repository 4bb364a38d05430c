package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AaronLay10/LockStep/internal/events"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	got  chan published
	fail bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{got: make(chan published, 16)}
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	f.got <- published{topic, payload}
	if fail {
		return errors.New("broker down")
	}
	return nil
}

// startBridge runs a bridge and waits until it is subscribed.
func startBridge(t *testing.T, pub Publisher) {
	t.Helper()
	before := events.SubscriberCount()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewBridge(pub, "/venue/").Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(time.Second)
	for events.SubscriberCount() == before {
		if time.Now().After(deadline) {
			t.Fatal("bridge did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTopic(t *testing.T) {
	b := NewBridge(nil, "/venue/")
	if got := b.Topic("ABCDEF", "game.won"); got != "venue/rooms/ABCDEF/game.won" {
		t.Errorf("unexpected topic %q", got)
	}
}

func TestBridgeForwardsRoomEvents(t *testing.T) {
	pub := newFakePublisher()
	startBridge(t, pub)

	events.Emit("info", "system.startup", "", nil)
	events.Emit("info", "puzzle.solved", "", map[string]interface{}{"room": "ABCDEF", "puzzle_id": "p1"})

	select {
	case p := <-pub.got:
		if p.topic != "venue/rooms/ABCDEF/puzzle.solved" {
			t.Fatalf("unexpected topic %q", p.topic)
		}
		var e events.Event
		if err := json.Unmarshal(p.payload, &e); err != nil {
			t.Fatalf("payload is not an event: %v", err)
		}
		if e.Fields["puzzle_id"] != "p1" {
			t.Errorf("unexpected payload %s", p.payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for publish")
	}

	select {
	case p := <-pub.got:
		t.Fatalf("unexpected extra publish to %s", p.topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridgeSurvivesPublishErrors(t *testing.T) {
	pub := newFakePublisher()
	pub.fail = true
	startBridge(t, pub)

	for i := 0; i < 2; i++ {
		events.Emit("info", "game.started", "", map[string]interface{}{"room": "QQQQQQ"})
		select {
		case <-pub.got:
		case <-time.After(time.Second):
			t.Fatalf("publish %d not attempted", i)
		}
	}
}
