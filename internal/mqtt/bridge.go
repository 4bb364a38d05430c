package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/AaronLay10/LockStep/internal/events"
)

// Publisher is the part of Client the bridge needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// forwarded lists the event families sent to the broker.
var forwarded = []string{"room.", "player.", "game.", "node.", "choice.", "puzzle.", "timer."}

// Bridge forwards room-scoped domain events to the broker.
type Bridge struct {
	pub    Publisher
	prefix string
}

func NewBridge(pub Publisher, prefix string) *Bridge {
	return &Bridge{pub: pub, prefix: strings.Trim(prefix, "/")}
}

// Topic returns <prefix>/rooms/<code>/<event>.
func (b *Bridge) Topic(code, event string) string {
	return b.prefix + "/rooms/" + code + "/" + event
}

func shouldForward(e events.Event) bool {
	if e.Room == "" {
		return false
	}
	for _, p := range forwarded {
		if strings.HasPrefix(e.Name, p) {
			return true
		}
	}
	return false
}

// Run forwards events until ctx is done. Publish failures are logged and
// the event is dropped; the game never waits on the broker.
func (b *Bridge) Run(ctx context.Context) {
	sub := events.Subscribe()
	defer events.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if !shouldForward(e) {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			topic := b.Topic(e.Room, e.Name)
			if err := b.pub.Publish(topic, payload); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
			}
		}
	}
}
