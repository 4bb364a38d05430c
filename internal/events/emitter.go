// Package events is the in-memory domain event log: allow-listed names,
// a ring buffer of recent events and fan-out to live subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AaronLay10/LockStep/internal/metrics"
)

var buffer = NewRingBuffer(256)

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Room      string                 `json:"room,omitempty"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an event and pushes it to subscribers. Events carrying a
// "room" field are tagged with it.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}
	if room, ok := fields["room"].(string); ok {
		e.Room = room
	}

	buffer.Add(e)
	broadcast(e)
	metrics.EventsTotal.Inc()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log.WithLevel(lvl).Str("event", name).Fields(fields).Msg(msg)

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// Clear empties the event buffer.
func Clear() {
	buffer.Clear()
}
