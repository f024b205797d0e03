package kafka

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/models"
)

// Event types carried on the detection topic.
const (
	EventTypeDetected = "signal.detected"
	EventTypeCleared  = "signal.cleared"
)

// IncomingMessage is one message fetched from the detection topic with its
// headers parsed.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Detection *models.DetectionEvent
	Clearing  *models.ClearingEvent
}

// EventType returns the event_type header, empty when absent.
func (m *IncomingMessage) EventType() string {
	return m.Headers["event_type"]
}

// Parse decodes the message body according to its event_type header.
// Unrecognized event types return an error; the caller decides whether to
// commit past them.
func (m *IncomingMessage) Parse() error {
	switch m.EventType() {
	case EventTypeDetected:
		var event models.DetectionEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			return errors.Wrap(err, "parse detection event")
		}
		if event.SignalType == "" || event.EntityID == "" {
			return errors.New("detection event missing signal_type or entity_id")
		}
		m.Detection = &event
		return nil
	case EventTypeCleared:
		var event models.ClearingEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			return errors.Wrap(err, "parse clearing event")
		}
		if event.SignalType == "" || event.EntityID == "" {
			return errors.New("clearing event missing signal_type or entity_id")
		}
		m.Clearing = &event
		return nil
	default:
		return errors.Errorf("unknown event type %q", m.EventType())
	}
}
