package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

// Recorder persists metered usage.
type Recorder interface {
	Record(ctx context.Context, tenantID string, inc Increment) error
}

// Meter turns call and conversation events into usage increments.
type Meter struct {
	recorder Recorder
	logger   *slog.Logger
}

func NewMeter(recorder Recorder, logger *slog.Logger) *Meter {
	return &Meter{
		recorder: recorder,
		logger:   logger.With("component", "usage_meter"),
	}
}

func (m *Meter) Register(b *bus.Bus) []string {
	return []string{
		b.Subscribe(schema.CallCompleted, m.Handle),
		b.Subscribe(schema.ConversationEnded, m.Handle),
	}
}

// Handle records one event. Store errors are returned so the bus retries.
func (m *Meter) Handle(ctx context.Context, evt bus.Event) error {
	if evt.TenantID == "" || evt.TenantID == "default" {
		return nil
	}

	var inc Increment
	switch evt.Type {
	case schema.CallCompleted:
		seconds, ok := durationSeconds(evt.Payload["duration"])
		if !ok {
			m.logger.WarnContext(ctx, "call.completed with unreadable duration",
				"tenant_id", evt.TenantID,
				"duration", evt.Payload["duration"],
			)
		}
		inc = Increment{VoiceSeconds: seconds, Calls: 1}
	case schema.ConversationEnded:
		inc = Increment{Conversations: 1}
	default:
		return nil
	}

	return m.recorder.Record(ctx, evt.TenantID, inc)
}

// durationSeconds reads a duration in seconds from a JSON-ish value.
func durationSeconds(v any) (int64, bool) {
	var f float64
	switch d := v.(type) {
	case int:
		f = float64(d)
	case int64:
		f = float64(d)
	case float64:
		f = d
	case json.Number:
		n, err := d.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}

	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Ceil(f)), true
}
