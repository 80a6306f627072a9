package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

// Subscriber writes one audit record per event fanned out by the bus.
type Subscriber struct {
	logger Logger
}

func NewSubscriber(logger Logger) *Subscriber {
	return &Subscriber{logger: logger}
}

func (s *Subscriber) Register(b *bus.Bus) string {
	return b.Subscribe(bus.Wildcard, s.Handle)
}

// Handle never fails; an audit write error must not trigger bus retries.
func (s *Subscriber) Handle(ctx context.Context, evt bus.Event) error {
	record := Event{
		ID:        evt.ID,
		Timestamp: evt.Timestamp,
		TenantID:  evt.TenantID,
		Action:    ActionEventPublished,
		EventType: evt.Type,
		Source:    "bus",
		Success:   true,
		Metadata: map[string]string{
			"fingerprint": evt.Fingerprint,
			"fields":      fieldNames(evt.Payload),
		},
	}

	if evt.Type == schema.SystemError {
		record.Action = ActionDeliveryFailed
		record.Success = false
		record.Error = fmt.Sprint(evt.Payload["error"])
		record.Metadata["original_type"] = fmt.Sprint(evt.Payload["originalType"])
		record.Metadata["attempts"] = fmt.Sprint(evt.Payload["attempts"])
	}

	_ = s.logger.Log(ctx, record)
	return nil
}

func fieldNames(payload map[string]any) string {
	names := make([]string, 0, len(payload))
	for k := range payload {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
