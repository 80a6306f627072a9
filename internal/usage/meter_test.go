package usage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/retry"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

type recorded struct {
	tenantID string
	inc      Increment
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorded
	err   error
}

func (r *fakeRecorder) Record(_ context.Context, tenantID string, inc Increment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorded{tenantID, inc})
	return r.err
}

func (r *fakeRecorder) snapshot() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int64
		wantOK bool
	}{
		{"int", 90, 90, true},
		{"int64", int64(61), 61, true},
		{"float rounds up", 12.2, 13, true},
		{"json number", json.Number("30"), 30, true},
		{"numeric string", "45", 45, true},
		{"bad string", "forever", 0, false},
		{"negative", -3, 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := durationSeconds(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMeter_Handle(t *testing.T) {
	tests := []struct {
		name string
		evt  bus.Event
		want []recorded
	}{
		{
			name: "call completed",
			evt: bus.Event{Type: schema.CallCompleted, TenantID: "acme", Payload: map[string]any{
				"callId": "c-1", "duration": 125, "outcome": "answered",
			}},
			want: []recorded{{"acme", Increment{VoiceSeconds: 125, Calls: 1}}},
		},
		{
			name: "call completed with unreadable duration still counts the call",
			evt: bus.Event{Type: schema.CallCompleted, TenantID: "acme", Payload: map[string]any{
				"callId": "c-2", "duration": "n/a", "outcome": "failed",
			}},
			want: []recorded{{"acme", Increment{Calls: 1}}},
		},
		{
			name: "conversation ended",
			evt: bus.Event{Type: schema.ConversationEnded, TenantID: "acme", Payload: map[string]any{
				"sessionId": "s-1", "duration": 300,
			}},
			want: []recorded{{"acme", Increment{Conversations: 1}}},
		},
		{
			name: "default tenant is not metered",
			evt:  bus.Event{Type: schema.ConversationEnded, TenantID: "default"},
		},
		{
			name: "empty tenant is not metered",
			evt:  bus.Event{Type: schema.CallCompleted},
		},
		{
			name: "other types are ignored",
			evt:  bus.Event{Type: schema.LeadQualified, TenantID: "acme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			m := NewMeter(rec, testLogger())

			require.NoError(t, m.Handle(context.Background(), tt.evt))
			assert.Equal(t, tt.want, rec.snapshot())
		})
	}
}

func TestMeter_HandleReturnsRecorderError(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	m := NewMeter(rec, testLogger())

	err := m.Handle(context.Background(), bus.Event{
		Type:     schema.ConversationEnded,
		TenantID: "acme",
		Payload:  map[string]any{"sessionId": "s-1", "duration": 10},
	})
	assert.EqualError(t, err, "db down")
}

func TestMeter_RegisterOnBus(t *testing.T) {
	opts := bus.DefaultOptions()
	opts.Retry = retry.Policy{MaxRetries: 1, Delay: time.Millisecond}
	b := bus.New(testLogger(), opts)
	defer b.Close()

	rec := &fakeRecorder{}
	ids := NewMeter(rec, testLogger()).Register(b)
	require.Len(t, ids, 2)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, schema.CallCompleted,
		map[string]any{"callId": "c-1", "duration": 60.5, "outcome": "answered"}, "acme"))
	require.NoError(t, b.Publish(ctx, schema.ConversationEnded,
		map[string]any{"sessionId": "s-1", "duration": 200}, "acme"))
	require.NoError(t, b.Publish(ctx, schema.LeadQualified,
		map[string]any{"sessionId": "s-1", "score": 90, "status": "hot"}, "acme"))
	b.Wait()

	assert.ElementsMatch(t, []recorded{
		{"acme", Increment{VoiceSeconds: 61, Calls: 1}},
		{"acme", Increment{Conversations: 1}},
	}, rec.snapshot())
	assert.Equal(t, uint64(2), b.Metrics().Delivered)
}
