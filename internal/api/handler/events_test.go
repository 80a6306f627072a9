package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/audit"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

type mockBus struct {
	mock.Mock
}

func (m *mockBus) Publish(ctx context.Context, eventType string, payload map[string]any, tenantID string, opts ...bus.PublishOption) error {
	args := m.Called(ctx, eventType, payload, tenantID, len(opts))
	return args.Error(0)
}

func (m *mockBus) Metrics() bus.Metrics {
	return m.Called().Get(0).(bus.Metrics)
}

func newEventsApp(b EventBus, rec audit.Logger) *fiberApp {
	app := newTestApp()
	h := NewEventsHandler(b, rec, testLogger())
	app.Post("/v1/events", h.Publish)
	app.Get("/v1/events/metrics", h.Metrics)
	app.Get("/v1/events/schemas", h.Schemas)
	return &fiberApp{app}
}

func TestEventsHandler_Publish(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockSetup  func(m *mockBus)
		wantStatus int
		wantBody   string
		wantAudit  audit.Action
	}{
		{
			name: "accepted",
			body: `{"type":"lead.qualified","tenantId":"acme","payload":{"sessionId":"s-1","score":90,"status":"hot"}}`,
			mockSetup: func(m *mockBus) {
				m.On("Publish", mock.Anything, schema.LeadQualified, mock.Anything, "acme", 0).Return(nil)
			},
			wantStatus: 202,
			wantBody:   `{"accepted":true}`,
			wantAudit:  audit.ActionEventAccepted,
		},
		{
			name: "fingerprint is forwarded",
			body: `{"type":"cart.abandoned","tenantId":"acme","payload":{"sessionId":"s-1","cartValue":10},"fingerprint":"cart-s-1"}`,
			mockSetup: func(m *mockBus) {
				m.On("Publish", mock.Anything, schema.CartAbandoned, mock.Anything, "acme", 1).Return(nil)
			},
			wantStatus: 202,
			wantBody:   `{"accepted":true}`,
			wantAudit:  audit.ActionEventAccepted,
		},
		{
			name: "missing tenant defaults",
			body: `{"type":"tenant.provisioned","payload":{"tenantId":"acme","plan":"pro"}}`,
			mockSetup: func(m *mockBus) {
				m.On("Publish", mock.Anything, schema.TenantProvisioned, mock.Anything, "default", 0).Return(nil)
			},
			wantStatus: 202,
			wantBody:   `{"accepted":true}`,
			wantAudit:  audit.ActionEventAccepted,
		},
		{
			name:       "unknown type is accepted softly",
			body:       `{"type":"lead.exploded","tenantId":"acme","payload":{}}`,
			mockSetup:  func(m *mockBus) {},
			wantStatus: 202,
			wantBody:   `{"accepted":false,"reason":"unknown event type"}`,
		},
		{
			name: "schema violation",
			body: `{"type":"call.completed","tenantId":"acme","payload":{"callId":"c-1"}}`,
			mockSetup: func(m *mockBus) {
				m.On("Publish", mock.Anything, schema.CallCompleted, mock.Anything, "acme", 0).
					Return(&schema.SchemaError{EventType: schema.CallCompleted, Missing: []string{"duration", "outcome"}})
			},
			wantStatus: 422,
			wantBody:   `{"error":{"code":"SCHEMA_VALIDATION_FAILED","message":"Event payload is missing required fields","event_type":"call.completed","missing":["duration","outcome"]}}`,
			wantAudit:  audit.ActionEventRejected,
		},
		{
			name:       "missing type",
			body:       `{"tenantId":"acme","payload":{}}`,
			mockSetup:  func(m *mockBus) {},
			wantStatus: 422,
			wantBody:   `{"error":{"code":"VALIDATION_FAILED","message":"type is required"}}`,
		},
		{
			name:       "malformed body",
			body:       `{"type":`,
			mockSetup:  func(m *mockBus) {},
			wantStatus: 400,
			wantBody:   `{"error":{"code":"BAD_REQUEST","message":"Invalid request"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := new(mockBus)
			tt.mockSetup(b)
			rec := &memoryAudit{}
			app := newEventsApp(b, rec)

			req := httptest.NewRequest("POST", "/v1/events", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("User-Agent", "voice-gateway/2.1")

			status, body := app.do(t, req)
			assert.Equal(t, tt.wantStatus, status)
			assert.JSONEq(t, tt.wantBody, body)

			records := rec.records()
			if tt.wantAudit == "" {
				assert.Empty(t, records)
			} else {
				require.Len(t, records, 1)
				assert.Equal(t, tt.wantAudit, records[0].Action)
				assert.Equal(t, "api", records[0].Source)
				assert.Equal(t, "voice-gateway/2.1", records[0].UserAgent)
			}
			b.AssertExpectations(t)
		})
	}
}

func TestEventsHandler_PublishThroughBus(t *testing.T) {
	opts := bus.DefaultOptions()
	b := bus.New(testLogger(), opts)
	defer b.Close()

	delivered := make(chan bus.Event, 1)
	b.Subscribe(schema.LeadQualified, func(_ context.Context, evt bus.Event) error {
		delivered <- evt
		return nil
	})

	app := newEventsApp(b, nil)
	body := `{"type":"lead.qualified","tenantId":"acme","payload":{"sessionId":"s-1","score":90,"status":"hot"}}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/v1/events", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		status, _ := app.do(t, req)
		assert.Equal(t, 202, status)
	}
	b.Wait()

	evt := <-delivered
	assert.Equal(t, "acme", evt.TenantID)
	assert.Equal(t, "s-1", evt.Payload["sessionId"])

	status, metrics := app.do(t, httptest.NewRequest("GET", "/v1/events/metrics", nil))
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"published":1,"delivered":1,"failed":0,"deduplicated":1}`, metrics)
}

func TestEventsHandler_Schemas(t *testing.T) {
	app := newEventsApp(new(mockBus), nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/events/schemas", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Schemas []EventSchemaResponse `json:"schemas"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Schemas, len(schema.EventSchemas))

	byType := make(map[string]EventSchemaResponse, len(body.Schemas))
	for _, s := range body.Schemas {
		byType[s.Type] = s
	}

	assert.Equal(t, []string{"callId", "duration", "outcome"}, byType[schema.CallCompleted].Fields)
	assert.True(t, byType[schema.CallCompleted].WebhookEligible)
	assert.False(t, byType[schema.SystemError].WebhookEligible)
}
