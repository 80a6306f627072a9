package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// PublishEventRequest is the body accepted by POST /v1/events
type PublishEventRequest struct {
	Type        string         `json:"type" example:"call.completed"`
	TenantID    string         `json:"tenantId" example:"acme"`
	Payload     map[string]any `json:"payload"`
	Fingerprint string         `json:"fingerprint,omitempty" example:"call-c-1-completed"`
}

// PublishEventResponse reports whether the event entered the bus
type PublishEventResponse struct {
	Accepted bool   `json:"accepted" example:"true"`
	Reason   string `json:"reason,omitempty" example:""`
}

// SchemaErrorResponse lists the payload fields a known event type is missing
type SchemaErrorResponse struct {
	Code      string   `json:"code" example:"SCHEMA_VALIDATION_FAILED"`
	Message   string   `json:"message" example:"Event payload is missing required fields"`
	EventType string   `json:"event_type" example:"call.completed"`
	Missing   []string `json:"missing" example:"duration,outcome"`
}

// BusMetricsResponse is a snapshot of the event bus counters
type BusMetricsResponse struct {
	Published    uint64 `json:"published" example:"1200"`
	Delivered    uint64 `json:"delivered" example:"3550"`
	Failed       uint64 `json:"failed" example:"3"`
	Deduplicated uint64 `json:"deduplicated" example:"41"`
}

// EventSchema describes one registered event type
type EventSchema struct {
	Type            string   `json:"type" example:"call.completed"`
	Fields          []string `json:"fields" example:"callId,duration,outcome"`
	WebhookEligible bool     `json:"webhook_eligible" example:"true"`
}

// EventSchemasResponse lists every registered event type
type EventSchemasResponse struct {
	Schemas []EventSchema `json:"schemas"`
}

// UpdateWebhookRequest replaces a tenant's webhook configuration
type UpdateWebhookRequest struct {
	URL    string   `json:"url" example:"https://hooks.acme.com/voice"`
	Secret string   `json:"secret,omitempty" example:""`
	Events []string `json:"events" example:"call.completed,lead.qualified"`
}

// WebhookConfigResponse represents a tenant webhook configuration
type WebhookConfigResponse struct {
	TenantID        string   `json:"tenant_id" example:"acme"`
	URL             string   `json:"url" example:"https://hooks.acme.com/voice"`
	Events          []string `json:"events" example:"call.completed,lead.qualified"`
	Secret          string   `json:"secret,omitempty" example:"****9f3a"`
	SecretGenerated bool     `json:"secret_generated,omitempty" example:"false"`
}

// UsageDetail is usage of one metered resource against its quota
type UsageDetail struct {
	Used       int     `json:"used" example:"850"`
	Quota      int     `json:"quota" example:"1000"`
	Percentage float64 `json:"percentage" example:"85"`
	Overage    int     `json:"overage" example:"0"`
}

// BillingSummary is the projected bill for the period
type BillingSummary struct {
	BaseFee    string `json:"base_fee" example:"99"`
	OverageFee string `json:"overage_fee" example:"0"`
	Total      string `json:"total" example:"99"`
}

// UsageAlert flags a resource crossing a quota threshold
type UsageAlert struct {
	Level      string  `json:"level" example:"warning"`
	Resource   string  `json:"resource" example:"voice_minutes"`
	Percentage float64 `json:"percentage" example:"85"`
	Message    string  `json:"message" example:"85.0% of voice_minutes quota used"`
}

// UsageSummaryResponse is a tenant's usage for a billing period
type UsageSummaryResponse struct {
	TenantID      string         `json:"tenant_id" example:"acme"`
	Period        string         `json:"period" example:"2025-03"`
	VoiceMinutes  UsageDetail    `json:"voice_minutes"`
	Conversations UsageDetail    `json:"conversations"`
	Calls         int            `json:"calls" example:"312"`
	Billing       BillingSummary `json:"billing"`
	Alerts        []UsageAlert   `json:"alerts,omitempty"`
}

// CreateTenantRequest provisions a tenant
type CreateTenantRequest struct {
	Name string `json:"name" example:"Acme Corp"`
	Slug string `json:"slug" example:"acme"`
	Plan string `json:"plan" example:"pro"`
}

// TenantResponse represents a tenant without its settings
type TenantResponse struct {
	Slug              string `json:"slug" example:"acme"`
	Name              string `json:"name" example:"Acme Corp"`
	Plan              string `json:"plan" example:"pro"`
	IsActive          bool   `json:"is_active" example:"true"`
	WebhookConfigured bool   `json:"webhook_configured" example:"false"`
	CreatedAt         string `json:"created_at" example:"2025-03-01T09:00:00Z"`
}

// TenantListResponse lists active tenants
type TenantListResponse struct {
	Tenants []TenantResponse `json:"tenants"`
}

// HealthResponse represents the health and readiness probes
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Version string            `json:"version,omitempty" example:"0.1.0"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// EmptyResponse represents no content response (204)
type EmptyResponse struct{}

var internalError = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")

var invalidTenant = response.New(ErrorResponse{Code: "INVALID_TENANT_ID", Message: "Tenant ID must be 1-100 letters, digits, '-' or '_'"}, "400", "Bad Request")

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Eventcore API",
		Version:     "v1.0.0",
		Description: "Event distribution core: schema-validated publishing, tenant webhooks, usage metering and live dashboards",
		Host:        "localhost:3000",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/events - Publish Event
		endpoint.New(
			endpoint.POST,
			"/v1/events",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Publish an event"),
			endpoint.WithDescription("Validates the payload against the event type schema and fans the event out to every subscriber. Duplicates within the dedup window are accepted and dropped. Unknown types are accepted with accepted=false."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(PublishEventRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(PublishEventResponse{}, "202", "Event accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(SchemaErrorResponse{}, "422", "Unprocessable Entity"),
				internalError,
			}),
		),

		// GET /v1/events/metrics - Bus Metrics
		endpoint.New(
			endpoint.GET,
			"/v1/events/metrics",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Get event bus counters"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(BusMetricsResponse{}, "200", "Counters retrieved successfully"),
			}),
		),

		// GET /v1/events/schemas - Event Schemas
		endpoint.New(
			endpoint.GET,
			"/v1/events/schemas",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("List registered event types"),
			endpoint.WithDescription("Returns each event type with its required payload fields and whether tenants may subscribe to it by webhook"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EventSchemasResponse{}, "200", "Schemas retrieved successfully"),
			}),
		),

		// POST /v1/tenants - Provision Tenant
		endpoint.New(
			endpoint.POST,
			"/v1/tenants",
			endpoint.WithTags("Tenants"),
			endpoint.WithSummary("Provision a tenant"),
			endpoint.WithDescription("Creates an active tenant and publishes tenant.provisioned. Plan defaults to starter."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(CreateTenantRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(TenantResponse{}, "201", "Tenant provisioned"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "TENANT_STORE_DISABLED", Message: "Tenant management requires a database"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "TENANT_ALREADY_EXISTS", Message: "Tenant with this slug already exists"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "invalid plan type"}, "422", "Unprocessable Entity"),
				internalError,
			}),
		),

		// GET /v1/tenants - List Tenants
		endpoint.New(
			endpoint.GET,
			"/v1/tenants",
			endpoint.WithTags("Tenants"),
			endpoint.WithSummary("List active tenants"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(TenantListResponse{}, "200", "Tenants retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "TENANT_STORE_DISABLED", Message: "Tenant management requires a database"}, "404", "Not Found"),
				internalError,
			}),
		),

		// GET /v1/tenants/:tenant/webhook - Get Webhook Config
		endpoint.New(
			endpoint.GET,
			"/v1/tenants/{tenant}/webhook",
			endpoint.WithTags("Webhooks"),
			endpoint.WithSummary("Get a tenant webhook configuration"),
			endpoint.WithDescription("The signing secret is masked"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("tenant", parameter.Path, parameter.WithDescription("Tenant slug")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(WebhookConfigResponse{}, "200", "Configuration retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				invalidTenant,
				response.New(ErrorResponse{Code: "WEBHOOK_NOT_CONFIGURED", Message: "Tenant has no webhook configured"}, "404", "Not Found"),
				internalError,
			}),
		),

		// PUT /v1/tenants/:tenant/webhook - Update Webhook Config
		endpoint.New(
			endpoint.PUT,
			"/v1/tenants/{tenant}/webhook",
			endpoint.WithTags("Webhooks"),
			endpoint.WithSummary("Create or replace a tenant webhook configuration"),
			endpoint.WithDescription("Only available when configurations are stored in Postgres. A signing secret is generated when none is given and none exists; the generated secret is returned once in full."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("tenant", parameter.Path, parameter.WithDescription("Tenant slug")),
			),
			endpoint.WithBody(UpdateWebhookRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(WebhookConfigResponse{}, "200", "Configuration saved"),
			}),
			endpoint.WithErrors([]response.Response{
				invalidTenant,
				response.New(ErrorResponse{Code: "TENANT_NOT_FOUND", Message: "Tenant not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "WEBHOOK_CONFIG_READ_ONLY", Message: "Webhook configuration is managed by files and cannot be changed over the API"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "INVALID_WEBHOOK_URL", Message: "Webhook URL must be an absolute http or https URL"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_WEBHOOK_EVENT", Message: "Event type is not eligible for webhook delivery"}, "422", "Unprocessable Entity"),
				internalError,
			}),
		),

		// DELETE /v1/tenants/:tenant/webhook - Delete Webhook Config
		endpoint.New(
			endpoint.DELETE,
			"/v1/tenants/{tenant}/webhook",
			endpoint.WithTags("Webhooks"),
			endpoint.WithSummary("Remove a tenant webhook configuration"),
			endpoint.WithParams(
				parameter.StrParam("tenant", parameter.Path, parameter.WithDescription("Tenant slug")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Configuration removed"),
			}),
			endpoint.WithErrors([]response.Response{
				invalidTenant,
				response.New(ErrorResponse{Code: "WEBHOOK_NOT_CONFIGURED", Message: "Tenant has no webhook configured"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "WEBHOOK_CONFIG_READ_ONLY", Message: "Webhook configuration is managed by files and cannot be changed over the API"}, "409", "Conflict"),
				internalError,
			}),
		),

		// GET /v1/tenants/:tenant/usage - Get Usage
		endpoint.New(
			endpoint.GET,
			"/v1/tenants/{tenant}/usage",
			endpoint.WithTags("Usage"),
			endpoint.WithSummary("Get tenant usage"),
			endpoint.WithDescription("Usage and projected billing for the current month, or for the month given in period"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("tenant", parameter.Path, parameter.WithDescription("Tenant slug")),
				parameter.StrParam("period", parameter.Query, parameter.WithDescription("Billing period as YYYY-MM (default: current month)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(UsageSummaryResponse{}, "200", "Usage retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "period must use the YYYY-MM format"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "USAGE_DISABLED", Message: "Usage metering is not enabled"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "TENANT_NOT_FOUND", Message: "Tenant not found"}, "404", "Not Found"),
				internalError,
			}),
		),

		// GET /v1/ws - Live Event Stream
		endpoint.New(
			endpoint.GET,
			"/v1/ws",
			endpoint.WithTags("Realtime"),
			endpoint.WithSummary("Stream a tenant's events over WebSocket"),
			endpoint.WithParams(
				parameter.StrParam("tenant", parameter.Query, parameter.WithDescription("Tenant slug (required)")),
			),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "tenant query parameter is required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),

		// GET /health - Health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is up"),
			}),
		),

		// GET /ready - Readiness
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{Status: "ready"}, "200", "Service is ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "unavailable"}, "503", "Service Unavailable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
