package usage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metered resources with a plan quota.
const (
	ResourceVoiceMinutes  = "voice_minutes"
	ResourceConversations = "conversations"
)

// Quota alert levels, by percentage of quota used.
const (
	LevelWarning  = "warning"  // >= 80%
	LevelCritical = "critical" // >= 90%
	LevelExceeded = "exceeded" // >= 100%
)

type Plan struct {
	ID                       string          `json:"id"`
	Name                     string          `json:"name"`
	MonthlyPrice             decimal.Decimal `json:"monthly_price"`
	QuotaVoiceMinutes        int             `json:"quota_voice_minutes"`
	QuotaConversations       int             `json:"quota_conversations"`
	OveragePriceMinute       decimal.Decimal `json:"overage_price_minute"`
	OveragePriceConversation decimal.Decimal `json:"overage_price_conversation"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

type UsageRecord struct {
	TenantID      string    `json:"tenant_id"`
	Date          time.Time `json:"date"`
	VoiceSeconds  int64     `json:"voice_seconds"`
	Calls         int       `json:"calls"`
	Conversations int       `json:"conversations"`
}

// VoiceMinutes rounds up to whole billed minutes.
func (r *UsageRecord) VoiceMinutes() int {
	if r.VoiceSeconds <= 0 {
		return 0
	}
	return int((r.VoiceSeconds + 59) / 60)
}

// Increment is added to a tenant's daily usage row.
type Increment struct {
	VoiceSeconds  int64
	Calls         int
	Conversations int
}

func (i Increment) IsZero() bool {
	return i.VoiceSeconds == 0 && i.Calls == 0 && i.Conversations == 0
}

type UsageAlert struct {
	Resource   string  `json:"resource"`
	Level      string  `json:"level"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

type UsageSummary struct {
	TenantID      string         `json:"tenant_id"`
	Period        string         `json:"period"`
	Plan          Plan           `json:"plan"`
	VoiceMinutes  UsageDetail    `json:"voice_minutes"`
	Conversations UsageDetail    `json:"conversations"`
	Calls         int            `json:"calls"`
	Billing       BillingSummary `json:"billing"`
	Alerts        []UsageAlert   `json:"alerts,omitempty"`
}

type UsageDetail struct {
	Used       int     `json:"used"`
	Quota      int     `json:"quota"`
	Percentage float64 `json:"percentage"`
	Overage    int     `json:"overage"`
}

type BillingSummary struct {
	BaseFee          decimal.Decimal  `json:"base_fee"`
	OverageFee       decimal.Decimal  `json:"overage_fee"`
	Total            decimal.Decimal  `json:"total"`
	OverageBreakdown OverageBreakdown `json:"overage_breakdown"`
}

type OverageBreakdown struct {
	VoiceMinutes  decimal.Decimal `json:"voice_minutes"`
	Conversations decimal.Decimal `json:"conversations"`
}
