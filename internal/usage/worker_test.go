package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTenantGetter struct {
	mock.Mock
}

func (m *mockTenantGetter) GetActiveTenantsWithPlan(ctx context.Context) ([]TenantPlan, error) {
	args := m.Called(ctx)
	if t := args.Get(0); t != nil {
		return t.([]TenantPlan), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockQuotaChecker struct {
	mock.Mock
}

func (m *mockQuotaChecker) CheckQuota(ctx context.Context, tenantID, planID string) error {
	return m.Called(ctx, tenantID, planID).Error(0)
}

func TestWorker_CheckAllTenants(t *testing.T) {
	getter := new(mockTenantGetter)
	getter.On("GetActiveTenantsWithPlan", mock.Anything).Return([]TenantPlan{
		{TenantID: "acme", PlanID: "pro"},
		{TenantID: "globex", PlanID: "starter"},
	}, nil)

	checker := new(mockQuotaChecker)
	checker.On("CheckQuota", mock.Anything, "acme", "pro").Return(errors.New("plan lookup failed"))
	checker.On("CheckQuota", mock.Anything, "globex", "starter").Return(nil)

	w := NewWorker(checker, getter, testLogger(), "")
	w.checkAllTenants(context.Background())

	getter.AssertExpectations(t)
	checker.AssertExpectations(t)
}

func TestWorker_CheckAllTenants_ListError(t *testing.T) {
	getter := new(mockTenantGetter)
	getter.On("GetActiveTenantsWithPlan", mock.Anything).Return(nil, errors.New("db down"))

	checker := new(mockQuotaChecker)

	w := NewWorker(checker, getter, testLogger(), "")
	w.checkAllTenants(context.Background())

	checker.AssertNotCalled(t, "CheckQuota", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_CheckAllTenants_StopsOnCancel(t *testing.T) {
	getter := new(mockTenantGetter)
	getter.On("GetActiveTenantsWithPlan", mock.Anything).Return([]TenantPlan{{TenantID: "acme", PlanID: "pro"}}, nil)

	checker := new(mockQuotaChecker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewWorker(checker, getter, testLogger(), "").checkAllTenants(ctx)

	checker.AssertNotCalled(t, "CheckQuota", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_DefaultSchedule(t *testing.T) {
	w := NewWorker(new(mockQuotaChecker), new(mockTenantGetter), testLogger(), "")
	assert.Equal(t, DefaultSchedule, w.schedule)
}

func TestWorker_RunRejectsBadSchedule(t *testing.T) {
	w := NewWorker(new(mockQuotaChecker), new(mockTenantGetter), testLogger(), "every now and then")

	err := w.Run(context.Background())
	assert.ErrorContains(t, err, "schedule quota check")
}

func TestWorker_RunStopsWithContext(t *testing.T) {
	getter := new(mockTenantGetter)
	getter.On("GetActiveTenantsWithPlan", mock.Anything).Return([]TenantPlan{}, nil).Maybe()

	w := NewWorker(new(mockQuotaChecker), getter, testLogger(), "@every 1h")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
