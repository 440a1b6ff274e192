package intake_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kiranshivaraju/errdesk/internal/intake"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResolver struct {
	mu    sync.Mutex
	ids   map[string]string
	err   error
	names []string
}

func (m *mockResolver) IDByName(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	if m.err != nil {
		return "", m.err
	}
	id, ok := m.ids[name]
	if !ok {
		return "", store.ErrNotFound
	}
	return id, nil
}

func newResolver() *mockResolver {
	return &mockResolver{ids: map[string]string{"UI/UX": "cat-ui", "Database": "cat-db"}}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "network timeout talking to billing" }

func TestCapture_ClassifiesAndDefaults(t *testing.T) {
	gw := newFakeGateway()
	res := newResolver()
	svc := newTestService(gw, newFakeClock(), intake.WithCategoryResolver(res))

	e := svc.Capture(context.Background(), intake.CaptureInput{
		Err:  errors.New("authentication token expired"),
		Code: "SESSION",
	})
	require.NotNil(t, e)

	assert.Equal(t, intake.DefaultCaptureTitle, e.Title)
	assert.Equal(t, "authentication token expired", e.Message)
	assert.Equal(t, models.RiskCritical, e.RiskLevel)
	assert.Equal(t, "cat-ui", e.CategoryID)
	assert.Equal(t, []string{intake.DefaultCaptureCategory}, res.names)
	assert.Equal(t, "*errors.errorString", e.Metadata["error_type"])
}

func TestCapture_ExplicitFields(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, newFakeClock(), intake.WithCategoryResolver(newResolver()))

	e := svc.Capture(context.Background(), intake.CaptureInput{
		Err:        timeoutError{},
		Title:      "Billing sync failed",
		Code:       "PGRST500",
		Category:   "Database",
		RiskLevel:  models.RiskLow,
		StackTrace: "goroutine 1 [running]:",
		Metadata:   map[string]any{"job": "sync"},
	})
	require.NotNil(t, e)

	assert.Equal(t, "Billing sync failed", e.Title)
	assert.Equal(t, models.RiskLow, e.RiskLevel)
	assert.Equal(t, "cat-db", e.CategoryID)
	assert.Equal(t, "goroutine 1 [running]:", e.StackTrace)
	assert.Equal(t, "sync", e.Metadata["job"])
	assert.Equal(t, "intake_test.timeoutError", e.Metadata["error_type"])
}

func TestCapture_DoesNotMutateCallerMetadata(t *testing.T) {
	svc := newTestService(newFakeGateway(), newFakeClock())
	meta := map[string]any{"job": "sync"}

	e := svc.Capture(context.Background(), intake.CaptureInput{Err: errors.New("boom"), Metadata: meta})
	require.NotNil(t, e)
	assert.Len(t, meta, 1)
}

func TestCapture_RepeatedCapturesDeduplicate(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, newFakeClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.Capture(ctx, intake.CaptureInput{Err: fmt.Errorf("attempt %d: database is locked", i), Code: "PGRST301"})
	}
	require.Equal(t, 1, gw.count())
	e := gw.only()
	assert.Equal(t, 3, e.OccurrenceCount)
	assert.Equal(t, models.RiskHigh, e.RiskLevel)
}

func TestCapture_UnknownCategoryLeavesIDEmpty(t *testing.T) {
	svc := newTestService(newFakeGateway(), newFakeClock(), intake.WithCategoryResolver(newResolver()))

	e := svc.Capture(context.Background(), intake.CaptureInput{Err: errors.New("boom"), Category: "Nope"})
	require.NotNil(t, e)
	assert.Empty(t, e.CategoryID)
}

func TestCapture_ResolverFailureStillRecords(t *testing.T) {
	gw := newFakeGateway()
	res := newResolver()
	res.err = errors.New("redis down")
	svc := newTestService(gw, newFakeClock(), intake.WithCategoryResolver(res))

	e := svc.Capture(context.Background(), intake.CaptureInput{Err: errors.New("boom")})
	require.NotNil(t, e)
	assert.Empty(t, e.CategoryID)
	assert.Equal(t, 1, gw.count())
}

func TestCapture_PersistenceFailureIsSwallowed(t *testing.T) {
	gw := newFakeGateway()
	gw.insertErr = errGatewayDown
	svc := newTestService(gw, newFakeClock())

	var e *models.ErrorLog
	assert.NotPanics(t, func() {
		e = svc.Capture(context.Background(), intake.CaptureInput{Err: errors.New("boom")})
	})
	assert.Nil(t, e)
	assert.Equal(t, 0, gw.count())
}

func TestCapture_NilError(t *testing.T) {
	svc := newTestService(newFakeGateway(), newFakeClock())

	e := svc.Capture(context.Background(), intake.CaptureInput{Title: "Panic"})
	require.NotNil(t, e)
	assert.Equal(t, "unknown error", e.Message)
	assert.Empty(t, e.ErrorCode)
	assert.NotContains(t, e.Metadata, "error_type")
}

func TestCapture_UnknownCodeAndContext(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw, newFakeClock())

	e := svc.Capture(context.Background(), intake.CaptureInput{
		Title:   "Supabase Error in getProfile",
		Err:     errors.New("row not found"),
		Context: "getProfile",
	})
	require.NotNil(t, e)
	assert.Equal(t, intake.UnknownErrorCode, e.ErrorCode)
	assert.Equal(t, models.RiskMedium, e.RiskLevel)
	assert.Equal(t, "getProfile", e.Metadata["context"])

	// A second capture folds into the same row under the defaulted code.
	again := svc.Capture(context.Background(), intake.CaptureInput{
		Title: "Supabase Error in getProfile",
		Err:   errors.New("row not found"),
	})
	require.NotNil(t, again)
	assert.Equal(t, e.ID, again.ID)
	assert.Equal(t, 2, again.OccurrenceCount)
}
