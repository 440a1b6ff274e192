package intake_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errdesk/internal/intake"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

// fakeGateway is an in-memory gateway that enforces the same partial unique
// constraint as the database: one open row per (title, error_code).
type fakeGateway struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]*models.ErrorLog
	resolutions []*models.ErrorResolution
	categories  []*models.ErrorCategory

	findErr       error
	insertErr     error
	updateErr     error
	resolutionErr error
	listErr       error
	statsErr      error

	inserts int
	updates int

	// beforeInsert runs once before the next InsertError, outside the lock.
	beforeInsert func()
	// afterStats runs once after the next ErrorStats has counted, outside the lock.
	afterStats func()
}

var _ intake.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{rows: make(map[uuid.UUID]*models.ErrorLog)}
}

func clone(e *models.ErrorLog) *models.ErrorLog {
	c := *e
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}

func (g *fakeGateway) openRow(title, code string, except uuid.UUID) *models.ErrorLog {
	for _, e := range g.rows {
		if e.ID != except && e.Status == models.StatusOpen && e.Title == title && e.ErrorCode == code {
			return e
		}
	}
	return nil
}

func (g *fakeGateway) FindOpenErrorByKey(_ context.Context, title, code string) (*models.ErrorLog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	if e := g.openRow(title, code, uuid.Nil); e != nil {
		return clone(e), nil
	}
	return nil, store.ErrNotFound
}

func (g *fakeGateway) GetError(_ context.Context, id uuid.UUID) (*models.ErrorLog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(e), nil
}

func (g *fakeGateway) InsertError(_ context.Context, e *models.ErrorLog) (*models.ErrorLog, error) {
	g.mu.Lock()
	hook := g.beforeInsert
	g.beforeInsert = nil
	g.mu.Unlock()
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.insertErr != nil {
		return nil, g.insertErr
	}
	if e.Status == models.StatusOpen && g.openRow(e.Title, e.ErrorCode, uuid.Nil) != nil {
		return nil, store.ErrDuplicateKey
	}
	g.inserts++
	g.rows[e.ID] = clone(e)
	return clone(e), nil
}

func (g *fakeGateway) UpdateError(_ context.Context, id uuid.UUID, opts ...store.ErrorUpdateOption) (*models.ErrorLog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	e, ok := g.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	upd := store.NewErrorUpdate(opts...)
	if upd.BumpOccurrence && e.Status != models.StatusOpen {
		return nil, store.ErrNotFound
	}
	if upd.Status != nil && *upd.Status == models.StatusOpen && e.Status != models.StatusOpen &&
		g.openRow(e.Title, e.ErrorCode, e.ID) != nil {
		return nil, store.ErrDuplicateKey
	}

	g.updates++
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	if upd.SetAssignee {
		e.AssignedTo = upd.AssignedTo
	}
	if upd.BumpOccurrence {
		e.OccurrenceCount++
		if upd.OccurredAt.After(e.LastOccurred) {
			e.LastOccurred = upd.OccurredAt
		}
	}
	e.UpdatedAt = time.Now().UTC()
	return clone(e), nil
}

func (g *fakeGateway) DeleteError(_ context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(g.rows, id)
	return nil
}

func (g *fakeGateway) ListErrors(_ context.Context, f store.ErrorFilter) ([]*models.ErrorLog, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, 0, g.listErr
	}
	var out []*models.ErrorLog
	for _, e := range g.rows {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.RiskLevel != "" && e.RiskLevel != f.RiskLevel {
			continue
		}
		out = append(out, clone(e))
	}
	return out, len(out), nil
}

func (g *fakeGateway) ErrorStats(_ context.Context) (*models.ErrorStats, error) {
	g.mu.Lock()
	if g.statsErr != nil {
		g.mu.Unlock()
		return nil, g.statsErr
	}
	st := &models.ErrorStats{}
	for _, e := range g.rows {
		st.Total++
		switch e.RiskLevel {
		case models.RiskCritical:
			st.Critical++
		case models.RiskHigh:
			st.High++
		}
		switch e.Status {
		case models.StatusOpen:
			st.Open++
		case models.StatusResolved:
			st.Resolved++
		}
	}
	hook := g.afterStats
	g.afterStats = nil
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return st, nil
}

func (g *fakeGateway) InsertResolution(_ context.Context, r *models.ErrorResolution) (*models.ErrorResolution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolutionErr != nil {
		return nil, g.resolutionErr
	}
	c := *r
	g.resolutions = append(g.resolutions, &c)
	return &c, nil
}

func (g *fakeGateway) ListResolutions(_ context.Context, errorID uuid.UUID) ([]*models.ErrorResolution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*models.ErrorResolution
	for _, r := range g.resolutions {
		if r.ErrorLogID == errorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *fakeGateway) ListCategories(_ context.Context) ([]*models.ErrorCategory, error) {
	return g.categories, nil
}

// InTx snapshots all rows and restores them if fn fails.
func (g *fakeGateway) InTx(_ context.Context, fn func(tx store.ErrorStore) error) error {
	g.mu.Lock()
	rows := make(map[uuid.UUID]*models.ErrorLog, len(g.rows))
	for id, e := range g.rows {
		rows[id] = clone(e)
	}
	resolutions := append([]*models.ErrorResolution(nil), g.resolutions...)
	g.mu.Unlock()

	if err := fn(g); err != nil {
		g.mu.Lock()
		g.rows = rows
		g.resolutions = resolutions
		g.mu.Unlock()
		return err
	}
	return nil
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows)
}

func (g *fakeGateway) only() *models.ErrorLog {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.rows {
		return clone(e)
	}
	return nil
}

// --- clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

var errGatewayDown = errors.New("connection refused")
