// Package intake receives error reports, deduplicates them against open
// errors, and drives the error status workflow.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errdesk/internal/cache"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

const (
	defaultPriority   = 3
	maxSubmitAttempts = 3
	statsTTL          = 30 * time.Second
	statsGenTTL       = 24 * time.Hour

	// ResolutionTypeStatusChange marks resolutions created by SetStatus.
	ResolutionTypeStatusChange = "status_change"
)

var errContention = errors.New("deduplication key changed on every attempt")

// Gateway is the persistence contract the service depends on.
type Gateway interface {
	store.ErrorStore
	ListCategories(ctx context.Context) ([]*models.ErrorCategory, error)
	InTx(ctx context.Context, fn func(tx store.ErrorStore) error) error
}

// CategoryResolver maps a category name to its id.
type CategoryResolver interface {
	IDByName(ctx context.Context, name string) (string, error)
}

// Service implements error intake, deduplication and the status workflow.
type Service struct {
	gw         Gateway
	categories CategoryResolver
	cache      cache.Cache
	locks      keyLock
	now        func() time.Time

	defaultURL       string
	defaultUserAgent string
	strict           bool
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaults sets the url and user agent stored when a report has none.
func WithDefaults(url, userAgent string) Option {
	return func(s *Service) {
		s.defaultURL = url
		s.defaultUserAgent = userAgent
	}
}

// WithStrictTransitions rejects status changes outside the transition table.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

func WithCategoryResolver(r CategoryResolver) Option {
	return func(s *Service) { s.categories = r }
}

// WithStatsCache caches Stats results; every write invalidates them.
func WithStatsCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// NewService creates a Service on top of gw.
func NewService(gw Gateway, opts ...Option) *Service {
	s := &Service{gw: gw, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records one occurrence of report. If an open error with the same
// title and error code exists, its occurrence count and last_occurred are
// bumped; otherwise a new open error is created. A new error is returned
// with OccurrenceCount == 1.
func (s *Service) Submit(ctx context.Context, report models.ErrorReport) (*models.ErrorLog, error) {
	r, err := s.normalize(report)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	unlock := s.locks.lock(r.Title, r.ErrorCode)
	defer unlock()

	for attempt := 0; attempt < maxSubmitAttempts; attempt++ {
		existing, err := s.gw.FindOpenErrorByKey(ctx, r.Title, r.ErrorCode)
		if err == nil {
			updated, err := s.gw.UpdateError(ctx, existing.ID, store.WithOccurrence(now))
			if errors.Is(err, store.ErrNotFound) {
				// No longer open; match again.
				continue
			}
			if err != nil {
				return nil, persistence("record occurrence", err)
			}
			slog.Debug("error occurrence recorded",
				"error_id", updated.ID,
				"occurrence_count", updated.OccurrenceCount,
			)
			s.invalidateStats(ctx)
			return updated, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, persistence("find open error", err)
		}

		created, err := s.gw.InsertError(ctx, newErrorLog(r, now))
		if errors.Is(err, store.ErrDuplicateKey) {
			// Another process opened the same key first; take the update path.
			continue
		}
		if err != nil {
			return nil, persistence("insert error", err)
		}
		slog.Info("error opened",
			"error_id", created.ID,
			"title", created.Title,
			"error_code", created.ErrorCode,
			"risk_level", created.RiskLevel,
		)
		s.invalidateStats(ctx)
		return created, nil
	}

	return nil, persistence("submit", errContention)
}

func (s *Service) normalize(r models.ErrorReport) (models.ErrorReport, error) {
	if strings.TrimSpace(r.Title) == "" {
		return r, invalid("title", "is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return r, invalid("message", "is required")
	}

	if r.RiskLevel == "" {
		r.RiskLevel = models.RiskMedium
	}
	if !r.RiskLevel.Valid() {
		return r, invalid("risk_level", fmt.Sprintf("must be one of critical, high, medium, low; got %q", r.RiskLevel))
	}

	if r.Priority == 0 {
		r.Priority = defaultPriority
	}
	if r.Priority < 1 || r.Priority > 5 {
		return r, invalid("priority", fmt.Sprintf("must be between 1 and 5; got %d", r.Priority))
	}

	if r.URL == "" {
		r.URL = s.defaultURL
	}
	if r.UserAgent == "" {
		r.UserAgent = s.defaultUserAgent
	}

	r.Tags = dedupeTags(r.Tags)
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	return r, nil
}

func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func newErrorLog(r models.ErrorReport, now time.Time) *models.ErrorLog {
	return &models.ErrorLog{
		ID:              uuid.New(),
		Title:           r.Title,
		Message:         r.Message,
		ErrorCode:       r.ErrorCode,
		StackTrace:      r.StackTrace,
		URL:             r.URL,
		UserAgent:       r.UserAgent,
		UserID:          r.UserID,
		CategoryID:      r.CategoryID,
		RiskLevel:       r.RiskLevel,
		Status:          models.StatusOpen,
		Priority:        r.Priority,
		Tags:            r.Tags,
		Metadata:        r.Metadata,
		OccurrenceCount: 1,
		FirstOccurred:   now,
		LastOccurred:    now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Resolution describes how an error was closed.
type Resolution struct {
	Notes      string
	Type       string
	ResolvedBy *uuid.UUID
}

// Resolve records a resolution and marks the error resolved. Both writes
// happen in one transaction: if the resolution cannot be stored the status
// is left unchanged.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, res Resolution) (*models.ErrorLog, error) {
	var resolved *models.ErrorLog
	err := s.gw.InTx(ctx, func(tx store.ErrorStore) error {
		cur, err := getError(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.strict && !CanTransition(cur.Status, models.StatusResolved) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, models.StatusResolved)
		}

		_, err = tx.InsertResolution(ctx, &models.ErrorResolution{
			ID:              uuid.New(),
			ErrorLogID:      id,
			ResolvedBy:      res.ResolvedBy,
			ResolutionNotes: res.Notes,
			ResolutionType:  res.Type,
			CreatedAt:       s.now().UTC(),
		})
		if err != nil {
			return persistence("insert resolution", err)
		}

		resolved, err = tx.UpdateError(ctx, id, store.WithStatus(models.StatusResolved))
		if err != nil {
			return persistence("mark resolved", err)
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError("resolve", err)
	}

	slog.Info("error resolved", "error_id", id, "resolution_type", res.Type)
	s.invalidateStats(ctx)
	return resolved, nil
}

// SetStatus moves an error to status. Moving to resolved goes through
// Resolve so that every resolved error has a resolution record. Only the
// status and updated_at change.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.ErrorStatus) (*models.ErrorLog, error) {
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("must be one of open, in_progress, resolved, ignored; got %q", status))
	}

	cur, err := getError(ctx, s.gw, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == status {
		return cur, nil
	}
	if s.strict && !CanTransition(cur.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, status)
	}

	if status == models.StatusResolved {
		return s.Resolve(ctx, id, Resolution{Type: ResolutionTypeStatusChange})
	}

	updated, err := s.gw.UpdateError(ctx, id, store.WithStatus(status))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case errors.Is(err, store.ErrDuplicateKey):
		return nil, fmt.Errorf("%w: %q [%s]", ErrConflict, cur.Title, cur.ErrorCode)
	case err != nil:
		return nil, persistence("update status", err)
	}

	slog.Info("error status changed", "error_id", id, "from", cur.Status, "to", status)
	s.invalidateStats(ctx)
	return updated, nil
}

// Assign sets the assignee of an error; nil clears it.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*models.ErrorLog, error) {
	updated, err := s.gw.UpdateError(ctx, id, store.WithAssignee(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, persistence("assign error", err)
	}
	return updated, nil
}

// Delete removes an error and its resolutions. This is an administrative
// action outside the intake workflow.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.gw.DeleteError(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return persistence("delete error", err)
	}
	slog.Info("error deleted", "error_id", id)
	s.invalidateStats(ctx)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.ErrorLog, error) {
	return getError(ctx, s.gw, id)
}

// Resolutions returns the resolution history of an error, newest first.
func (s *Service) Resolutions(ctx context.Context, id uuid.UUID) ([]*models.ErrorResolution, error) {
	if _, err := getError(ctx, s.gw, id); err != nil {
		return nil, err
	}
	res, err := s.gw.ListResolutions(ctx, id)
	if err != nil {
		return nil, persistence("list resolutions", err)
	}
	return res, nil
}

// List returns one page of errors matching filter and the total match count.
func (s *Service) List(ctx context.Context, filter store.ErrorFilter) ([]*models.ErrorLog, int, error) {
	if filter.RiskLevel != "" && !filter.RiskLevel.Valid() {
		return nil, 0, invalid("risk_level", fmt.Sprintf("unknown risk level %q", filter.RiskLevel))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, invalid("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	filter.Search = strings.TrimSpace(filter.Search)

	errs, total, err := s.gw.ListErrors(ctx, filter)
	if err != nil {
		return nil, 0, persistence("list errors", err)
	}
	return errs, total, nil
}

// Stats returns the dashboard counters, served from cache when possible.
// Counters are cached under the generation read before counting, so a
// write that lands mid-count is never masked by the stale result.
func (s *Service) Stats(ctx context.Context) (*models.ErrorStats, error) {
	key, cacheable := s.statsKey(ctx)
	if cacheable {
		if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
			var st models.ErrorStats
			if json.Unmarshal(raw, &st) == nil {
				return &st, nil
			}
		}
	}

	st, err := s.gw.ErrorStats(ctx)
	if err != nil {
		return nil, persistence("error stats", err)
	}

	if cacheable {
		if raw, err := json.Marshal(st); err == nil {
			_ = s.cache.Set(ctx, key, raw, statsTTL)
		}
	}
	return st, nil
}

// statsKey returns the cache key of the current stats generation. It
// reports false when there is no cache or the generation is unreadable.
func (s *Service) statsKey(ctx context.Context) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	raw, found, err := s.cache.Get(ctx, cache.StatsGenerationKey)
	if err != nil {
		slog.Debug("stats generation read failed", "error", err)
		return "", false
	}
	gen := "0"
	if found {
		gen = string(raw)
	}
	return cache.StatsKey(gen), true
}

func (s *Service) Categories(ctx context.Context) ([]*models.ErrorCategory, error) {
	cats, err := s.gw.ListCategories(ctx)
	if err != nil {
		return nil, persistence("list categories", err)
	}
	return cats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.IncrWithExpiry(ctx, cache.StatsGenerationKey, statsGenTTL); err != nil {
		slog.Debug("stats cache invalidation failed", "error", err)
	}
}

func getError(ctx context.Context, gw store.ErrorStore, id uuid.UUID) (*models.ErrorLog, error) {
	e, err := gw.GetError(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, persistence("get error", err)
	}
	return e, nil
}

// asServiceError passes through errors already classified by this package
// and wraps anything else (e.g. a failed commit) as a persistence failure.
func asServiceError(op string, err error) error {
	for _, known := range []error{ErrValidation, ErrNotFound, ErrPersistence, ErrInvalidTransition, ErrConflict} {
		if errors.Is(err, known) {
			return err
		}
	}
	return persistence(op, err)
}
