package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	ErrorStore
	CategoryStore
	KeyStore

	// InTx runs fn inside a single database transaction. The transaction is
	// rolled back if fn returns an error.
	InTx(ctx context.Context, fn func(tx ErrorStore) error) error
}

// ErrorStore covers error logs and their resolutions.
type ErrorStore interface {
	// FindOpenErrorByKey returns the open error with exactly this title and
	// error code, or ErrNotFound.
	FindOpenErrorByKey(ctx context.Context, title, errorCode string) (*models.ErrorLog, error)
	GetError(ctx context.Context, id uuid.UUID) (*models.ErrorLog, error)
	InsertError(ctx context.Context, e *models.ErrorLog) (*models.ErrorLog, error)
	UpdateError(ctx context.Context, id uuid.UUID, opts ...ErrorUpdateOption) (*models.ErrorLog, error)
	DeleteError(ctx context.Context, id uuid.UUID) error
	ListErrors(ctx context.Context, filter ErrorFilter) ([]*models.ErrorLog, int, error)
	ErrorStats(ctx context.Context) (*models.ErrorStats, error)

	InsertResolution(ctx context.Context, r *models.ErrorResolution) (*models.ErrorResolution, error)
	ListResolutions(ctx context.Context, errorID uuid.UUID) ([]*models.ErrorResolution, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]*models.ErrorCategory, error)
	UpsertCategory(ctx context.Context, c *models.ErrorCategory) (*models.ErrorCategory, error)
}

type KeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

type ErrorFilter struct {
	Search     string
	RiskLevel  models.RiskLevel
	Status     models.ErrorStatus
	CategoryID string
	Page       int
	Limit      int
}

// ErrorUpdate is the set of columns an UpdateError call touches.
// Exported so that test doubles outside this package can apply options.
type ErrorUpdate struct {
	Status *models.ErrorStatus

	SetAssignee bool
	AssignedTo  *uuid.UUID

	// BumpOccurrence increments occurrence_count and moves last_occurred
	// forward to OccurredAt. It only matches rows that are still open.
	BumpOccurrence bool
	OccurredAt     time.Time
}

type ErrorUpdateOption func(*ErrorUpdate)

// NewErrorUpdate applies opts to an empty ErrorUpdate.
func NewErrorUpdate(opts ...ErrorUpdateOption) ErrorUpdate {
	var u ErrorUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func WithStatus(s models.ErrorStatus) ErrorUpdateOption {
	return func(u *ErrorUpdate) {
		u.Status = &s
	}
}

// WithAssignee sets assigned_to; a nil id clears it.
func WithAssignee(id *uuid.UUID) ErrorUpdateOption {
	return func(u *ErrorUpdate) {
		u.SetAssignee = true
		u.AssignedTo = id
	}
}

func WithOccurrence(at time.Time) ErrorUpdateOption {
	return func(u *ErrorUpdate) {
		u.BumpOccurrence = true
		u.OccurredAt = at
	}
}
