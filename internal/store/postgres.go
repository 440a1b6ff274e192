package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// InTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx ErrorStore) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx})
	})
}

// --- Error Logs ---

const errorColumns = `id, title, message, error_code, stack_trace, url, user_agent, user_id, category_id,
	risk_level, status, priority, tags, metadata, occurrence_count, first_occurred, last_occurred,
	assigned_to, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanError(row rowScanner) (*models.ErrorLog, error) {
	var e models.ErrorLog
	err := row.Scan(&e.ID, &e.Title, &e.Message, &e.ErrorCode, &e.StackTrace, &e.URL, &e.UserAgent,
		&e.UserID, &e.CategoryID, &e.RiskLevel, &e.Status, &e.Priority, &e.Tags, &e.Metadata,
		&e.OccurrenceCount, &e.FirstOccurred, &e.LastOccurred, &e.AssignedTo, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) FindOpenErrorByKey(ctx context.Context, title, errorCode string) (*models.ErrorLog, error) {
	e, err := scanError(s.db.QueryRow(ctx,
		`SELECT `+errorColumns+` FROM error_logs
		 WHERE title = $1 AND error_code = $2 AND status = 'open' LIMIT 1`, title, errorCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find open error: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) GetError(ctx context.Context, id uuid.UUID) (*models.ErrorLog, error) {
	e, err := scanError(s.db.QueryRow(ctx,
		`SELECT `+errorColumns+` FROM error_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get error: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) InsertError(ctx context.Context, in *models.ErrorLog) (*models.ErrorLog, error) {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	e, err := scanError(s.db.QueryRow(ctx,
		`INSERT INTO error_logs (id, title, message, error_code, stack_trace, url, user_agent, user_id,
		   category_id, risk_level, status, priority, tags, metadata, occurrence_count, first_occurred,
		   last_occurred, assigned_to, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 RETURNING `+errorColumns,
		in.ID, in.Title, in.Message, in.ErrorCode, in.StackTrace, in.URL, in.UserAgent, in.UserID,
		in.CategoryID, in.RiskLevel, in.Status, in.Priority, tags, metadata, in.OccurrenceCount,
		in.FirstOccurred, in.LastOccurred, in.AssignedTo, in.CreatedAt, in.UpdatedAt))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert error: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) UpdateError(ctx context.Context, id uuid.UUID, opts ...ErrorUpdateOption) (*models.ErrorLog, error) {
	upd := NewErrorUpdate(opts...)

	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now().UTC()}
	argIdx := 3
	where := "id = $1"

	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *upd.Status)
		argIdx++
	}
	if upd.SetAssignee {
		sets = append(sets, fmt.Sprintf("assigned_to = $%d", argIdx))
		args = append(args, upd.AssignedTo)
		argIdx++
	}
	if upd.BumpOccurrence {
		sets = append(sets, "occurrence_count = occurrence_count + 1",
			fmt.Sprintf("last_occurred = GREATEST(last_occurred, $%d)", argIdx))
		args = append(args, upd.OccurredAt)
		argIdx++
		where += " AND status = 'open'"
	}

	query := fmt.Sprintf(`UPDATE error_logs SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, errorColumns)

	e, err := scanError(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("update error: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) DeleteError(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM error_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListErrors(ctx context.Context, filter ErrorFilter) ([]*models.ErrorLog, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%d OR message ILIKE $%d OR error_code ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argIdx++
	}
	if filter.RiskLevel != "" {
		conditions = append(conditions, fmt.Sprintf("risk_level = $%d", argIdx))
		args = append(args, filter.RiskLevel)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIdx))
		args = append(args, filter.CategoryID)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM error_logs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count errors: %w", err)
	}

	limit, offset := NormalizePage(filter.Page, filter.Limit)

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM error_logs WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		errorColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list errors: %w", err)
	}
	defer rows.Close()

	errs := []*models.ErrorLog{}
	for rows.Next() {
		e, err := scanError(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan error: %w", err)
		}
		errs = append(errs, e)
	}
	return errs, total, rows.Err()
}

// NormalizePage clamps pagination input to limit 1..100 (default 20) and a
// 1-based page, returning the limit and row offset.
func NormalizePage(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func (s *PostgresStore) ErrorStats(ctx context.Context) (*models.ErrorStats, error) {
	var st models.ErrorStats
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE risk_level = 'critical'),
		        COUNT(*) FILTER (WHERE risk_level = 'high'),
		        COUNT(*) FILTER (WHERE status = 'open'),
		        COUNT(*) FILTER (WHERE status = 'resolved')
		 FROM error_logs`,
	).Scan(&st.Total, &st.Critical, &st.High, &st.Open, &st.Resolved)
	if err != nil {
		return nil, fmt.Errorf("error stats: %w", err)
	}
	return &st, nil
}

// --- Resolutions ---

func (s *PostgresStore) InsertResolution(ctx context.Context, r *models.ErrorResolution) (*models.ErrorResolution, error) {
	var out models.ErrorResolution
	err := s.db.QueryRow(ctx,
		`INSERT INTO error_resolutions (id, error_log_id, resolved_by, resolution_notes, resolution_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, error_log_id, resolved_by, resolution_notes, resolution_type, created_at`,
		r.ID, r.ErrorLogID, r.ResolvedBy, r.ResolutionNotes, r.ResolutionType, r.CreatedAt,
	).Scan(&out.ID, &out.ErrorLogID, &out.ResolvedBy, &out.ResolutionNotes, &out.ResolutionType, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert resolution: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) ListResolutions(ctx context.Context, errorID uuid.UUID) ([]*models.ErrorResolution, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, error_log_id, resolved_by, resolution_notes, resolution_type, created_at
		 FROM error_resolutions WHERE error_log_id = $1 ORDER BY created_at DESC`, errorID)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	res := []*models.ErrorResolution{}
	for rows.Next() {
		var r models.ErrorResolution
		if err := rows.Scan(&r.ID, &r.ErrorLogID, &r.ResolvedBy, &r.ResolutionNotes,
			&r.ResolutionType, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		res = append(res, &r)
	}
	return res, rows.Err()
}

// --- Categories ---

func (s *PostgresStore) ListCategories(ctx context.Context) ([]*models.ErrorCategory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, default_risk_level, color, created_at, updated_at
		 FROM error_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := []*models.ErrorCategory{}
	for rows.Next() {
		var c models.ErrorCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.DefaultRiskLevel, &c.Color,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

func (s *PostgresStore) UpsertCategory(ctx context.Context, c *models.ErrorCategory) (*models.ErrorCategory, error) {
	var out models.ErrorCategory
	err := s.db.QueryRow(ctx,
		`INSERT INTO error_categories (name, description, default_risk_level, color)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
		   description = EXCLUDED.description,
		   default_risk_level = EXCLUDED.default_risk_level,
		   color = EXCLUDED.color,
		   updated_at = NOW()
		 RETURNING id, name, description, default_risk_level, color, created_at, updated_at`,
		c.Name, c.Description, c.DefaultRiskLevel, c.Color,
	).Scan(&out.ID, &out.Name, &out.Description, &out.DefaultRiskLevel, &out.Color, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert category: %w", err)
	}
	return &out, nil
}

// --- API Keys ---

const apiKeyColumns = `id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// escapeLike escapes LIKE wildcards so that user search text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
