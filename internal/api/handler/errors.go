package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errdesk/internal/api/response"
	"github.com/kiranshivaraju/errdesk/internal/intake"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

const defaultResolutionType = "manual"

// ErrorService defines the intake operations the handlers depend on.
type ErrorService interface {
	Submit(ctx context.Context, report models.ErrorReport) (*models.ErrorLog, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ErrorLog, error)
	List(ctx context.Context, filter store.ErrorFilter) ([]*models.ErrorLog, int, error)
	Stats(ctx context.Context) (*models.ErrorStats, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ErrorStatus) (*models.ErrorLog, error)
	Resolve(ctx context.Context, id uuid.UUID, res intake.Resolution) (*models.ErrorLog, error)
	Resolutions(ctx context.Context, id uuid.UUID) ([]*models.ErrorResolution, error)
	Assign(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*models.ErrorLog, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Categories(ctx context.Context) ([]*models.ErrorCategory, error)
}

// NewSubmitErrorHandler returns an http.HandlerFunc for POST /api/v1/errors.
// A report without url or user_agent takes them from the Referer and
// User-Agent headers. Responds 201 for a new error and 200 when the report
// was folded into an existing open error.
func NewSubmitErrorHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report models.ErrorReport
		if !decodeJSON(w, r, &report) {
			return
		}
		if report.URL == "" {
			report.URL = r.Referer()
		}
		if report.UserAgent == "" {
			report.UserAgent = r.UserAgent()
		}

		e, err := svc.Submit(r.Context(), report)
		if err != nil {
			response.FromError(w, err)
			return
		}
		if e.OccurrenceCount == 1 {
			response.Created(w, e)
			return
		}
		response.JSON(w, e)
	}
}

// NewListErrorsHandler returns an http.HandlerFunc for GET /api/v1/errors.
func NewListErrorsHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := queryInt(w, r, "page")
		if !ok {
			return
		}
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}

		q := r.URL.Query()
		filter := store.ErrorFilter{
			Search:     q.Get("q"),
			RiskLevel:  models.RiskLevel(q.Get("risk_level")),
			Status:     models.ErrorStatus(q.Get("status")),
			CategoryID: q.Get("category_id"),
			Page:       page,
			Limit:      limit,
		}

		errs, total, err := svc.List(r.Context(), filter)
		if err != nil {
			response.FromError(w, err)
			return
		}
		if errs == nil {
			errs = []*models.ErrorLog{}
		}

		limit, _ = store.NormalizePage(page, limit)
		response.Collection(w, errs, response.NewPaginationMeta(page, limit, total))
	}
}

// NewGetErrorHandler returns an http.HandlerFunc for GET /api/v1/errors/{errorID}.
func NewGetErrorHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "errorID")
		if !ok {
			return
		}
		e, err := svc.Get(r.Context(), id)
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, e)
	}
}

func NewStatsHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Stats(r.Context())
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, st)
	}
}

// NewSetStatusHandler returns an http.HandlerFunc for
// PATCH /api/v1/errors/{errorID}/status.
func NewSetStatusHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "errorID")
		if !ok {
			return
		}
		var req struct {
			Status models.ErrorStatus `json:"status"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		e, err := svc.SetStatus(r.Context(), id, req.Status)
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, e)
	}
}

// NewResolveHandler returns an http.HandlerFunc for
// POST /api/v1/errors/{errorID}/resolve.
func NewResolveHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "errorID")
		if !ok {
			return
		}
		var req struct {
			Notes      string     `json:"resolution_notes"`
			Type       string     `json:"resolution_type"`
			ResolvedBy *uuid.UUID `json:"resolved_by"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Type == "" {
			req.Type = defaultResolutionType
		}

		e, err := svc.Resolve(r.Context(), id, intake.Resolution{
			Notes:      req.Notes,
			Type:       req.Type,
			ResolvedBy: req.ResolvedBy,
		})
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, e)
	}
}

// NewListResolutionsHandler returns an http.HandlerFunc for
// GET /api/v1/errors/{errorID}/resolutions.
func NewListResolutionsHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "errorID")
		if !ok {
			return
		}
		res, err := svc.Resolutions(r.Context(), id)
		if err != nil {
			response.FromError(w, err)
			return
		}
		if res == nil {
			res = []*models.ErrorResolution{}
		}
		response.JSON(w, res)
	}
}

// NewAssignHandler returns an http.HandlerFunc for
// PATCH /api/v1/errors/{errorID}/assignee. A null assigned_to clears it.
func NewAssignHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "errorID")
		if !ok {
			return
		}
		var req struct {
			AssignedTo *uuid.UUID `json:"assigned_to"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		e, err := svc.Assign(r.Context(), id, req.AssignedTo)
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, e)
	}
}

func NewDeleteErrorHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "errorID")
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			response.FromError(w, err)
			return
		}
		response.NoContent(w)
	}
}

// NewListCategoriesHandler returns an http.HandlerFunc for GET /api/v1/categories.
func NewListCategoriesHandler(svc ErrorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := svc.Categories(r.Context())
		if err != nil {
			response.FromError(w, err)
			return
		}
		if cats == nil {
			cats = []*models.ErrorCategory{}
		}
		response.JSON(w, cats)
	}
}
