package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

const (
	DefaultCaptureTitle    = "Runtime Error"
	DefaultCaptureCategory = "UI/UX"
	// UnknownErrorCode is stored when a captured error carries no code.
	UnknownErrorCode = "UNKNOWN"
)

// CaptureInput describes an error caught automatically, e.g. a recovered
// panic or a failed downstream call.
type CaptureInput struct {
	Err        error
	Title      string
	Code       string
	Category   string // category name, resolved to an id
	Context    string // caller operation, e.g. "getProfile"
	RiskLevel  models.RiskLevel
	StackTrace string
	URL        string
	UserAgent  string
	Metadata   map[string]any
}

// Capture submits an automatically caught error. Missing risk levels are
// derived with ClassifyRisk. Capture never fails: if the error cannot be
// recorded it is written to the process log and nil is returned.
func (s *Service) Capture(ctx context.Context, in CaptureInput) *models.ErrorLog {
	title := in.Title
	if title == "" {
		title = DefaultCaptureTitle
	}
	message := "unknown error"
	if in.Err != nil {
		message = in.Err.Error()
	}
	code := in.Code
	if code == "" && in.Err != nil {
		code = UnknownErrorCode
	}
	risk := in.RiskLevel
	if risk == "" {
		risk = ClassifyRisk(code, message)
	}

	metadata := make(map[string]any, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	if in.Err != nil {
		metadata["error_type"] = fmt.Sprintf("%T", in.Err)
	}
	if in.Context != "" {
		metadata["context"] = in.Context
	}

	e, err := s.Submit(ctx, models.ErrorReport{
		Title:      title,
		Message:    message,
		ErrorCode:  code,
		StackTrace: in.StackTrace,
		URL:        in.URL,
		UserAgent:  in.UserAgent,
		CategoryID: s.categoryID(ctx, in.Category),
		RiskLevel:  risk,
		Metadata:   metadata,
	})
	if err != nil {
		slog.Error("failed to log error",
			"error", err,
			"title", title,
			"message", message,
			"error_code", code,
		)
		return nil
	}
	return e
}

// categoryID resolves name, defaulting to DefaultCaptureCategory. Lookup
// failures yield an empty id.
func (s *Service) categoryID(ctx context.Context, name string) string {
	if s.categories == nil {
		return ""
	}
	if name == "" {
		name = DefaultCaptureCategory
	}
	id, err := s.categories.IDByName(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("category lookup failed", "category", name, "error", err)
		}
		return ""
	}
	return id
}
