package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	apiKeyIDKey     contextKey = "api_key_id"
	keyPrefixKey    contextKey = "key_prefix"
	apiKeyScopesKey contextKey = "api_key_scopes"
	logFieldsKey    contextKey = "log_fields"
)

// logFields is installed by Logger so that inner middleware can report
// request attributes back up to the request log line.
type logFields struct {
	apiKeyID uuid.UUID
}

func withLogFields(ctx context.Context) (context.Context, *logFields) {
	f := &logFields{}
	return context.WithValue(ctx, logFieldsKey, f), f
}

// WithAPIKey stores the authenticated key's id, prefix and scopes. The id
// is also handed to an enclosing Logger.
func WithAPIKey(ctx context.Context, id uuid.UUID, prefix string, scopes []string) context.Context {
	if f, ok := ctx.Value(logFieldsKey).(*logFields); ok {
		f.apiKeyID = id
	}
	ctx = context.WithValue(ctx, apiKeyIDKey, id)
	ctx = context.WithValue(ctx, keyPrefixKey, prefix)
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

// GetAPIKeyID returns the id of the key that authenticated the request.
func GetAPIKeyID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(apiKeyIDKey).(uuid.UUID)
	return id, ok
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}
