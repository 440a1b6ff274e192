package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errdesk/internal/api/response"
	"github.com/kiranshivaraju/errdesk/internal/apikey"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

type createKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key appears only in this response.
func NewCreateKeyHandler(keys store.KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		key, raw, err := apikey.New(req.Name, req.Scopes, time.Now().UTC())
		if err != nil {
			details := map[string]string{"field": "name"}
			if errors.Is(err, apikey.ErrInvalidScope) {
				details["field"] = "scopes"
			}
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), details)
			return
		}

		if err := keys.CreateAPIKey(r.Context(), key); err != nil {
			slog.Error("create api key failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key", nil)
			return
		}
		slog.Info("api key created", "key_id", key.ID, "name", key.Name, "scopes", key.Scopes)

		response.Created(w, createKeyResponse{
			ID:        key.ID,
			Name:      key.Name,
			Key:       raw,
			KeyPrefix: key.KeyPrefix,
			Scopes:    key.Scopes,
			CreatedAt: key.CreatedAt,
		})
	}
}

func NewListKeysHandler(keys store.KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := keys.ListAPIKeys(r.Context())
		if err != nil {
			slog.Error("list api keys failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list API keys", nil)
			return
		}
		if list == nil {
			list = []*models.APIKey{}
		}
		response.JSON(w, list)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for
// DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(keys store.KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "keyID")
		if !ok {
			return
		}
		err := keys.RevokeAPIKey(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
			return
		case err != nil:
			slog.Error("revoke api key failed", "key_id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke API key", nil)
			return
		}
		slog.Info("api key revoked", "key_id", id)
		response.NoContent(w)
	}
}
