// Package apikey generates and parses errdesk API keys.
//
// A raw key looks like "ed_" followed by a nanoid secret. The first
// PrefixLen characters are stored in clear for lookup; the full key is
// stored only as a bcrypt hash.
package apikey

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errdesk/pkg/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	Marker    = "ed_"
	PrefixLen = 8
	secretLen = 32
)

var ErrInvalidScope = errors.New("invalid scope")

var knownScopes = []string{models.ScopeIngest, models.ScopeRead, models.ScopeAdmin}

// New creates a key record and returns it with the raw key. The raw key is
// not recoverable afterwards.
func New(name string, scopes []string, now time.Time) (*models.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", errors.New("key name is required")
	}
	if err := ValidateScopes(scopes); err != nil {
		return nil, "", err
	}

	secret, err := gonanoid.New(secretLen)
	if err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}
	raw := Marker + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash key: %w", err)
	}

	return &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:PrefixLen],
		Scopes:    slices.Compact(slices.Sorted(slices.Values(scopes))),
		CreatedAt: now,
		UpdatedAt: now,
	}, raw, nil
}

// Prefix returns the lookup prefix of a raw key.
func Prefix(raw string) (string, bool) {
	if len(raw) < PrefixLen {
		return "", false
	}
	return raw[:PrefixLen], true
}

// ValidateScopes requires at least one scope, all of them known.
func ValidateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return fmt.Errorf("%w: at least one scope is required", ErrInvalidScope)
	}
	for _, s := range scopes {
		if !slices.Contains(knownScopes, s) {
			return fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
	}
	return nil
}
