package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
)

// UpsertProfileInput contains parameters for the UpsertProfile operation.
type UpsertProfileInput struct {
	ID                  string
	DisplayName         string
	Role                capsule.Role // default: writer
	RelationshipLabel   *string
	LanguagePreferences []string
	Bio                 *string
	Now                 time.Time
}

// UpsertProfile creates a profile or updates its editable fields. Family
// membership is changed only through CreateFamily and JoinFamily.
func UpsertProfile(ctx context.Context, database *sql.DB, input UpsertProfileInput) (*capsule.Profile, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewUnauthorized("a profile id is required")
	}
	name := capsule.NormalizeName(input.DisplayName)
	if !capsule.ValidName(name) {
		return nil, errors.NewInvalidField("display_name", "must be 1 to 100 characters")
	}
	role := input.Role
	if role == "" {
		role = capsule.RoleWriter
	}
	if !role.Valid() {
		return nil, errors.NewInvalidField("role", "must be one of: guardian, writer, reader")
	}

	langs := make([]string, 0, len(input.LanguagePreferences))
	seen := make(map[string]bool, len(input.LanguagePreferences))
	for _, l := range input.LanguagePreferences {
		l = strings.TrimSpace(l)
		if l == "" || seen[strings.ToLower(l)] {
			continue
		}
		seen[strings.ToLower(l)] = true
		langs = append(langs, l)
	}

	p := &capsule.Profile{
		ID:                  id,
		DisplayName:         name,
		Role:                role,
		RelationshipLabel:   cleanOptionalString(input.RelationshipLabel),
		LanguagePreferences: langs,
		Bio:                 cleanOptionalString(input.Bio),
		CreatedAt:           nowOr(input.Now),
	}
	if err := db.UpsertProfile(ctx, database, p); err != nil {
		return nil, err
	}
	return db.GetProfile(ctx, database, id)
}

// GetProfile returns a profile by id.
func GetProfile(ctx context.Context, database *sql.DB, id string) (*capsule.Profile, error) {
	return loadViewer(ctx, database, id)
}
