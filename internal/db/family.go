package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/errors"
)

// InsertFamily stores a new family. Returns ErrUniqueConstraint when the
// invite code collides with an existing family.
func InsertFamily(ctx context.Context, q Querier, f *capsule.Family) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO families (id, name, invite_code, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.InviteCode, f.CreatedBy, f.CreatedAt.Unix())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetFamily retrieves a family by ID.
func GetFamily(ctx context.Context, q Querier, id string) (*capsule.Family, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, invite_code, created_by, created_at
		FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("family", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// GetFamilyByInviteCode looks up a family by its (normalized) invite code.
// This lookup bypasses family membership, so callers must gate it.
func GetFamilyByInviteCode(ctx context.Context, q Querier, code string) (*capsule.Family, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, invite_code, created_by, created_at
		FROM families WHERE invite_code = ?`, code)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("family", code)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

func scanFamily(row rowScanner) (*capsule.Family, error) {
	var f capsule.Family
	var createdAt int64
	if err := row.Scan(&f.ID, &f.Name, &f.InviteCode, &f.CreatedBy, &createdAt); err != nil {
		return nil, err
	}
	f.CreatedAt = fromUnix(createdAt)
	return &f, nil
}

const profileColumns = `id, family_id, display_name, role, relationship_label,
	language_prefs_json, bio, created_at`

// UpsertProfile inserts a profile or updates its editable fields.
// family_id and created_at are never changed by an upsert.
func UpsertProfile(ctx context.Context, q Querier, p *capsule.Profile) error {
	langs, err := marshalLanguages(p.LanguagePreferences)
	if err != nil {
		return errors.NewInternal(err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			role = excluded.role,
			relationship_label = excluded.relationship_label,
			language_prefs_json = excluded.language_prefs_json,
			bio = excluded.bio`,
		p.ID, toNullString(p.FamilyID), p.DisplayName, string(p.Role), toNullString(p.RelationshipLabel),
		langs, toNullString(p.Bio), p.CreatedAt.Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetProfile retrieves a profile by ID.
func GetProfile(ctx context.Context, q Querier, id string) (*capsule.Profile, error) {
	row := q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("profile", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// SetProfileFamily links a profile to a family, optionally setting its role
// and relationship label. A nil role or label leaves the stored value.
func SetProfileFamily(ctx context.Context, q Querier, profileID, familyID string, role *capsule.Role, label *string) error {
	var roleArg sql.NullString
	if role != nil {
		roleArg = sql.NullString{String: string(*role), Valid: true}
	}
	result, err := q.ExecContext(ctx, `
		UPDATE profiles
		SET family_id = ?,
			role = COALESCE(?, role),
			relationship_label = COALESCE(?, relationship_label)
		WHERE id = ?`,
		familyID, roleArg, toNullString(label), profileID)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("profile", profileID)
	}
	return nil
}

// ListFamilyProfiles returns the members of a family in join order.
func ListFamilyProfiles(ctx context.Context, q Querier, familyID string) ([]capsule.Profile, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles
		WHERE family_id = ? ORDER BY created_at, id`, familyID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []capsule.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func scanProfile(row rowScanner) (*capsule.Profile, error) {
	var (
		p                    capsule.Profile
		familyID, label, bio sql.NullString
		langs                sql.NullString
		role                 string
		createdAt            int64
	)
	if err := row.Scan(&p.ID, &familyID, &p.DisplayName, &role, &label, &langs, &bio, &createdAt); err != nil {
		return nil, err
	}
	p.FamilyID = fromNullString(familyID)
	p.Role = capsule.Role(role)
	p.RelationshipLabel = fromNullString(label)
	p.Bio = fromNullString(bio)
	p.CreatedAt = fromUnix(createdAt)
	if langs.Valid && langs.String != "" {
		if err := json.Unmarshal([]byte(langs.String), &p.LanguagePreferences); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func marshalLanguages(langs []string) (sql.NullString, error) {
	if len(langs) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(langs)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// InsertChild stores a new child.
func InsertChild(ctx context.Context, q Querier, c *capsule.Child) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO children (id, family_id, name, date_of_birth, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.FamilyID, c.Name, c.DateOfBirth.String(), c.CreatedAt.Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetChild retrieves a child by ID.
func GetChild(ctx context.Context, q Querier, id string) (*capsule.Child, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, family_id, name, date_of_birth, created_at
		FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("child", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// ListChildren returns a family's children in the order they were added.
func ListChildren(ctx context.Context, q Querier, familyID string) ([]capsule.Child, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, family_id, name, date_of_birth, created_at
		FROM children WHERE family_id = ? ORDER BY created_at, id`, familyID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []capsule.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func scanChild(row rowScanner) (*capsule.Child, error) {
	var (
		c         capsule.Child
		dob       string
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.FamilyID, &c.Name, &dob, &createdAt); err != nil {
		return nil, err
	}
	d, err := capsule.ParseDate(dob)
	if err != nil {
		return nil, err
	}
	c.DateOfBirth = d
	c.CreatedAt = fromUnix(createdAt)
	return &c, nil
}
