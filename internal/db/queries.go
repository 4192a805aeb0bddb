package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.KathaError{
	Code:    errors.ErrConflict,
	Status:  409,
	Message: "unique constraint violation",
}

// ErrNotDraft is returned when a draft-only update targets a published capsule.
var ErrNotDraft = &errors.KathaError{
	Code:    errors.ErrInvalidRequest,
	Status:  400,
	Message: "capsule is already published",
}

const capsuleColumns = `
	id, writer_id, family_id, child_id, raw_text, polished_text,
	audio_url, audio_duration_seconds, title, excerpt, category, mood,
	read_time_minutes, unlock_type, unlock_date, unlock_age, unlock_milestone,
	is_surprise, is_unlocked, is_private, is_draft, language,
	created_at, published_at`

// InsertCapsule stores a new capsule row.
func InsertCapsule(ctx context.Context, q Querier, c *capsule.Capsule) error {
	query := `INSERT INTO capsules (` + capsuleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		c.ID, c.WriterID, c.FamilyID, toNullString(c.ChildID), c.RawText,
		toNullString(c.PolishedText), toNullString(c.AudioURL), toNullInt(c.AudioDurationSeconds),
		toNullString(c.Title), toNullString(c.Excerpt), nullCategory(c.Category), nullMood(c.Mood),
		toNullInt(c.ReadTimeMinutes), string(c.UnlockType), toNullTime(c.UnlockDate),
		toNullInt(c.UnlockAge), toNullString(c.UnlockMilestone),
		boolInt(c.IsSurprise), boolInt(c.IsUnlocked), boolInt(c.IsPrivate), boolInt(c.IsDraft),
		toNullString(c.Language), c.CreatedAt.Unix(), toNullTime(c.PublishedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetCapsule retrieves a capsule by its ULID.
func GetCapsule(ctx context.Context, q Querier, id string) (*capsule.Capsule, error) {
	row := q.QueryRowContext(ctx, `SELECT `+capsuleColumns+` FROM capsules WHERE id = ?`, id)
	c, err := scanCapsule(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("capsule", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// UpdateDraft rewrites every mutable column of a capsule that is still a draft.
// Publishing is an UpdateDraft with IsDraft=false, so a capsule transitions
// out of draft exactly once. Returns ErrNotDraft if the row is published.
func UpdateDraft(ctx context.Context, q Querier, c *capsule.Capsule) error {
	query := `
		UPDATE capsules
		SET child_id = ?, raw_text = ?, polished_text = ?, audio_url = ?,
			audio_duration_seconds = ?, title = ?, excerpt = ?, category = ?,
			mood = ?, read_time_minutes = ?, unlock_type = ?, unlock_date = ?,
			unlock_age = ?, unlock_milestone = ?, is_surprise = ?, is_unlocked = ?,
			is_private = ?, is_draft = ?, language = ?, published_at = ?
		WHERE id = ? AND is_draft = 1
	`
	result, err := q.ExecContext(ctx, query,
		toNullString(c.ChildID), c.RawText, toNullString(c.PolishedText), toNullString(c.AudioURL),
		toNullInt(c.AudioDurationSeconds), toNullString(c.Title), toNullString(c.Excerpt), nullCategory(c.Category),
		nullMood(c.Mood), toNullInt(c.ReadTimeMinutes), string(c.UnlockType), toNullTime(c.UnlockDate),
		toNullInt(c.UnlockAge), toNullString(c.UnlockMilestone), boolInt(c.IsSurprise), boolInt(c.IsUnlocked),
		boolInt(c.IsPrivate), boolInt(c.IsDraft), toNullString(c.Language), toNullTime(c.PublishedAt),
		c.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		if _, err := GetCapsule(ctx, q, c.ID); err != nil {
			return err
		}
		return ErrNotDraft
	}
	return nil
}

// MarkUnlocked sets the cached is_unlocked flag on a published capsule.
func MarkUnlocked(ctx context.Context, q Querier, id string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE capsules SET is_unlocked = 1 WHERE id = ? AND is_draft = 0`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("capsule", id)
	}
	return nil
}

// SweepDateUnlocks flips is_unlocked for published date capsules whose date
// has passed. Returns the number of rows changed.
func SweepDateUnlocks(ctx context.Context, q Querier, now time.Time) (int, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE capsules SET is_unlocked = 1
		WHERE is_draft = 0 AND is_unlocked = 0
		  AND unlock_type = 'date' AND unlock_date <= ?
	`, now.Unix())
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// ListSealedAgeCapsules returns published age capsules still marked locked
// that target a single child. Capsules addressed to all children have no
// fixed recipient and are evaluated per viewer instead.
func ListSealedAgeCapsules(ctx context.Context, q Querier) ([]capsule.Capsule, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+capsuleColumns+` FROM capsules
		WHERE is_draft = 0 AND is_unlocked = 0
		  AND unlock_type = 'age' AND child_id IS NOT NULL`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return collectCapsules(rows)
}

// ListFamilyPublished returns the published capsules of a family that may be
// visible to viewerID, newest first. Private capsules of other writers are
// excluded, as are surprises the cached flag marks sealed (except age
// capsules addressed to all children, whose state depends on the viewer).
// Callers must still evaluate each capsule live.
func ListFamilyPublished(ctx context.Context, q Querier, familyID, viewerID string) ([]capsule.Capsule, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+capsuleColumns+` FROM capsules
		WHERE family_id = ? AND is_draft = 0
		  AND (is_private = 0 OR writer_id = ?)
		  AND NOT (is_surprise = 1 AND is_unlocked = 0 AND writer_id != ?
		           AND (unlock_type != 'age' OR child_id IS NOT NULL))
		ORDER BY published_at DESC, id DESC`,
		familyID, viewerID, viewerID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return collectCapsules(rows)
}

// ListByWriter returns a writer's capsules, most recent first.
// Drafts are included only when includeDrafts is true.
func ListByWriter(ctx context.Context, q Querier, writerID string, includeDrafts bool) ([]capsule.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE writer_id = ?`
	if !includeDrafts {
		query += ` AND is_draft = 0`
	}
	query += ` ORDER BY COALESCE(published_at, created_at) DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, writerID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return collectCapsules(rows)
}

// ListWriterCategories returns the distinct categories of a writer's
// published capsules, in first-use order.
func ListWriterCategories(ctx context.Context, q Querier, writerID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT category FROM capsules
		WHERE writer_id = ? AND is_draft = 0 AND category IS NOT NULL
		GROUP BY category
		ORDER BY MIN(published_at)`, writerID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCapsule scans a single row into a Capsule struct.
func scanCapsule(row rowScanner) (*capsule.Capsule, error) {
	var (
		c                                                capsule.Capsule
		childID, polished, audioURL, title, excerpt      sql.NullString
		category, mood, milestone, language              sql.NullString
		duration, readTime, unlockDate, unlockAge, pubAt sql.NullInt64
		unlockType                                       string
		isSurprise, isUnlocked, isPrivate, isDraft       int
		createdAt                                        int64
	)
	err := row.Scan(
		&c.ID, &c.WriterID, &c.FamilyID, &childID, &c.RawText, &polished,
		&audioURL, &duration, &title, &excerpt, &category, &mood,
		&readTime, &unlockType, &unlockDate, &unlockAge, &milestone,
		&isSurprise, &isUnlocked, &isPrivate, &isDraft, &language,
		&createdAt, &pubAt,
	)
	if err != nil {
		return nil, err
	}

	c.ChildID = fromNullString(childID)
	c.PolishedText = fromNullString(polished)
	c.AudioURL = fromNullString(audioURL)
	c.AudioDurationSeconds = fromNullInt(duration)
	c.Title = fromNullString(title)
	c.Excerpt = fromNullString(excerpt)
	if category.Valid {
		cat := capsule.Category(category.String)
		c.Category = &cat
	}
	if mood.Valid {
		m := capsule.Mood(mood.String)
		c.Mood = &m
	}
	c.ReadTimeMinutes = fromNullInt(readTime)
	c.UnlockType = capsule.UnlockType(unlockType)
	c.UnlockDate = fromNullTime(unlockDate)
	c.UnlockAge = fromNullInt(unlockAge)
	c.UnlockMilestone = fromNullString(milestone)
	c.IsSurprise = isSurprise != 0
	c.IsUnlocked = isUnlocked != 0
	c.IsPrivate = isPrivate != 0
	c.IsDraft = isDraft != 0
	c.Language = fromNullString(language)
	c.CreatedAt = fromUnix(createdAt)
	c.PublishedAt = fromNullTime(pubAt)

	return &c, nil
}

func collectCapsules(rows *sql.Rows) ([]capsule.Capsule, error) {
	defer rows.Close()

	var out []capsule.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
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

func nullCategory(c *capsule.Category) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}

func nullMood(m *capsule.Mood) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*m), Valid: true}
}
