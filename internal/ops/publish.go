package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/logging"
	"github.com/hpungsan/katha/internal/storage"
)

// DefaultStageTimeout bounds each external call made by the pipeline.
const DefaultStageTimeout = 30 * time.Second

// Pipeline stage names, logged under logging.FieldStage.
const (
	StageDraft      = "draft"
	StageUpload     = "upload"
	StageTranscribe = "transcribe"
	StagePolish     = "polish"
	StageMetadata   = "metadata"
	StageFinalize   = "finalize"
)

// Publisher runs the capsule publication pipeline.
//
// Draft creation and audio upload are hard stages: their failure aborts the
// run and leaves the draft row for a retry with the same CapsuleID.
// Transcription, polish and metadata are soft: failures are logged and
// replaced by fallbacks so a capsule is always published once its draft and
// audio are stored.
type Publisher struct {
	DB          *sql.DB
	Blob        storage.Blob
	Transcriber Transcriber
	Polisher    Polisher
	Metadata    MetadataExtractor
	Logger      *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
	// StageTimeout defaults to DefaultStageTimeout.
	StageTimeout time.Duration
	// MaxChars bounds raw_text; zero disables the check.
	MaxChars int
}

// AudioInput is a recording attached at publish time.
type AudioInput struct {
	Body            io.Reader
	ContentType     string
	DurationSeconds *int
}

// PublishInput contains parameters for the Publish operation.
type PublishInput struct {
	WriterID string
	// CapsuleID resumes an existing draft; empty creates a new one.
	CapsuleID string
	RawText   string
	ChildID   *string
	Policy    capsule.UnlockPolicy
	IsPrivate bool
	Language  *string
	Audio     *AudioInput
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Publisher) stageTimeout() time.Duration {
	if p.StageTimeout > 0 {
		return p.StageTimeout
	}
	return DefaultStageTimeout
}

// Publish validates the input and runs every stage, returning the published
// capsule.
func (p *Publisher) Publish(ctx context.Context, input PublishInput) (*capsule.Capsule, error) {
	writer, err := loadWriter(ctx, p.DB, input.WriterID)
	if err != nil {
		return nil, err
	}

	var existing *capsule.Capsule
	if id := strings.TrimSpace(input.CapsuleID); id != "" {
		existing, err = db.GetCapsule(ctx, p.DB, id)
		if err != nil {
			return nil, err
		}
		if existing.WriterID != writer.ID {
			return nil, errors.NewForbidden("capsule belongs to another writer")
		}
		if !existing.IsDraft {
			return nil, db.ErrNotDraft
		}
	}

	text := strings.TrimSpace(input.RawText)
	if text == "" && existing != nil {
		text = strings.TrimSpace(existing.RawText)
	}
	hasAudio := input.Audio != nil || (existing != nil && existing.AudioURL != nil)
	if text == "" && !hasAudio {
		return nil, errors.NewInvalidRequest("text or audio is required")
	}
	if p.MaxChars > 0 && capsule.CountChars(text) > p.MaxChars {
		return nil, errors.NewInvalidField("raw_text", "exceeds the maximum length")
	}

	policy := input.Policy.Normalize()
	if err := policy.Validate(); err != nil {
		var pe *capsule.PolicyError
		if stderrors.As(err, &pe) {
			return nil, errors.NewInvalidField(pe.Field, pe.Message)
		}
		return nil, errors.NewInvalidRequest(err.Error())
	}

	childID := cleanOptionalString(input.ChildID)
	if childID != nil {
		if err := checkChildInFamily(ctx, p.DB, *childID, *writer.FamilyID); err != nil {
			return nil, err
		}
	}

	c := existing
	if c == nil {
		c = &capsule.Capsule{
			WriterID:  writer.ID,
			FamilyID:  *writer.FamilyID,
			IsDraft:   true,
			CreatedAt: p.now(),
		}
	}
	c.RawText = text
	c.ChildID = childID
	c.SetPolicy(policy)
	c.IsPrivate = input.IsPrivate
	if lang := cleanOptionalString(input.Language); lang != nil {
		c.Language = lang
	}

	log := logging.WithContext(ctx, p.Logger).With(slog.String(logging.FieldComponent, "publish"))

	// Stage 1: draft
	if err := p.saveDraftRow(ctx, c, existing == nil); err != nil {
		return nil, err
	}
	log = log.With(slog.String(logging.FieldCapsuleID, c.ID))
	log.Debug("draft stored", slog.String(logging.FieldStage, StageDraft), slog.Bool("resumed", existing != nil))

	// The draft is durable; the remaining stages run to completion even if
	// the caller goes away.
	ctx = context.WithoutCancel(ctx)

	// Stage 2: upload
	if input.Audio != nil {
		if err := p.upload(ctx, c, input.Audio); err != nil {
			log.Error("audio upload failed", slog.String(logging.FieldStage, StageUpload), slog.Any("error", err))
			return nil, err
		}
		log.Debug("audio stored", slog.String(logging.FieldStage, StageUpload), slog.String("audio_url", *c.AudioURL))
	}

	// Stage 3: transcribe
	if c.RawText == "" && c.AudioURL != nil {
		if transcript, err := p.transcribe(ctx, c, writer.LanguagePreferences); err != nil {
			log.Warn("transcription failed; continuing without text",
				slog.String(logging.FieldStage, StageTranscribe), slog.Any("error", err))
		} else {
			c.RawText = transcript
			if err := db.UpdateDraft(ctx, p.DB, c); err != nil {
				return nil, err
			}
			log.Debug("transcript stored", slog.String(logging.FieldStage, StageTranscribe),
				slog.Int("chars", capsule.CountChars(transcript)))
		}
	}

	// Stage 4: polish
	c.PolishedText = nil
	if c.RawText != "" {
		polished := c.RawText
		if p.Polisher != nil {
			callCtx, cancel := context.WithTimeout(ctx, p.stageTimeout())
			res, err := p.Polisher.Polish(callCtx, c.RawText, writer.LanguagePreferences)
			cancel()
			switch {
			case err != nil:
				log.Warn("polish failed; using original text", slog.String(logging.FieldStage, StagePolish), slog.Any("error", err))
			case strings.TrimSpace(res.PolishedText) == "":
				log.Warn("polish returned no text; using original text", slog.String(logging.FieldStage, StagePolish))
			default:
				polished = res.PolishedText
			}
		}
		c.PolishedText = &polished
	}

	// Stage 5: metadata
	md := p.metadata(ctx, c, log)
	c.Title = &md.Title
	c.Excerpt = &md.Excerpt
	c.Category = &md.Category
	c.Mood = &md.Mood
	c.ReadTimeMinutes = &md.ReadTimeMinutes

	// Stage 6: finalize
	publishedAt := p.now()
	c.IsDraft = false
	c.PublishedAt = &publishedAt
	c.IsUnlocked = policy.UnlockedAtPublish()
	if err := db.UpdateDraft(ctx, p.DB, c); err != nil {
		log.Error("finalize failed", slog.String(logging.FieldStage, StageFinalize), slog.Any("error", err))
		return nil, err
	}
	log.Info("capsule published", slog.String(logging.FieldStage, StageFinalize),
		slog.String("unlock_type", string(c.UnlockType)), slog.Bool("surprise", c.IsSurprise))
	return c, nil
}

func (p *Publisher) saveDraftRow(ctx context.Context, c *capsule.Capsule, create bool) error {
	if !create {
		return db.UpdateDraft(ctx, p.DB, c)
	}
	id, err := generateULID()
	if err != nil {
		return errors.NewInternal(err)
	}
	c.ID = id
	return db.InsertCapsule(ctx, p.DB, c)
}

func (p *Publisher) upload(ctx context.Context, c *capsule.Capsule, audio *AudioInput) error {
	if p.Blob == nil {
		return errors.NewUpstreamUnavailable("storage", stderrors.New("no blob storage configured"))
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = storage.AudioContentType
	}
	callCtx, cancel := context.WithTimeout(ctx, p.stageTimeout())
	defer cancel()
	url, err := p.Blob.Put(callCtx, storage.AudioKey(c.WriterID, c.ID), contentType, audio.Body)
	if err != nil {
		return errors.NewUpstreamUnavailable("storage", err)
	}
	c.AudioURL = &url
	c.AudioDurationSeconds = audio.DurationSeconds
	return db.UpdateDraft(ctx, p.DB, c)
}

func (p *Publisher) transcribe(ctx context.Context, c *capsule.Capsule, languages []string) (string, error) {
	if p.Transcriber == nil {
		return "", stderrors.New("no transcriber configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, p.stageTimeout())
	defer cancel()
	transcript, err := p.Transcriber.Transcribe(callCtx, *c.AudioURL, languages)
	if err != nil {
		return "", err
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", stderrors.New("empty transcript")
	}
	return transcript, nil
}

func (p *Publisher) metadata(ctx context.Context, c *capsule.Capsule, log *slog.Logger) capsule.Metadata {
	text := c.Body()
	if text == "" || p.Metadata == nil {
		return capsule.FallbackMetadata(text)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.stageTimeout())
	defer cancel()
	md, err := p.Metadata.Extract(callCtx, text)
	if err != nil {
		log.Warn("metadata extraction failed; using fallback", slog.String(logging.FieldStage, StageMetadata), slog.Any("error", err))
		return capsule.FallbackMetadata(text)
	}
	return md.Normalize(text)
}

func checkChildInFamily(ctx context.Context, q db.Querier, childID, familyID string) error {
	child, err := db.GetChild(ctx, q, childID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.NewInvalidField("child_id", "unknown child")
		}
		return err
	}
	if child.FamilyID != familyID {
		return errors.NewInvalidField("child_id", "child does not belong to the writer's family")
	}
	return nil
}
