package web

import (
	"database/sql"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/config"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/ops"
	"github.com/hpungsan/katha/internal/storage"
)

// maxAudioUpload bounds multipart capsule uploads.
const maxAudioUpload = 32 << 20

// Handlers contains HTTP route handlers for the Katha API.
type Handlers struct {
	db          *sql.DB
	cfg         *config.Config
	publisher   *ops.Publisher
	blob        storage.Blob
	transcriber ops.Transcriber
	polisher    ops.Polisher
	metadata    ops.MetadataExtractor
	prompts     ops.PromptSuggester
	logger      *slog.Logger
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.renderError(w, r, errors.NewInternal(err))
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetProfile handles GET /v1/profile.
func (h *Handlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := ops.GetProfile(r.Context(), h.db, viewerID(r))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, p)
}

type profileRequest struct {
	DisplayName         string   `json:"display_name"`
	Role                string   `json:"role"`
	RelationshipLabel   *string  `json:"relationship_label"`
	LanguagePreferences []string `json:"language_preferences"`
	Bio                 *string  `json:"bio"`
}

// HandlePutProfile handles PUT /v1/profile.
func (h *Handlers) HandlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	p, err := ops.UpsertProfile(r.Context(), h.db, ops.UpsertProfileInput{
		ID:                  viewerID(r),
		DisplayName:         req.DisplayName,
		Role:                capsule.Role(req.Role),
		RelationshipLabel:   req.RelationshipLabel,
		LanguagePreferences: req.LanguagePreferences,
		Bio:                 req.Bio,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, p)
}

// HandleCreateFamily handles POST /v1/families.
func (h *Handlers) HandleCreateFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name              string  `json:"name"`
		RelationshipLabel *string `json:"relationship_label"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	f, err := ops.CreateFamily(r.Context(), h.db, ops.CreateFamilyInput{
		ProfileID:         viewerID(r),
		Name:              req.Name,
		RelationshipLabel: req.RelationshipLabel,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, f)
}

// HandleJoinFamily handles POST /v1/families/join.
func (h *Handlers) HandleJoinFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteCode        string  `json:"invite_code"`
		RelationshipLabel *string `json:"relationship_label"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	f, err := ops.JoinFamily(r.Context(), h.db, ops.JoinFamilyInput{
		ProfileID:         viewerID(r),
		InviteCode:        req.InviteCode,
		RelationshipLabel: req.RelationshipLabel,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, f)
}

// HandleGetFamily handles GET /v1/family.
func (h *Handlers) HandleGetFamily(w http.ResponseWriter, r *http.Request) {
	f, err := ops.GetFamily(r.Context(), h.db, viewerID(r))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, f)
}

// HandleFamilyMembers handles GET /v1/family/members.
func (h *Handlers) HandleFamilyMembers(w http.ResponseWriter, r *http.Request) {
	members, err := ops.FamilyMembers(r.Context(), h.db, viewerID(r))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"items": members})
}

// HandleListChildren handles GET /v1/children.
func (h *Handlers) HandleListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := ops.ListChildren(r.Context(), h.db, viewerID(r))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"items": children})
}

// HandleAddChild handles POST /v1/children.
func (h *Handlers) HandleAddChild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		DateOfBirth string `json:"date_of_birth"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	child, err := ops.AddChild(r.Context(), h.db, ops.AddChildInput{
		ProfileID:   viewerID(r),
		Name:        req.Name,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, child)
}

type publishRequest struct {
	policyFields
	CapsuleID string  `json:"capsule_id"`
	RawText   string  `json:"raw_text"`
	ChildID   *string `json:"child_id"`
	IsPrivate bool    `json:"is_private"`
	Language  *string `json:"language"`
}

// HandlePublish handles POST /v1/capsules. The body is JSON, or multipart
// form fields with the recording in an "audio" file part.
func (h *Handlers) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	var audio *ops.AudioInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
		if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
			h.renderError(w, r, errors.NewInvalidRequest("invalid multipart body"))
			return
		}
		var err error
		req, err = publishRequestFromForm(r)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		file, hdr, err := r.FormFile("audio")
		if err == nil {
			defer file.Close()
			audio = &ops.AudioInput{Body: file, ContentType: hdr.Header.Get("Content-Type")}
			if s := r.FormValue("audio_duration_seconds"); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n < 0 {
					h.renderError(w, r, errors.NewInvalidField("audio_duration_seconds", "must be a non-negative integer"))
					return
				}
				audio.DurationSeconds = &n
			}
		} else if err != http.ErrMissingFile {
			h.renderError(w, r, errors.NewInvalidField("audio", "could not read the uploaded file"))
			return
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}

	policy, err := req.policy()
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	c, err := h.publisher.Publish(r.Context(), ops.PublishInput{
		WriterID:  viewerID(r),
		CapsuleID: req.CapsuleID,
		RawText:   req.RawText,
		ChildID:   req.ChildID,
		Policy:    policy,
		IsPrivate: req.IsPrivate,
		Language:  req.Language,
		Audio:     audio,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, c)
}

func publishRequestFromForm(r *http.Request) (publishRequest, error) {
	req := publishRequest{
		CapsuleID: r.FormValue("capsule_id"),
		RawText:   r.FormValue("raw_text"),
		ChildID:   optionalString(r.FormValue("child_id")),
		IsPrivate: r.FormValue("is_private") == "true",
		Language:  optionalString(r.FormValue("language")),
	}
	req.UnlockType = r.FormValue("unlock_type")
	req.UnlockDate = r.FormValue("unlock_date")
	req.UnlockMilestone = optionalString(r.FormValue("unlock_milestone"))
	req.IsSurprise = r.FormValue("is_surprise") == "true"
	if s := r.FormValue("unlock_age"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, errors.NewInvalidField("unlock_age", "must be an integer")
		}
		req.UnlockAge = &n
	}
	return req, nil
}

// HandleSaveDraft handles PUT /v1/drafts.
func (h *Handlers) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		policyFields
		CapsuleID string  `json:"capsule_id"`
		RawText   string  `json:"raw_text"`
		ChildID   *string `json:"child_id"`
		IsPrivate *bool   `json:"is_private"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	input := ops.SaveDraftInput{
		WriterID:  viewerID(r),
		CapsuleID: req.CapsuleID,
		RawText:   req.RawText,
		ChildID:   req.ChildID,
		IsPrivate: req.IsPrivate,
		MaxChars:  h.cfg.CapsuleMaxChars,
	}
	if !req.policyFields.empty() {
		policy, err := req.policy()
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		input.Policy = &policy
	}
	c, err := ops.SaveDraft(r.Context(), h.db, input)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, c)
}

// HandleFeed handles GET /v1/feed.
func (h *Handlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Feed(r.Context(), h.db, ops.FeedInput{
		ViewerID:    viewerID(r),
		RecipientID: r.URL.Query().Get("recipient_id"),
		Limit:       parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:      parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleView handles GET /v1/capsules/{id}.
func (h *Handlers) HandleView(w http.ResponseWriter, r *http.Request) {
	out, err := ops.View(r.Context(), h.db, ops.ViewInput{
		ViewerID:    viewerID(r),
		CapsuleID:   r.PathValue("id"),
		RecipientID: r.URL.Query().Get("recipient_id"),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleUnlock handles POST /v1/capsules/{id}/unlock.
func (h *Handlers) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	c, err := ops.UnlockMilestone(r.Context(), h.db, ops.UnlockMilestoneInput{
		ProfileID: viewerID(r),
		CapsuleID: r.PathValue("id"),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"id": c.ID, "is_unlocked": c.IsUnlocked})
}

// HandleWriterCapsules handles GET /v1/writers/{id}/capsules.
func (h *Handlers) HandleWriterCapsules(w http.ResponseWriter, r *http.Request) {
	out, err := ops.WriterCapsules(r.Context(), h.db, ops.WriterCapsulesInput{
		ViewerID:      viewerID(r),
		WriterID:      r.PathValue("id"),
		IncludeDrafts: parseBoolParam(r, "include_drafts"),
		Limit:         parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:        parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandlePrompts handles GET /v1/prompts.
func (h *Handlers) HandlePrompts(w http.ResponseWriter, r *http.Request) {
	out, err := ops.SuggestPrompts(r.Context(), h.db, h.prompts, h.logger, ops.SuggestPromptsInput{
		WriterID: viewerID(r),
		Timeout:  h.cfg.AITimeout(),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleMedia handles GET /media/{key...} by streaming from blob storage.
// Audio is served only while its capsule is open for the caller.
func (h *Handlers) HandleMedia(w http.ResponseWriter, r *http.Request) {
	if h.blob == nil {
		h.renderError(w, r, errors.NewNotFound("media", r.PathValue("key")))
		return
	}
	key, err := storage.CleanKey(r.PathValue("key"))
	if err != nil {
		h.renderError(w, r, errors.NewNotFound("media", r.PathValue("key")))
		return
	}
	if _, err := ops.AuthorizeMedia(r.Context(), h.db, ops.MediaAccessInput{
		ViewerID:    viewerID(r),
		Key:         key,
		RecipientID: r.URL.Query().Get("recipient_id"),
		Now:         time.Now().UTC(),
	}); err != nil {
		h.renderError(w, r, err)
		return
	}
	rc, err := h.blob.Open(r.Context(), key)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if strings.EqualFold(path.Ext(key), ".m4a") || contentType == "" {
		contentType = storage.AudioContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
