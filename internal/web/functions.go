package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/katha/internal/ai"
	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/logging"
	"github.com/hpungsan/katha/internal/ops"
)

const (
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

func (h *Handlers) setCORS(w http.ResponseWriter) {
	origin := h.cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
}

// HandlePreflight answers CORS preflight requests for the function endpoints.
func (h *Handlers) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

// withCORS adds CORS headers to every response, errors included.
func (h *Handlers) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.setCORS(w)
		next(w, r)
	}
}

func (h *Handlers) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.AITimeout())
}

func (h *Handlers) logUpstream(r *http.Request, service string, err error) {
	logging.WithContext(r.Context(), h.logger).Warn("upstream call failed",
		slog.String("service", service), slog.Any("error", err))
}

type textRequest struct {
	Text      string   `json:"text"`
	Languages []string `json:"language_preferences"`
}

// HandleFunctionPolish handles POST /functions/ai-polish.
func (h *Handlers) HandleFunctionPolish(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.renderError(w, r, errors.NewInvalidField("text", "is required"))
		return
	}
	if h.polisher == nil {
		h.renderError(w, r, errors.NewUpstreamUnavailable("polish", ai.ErrNotConfigured))
		return
	}
	ctx, cancel := h.callContext(r)
	defer cancel()
	res, err := h.polisher.Polish(ctx, req.Text, req.Languages)
	if err != nil {
		h.renderError(w, r, errors.NewUpstreamUnavailable("polish", err))
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{
		"polished_text":   res.PolishedText,
		"changes_summary": res.ChangesSummary,
	})
}

// HandleFunctionMetadata handles POST /functions/generate-metadata. On
// upstream failure the error body carries locally computed fallback
// metadata so callers can still render a card.
func (h *Handlers) HandleFunctionMetadata(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.renderError(w, r, errors.NewInvalidField("text", "is required"))
		return
	}

	var (
		meta capsule.Metadata
		err  error
	)
	if h.metadata == nil {
		err = ai.ErrNotConfigured
	} else {
		ctx, cancel := h.callContext(r)
		meta, err = h.metadata.Extract(ctx, req.Text)
		cancel()
	}
	if err != nil {
		h.logUpstream(r, "metadata", err)
		fallback := capsule.FallbackMetadata(req.Text)
		fallback.Excerpt = capsule.Excerpt(req.Text, capsule.MaxExcerptChars)
		renderJSON(w, http.StatusBadGateway, struct {
			Error any `json:"error"`
			capsule.Metadata
		}{errorBody(errors.NewUpstreamUnavailable("metadata", err))["error"], fallback})
		return
	}
	renderJSON(w, http.StatusOK, meta)
}

type promptsRequest struct {
	WriterID           string   `json:"writer_id"`
	Languages          []string `json:"language_preferences"`
	ChildrenAges       []int    `json:"children_ages"`
	PreviousCategories []string `json:"previous_categories"`
}

// HandleFunctionPrompts handles POST /functions/smart-prompts. Context not
// supplied in the body is filled from the caller's profile and family.
func (h *Handlers) HandleFunctionPrompts(w http.ResponseWriter, r *http.Request) {
	var req promptsRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.renderError(w, r, err)
			return
		}
	}
	if req.WriterID != "" && req.WriterID != viewerID(r) {
		h.renderError(w, r, errors.NewForbidden("prompts may only be requested for yourself"))
		return
	}
	profile, err := ops.GetProfile(r.Context(), h.db, viewerID(r))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	pc, err := ops.BuildPromptContext(r.Context(), h.db, profile, time.Now().UTC())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if len(req.Languages) > 0 {
		pc.Languages = req.Languages
	}
	if len(req.ChildrenAges) > 0 {
		pc.ChildrenAges = req.ChildrenAges
	}
	if len(req.PreviousCategories) > 0 {
		pc.PreviousCategories = req.PreviousCategories
	}

	var prompts []capsule.Prompt
	if h.prompts == nil {
		err = ai.ErrNotConfigured
	} else {
		ctx, cancel := h.callContext(r)
		prompts, err = h.prompts.Suggest(ctx, pc)
		cancel()
	}
	if err != nil {
		h.logUpstream(r, "prompts", err)
		renderJSON(w, http.StatusBadGateway, map[string]any{
			"error":   errorBody(errors.NewUpstreamUnavailable("prompts", err))["error"],
			"prompts": capsule.FallbackPrompts(),
		})
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

// HandleFunctionSpeechToText handles POST /functions/speech-to-text.
func (h *Handlers) HandleFunctionSpeechToText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AudioURL  string   `json:"audio_url"`
		Languages []string `json:"language_preferences"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderError(w, r, err)
		return
	}
	if strings.TrimSpace(req.AudioURL) == "" {
		h.renderError(w, r, errors.NewInvalidField("audio_url", "is required"))
		return
	}
	if h.blob != nil {
		if key, ok := h.blob.KeyForURL(req.AudioURL); ok {
			if _, err := ops.AuthorizeMedia(r.Context(), h.db, ops.MediaAccessInput{
				ViewerID: viewerID(r),
				Key:      key,
				Now:      time.Now().UTC(),
			}); err != nil {
				h.renderError(w, r, err)
				return
			}
		}
	}
	if h.transcriber == nil {
		h.renderError(w, r, errors.NewUpstreamUnavailable("transcription", ai.ErrNotConfigured))
		return
	}
	ctx, cancel := h.callContext(r)
	defer cancel()
	text, err := h.transcriber.Transcribe(ctx, req.AudioURL, req.Languages)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			h.renderError(w, r, err)
			return
		}
		h.renderError(w, r, errors.NewUpstreamUnavailable("transcription", err))
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"transcript": text})
}
