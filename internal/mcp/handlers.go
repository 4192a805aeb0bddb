package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/config"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/logging"
	"github.com/hpungsan/katha/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db        *sql.DB
	cfg       *config.Config
	publisher *ops.Publisher
	prompts   ops.PromptSuggester
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d Deps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		db:        d.DB,
		cfg:       d.Cfg,
		publisher: d.Publisher,
		prompts:   d.Prompts,
		logger:    logger.With(slog.String(logging.FieldComponent, "mcp")),
		now:       time.Now,
	}
}

// Request types for each tool

// PolicyArgs is the unlock policy as tool arguments.
type PolicyArgs struct {
	UnlockType      string  `json:"unlock_type,omitempty"`
	UnlockDate      string  `json:"unlock_date,omitempty"`
	UnlockAge       *int    `json:"unlock_age,omitempty"`
	UnlockMilestone *string `json:"unlock_milestone,omitempty"`
	IsSurprise      bool    `json:"is_surprise,omitempty"`
}

func (p PolicyArgs) set() bool {
	return p.UnlockType != "" || p.UnlockDate != "" || p.UnlockAge != nil || p.UnlockMilestone != nil || p.IsSurprise
}

func (p PolicyArgs) policy() (capsule.UnlockPolicy, error) {
	out := capsule.UnlockPolicy{
		Type:       capsule.UnlockType(strings.TrimSpace(p.UnlockType)),
		Age:        p.UnlockAge,
		Milestone:  p.UnlockMilestone,
		IsSurprise: p.IsSurprise,
	}
	if s := strings.TrimSpace(p.UnlockDate); s != "" {
		t, err := capsule.ParseUnlockDate(s)
		if err != nil {
			return out, errors.NewInvalidField("unlock_date", "must be YYYY-MM-DD or RFC 3339")
		}
		out.Date = &t
	}
	return out, nil
}

// PublishRequest represents the arguments for capsule_publish.
type PublishRequest struct {
	PolicyArgs
	ProfileID            string  `json:"profile_id"`
	CapsuleID            string  `json:"capsule_id,omitempty"`
	RawText              string  `json:"raw_text,omitempty"`
	AudioPath            string  `json:"audio_path,omitempty"`
	AudioDurationSeconds *int    `json:"audio_duration_seconds,omitempty"`
	ChildID              *string `json:"child_id,omitempty"`
	IsPrivate            bool    `json:"is_private,omitempty"`
	Language             *string `json:"language,omitempty"`
}

// SaveDraftRequest represents the arguments for capsule_save_draft.
type SaveDraftRequest struct {
	PolicyArgs
	ProfileID string  `json:"profile_id"`
	CapsuleID string  `json:"capsule_id,omitempty"`
	RawText   string  `json:"raw_text,omitempty"`
	ChildID   *string `json:"child_id,omitempty"`
	IsPrivate *bool   `json:"is_private,omitempty"`
}

// FeedRequest represents the arguments for capsule_feed.
type FeedRequest struct {
	ProfileID   string `json:"profile_id"`
	RecipientID string `json:"recipient_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// ViewRequest represents the arguments for capsule_view.
type ViewRequest struct {
	ProfileID   string `json:"profile_id"`
	CapsuleID   string `json:"capsule_id"`
	RecipientID string `json:"recipient_id,omitempty"`
}

// WriterListRequest represents the arguments for capsule_writer_list.
type WriterListRequest struct {
	ProfileID     string `json:"profile_id"`
	WriterID      string `json:"writer_id"`
	IncludeDrafts bool   `json:"include_drafts,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// CapsuleRequest names a single capsule.
type CapsuleRequest struct {
	ProfileID string `json:"profile_id"`
	CapsuleID string `json:"capsule_id"`
}

// ProfileRequest carries only the acting profile.
type ProfileRequest struct {
	ProfileID string `json:"profile_id"`
}

// FamilyCreateRequest represents the arguments for family_create.
type FamilyCreateRequest struct {
	ProfileID         string  `json:"profile_id"`
	Name              string  `json:"name"`
	RelationshipLabel *string `json:"relationship_label,omitempty"`
}

// FamilyJoinRequest represents the arguments for family_join.
type FamilyJoinRequest struct {
	ProfileID         string  `json:"profile_id"`
	InviteCode        string  `json:"invite_code"`
	RelationshipLabel *string `json:"relationship_label,omitempty"`
}

// ChildAddRequest represents the arguments for child_add.
type ChildAddRequest struct {
	ProfileID   string `json:"profile_id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
}

// ProfileUpsertRequest represents the arguments for profile_upsert.
type ProfileUpsertRequest struct {
	ProfileID           string   `json:"profile_id"`
	DisplayName         string   `json:"display_name"`
	Role                string   `json:"role,omitempty"`
	RelationshipLabel   *string  `json:"relationship_label,omitempty"`
	LanguagePreferences []string `json:"language_preferences,omitempty"`
	Bio                 *string  `json:"bio,omitempty"`
}

// Handler implementations

// HandlePublish handles the capsule_publish tool call.
func (h *Handlers) HandlePublish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PublishRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	policy, err := input.policy()
	if err != nil {
		return errorResult(err), nil
	}

	var audio *ops.AudioInput
	if input.AudioPath != "" {
		f, err := os.Open(input.AudioPath)
		if err != nil {
			return errorResult(errors.NewInvalidField("audio_path", "cannot open file")), nil
		}
		defer f.Close()
		audio = &ops.AudioInput{Body: f, DurationSeconds: input.AudioDurationSeconds}
	}

	result, err := h.publisher.Publish(ctx, ops.PublishInput{
		WriterID:  input.ProfileID,
		CapsuleID: input.CapsuleID,
		RawText:   input.RawText,
		ChildID:   input.ChildID,
		Policy:    policy,
		IsPrivate: input.IsPrivate,
		Language:  input.Language,
		Audio:     audio,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSaveDraft handles the capsule_save_draft tool call.
func (h *Handlers) HandleSaveDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveDraftRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	draft := ops.SaveDraftInput{
		WriterID:  input.ProfileID,
		CapsuleID: input.CapsuleID,
		RawText:   input.RawText,
		ChildID:   input.ChildID,
		IsPrivate: input.IsPrivate,
		MaxChars:  h.cfg.CapsuleMaxChars,
		Now:       h.now(),
	}
	if input.set() {
		policy, err := input.policy()
		if err != nil {
			return errorResult(err), nil
		}
		draft.Policy = &policy
	}
	result, err := ops.SaveDraft(ctx, h.db, draft)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFeed handles the capsule_feed tool call.
func (h *Handlers) HandleFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FeedRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Feed(ctx, h.db, ops.FeedInput{
		ViewerID:    input.ProfileID,
		RecipientID: input.RecipientID,
		Limit:       input.Limit,
		Offset:      input.Offset,
		Now:         h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleView handles the capsule_view tool call.
func (h *Handlers) HandleView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ViewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.View(ctx, h.db, ops.ViewInput{
		ViewerID:    input.ProfileID,
		CapsuleID:   input.CapsuleID,
		RecipientID: input.RecipientID,
		Now:         h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleWriterList handles the capsule_writer_list tool call.
func (h *Handlers) HandleWriterList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WriterListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.WriterCapsules(ctx, h.db, ops.WriterCapsulesInput{
		ViewerID:      input.ProfileID,
		WriterID:      input.WriterID,
		IncludeDrafts: input.IncludeDrafts,
		Limit:         input.Limit,
		Offset:        input.Offset,
		Now:           h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUnlock handles the capsule_unlock tool call.
func (h *Handlers) HandleUnlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CapsuleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	c, err := ops.UnlockMilestone(ctx, h.db, ops.UnlockMilestoneInput{
		ProfileID: input.ProfileID,
		CapsuleID: input.CapsuleID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": c.ID, "is_unlocked": c.IsUnlocked})
}

// HandleSweep handles the capsule_sweep tool call.
func (h *Handlers) HandleSweep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if _, err := ops.GetProfile(ctx, h.db, input.ProfileID); err != nil {
		return errorResult(err), nil
	}
	n, err := ops.SweepUnlocks(ctx, h.db, h.now())
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]int{"unlocked": n})
}

// HandleFamilyCreate handles the family_create tool call.
func (h *Handlers) HandleFamilyCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FamilyCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.CreateFamily(ctx, h.db, ops.CreateFamilyInput{
		ProfileID:         input.ProfileID,
		Name:              input.Name,
		RelationshipLabel: input.RelationshipLabel,
		Now:               h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFamilyJoin handles the family_join tool call.
func (h *Handlers) HandleFamilyJoin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FamilyJoinRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.JoinFamily(ctx, h.db, ops.JoinFamilyInput{
		ProfileID:         input.ProfileID,
		InviteCode:        input.InviteCode,
		RelationshipLabel: input.RelationshipLabel,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFamilyGet handles the family_get tool call.
func (h *Handlers) HandleFamilyGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetFamily(ctx, h.db, input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFamilyMembers handles the family_members tool call.
func (h *Handlers) HandleFamilyMembers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	members, err := ops.FamilyMembers(ctx, h.db, input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": members})
}

// HandleChildAdd handles the child_add tool call.
func (h *Handlers) HandleChildAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChildAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.AddChild(ctx, h.db, ops.AddChildInput{
		ProfileID:   input.ProfileID,
		Name:        input.Name,
		DateOfBirth: input.DateOfBirth,
		Now:         h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleChildList handles the child_list tool call.
func (h *Handlers) HandleChildList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	children, err := ops.ListChildren(ctx, h.db, input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": children})
}

// HandleProfileUpsert handles the profile_upsert tool call.
func (h *Handlers) HandleProfileUpsert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileUpsertRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.UpsertProfile(ctx, h.db, ops.UpsertProfileInput{
		ID:                  input.ProfileID,
		DisplayName:         input.DisplayName,
		Role:                capsule.Role(input.Role),
		RelationshipLabel:   input.RelationshipLabel,
		LanguagePreferences: input.LanguagePreferences,
		Bio:                 input.Bio,
		Now:                 h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileGet handles the profile_get tool call.
func (h *Handlers) HandleProfileGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetProfile(ctx, h.db, input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePromptSuggest handles the prompt_suggest tool call.
func (h *Handlers) HandlePromptSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.SuggestPrompts(ctx, h.db, h.prompts, h.logger, ops.SuggestPromptsInput{
		WriterID: input.ProfileID,
		Timeout:  h.cfg.AITimeout(),
		Now:      h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if ke, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    ke.Code,
			"message": ke.Message,
			"status":  ke.Status,
		}
		if ke.Code != errors.ErrInternal && ke.Details != nil {
			errorObj["details"] = ke.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
