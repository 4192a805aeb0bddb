package mcp

import (
	"database/sql"
	"log/slog"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/katha/internal/config"
	"github.com/hpungsan/katha/internal/logging"
	"github.com/hpungsan/katha/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"capsule", "family", "child", "profile", "prompt"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"capsule_publish": {
		def:     publishToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePublish },
	},
	"capsule_save_draft": {
		def:     saveDraftToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSaveDraft },
	},
	"capsule_feed": {
		def:     feedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeed },
	},
	"capsule_view": {
		def:     viewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleView },
	},
	"capsule_writer_list": {
		def:     writerListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWriterList },
	},
	"capsule_unlock": {
		def:     unlockToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUnlock },
	},
	"capsule_sweep": {
		def:     sweepToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSweep },
	},
	"family_create": {
		def:     familyCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFamilyCreate },
	},
	"family_join": {
		def:     familyJoinToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFamilyJoin },
	},
	"family_get": {
		def:     familyGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFamilyGet },
	},
	"family_members": {
		def:     familyMembersToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFamilyMembers },
	},
	"child_add": {
		def:     childAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChildAdd },
	},
	"child_list": {
		def:     childListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChildList },
	},
	"profile_upsert": {
		def:     profileUpsertToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileUpsert },
	},
	"profile_get": {
		def:     profileGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileGet },
	},
	"prompt_suggest": {
		def:     promptSuggestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePromptSuggest },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "child_add" → "child").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	tools := make([]string, 0)
	for _, name := range AllToolNames() {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	return tools
}

// Deps are the collaborators the MCP tools call into.
type Deps struct {
	DB        *sql.DB
	Cfg       *config.Config
	Publisher *ops.Publisher
	Prompts   ops.PromptSuggester
	Logger    *slog.Logger
}

// NewServer creates a new MCP server with Katha tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(d Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"katha",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(d)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(d.Cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range d.Cfg.DisabledTools {
		disabled[name] = true
	}

	for _, name := range AllToolNames() {
		if disabled[name] {
			continue
		}
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(d Deps, version string) error {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	if unknown := ValidateDisabledTools(d.Cfg.DisabledTools); len(unknown) > 0 {
		d.Logger.Warn("unknown disabled_tools entries", slog.Any("names", unknown))
	}
	if unknown := ValidateDisabledTypes(d.Cfg.DisabledTypes); len(unknown) > 0 {
		d.Logger.Warn("unknown disabled_types entries", slog.Any("names", unknown))
	}
	return server.ServeStdio(NewServer(d, version))
}
