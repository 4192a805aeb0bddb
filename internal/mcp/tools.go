package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Every tool acts as one profile, named by profile_id.
func actingProfile() mcp.ToolOption {
	return mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile the call is made as"),
	)
}

func stringList(name, desc string) mcp.ToolOption {
	return mcp.WithArray(name,
		mcp.Description(desc),
		mcp.Items(map[string]any{"type": "string"}),
	)
}

func pageOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
		mcp.WithNumber("offset", mcp.Description("Items to skip")),
	}
}

func policyOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("unlock_type",
			mcp.Description("When the capsule opens"),
			mcp.Enum("immediate", "date", "age", "milestone"),
		),
		mcp.WithString("unlock_date", mcp.Description("YYYY-MM-DD or RFC 3339; required for date capsules")),
		mcp.WithNumber("unlock_age", mcp.Description("Recipient age in years; required for age capsules")),
		mcp.WithString("unlock_milestone", mcp.Description("Milestone name; required for milestone capsules")),
		mcp.WithBoolean("is_surprise", mcp.Description("Hide the capsule from feeds until it opens")),
	}
}

func tool(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{actingProfile()}, opts...)...)
}

var publishToolDef = tool("capsule_publish", append([]mcp.ToolOption{
	mcp.WithDescription("Publish a capsule. Text is polished and metadata derived; an audio file is uploaded and transcribed when no text is given. Pass capsule_id to publish an existing draft."),
	mcp.WithString("capsule_id", mcp.Description("Draft to publish")),
	mcp.WithString("raw_text", mcp.Description("Story text")),
	mcp.WithString("audio_path", mcp.Description("Local path of an .m4a recording")),
	mcp.WithNumber("audio_duration_seconds", mcp.Description("Recording length")),
	mcp.WithString("child_id", mcp.Description("Recipient child; omit for all children")),
	mcp.WithBoolean("is_private", mcp.Description("Visible only to the writer")),
	mcp.WithString("language", mcp.Description("Language of the story")),
}, policyOptions()...)...)

var saveDraftToolDef = tool("capsule_save_draft", append([]mcp.ToolOption{
	mcp.WithDescription("Create or update a draft capsule."),
	mcp.WithString("capsule_id", mcp.Description("Existing draft; omit to create one")),
	mcp.WithString("raw_text", mcp.Description("Draft text")),
	mcp.WithString("child_id", mcp.Description("Recipient child")),
	mcp.WithBoolean("is_private", mcp.Description("Visible only to the writer")),
}, policyOptions()...)...)

var feedToolDef = tool("capsule_feed", append([]mcp.ToolOption{
	mcp.WithDescription("List the family feed, newest first. Sealed capsules show a placeholder; sealed surprises are omitted."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("recipient_id", mcp.Description("Show the feed as seen for this child")),
}, pageOptions()...)...)

var viewToolDef = tool("capsule_view",
	mcp.WithDescription("Open one capsule. The body and audio are returned only when it is open for the viewer."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("recipient_id", mcp.Description("Child to evaluate age capsules addressed to all children")),
)

var writerListToolDef = tool("capsule_writer_list", append([]mcp.ToolOption{
	mcp.WithDescription("List one writer's capsules."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("writer_id", mcp.Required(), mcp.Description("Writer profile ID")),
	mcp.WithBoolean("include_drafts", mcp.Description("Include drafts (own capsules only)")),
}, pageOptions()...)...)

var unlockToolDef = tool("capsule_unlock",
	mcp.WithDescription("Mark a milestone capsule as reached. Guardians and the writer may do this."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Milestone capsule ID")),
)

var sweepToolDef = tool("capsule_sweep",
	mcp.WithDescription("Refresh the cached unlock flag of date and age capsules."),
)

var familyCreateToolDef = tool("family_create",
	mcp.WithDescription("Create a family and make the caller its guardian. Returns the invite code."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Family name")),
	mcp.WithString("relationship_label", mcp.Description("Caller's label, e.g. Nani")),
)

var familyJoinToolDef = tool("family_join",
	mcp.WithDescription("Join a family with its 8-character invite code."),
	mcp.WithString("invite_code", mcp.Required(), mcp.Description("Invite code")),
	mcp.WithString("relationship_label", mcp.Description("Caller's label, e.g. Dada")),
)

var familyGetToolDef = tool("family_get",
	mcp.WithDescription("Return the caller's family."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var familyMembersToolDef = tool("family_members",
	mcp.WithDescription("List the members of the caller's family."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var childAddToolDef = tool("child_add",
	mcp.WithDescription("Add a child to the caller's family. Guardians only."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Child's name")),
	mcp.WithString("date_of_birth", mcp.Required(), mcp.Description("YYYY-MM-DD")),
)

var childListToolDef = tool("child_list",
	mcp.WithDescription("List the children of the caller's family."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var profileUpsertToolDef = tool("profile_upsert",
	mcp.WithDescription("Create or update the caller's profile."),
	mcp.WithString("display_name", mcp.Required(), mcp.Description("Display name")),
	mcp.WithString("role", mcp.Description("Family role"), mcp.Enum("guardian", "writer", "reader")),
	mcp.WithString("relationship_label", mcp.Description("e.g. Nani, Dada")),
	stringList("language_preferences", "Languages the writer uses, primary first"),
	mcp.WithString("bio", mcp.Description("Short bio")),
)

var profileGetToolDef = tool("profile_get",
	mcp.WithDescription("Return the caller's profile."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var promptSuggestToolDef = tool("prompt_suggest",
	mcp.WithDescription("Suggest three writing prompts for the caller. Falls back to fixed prompts when suggestion fails."),
	mcp.WithReadOnlyHintAnnotation(true),
)
