package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/katha/internal/capsule"
	"github.com/hpungsan/katha/internal/draft"
	"github.com/hpungsan/katha/internal/errors"
	"github.com/hpungsan/katha/internal/logging"
	"github.com/hpungsan/katha/internal/ops"
	"github.com/hpungsan/katha/internal/storage"
	"github.com/hpungsan/katha/internal/web"
)

// defaultTokenTTL is the lifetime of tokens minted by `katha token`.
const defaultTokenTTL = 30 * 24 * time.Hour

// newCLIApp creates the CLI application with all commands. rt may be nil
// when only help or version output is needed.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "katha",
		Usage:   "Family story time capsules",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "as", EnvVars: []string{"KATHA_PROFILE"}, Usage: "Acting profile ID"},
		},
		Commands: []*cli.Command{
			serveCmd(rt),
			tokenCmd(rt),
			profileCmd(rt),
			familyCmd(rt),
			childCmd(rt),
			publishCmd(rt),
			writeCmd(rt),
			draftCmd(rt),
			feedCmd(rt),
			viewCmd(rt),
			writerCmd(rt),
			unlockCmd(rt),
			sweepCmd(rt),
			promptsCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// actingProfile returns the --as profile or an UNAUTHORIZED error.
func actingProfile(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.String("as"))
	if id == "" {
		return "", errors.NewUnauthorized("set --as or KATHA_PROFILE to the acting profile id")
	}
	return id, nil
}

func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if rt.cfg.JWTSecret == "" {
				return outputError(errors.NewInvalidRequest("jwt_secret must be configured to serve"))
			}
			if addr := c.String("addr"); addr != "" {
				rt.cfg.Addr = addr
			}
			srv := web.NewServer(web.Deps{
				DB:          rt.db,
				Cfg:         rt.cfg,
				Publisher:   rt.publisher(),
				Blob:        rt.blob,
				Transcriber: rt.transcriber,
				Polisher:    rt.polisher,
				Metadata:    rt.metadata,
				Prompts:     rt.prompts,
				Logger:      rt.logger,
			})
			if err := web.Run(srv, rt.logger); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

func tokenCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a bearer token for a profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "Profile ID (defaults to --as)"},
			&cli.DurationFlag{Name: "ttl", Value: defaultTokenTTL, Usage: "Token lifetime; 0 never expires"},
		},
		Action: func(c *cli.Context) error {
			id := c.String("profile")
			if id == "" {
				var err error
				if id, err = actingProfile(c); err != nil {
					return outputError(err)
				}
			}
			now := rt.now().UTC()
			tok, err := web.IssueToken(rt.cfg.JWTSecret, id, c.Duration("ttl"), now)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			out := map[string]any{"profile_id": id, "token": tok}
			if ttl := c.Duration("ttl"); ttl > 0 {
				out["expires_at"] = now.Add(ttl)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

func profileCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or edit a profile",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show the acting profile",
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					p, err := ops.GetProfile(c.Context, rt.db, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, p)
				},
			},
			{
				Name:  "set",
				Usage: "Create or update the acting profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Display name"},
					&cli.StringFlag{Name: "role", Value: string(capsule.RoleWriter), Usage: "guardian|writer|reader"},
					&cli.StringFlag{Name: "relationship", Usage: "Relationship label, e.g. Nani"},
					&cli.StringSliceFlag{Name: "language", Aliases: []string{"l"}, Usage: "Preferred language (repeatable)"},
					&cli.StringFlag{Name: "bio", Usage: "Short bio"},
				},
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					p, err := ops.UpsertProfile(c.Context, rt.db, ops.UpsertProfileInput{
						ID:                  id,
						DisplayName:         c.String("name"),
						Role:                capsule.Role(c.String("role")),
						RelationshipLabel:   optionalFlag(c, "relationship"),
						LanguagePreferences: c.StringSlice("language"),
						Bio:                 optionalFlag(c, "bio"),
						Now:                 rt.now(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, p)
				},
			},
		},
	}
}

func familyCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "family",
		Usage: "Create, join and inspect a family",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a family with the acting profile as guardian",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "relationship", Usage: "Your relationship label"},
				},
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("family name is required"))
					}
					f, err := ops.CreateFamily(c.Context, rt.db, ops.CreateFamilyInput{
						ProfileID:         id,
						Name:              strings.Join(c.Args().Slice(), " "),
						RelationshipLabel: optionalFlag(c, "relationship"),
						Now:               rt.now(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, f)
				},
			},
			{
				Name:      "join",
				Usage:     "Join a family by invite code",
				ArgsUsage: "<invite-code>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "relationship", Usage: "Your relationship label"},
				},
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					f, err := ops.JoinFamily(c.Context, rt.db, ops.JoinFamilyInput{
						ProfileID:         id,
						InviteCode:        c.Args().First(),
						RelationshipLabel: optionalFlag(c, "relationship"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, f)
				},
			},
			{
				Name:  "show",
				Usage: "Show the acting profile's family",
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					f, err := ops.GetFamily(c.Context, rt.db, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, f)
				},
			},
			{
				Name:  "members",
				Usage: "List family members",
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					members, err := ops.FamilyMembers(c.Context, rt.db, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"items": members})
				},
			},
		},
	}
}

func childCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "child",
		Usage: "Manage the family's children",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a child (guardians only)",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dob", Required: true, Usage: "Date of birth, YYYY-MM-DD"},
				},
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					child, err := ops.AddChild(c.Context, rt.db, ops.AddChildInput{
						ProfileID:   id,
						Name:        strings.Join(c.Args().Slice(), " "),
						DateOfBirth: c.String("dob"),
						Now:         rt.now(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, child)
				},
			},
			{
				Name:  "list",
				Usage: "List children in the family",
				Action: func(c *cli.Context) error {
					id, err := actingProfile(c)
					if err != nil {
						return outputError(err)
					}
					children, err := ops.ListChildren(c.Context, rt.db, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"items": children})
				},
			},
		},
	}
}

// policyFlags are shared by publish and write.
func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "child", Aliases: []string{"c"}, Usage: "Recipient child ID (default: all children)"},
		&cli.StringFlag{Name: "unlock-type", Aliases: []string{"u"}, Usage: "immediate|date|age|milestone"},
		&cli.StringFlag{Name: "unlock-date", Usage: "Unlock date, YYYY-MM-DD or RFC 3339"},
		&cli.IntFlag{Name: "unlock-age", Usage: "Recipient age that opens the capsule"},
		&cli.StringFlag{Name: "milestone", Usage: "Milestone description"},
		&cli.BoolFlag{Name: "surprise", Usage: "Hide from feeds until unlocked"},
		&cli.BoolFlag{Name: "private", Usage: "Visible only to you"},
	}
}

// policyFromFlags builds an unlock policy. ok is false when no policy flag
// was given.
func policyFromFlags(c *cli.Context) (p capsule.UnlockPolicy, ok bool, err error) {
	for _, name := range []string{"unlock-type", "unlock-date", "unlock-age", "milestone", "surprise"} {
		if c.IsSet(name) {
			ok = true
		}
	}
	p.Type = capsule.UnlockType(strings.TrimSpace(c.String("unlock-type")))
	if s := strings.TrimSpace(c.String("unlock-date")); s != "" {
		t, perr := capsule.ParseUnlockDate(s)
		if perr != nil {
			return p, ok, errors.NewInvalidField("unlock_date", "must be YYYY-MM-DD or RFC 3339")
		}
		p.Date = &t
	}
	if c.IsSet("unlock-age") {
		age := c.Int("unlock-age")
		p.Age = &age
	}
	p.Milestone = optionalFlag(c, "milestone")
	p.IsSurprise = c.Bool("surprise")
	return p, ok, nil
}

func publishCmd(rt *runtime) *cli.Command {
	flags := append(policyFlags(),
		&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Capsule text (default: stdin)"},
		&cli.StringFlag{Name: "audio", Aliases: []string{"a"}, Usage: "Path to an m4a recording"},
		&cli.IntFlag{Name: "duration", Usage: "Recording length in seconds"},
		&cli.StringFlag{Name: "language", Usage: "Language of the capsule"},
		&cli.StringFlag{Name: "draft-id", Usage: "Publish an existing draft"},
	)
	return &cli.Command{
		Name:  "publish",
		Usage: "Publish a capsule from text, stdin or a recording",
		Flags: flags,
		Action: func(c *cli.Context) error {
			id, err := actingProfile(c)
			if err != nil {
				return outputError(err)
			}
			text := c.String("text")
			if text == "" && c.String("audio") == "" && c.String("draft-id") == "" {
				if text, err = readInput(c); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			policy, _, err := policyFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			input := ops.PublishInput{
				WriterID:  id,
				CapsuleID: c.String("draft-id"),
				RawText:   text,
				ChildID:   optionalFlag(c, "child"),
				Policy:    policy,
				IsPrivate: c.Bool("private"),
				Language:  optionalFlag(c, "language"),
			}
			if path := c.String("audio"); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return outputError(errors.NewInvalidField("audio", err.Error()))
				}
				defer f.Close()
				input.Audio = &ops.AudioInput{Body: f, ContentType: storage.AudioContentType}
				if c.IsSet("duration") {
					d := c.Int("duration")
					input.Audio.DurationSeconds = &d
				}
			}
			out, err := rt.publisher().Publish(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

func draftPath(rt *runtime) string {
	return filepath.Join(rt.baseDir, draft.FileName)
}

// writeCmd reads a capsule line by line, autosaving the draft after each
// quiet interval, so an interrupted session resumes where it stopped.
func writeCmd(rt *runtime) *cli.Command {
	flags := append(policyFlags(),
		&cli.BoolFlag{Name: "publish", Usage: "Publish when input ends"},
		&cli.BoolFlag{Name: "new", Usage: "Discard the saved draft first"},
	)
	return &cli.Command{
		Name:  "write",
		Usage: "Write a capsule from stdin with autosave",
		Flags: flags,
		Action: func(c *cli.Context) error {
			id, err := actingProfile(c)
			if err != nil {
				return outputError(err)
			}
			path := draftPath(rt)
			if c.Bool("new") {
				if err := draft.Clear(path); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			state, err := draft.Load(path)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			policy, hasPolicy, err := policyFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			if hasPolicy {
				state.Policy = policy
			}
			if child := optionalFlag(c, "child"); child != nil {
				state.ChildID = child
			}
			if c.IsSet("private") {
				state.IsPrivate = c.Bool("private")
			}

			log := rt.logger.With(slog.String(logging.FieldComponent, "autosave"))
			save := func() error {
				// The local copy goes first so a failed store save loses nothing.
				if err := draft.Save(path, state); err != nil {
					return err
				}
				saved, err := ops.SaveDraft(c.Context, rt.db, ops.SaveDraftInput{
					WriterID:  id,
					CapsuleID: state.CapsuleID,
					RawText:   state.RawText,
					ChildID:   state.ChildID,
					Policy:    &state.Policy,
					IsPrivate: &state.IsPrivate,
					MaxChars:  rt.cfg.CapsuleMaxChars,
					Now:       rt.now(),
				})
				if err != nil {
					return err
				}
				at := rt.now().UTC()
				state.CapsuleID = saved.ID
				state.LastSavedAt = &at
				log.Debug("draft saved", slog.String("capsule_id", saved.ID))
				return draft.Save(path, state)
			}

			saver := &draft.Autosaver{Interval: rt.cfg.AutosaveInterval()}
			sc := bufio.NewScanner(c.App.Reader)
			sc.Buffer(make([]byte, 64*1024), 1<<20)
			for sc.Scan() {
				if _, err := saver.FlushIfDue(rt.now(), save); err != nil {
					return outputError(err)
				}
				if state.RawText != "" {
					state.RawText += "\n"
				}
				state.RawText += sc.Text()
				saver.Touch(rt.now())
			}
			if err := sc.Err(); err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := saver.Flush(save); err != nil {
				return outputError(err)
			}

			if !c.Bool("publish") {
				return outputJSON(c.App.Writer, state)
			}
			out, err := rt.publisher().Publish(c.Context, ops.PublishInput{
				WriterID:  id,
				CapsuleID: state.CapsuleID,
				RawText:   state.RawText,
				ChildID:   state.ChildID,
				Policy:    state.Policy,
				IsPrivate: state.IsPrivate,
			})
			if err != nil {
				return outputError(err)
			}
			if err := draft.Clear(path); err != nil {
				log.Warn("could not clear local draft", slog.Any("error", err))
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

func draftCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "draft",
		Usage: "Inspect the local draft",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the local draft",
				Action: func(c *cli.Context) error {
					state, err := draft.Load(draftPath(rt))
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					return outputJSON(c.App.Writer, state)
				},
			},
			{
				Name:  "clear",
				Usage: "Discard the local draft",
				Action: func(c *cli.Context) error {
					if err := draft.Clear(draftPath(rt)); err != nil {
						return outputError(errors.NewInternal(err))
					}
					return outputJSON(c.App.Writer, map[string]any{"cleared": true})
				},
			},
		},
	}
}

func feedCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "List the family feed",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "recipient", Aliases: []string{"r"}, Usage: "Show capsules for one child"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
			&cli.BoolFlag{Name: "table", Usage: "Print a table instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			id, err := actingProfile(c)
			if err != nil {
				return outputError(err)
			}
			out, err := ops.Feed(c.Context, rt.db, ops.FeedInput{
				ViewerID:    id,
				RecipientID: c.String("recipient"),
				Limit:       c.Int("limit"),
				Offset:      c.Int("offset"),
				Now:         rt.now(),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("table") {
				renderCards(c.App.Writer, out.Items)
				return nil
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// renderCards prints cards as a table. Sealed cards show their placeholder.
func renderCards(w io.Writer, cards []capsule.Card) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "From", "For", "State"})
	for _, card := range cards {
		title, state := "", string(card.State)
		if card.Title != nil {
			title = *card.Title
		}
		if card.Placeholder != nil {
			title = card.Placeholder.Label
			state = card.Placeholder.Condition
			if card.Placeholder.Relative != "" {
				state += " (" + card.Placeholder.Relative + ")"
			}
		}
		if card.IsDraft {
			state = "draft"
		}
		recipient := card.RecipientName
		if recipient == "" && card.ChildID == nil {
			recipient = "everyone"
		}
		t.AppendRow(table.Row{card.ID, title, card.WriterName, recipient, state})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(cards)})
	t.Render()
}

func viewCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Open a capsule",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "recipient", Aliases: []string{"r"}, Usage: "Child viewing an all-children capsule"},
		},
		Action: func(c *cli.Context) error {
			id, err := actingProfile(c)
			if err != nil {
				return outputError(err)
			}
			out, err := ops.View(c.Context, rt.db, ops.ViewInput{
				ViewerID:    id,
				CapsuleID:   c.Args().First(),
				RecipientID: c.String("recipient"),
				Now:         rt.now(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

func writerCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "writer",
		Usage:     "List one writer's capsules",
		ArgsUsage: "[writer-id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "drafts", Usage: "Include your own drafts"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
			&cli.BoolFlag{Name: "table", Usage: "Print a table instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			id, err := actingProfile(c)
			if err != nil {
				return outputError(err)
			}
			out, err := ops.WriterCapsules(c.Context, rt.db, ops.WriterCapsulesInput{
				ViewerID:      id,
				WriterID:      c.Args().First(),
				IncludeDrafts: c.Bool("drafts"),
				Limit:         c.Int("limit"),
				Offset:        c.Int("offset"),
				Now:           rt.now(),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("table") {
				renderCards(c.App.Writer, out.Items)
				return nil
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

func unlockCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "unlock",
		Usage:     "Mark a milestone capsule as reached",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := actingProfile(c)
			if err != nil {
				return outputError(err)
			}
			out, err := ops.UnlockMilestone(c.Context, rt.db, ops.UnlockMilestoneInput{
				ProfileID: id,
				CapsuleID: c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{"id": out.ID, "is_unlocked": out.IsUnlocked})
		},
	}
}

func sweepCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Record date and age capsules that have opened",
		Action: func(c *cli.Context) error {
			n, err := ops.SweepUnlocks(c.Context, rt.db, rt.now())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{"unlocked": n})
		},
	}
}

func promptsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "prompts",
		Usage: "Suggest writing prompts",
		Action: func(c *cli.Context) error {
			id, err := actingProfile(c)
			if err != nil {
				return outputError(err)
			}
			out, err := ops.SuggestPrompts(c.Context, rt.db, rt.prompts, rt.logger, ops.SuggestPromptsInput{
				WriterID: id,
				Timeout:  rt.cfg.AITimeout(),
				Now:      rt.now(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// optionalFlag returns a pointer to a non-blank string flag, or nil.
func optionalFlag(c *cli.Context, name string) *string {
	s := strings.TrimSpace(c.String(name))
	if s == "" {
		return nil
	}
	return &s
}

// outputJSON writes JSON output.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if kErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", kErr.Code, kErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readInput reads all of the app's input. A terminal yields "".
func readInput(c *cli.Context) (string, error) {
	if f, ok := c.App.Reader.(*os.File); ok && !stdinHasData(f) {
		return "", nil
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
