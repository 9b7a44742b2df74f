package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

const adminAnnotation = "admin"

// app holds the registries for one CLI invocation.
type app struct {
	cfg         AppConfig
	db          *sqlx.DB
	persist     *persister
	characters  *CharacterRegistry
	assignments *AssignmentRegistry
	assigner    *RandomAssigner
	lookup      *PlayerLookupService
	backstory   BackstoryWriter
}

// newApp loads both slots from store and wires the services around them.
func newApp(ctx context.Context, cfg AppConfig, store Store, rng Intner) *app {
	p := newPersister(store)
	characters, assignments := loadState(ctx, p)
	return &app{
		cfg:         cfg,
		persist:     p,
		characters:  characters,
		assignments: assignments,
		assigner:    NewRandomAssigner(characters, assignments, rng),
		lookup:      NewPlayerLookupService(characters, assignments),
	}
}

// cli carries state across the cobra hooks of one run.
type cli struct {
	rng       Intner
	backstory BackstoryWriter // overrides the configured provider when set
	app       *app
	closeLog  func()
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	devMode = cfg.Dev

	closeLog, err := initLogging(cfg)
	if err != nil {
		return err
	}
	c.closeLog = closeLog

	if needsAdmin(cmd) {
		given, _ := cmd.Flags().GetString(passwordFlag)
		if err := checkAdminPassword(cfg, given); err != nil {
			return err
		}
	}

	db, err := openDB(cfg.DB)
	if err != nil {
		return err
	}
	if appLogger != nil {
		appLogger.watchDB(db)
	}
	LogDBState("after initDB")

	c.app = newApp(cmd.Context(), cfg, newSQLiteStore(db), c.rng)
	c.app.db = db
	c.app.backstory = c.backstory
	return nil
}

// finish reports persistence failures seen during the run and releases
// the database and log files.
func (c *cli) finish(errOut io.Writer) {
	if c.app != nil {
		for _, err := range c.app.persist.drainErrors() {
			fmt.Fprintln(errOut, renderNotice(noticeWarning, "Warning: "+err.Error()))
		}
		if c.app.db != nil {
			c.app.db.Close()
		}
		c.app = nil
	}
	if c.closeLog != nil {
		c.closeLog()
		c.closeLog = nil
	}
}

func (c *cli) backstoryWriter(ctx context.Context) (BackstoryWriter, error) {
	if c.app.backstory != nil {
		return c.app.backstory, nil
	}
	w, err := newBackstoryWriter(ctx, c.app.cfg)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrBackstoryDisabled
	}
	c.app.backstory = w
	return w, nil
}

func needsAdmin(cmd *cobra.Command) bool {
	for p := cmd; p != nil; p = p.Parent() {
		if p.Annotations[adminAnnotation] == "true" {
			return true
		}
	}
	return false
}

func parseCharacterID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: character id %q is not a number", ErrValidation, s)
	}
	return id, nil
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mystery",
		Short:   "Hand out secret murder mystery characters and let players look up their own.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	registerFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newLookupCmd(c),
		newCharacterCmd(c),
		newAssignCmd(c),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("mystery v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newLookupCmd(c *cli) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "lookup NAME",
		Short: "Discover your character",
		RunE: func(cmd *cobra.Command, args []string) error {
			typed := strings.Join(args, " ")
			res := c.app.lookup.Lookup(typed)
			DebugLog("lookup: %q -> %s", typed, res.Outcome)
			renderLookup(cmd.OutOrStdout(), res, typed, reveal)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "show your backstory")
	return cmd
}

func newCharacterCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "character",
		Aliases:     []string{"char"},
		Short:       "Manage characters (organizer)",
		Annotations: map[string]string{adminAnnotation: "true"},
	}
	cmd.PersistentFlags().String(passwordFlag, "", "organizer password")

	cmd.AddCommand(
		newCharacterAddCmd(c),
		newCharacterEditCmd(c),
		newCharacterRmCmd(c),
		newCharacterLsCmd(c),
		newCharacterDraftCmd(c),
	)
	return cmd
}

func newCharacterAddCmd(c *cli) *cobra.Command {
	var name, backstory, hint string
	var draft bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new character",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if draft && strings.TrimSpace(backstory) == "" && strings.TrimSpace(name) != "" {
				w, err := c.backstoryWriter(cmd.Context())
				if err != nil {
					return err
				}
				backstory, err = w.Draft(cmd.Context(), name, hint)
				if err != nil {
					return err
				}
			}

			ch, err := c.app.characters.Create(name, backstory)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderNotice(noticeSuccess, fmt.Sprintf("Added %s (id %d)", ch.Name, ch.ID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "character name (e.g., Doctor, Policeman)")
	cmd.Flags().StringVar(&backstory, "backstory", "", "character backstory")
	cmd.Flags().BoolVar(&draft, "draft", false, "draft the backstory with the configured provider when --backstory is empty")
	cmd.Flags().StringVar(&hint, "hint", "", "notes for the drafted backstory")
	return cmd
}

func newCharacterEditCmd(c *cli) *cobra.Command {
	var name, backstory string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a character's name or backstory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCharacterID(args[0])
			if err != nil {
				return err
			}

			current, ok := c.app.characters.Get(id)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), renderNotice(noticeWarning, fmt.Sprintf("No character with id %d, nothing changed", id)))
				return nil
			}
			if !cmd.Flags().Changed("name") {
				name = current.Name
			}
			if !cmd.Flags().Changed("backstory") {
				backstory = current.Backstory
			}

			ch, err := c.app.characters.Update(id, name, backstory)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderNotice(noticeSuccess, fmt.Sprintf("Updated %s (id %d)", ch.Name, ch.ID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new character name")
	cmd.Flags().StringVar(&backstory, "backstory", "", "new character backstory")
	return cmd
}

func newCharacterRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a character and every assignment to it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCharacterID(args[0])
			if err != nil {
				return err
			}
			before := c.app.assignments.Len()
			c.app.characters.Delete(id)
			dropped := before - c.app.assignments.Len()
			fmt.Fprintln(cmd.OutOrStdout(), renderNotice(noticeSuccess, fmt.Sprintf("Deleted character %d (%d assignments removed)", id, dropped)))
			return nil
		},
	}
}

func newCharacterLsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List characters in the order they were added",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chars := c.app.characters.List()
			fmt.Fprintf(cmd.OutOrStdout(), "Characters (%d)\n", len(chars))
			renderCharacters(cmd.OutOrStdout(), chars)
			return nil
		},
	}
}

func newCharacterDraftCmd(c *cli) *cobra.Command {
	var hint string
	cmd := &cobra.Command{
		Use:   "draft NAME",
		Short: "Draft a backstory without saving anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := c.backstoryWriter(cmd.Context())
			if err != nil {
				return err
			}
			text, err := w.Draft(cmd.Context(), strings.Join(args, " "), hint)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "notes for the drafted backstory")
	return cmd
}

func newAssignCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "assign",
		Short:       "Assign players to characters (organizer)",
		Annotations: map[string]string{adminAnnotation: "true"},
	}
	cmd.PersistentFlags().String(passwordFlag, "", "organizer password")

	cmd.AddCommand(
		newAssignSetCmd(c),
		newAssignRmCmd(c),
		newAssignLsCmd(c),
		newAssignRandomCmd(c),
	)
	return cmd
}

func newAssignSetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set PLAYER CHARACTER_ID",
		Short: "Assign a character to a player, replacing any previous one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCharacterID(args[1])
			if err != nil {
				return err
			}
			if err := c.app.assignments.Upsert(args[0], id); err != nil {
				return err
			}
			ch, _ := c.app.characters.Get(id)
			fmt.Fprintln(cmd.OutOrStdout(), renderNotice(noticeSuccess, fmt.Sprintf("%s → %s", strings.TrimSpace(args[0]), ch.Name)))
			return nil
		},
	}
}

func newAssignRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm PLAYER",
		Short: "Remove a player's assignment (exact name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.app.assignments.Remove(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), renderNotice(noticeSuccess, fmt.Sprintf("Removed %s", args[0])))
			return nil
		},
	}
}

func newAssignLsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List current assignments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderAssignments(cmd.OutOrStdout(), c.app.assignments.Entries(), c.app.characters)
			return nil
		},
	}
}

func newAssignRandomCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "random [NAMES]",
		Short: "Randomly assign characters to a comma-separated list of players, replacing all assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			input := strings.Join(args, " ")
			if len(args) == 0 {
				fmt.Fprint(out, "Enter player names separated by commas (e.g., Samhita, Sai, Alex): ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				fmt.Fprintln(out)
				input = strings.TrimRight(line, "\r\n")
			}
			if input == "" {
				fmt.Fprintln(out, renderNotice(noticeInfo, "Cancelled, no changes made."))
				return nil
			}

			res, err := c.app.assigner.Assign(input)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderNotice(noticeSuccess, fmt.Sprintf("Assigned %d players to characters!", res.Players)))
			renderAssignments(out, res.Assignments, c.app.characters)
			return nil
		},
	}
}
