package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolbeans/citelens/internal/logging"
	"github.com/coolbeans/citelens/pkg/bibliography"
	"github.com/coolbeans/citelens/pkg/citation"
	"github.com/coolbeans/citelens/pkg/config"
	"github.com/coolbeans/citelens/pkg/decorate"
	"github.com/coolbeans/citelens/pkg/document"
	"github.com/coolbeans/citelens/pkg/editlink"
	"github.com/coolbeans/citelens/pkg/prompt"
	"github.com/coolbeans/citelens/pkg/watch"
)

var version = "0.1.0"

// defaultConfigFile is read from the working directory when --config is
// not given.
const defaultConfigFile = "citelens.yaml"

var errEditKeysDisabled = errors.New("link editing is disabled (bind_edit_keys: false)")

// newPrompter builds the side prompt used by the edit command. Tests swap it
// for a scripted prompter.
var newPrompter = func() editlink.Prompter {
	return prompt.NewTerminal()
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	bibPaths   []string
	dbPath     string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "citelens",
		Short: "Render Org citation links as formatted citations",
		Long: `Citelens displays Org citation links such as [[cite:CoxeterPG2ed][53]]
as the citation they stand for ("Coxeter, 1987, p. 53") without changing the
document text.

Keys are resolved against BibTeX files and an optional SQLite store:
  citelens render --bib refs.bib notes.org
  citelens bib import refs.bib --db refs.sqlite
  citelens edit notes.org --pos 120`,
		Version:      version,
		SilenceUsage: true,
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&flags.configPath, "config", "", "Config file (default ./"+defaultConfigFile+" when present)")
	persistent.StringSliceVar(&flags.bibPaths, "bib", nil, "BibTeX file to resolve keys against (repeatable)")
	persistent.StringVar(&flags.dbPath, "db", "", "SQLite bibliography store")
	persistent.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	persistent.StringVar(&flags.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(renderCmd(flags))
	rootCmd.AddCommand(linksCmd(flags))
	rootCmd.AddCommand(editCmd(flags))
	rootCmd.AddCommand(deleteCmd(flags))
	rootCmd.AddCommand(watchCmd(flags))
	rootCmd.AddCommand(bibCmd(flags))
	return rootCmd
}

// loadSettings merges the config file with command-line overrides and sets
// up logging.
func loadSettings(flags *globalFlags) (*config.Config, error) {
	cfg := config.Default()
	path := flags.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Bibliography = append(cfg.Bibliography, flags.bibPaths...)
	if flags.dbPath != "" {
		cfg.Database = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(os.Stderr, level, format)
	logging.Debug("loaded settings", "config", path, "bibliographies", len(cfg.Bibliography), "database", cfg.Database)
	return cfg, nil
}

// session holds the configuration and bibliography for one command run.
type session struct {
	cfg    *config.Config
	index  *bibliography.Chain
	store  *bibliography.Store
	logger *slog.Logger
}

func openSession(flags *globalFlags) (*session, error) {
	cfg, err := loadSettings(flags)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:    cfg,
		index:  bibliography.NewChain(),
		logger: logging.GetLogger(),
	}
	for _, path := range cfg.Bibliography {
		lib, err := bibliography.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := s.index.Register(path, lib); err != nil {
			return nil, err
		}
		s.logger.Info("loaded bibliography", "path", path, "entries", lib.Len())
	}

	if cfg.Database != "" {
		store, err := bibliography.OpenStore(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := s.index.Register("db:"+cfg.Database, store); err != nil {
			store.Close()
			return nil, err
		}
		s.store = store
		logging.Info("opened bibliography store", "path", cfg.Database)
	}

	if s.index.Count() == 0 {
		logging.Warn("no bibliography configured; citation keys will not resolve")
	}
	return s, nil
}

func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logging.Error("failed to close bibliography store", "error", err)
		}
	}
}

// decorateBuffer creates an enabled engine for buffer.
func (s *session) decorateBuffer(buffer *document.Buffer) (*decorate.Engine, *bibliography.Resolver) {
	resolver := bibliography.NewResolver(s.index, logging.Component("resolver"))
	engine := decorate.New(buffer, resolver, s.cfg.Formatter(),
		decorate.WithLogger(logging.Component("decorate")))
	engine.Enable()
	return engine, resolver
}

func readDocument(path string) (*document.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return document.NewBuffer(string(data)), nil
}

func writeDocument(path string, buffer *document.Buffer) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(buffer.String()), mode); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func renderCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Print a document with its citation links rendered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showStats, _ := cmd.Flags().GetBool("stats")

			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			buffer, err := readDocument(args[0])
			if err != nil {
				return err
			}
			engine, resolver := s.decorateBuffer(buffer)
			fmt.Fprint(cmd.OutOrStdout(), buffer.Display())

			if showStats {
				stats := engine.Stats()
				fmt.Fprintf(cmd.ErrOrStderr(), "Decorated: %d\nRejected:  %d\nLookups:   %d\n",
					stats.Decorated, stats.Rejected, resolver.Lookups())
			}
			return nil
		},
	}
	cmd.Flags().Bool("stats", false, "Print decoration statistics to stderr")
	return cmd
}

// linkReport is one row of the links command.
type linkReport struct {
	*citation.Link
	Line      int    `json:"line"`
	Display   string `json:"display,omitempty"`
	Decorated bool   `json:"decorated"`
}

func collectLinks(buffer *document.Buffer) []linkReport {
	displays := make(map[int]string)
	for _, override := range buffer.Overrides() {
		displays[override.Range.Start] = override.Text
	}

	text := buffer.String()
	var reports []linkReport
	for _, link := range citation.DefaultMatcher.FindAll(text) {
		display, decorated := displays[link.Start]
		reports = append(reports, linkReport{
			Link:      link,
			Line:      strings.Count(text[:link.Start], "\n") + 1,
			Display:   display,
			Decorated: decorated,
		})
	}
	return reports
}

func linksCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links FILE",
		Short: "List the citation links in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			buffer, err := readDocument(args[0])
			if err != nil {
				return err
			}
			s.decorateBuffer(buffer)
			reports := collectLinks(buffer)

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(reports)
			}

			for _, report := range reports {
				display := report.Display
				if !report.Decorated {
					display = "(not rendered)"
				}
				fmt.Fprintf(out, "%d:%d-%d\t%s\t%s\n", report.Line, report.Start, report.End, report.Raw, display)
			}
			fmt.Fprintf(out, "\nTotal: %d links\n", len(reports))
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func editCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit FILE",
		Short: "Edit the raw markup of the citation link at a position",
		Long: `Open the raw text of the citation link at --pos in a prompt and write
the result back. A link without page, prefix or suffix text is saved in its
short form (cite:Key).

Example:
  citelens edit notes.org --pos 120
  citelens edit notes.org --pos 120 --anchor keys`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, _ := cmd.Flags().GetInt("pos")
			anchorName, _ := cmd.Flags().GetString("anchor")

			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()
			if !s.cfg.EditKeysBound() {
				return errEditKeysDisabled
			}

			anchor, err := editlink.ParseAnchor(anchorName)
			if err != nil {
				return err
			}
			buffer, err := readDocument(args[0])
			if err != nil {
				return err
			}
			s.decorateBuffer(buffer)

			before := buffer.String()
			editor := editlink.New(buffer, newPrompter(), nil)
			if err := editor.EditAt(cmd.Context(), pos, anchor); err != nil {
				return err
			}
			if buffer.String() == before {
				s.logger.Info("link unchanged", "pos", pos)
				return nil
			}
			if err := writeDocument(args[0], buffer); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), buffer.DisplayRange(buffer.LineAt(pos)))
			return nil
		},
	}
	cmd.Flags().Int("pos", 0, "Byte offset inside the link")
	cmd.Flags().String("anchor", "auto", "Initial cursor (auto, start, variant, keys, page, end)")
	return cmd
}

func deleteCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete FILE",
		Short: "Delete a character, or a whole rendered link at its boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, _ := cmd.Flags().GetInt("pos")
			forward, _ := cmd.Flags().GetBool("forward")

			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()
			if !s.cfg.EditKeysBound() {
				return errEditKeysDisabled
			}

			buffer, err := readDocument(args[0])
			if err != nil {
				return err
			}
			s.decorateBuffer(buffer)
			before := buffer.String()

			editor := editlink.New(buffer, nil, nil)
			var deleted document.Range
			if forward {
				deleted, err = editor.DeleteForward(pos)
			} else {
				deleted, err = editor.DeleteBackward(pos)
			}
			if err != nil {
				return err
			}
			if deleted.Len() == 0 {
				return nil
			}
			if err := writeDocument(args[0], buffer); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", before[deleted.Start:deleted.End])
			return nil
		},
	}
	cmd.Flags().Int("pos", 0, "Byte offset of the cursor")
	cmd.Flags().Bool("forward", false, "Delete after the cursor instead of before it")
	return cmd
}

func watchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-render a document every time it changes on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			buffer, err := readDocument(args[0])
			if err != nil {
				return err
			}
			s.decorateBuffer(buffer)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, buffer.Display())

			watcher := watch.NewFileWatcher(args[0], buffer, logging.Component("watch"))
			watcher.SetOnUpdate(func(change document.Change) {
				printChange(out, buffer, change)
			})
			s.logger.Info("watching document", "path", args[0])
			return watcher.Run(cmd.Context())
		},
	}
}

// printChange prints the rendered lines an edit touched.
func printChange(out io.Writer, buffer *document.Buffer, change document.Change) {
	lines := buffer.Lines(document.Range{Start: change.Start, End: change.End})
	first := strings.Count(buffer.Text(0, lines.Start), "\n") + 1
	fmt.Fprintf(out, "@@ line %d @@\n%s\n", first, buffer.DisplayRange(lines))
}

func bibCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bib",
		Short: "Manage and query bibliography sources",
	}
	cmd.AddCommand(bibImportCmd(flags))
	cmd.AddCommand(bibLookupCmd(flags))
	return cmd
}

func bibImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import BIB...",
		Short: "Import BibTeX files into the SQLite store",
		Long: `Import BibTeX files into the SQLite store named by --db (or the
database config key). Entries replace earlier ones with the same key.

Example:
  citelens bib import refs.bib more.bib --db refs.sqlite`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(flags)
			if err != nil {
				return err
			}
			if cfg.Database == "" {
				return fmt.Errorf("--db flag is required")
			}

			store, err := bibliography.OpenStore(cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				lib, err := bibliography.LoadFile(path)
				if err != nil {
					return err
				}
				written, err := store.Import(lib)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d entries from %s\n", written, path)
			}

			total, err := store.Count()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Store %s holds %d entries\n", cfg.Database, total)
			return nil
		},
	}
}

// lookupResult is one row of the bib lookup command.
type lookupResult struct {
	Key   string              `json:"key"`
	Found bool                `json:"found"`
	Entry *bibliography.Entry `json:"entry,omitempty"`
}

func bibLookupCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup KEY...",
		Short: "Resolve citation keys against the configured bibliography",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			entries := bibliography.NewResolver(s.index, logging.Component("resolver")).Resolve(args)
			results := make([]lookupResult, len(args))
			missing := 0
			for i, key := range args {
				results[i] = lookupResult{Key: key, Found: entries[i] != nil, Entry: entries[i]}
				if entries[i] == nil {
					missing++
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(results); err != nil {
					return err
				}
			} else {
				for _, result := range results {
					if !result.Found {
						fmt.Fprintf(out, "%s\tnot found\n", result.Key)
						continue
					}
					fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", result.Key, result.Entry.Author, result.Entry.Year, result.Entry.Title)
				}
			}

			if missing > 0 {
				return fmt.Errorf("%d of %d keys not found", missing, len(args))
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}
