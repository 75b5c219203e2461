// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/poiesic/bookgrep"
	"github.com/poiesic/bookgrep/api"
	"github.com/poiesic/bookgrep/config"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/ingestion"
	"github.com/poiesic/bookgrep/search"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bookgrep",
		Usage: "Search a library of books by keyword, regular expression or KMP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"BOOKGREP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import Gutenberg .txt files and JSON catalogs",
				ArgsUsage: "<file|dir>...",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Show parse progress on stderr",
						Value: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search every book for a pattern",
				ArgsUsage: "<pattern>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Matching mode (keyword, regex, kmp)",
						Value:   string(core.ModeKeyword),
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Order results by relevance, title, author or date",
						Value: string(search.SortRelevance),
					},
					&cli.BoolFlag{
						Name:  "reverse",
						Usage: "Reverse the sort order",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Show at most N results (0 for all)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List stored books",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number, starting at 1",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Books per page (defaults to server.default_page_size)",
					},
				},
			},
			{
				Name:      "show",
				Usage:     "Print a book",
				ArgsUsage: "<id>",
				Action:    showCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "meta",
						Usage: "Print metadata only",
					},
				},
			},
			{
				Name:   "audit",
				Usage:  "Check stored books for corrupt, duplicate or invalid records",
				Action: auditCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fix",
						Usage: "Remove corrupt and duplicate records",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
					&cli.StringFlag{
						Name:  "watch",
						Usage: "Directory to import from whenever it changes (overrides config)",
					},
				},
			},
		},
	}
}

// setup loads the configuration, applies global flag overrides and installs
// the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
		cfg.Storage.InMemory = false
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
		if _, err := config.ParseLevel(level); err != nil {
			return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
		}
	}

	slog.SetDefault(cfg.NewLogger(c.App.ErrWriter))
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func openLibrary(c *cli.Context, opts ...bookgrep.Option) (*bookgrep.Library, error) {
	opts = append([]bookgrep.Option{bookgrep.WithLogger(slog.Default())}, opts...)
	lib, err := bookgrep.Open(c.Context, configFrom(c), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return lib, nil
}

func importCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file or directory is required")
	}

	var opts []bookgrep.Option
	if c.Bool("progress") {
		opts = append(opts, bookgrep.WithProgress(c.App.ErrWriter))
	}
	lib, err := openLibrary(c, opts...)
	if err != nil {
		return err
	}
	defer lib.Close()

	report, err := lib.Import(c.Context, c.Args().Slice()...)
	if report != nil {
		for _, perr := range report.Errors {
			fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", perr)
		}
		fmt.Fprintf(c.App.Writer, "Imported %d books (%d already stored, %d failed) from %d files; %d books in library\n",
			report.Imported, report.Skipped, report.Failed, report.Files, lib.Len())
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one pattern is required")
	}
	key, err := search.ParseSortKey(c.String("sort"))
	if err != nil {
		return err
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	results, err := lib.SearchBooks(c.Context, c.Args().First(), c.String("mode"))
	if err != nil {
		return err
	}
	search.Reorder(results, key, c.Bool("reverse"))
	if limit := c.Int("limit"); limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No matches.")
		return nil
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tOCCURRENCES\tRELEVANCE")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.4f\n", r.Id, r.Title, r.Author, r.Occurrence, r.Relevance)
	}
	return tw.Flush()
}

func listCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit == 0 {
		limit = configFrom(c).Server.DefaultPageSize
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	books, total, err := lib.ListBooks(c.Context, c.Int("page"), limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tRELEASED")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.Id, b.Title, b.Author, b.ReleaseDate.Format("2006-01-02"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	pages := max((total+limit-1)/limit, 1)
	fmt.Fprintf(c.App.Writer, "Page %d of %d (%d books)\n", c.Int("page"), pages, total)
	return nil
}

func showCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one book id is required")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid book id %q", c.Args().First())
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	book, err := lib.GetBook(c.Context, core.ID(id))
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Title:    %s\n", book.Title)
	fmt.Fprintf(w, "Author:   %s\n", book.Author)
	fmt.Fprintf(w, "Released: %s\n", book.ReleaseDate.Format("January 2, 2006"))
	if c.Bool("meta") {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, book.Content)
	return nil
}

func auditCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	report, err := lib.Audit(c.Context, c.Bool("fix"), c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}
	for _, f := range report.Findings {
		fmt.Fprintf(c.App.Writer, "%d\t%s\t%v\n", f.ID, f.Kind, f.Err)
	}
	if report.Healthy() {
		fmt.Fprintf(c.App.Writer, "All %d records are healthy\n", report.Scanned)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir := c.String("watch"); dir != "" {
		cfg.Ingestion.WatchDir = dir
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	server, err := api.NewServer(lib, cfg.Server, api.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	var watcher *ingestion.Watcher
	if cfg.Ingestion.WatchDir != "" {
		watcher, err = lib.NewWatcher(cfg.Ingestion.WatchDir)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", cfg.Ingestion.WatchDir, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
	return g.Wait()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
