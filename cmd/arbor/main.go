package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/vanderheijden86/arbor/internal/datasource"
	"github.com/vanderheijden86/arbor/pkg/analysis"
	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/export"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
	"github.com/vanderheijden86/arbor/pkg/ui"
	"github.com/vanderheijden86/arbor/pkg/version"
	"github.com/vanderheijden86/arbor/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Config file (default: ~/.config/arbor/config.yaml)")
	keyFlag := flag.String("key", "", "Path key mode: index or id")
	preloadCollapsed := flag.Bool("preload-collapsed", false, "Load lazy children of collapsed nodes too")
	expandDepth := flag.Int("expand-depth", 0, "Load and expand the tree to this depth before output")
	writeFlag := flag.Bool("write", false, "Save edits back to a JSON/YAML source (TUI only)")
	robotRows := flag.Bool("robot-rows", false, "Print the visible rows as JSON")
	robotSearch := flag.String("robot-search", "", "Search the tree and print matches and rows as JSON")
	focus := flag.Int("focus", 0, "Focused match offset for --robot-search (-1 for none)")
	onlyMatches := flag.Bool("only-matches", false, "Collapse everything except match paths (--robot-search)")
	robotStats := flag.Bool("robot-stats", false, "Print tree statistics and timings as JSON")
	exportPath := flag.String("export", "", "Render the visible rows to a .svg, .png or .md file")
	importSQLite := flag.String("import-sqlite", "", "Write the source tree into a SQLite database")
	flag.Usage = usage
	flag.Parse()

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		usage()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("arbor %s\n", version.Version)
		os.Exit(0)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := resolveConfig(*configPath, set, cliOverrides{
		Key:              *keyFlag,
		PreloadCollapsed: *preloadCollapsed,
		ExpandDepth:      *expandDepth,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	sourcePath, err := resolveSource(cfg, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	src, err := datasource.Open(ctx, sourcePath, datasource.OpenOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading source: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	key := tree.KeyFuncByName(cfg.Tree.Key)

	// Handle --import-sqlite
	if *importSQLite != "" {
		roots, err := datasource.Preload(ctx, src.Roots, maxPreloadDepth, key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading tree: %v\n", err)
			os.Exit(1)
		}
		n, err := datasource.ImportSQLite(ctx, *importSQLite, roots)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing into %s: %v\n", *importSQLite, err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d nodes into %s\n", n, *importSQLite)
		os.Exit(0)
	}

	roots, err := prepareRoots(ctx, src.Roots, cfg.Tree.ExpandDepth, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error expanding tree: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *robotRows:
		exitOnErr(writeRobotRows(os.Stdout, roots, key))
		os.Exit(0)
	case set["robot-search"]:
		exitOnErr(writeRobotSearch(os.Stdout, roots, searchParams{
			Key:         key,
			Method:      searchMethod(cfg),
			Query:       *robotSearch,
			Focus:       *focus,
			OnlyMatches: *onlyMatches,
		}))
		os.Exit(0)
	case *robotStats:
		exitOnErr(writeRobotStats(os.Stdout, src.Source.Path, roots))
		os.Exit(0)
	case *exportPath != "":
		exitOnErr(export.Export(export.Options{
			Path:          *exportPath,
			Title:         src.Title,
			Rows:          tree.Flatten(roots, key, true),
			Focus:         tree.NoTreeIndex,
			ShowSubtitles: cfg.UI.ShowSubtitles,
			DataHash:      analysis.ComputeDataHash(roots),
		}))
		fmt.Printf("Exported %s\n", *exportPath)
		os.Exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal; use --robot-rows, --robot-search or --robot-stats for scripted output")
		os.Exit(2)
	}
	if *writeFlag && !src.Source.Writable() {
		fmt.Fprintf(os.Stderr, "Error: --write needs a JSON or YAML source, got %s\n", src.Source.Type)
		os.Exit(2)
	}

	src.Roots = roots
	var w *watcher.Watcher
	if cfg.Watch.Enabled && src.Source.Watchable() {
		w, err = watcher.NewWatcher(src.Source.Path,
			watcher.WithDebounceDuration(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
			watcher.WithForcePoll(cfg.Watch.ForcePoll),
		)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
			w = nil
		} else {
			defer w.Stop()
		}
	}

	m := ui.NewModel(ui.Options{
		Source:   src,
		Config:   cfg,
		Key:      key,
		Watcher:  w,
		StateDir: config.StateDir(),
		Write:    *writeFlag,
	})
	if err := runTUIProgram(m); err != nil {
		fmt.Printf("Error running arbor: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: arbor [options] <source>")
	fmt.Fprintln(os.Stderr, "\nBrowse a tree from a JSON/YAML file, a SQLite database or a directory.")
	fmt.Fprintln(os.Stderr, "<source> may also name an entry in the config's sources list.")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// maxPreloadDepth bounds --import-sqlite, which needs every lazy subtree
// materialized.
const maxPreloadDepth = 64

// cliOverrides are the flags that shadow config settings when given.
type cliOverrides struct {
	Key              string
	PreloadCollapsed bool
	ExpandDepth      int
}

// resolveConfig layers the config file, then ARBOR_* env vars, then the
// flags present in set.
func resolveConfig(path string, set map[string]bool, o cliOverrides) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if set["key"] {
		cfg.Tree.Key = o.Key
	}
	if set["preload-collapsed"] {
		cfg.Tree.PreloadCollapsed = o.PreloadCollapsed
	}
	if set["expand-depth"] {
		cfg.Tree.ExpandDepth = o.ExpandDepth
	}
	return cfg, cfg.Validate()
}

// resolveSource maps the positional argument to a path. An existing path
// wins over a configured source name; with no argument the first
// configured source is used.
func resolveSource(cfg config.Config, arg string) (string, error) {
	if arg == "" {
		if len(cfg.Sources) == 0 {
			return "", errors.New("no source given")
		}
		return cfg.Sources[0].Path, nil
	}
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}
	if s := cfg.FindSource(arg); s != nil {
		return s.Path, nil
	}
	return arg, nil
}

// prepareRoots loads deferred children and expands every node down to
// depth. Depth 0 leaves the tree as stored.
func prepareRoots(ctx context.Context, roots []*model.Node, depth int, key tree.KeyFunc) ([]*model.Node, error) {
	if depth <= 0 {
		return roots, nil
	}
	loaded, err := datasource.Preload(ctx, roots, depth, key)
	if err != nil {
		return roots, err
	}
	return tree.ExpandToDepth(loaded, depth, key), nil
}

func searchMethod(cfg config.Config) tree.SearchMethod {
	if cfg.Tree.CaseSensitive {
		return tree.DefaultSearchMethod
	}
	return tree.FoldSearchMethod
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set ARBOR_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("ARBOR_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
