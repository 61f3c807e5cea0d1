package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/workviz/workviz/internal/datasource"
	"github.com/workviz/workviz/pkg/config"
	"github.com/workviz/workviz/pkg/engine"
	"github.com/workviz/workviz/pkg/export"
	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
	"github.com/workviz/workviz/pkg/ui"
	"github.com/workviz/workviz/pkg/version"
	"github.com/workviz/workviz/pkg/watcher"
)

func main() {
	planDirFlag := flag.String("plan-dir", "", "Plan directory (default from config, falls back to .workplan)")
	debounceMS := flag.Int("debounce-ms", -1, "Refresh debounce in milliseconds (0 disables coalescing)")
	settleMS := flag.Int("settle-ms", 0, "Git-operation settle window in milliseconds")
	noGitDetect := flag.Bool("no-git-detect", false, "Disable git-operation detection")
	forcePoll := flag.Bool("force-poll", false, "Use polling instead of native file watching")
	snapshotPath := flag.String("snapshot", "", "Render a tree snapshot (svg/png) to PATH and exit")
	outlinePath := flag.String("outline", "", "Write a markdown outline to PATH and exit")
	robot := flag.Bool("robot", false, "Print items and progress as JSON and exit")
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

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
		fmt.Println("Usage: wv [options]")
		fmt.Println("\nA live tree viewer for markdown work plans.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("wv %s\n", version.Version)
		os.Exit(0)
	}

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring invalid config: %v\n", cfgErr)
		cfg = config.DefaultConfig()
	}

	// Resolution order: flag, then WORKPLAN_DIR env, then config.
	planDir := *planDirFlag
	if planDir == "" {
		planDir = os.Getenv("WORKPLAN_DIR")
	}
	if planDir == "" {
		planDir = cfg.PlanDir
	}
	planDir, err := filepath.Abs(planDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving plan directory: %v\n", err)
		os.Exit(1)
	}

	warn := func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}

	// One-shot modes never start the watcher or the TUI.
	if *robot || *snapshotPath != "" || *outlinePath != "" {
		if err := runOneShot(os.Stdout, planDir, *robot, *snapshotPath, *outlinePath, warn); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal (use --robot, --snapshot or --outline for non-interactive output)")
		os.Exit(1)
	}

	load := func() ([]model.WorkItem, error) {
		items, _, err := datasource.LoadItems(context.Background(), planDir, warn)
		return items, err
	}

	// Flags override config; config overrides the built-in defaults.
	refreshDelay := cfg.RefreshDelay(engine.DefaultRefreshDelay)
	if *debounceMS >= 0 {
		refreshDelay = time.Duration(*debounceMS) * time.Millisecond
	}
	settleDelay := cfg.SettleDelay(engine.DefaultSettleDelay)
	if *settleMS > 0 {
		settleDelay = time.Duration(*settleMS) * time.Millisecond
	}

	eng := engine.New(load, engine.Options{
		RefreshDelay:        refreshDelay,
		SettleDelay:         settleDelay,
		DisableGitDetection: *noGitDetect || !cfg.GitDetectionEnabled(),
	})
	defer eng.Close()

	// Prime the caches before the first frame and surface load errors early.
	_, sourceDesc, err := datasource.LoadItems(context.Background(), planDir, warn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading work items: %v\n", err)
		fmt.Fprintf(os.Stderr, "Expected a plan directory at %s (override with --plan-dir).\n", planDir)
		os.Exit(1)
	}

	watchOpts := []watcher.Option{
		watcher.WithForcePoll(*forcePoll),
		watcher.WithPollInterval(cfg.PollInterval(watcher.DefaultPollInterval)),
		watcher.WithOnError(func(err error) {
			fmt.Fprintf(os.Stderr, "Warning: watch error: %v\n", err)
		}),
	}
	if *noGitDetect || !cfg.GitDetectionEnabled() {
		watchOpts = append(watchOpts, watcher.WithGitDir(""))
	}

	var w *watcher.Watcher
	w, err = watcher.NewWatcher(planDir, watchOpts...)
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		// Live reload is an enhancement; the viewer still works without it.
		fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		w = nil
	} else {
		defer w.Stop()
	}

	m := ui.NewModel(ui.Options{
		Engine:       eng,
		Watcher:      w,
		PlanDir:      planDir,
		Group:        hierarchy.GroupKey(cfg.UI.DefaultGroup),
		ShowArchived: cfg.UI.ShowArchived,
		SplitRatio:   cfg.UI.SplitRatio,
		StateDir:     config.StateDir(),
		SourceDesc:   sourceDesc,
	})

	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(os.Stderr, "Error running viewer: %v\n", err)
		os.Exit(1)
	}
}

// robotOutput is the machine-readable dump for --robot.
type robotOutput struct {
	Version  string                         `json:"version"`
	Source   string                         `json:"source"`
	Items    []model.WorkItem               `json:"items"`
	Progress map[string]*model.ProgressInfo `json:"progress"`
}

func runOneShot(out io.Writer, planDir string, robot bool, snapshotPath, outlinePath string, warn func(string)) error {
	items, sourceDesc, err := datasource.LoadItems(context.Background(), planDir, warn)
	if err != nil {
		return err
	}
	res := hierarchy.Build(items)

	if robot {
		dump := robotOutput{
			Version:  version.Version,
			Source:   sourceDesc,
			Items:    items,
			Progress: make(map[string]*model.ProgressInfo),
		}
		hierarchy.WalkAll(res.Roots, func(n *hierarchy.Node) {
			if p := hierarchy.ProgressOf(n); p != nil {
				dump.Progress[n.Item.ID] = p
			}
		})
		data, err := json.MarshalIndent(dump, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}

	if snapshotPath != "" {
		err := export.SaveTreeSnapshot(export.TreeSnapshotOptions{
			Path:     snapshotPath,
			Title:    fmt.Sprintf("Work Plan: %s", filepath.Base(planDir)),
			Roots:    res.Roots,
			Progress: hierarchy.ProgressOf,
		})
		if err != nil {
			return fmt.Errorf("snapshot export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Snapshot written to %s\n", snapshotPath)
	}

	if outlinePath != "" {
		err := export.SaveOutline(outlinePath, res.Roots,
			fmt.Sprintf("Work Plan: %s", filepath.Base(planDir)), hierarchy.ProgressOf)
		if err != nil {
			return fmt.Errorf("outline export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Outline written to %s\n", outlinePath)
	}

	return nil
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

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
