// Package main implements the timecord daemon, which tracks working time per
// workspace, persists sessions to the remote store, and serves the local
// control socket used by editors and the timecordctl CLI.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	rootpkg "tools.zach/dev/timecord"
	"tools.zach/dev/timecord/internal/config"
	"tools.zach/dev/timecord/internal/control"
	"tools.zach/dev/timecord/internal/dashboard"
	"tools.zach/dev/timecord/internal/fault"
	"tools.zach/dev/timecord/internal/identity"
	"tools.zach/dev/timecord/internal/logger"
	"tools.zach/dev/timecord/internal/paths"
	"tools.zach/dev/timecord/internal/store"
	"tools.zach/dev/timecord/internal/tracker"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags (-X main.version=...). When left
// unset (bare go build), resolveVersion falls back to the VCS info the Go
// toolchain embeds, so dev builds still report something useful.
var version = "dev"

// resolveVersion returns the build version string: the ldflags value when
// set, otherwise "dev+<hash>" from the embedded VCS revision.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token proving ownership of
// the PID file, so [removePID] only deletes a file this instance wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates the PID file, acquires an advisory lock on it, and writes
// "PID:TOKEN". The returned handle must stay open for the daemon's lifetime
// to hold the lock; pass it to [removePID] on shutdown.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the lock, closes the handle, and removes the PID file
// only when the stored token matches, so a newer instance's file survives.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another daemon instance is running by trying
// to take the PID file lock. A failed lock means a live instance; a
// successful lock means the previous owner is dead and the stale file is
// cleaned up.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default data directory, typically
// ~/.timecord. Falls back to ./.timecord when the home directory cannot be
// determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Presenter
// ///////////////////////////////////////////////

// broadcastPresenter renders tracking state by pushing status events to
// every watching control connection. It is the daemon's status bar surface.
type broadcastPresenter struct {
	srv       *control.Server
	workspace string
}

func (p *broadcastPresenter) RenderIdle(reason string) {
	p.srv.Broadcast(control.StatusPayload{Active: false, StopReason: reason})
}

func (p *broadcastPresenter) RenderActive(elapsed time.Duration) {
	p.srv.Broadcast(control.StatusPayload{
		Active:         true,
		Elapsed:        tracker.FormatElapsed(elapsed),
		ElapsedSeconds: int64(elapsed.Seconds()),
		Workspace:      p.workspace,
	})
}

// ///////////////////////////////////////////////
// Wiring
// ///////////////////////////////////////////////

// statusPayload converts a tracker snapshot to its wire form.
func statusPayload(st tracker.Status) control.StatusPayload {
	p := control.StatusPayload{Active: st.Active, Workspace: st.Workspace}
	if st.Active {
		p.Elapsed = tracker.FormatElapsed(st.Elapsed)
		p.ElapsedSeconds = int64(st.Elapsed.Seconds())
		p.StartTime = store.FormatTime(st.StartTime)
	}
	return p
}

// dashboardPayload converts a built report to its wire form.
func dashboardPayload(r *dashboard.Report) control.DashboardPayload {
	p := control.DashboardPayload{
		Entries: make([]control.DashboardEntry, 0, len(r.Rows)),
		Today:   dashboard.FormatDuration(r.Stats.Today),
		Week:    dashboard.FormatDuration(r.Stats.Week),
		Total:   dashboard.FormatDuration(r.Stats.Total),
	}
	for _, row := range r.Rows {
		p.Entries = append(p.Entries, control.DashboardEntry{
			Workspace:  row.Workspace,
			StartTime:  row.Start.Format("2006-01-02 15:04"),
			Duration:   dashboard.FormatDuration(row.Duration),
			Active:     row.Active,
			StopReason: row.StopReason,
		})
	}
	return p
}

// buildHandlers wires the control command surface to the daemon components.
func buildHandlers(tr *tracker.Tracker, ids *identity.GitHub, st *store.Client, entryLimit int) control.Handlers {
	return control.Handlers{
		Login: func(ctx context.Context, token string) (string, error) {
			id, err := ids.Login(ctx, token)
			if err != nil {
				return "", err
			}
			return "Signed in as " + id.Login, nil
		},
		Logout: func() error {
			return ids.Logout()
		},
		Start: func(ctx context.Context) (control.StatusPayload, error) {
			status, err := tr.Start(ctx)
			return statusPayload(status), err
		},
		Stop: func(ctx context.Context) (control.StatusPayload, error) {
			status, err := tr.Stop(ctx, "")
			return statusPayload(status), err
		},
		Status: func() control.StatusPayload {
			return statusPayload(tr.Status())
		},
		Activity: tr.Touch,
		Dashboard: func(ctx context.Context) (control.DashboardPayload, error) {
			report, err := dashboard.Build(ctx, st, entryLimit, time.Now())
			if err != nil {
				return control.DashboardPayload{}, err
			}
			return dashboardPayload(report), nil
		},
	}
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, token, and logs")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(resolveVersion())
		return
	}

	dp := DataPaths{Root: *dataDir}

	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if alive, pid := checkStalePID(dp); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if _, err := os.Stat(dp.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dp.Config(), rootpkg.DefaultConfigTOML, 0o600); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		fmt.Fprintln(os.Stderr, fault.Message(err))
		os.Exit(1)
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser, err := logger.NewLogger(dp.Log(), logLevel, cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("timecord starting", "version", ver, "data_dir", dp.Root)

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(dp, token, pidFile)

	storeClient := store.NewClient(store.Options{
		URL:      cfg.Store.URL,
		Key:      cfg.Store.Key,
		RetryMax: cfg.Store.RetryMax,
		Timeout:  cfg.StoreTimeout(),
	})
	ids := identity.NewGitHub(cfg.Identity.APIBaseURL, dp.Token())

	// The presenter needs the server and the handlers need the tracker, so
	// the server is built first and its handlers attached once the tracker
	// exists.
	srv := control.NewServer(control.Handlers{})
	workspace := tracker.Label(cfg)
	tr := tracker.New(tracker.Options{
		Store:       storeClient,
		Identity:    ids,
		Presenter:   &broadcastPresenter{srv: srv, workspace: workspace},
		Workspace:   workspace,
		IdleTimeout: cfg.IdleTimeout(),
	})
	defer tr.Close()
	srv.SetHandlers(buildHandlers(tr, ids, storeClient, cfg.Tracking.DashboardEntryLimit))

	ln, err := control.Listen(dp.Control())
	if err != nil {
		slog.Error("failed to bind control socket", "error", err)
		os.Exit(1)
	}
	go srv.Serve(ln)
	defer srv.Close()

	watcher, err := config.NewWatcher(dp.Config())
	if err != nil {
		slog.Warn("config watching disabled", "error", err)
	} else {
		defer watcher.Close()
		if watcher.Polling() {
			slog.Info("using polling mode for config watching")
		}
	}

	tr.Recover(context.Background())

	run(tr, watcher, dp)
}

// run is the daemon's event loop: config reloads and OS signals. An active
// session is deliberately left open in the store on shutdown so the next
// start recovers it.
func run(tr *tracker.Tracker, watcher *config.Watcher, dp DataPaths) {
	sigCh := signalChannel()

	var events <-chan struct{}
	if watcher != nil {
		events = watcher.Events()
	}

	for {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			return

		case <-events:
			reloadConfig(tr, dp)
		}
	}
}

// reloadConfig re-reads the config file and applies the idle timeout to the
// tracker. Invalid edits are logged and ignored; the running config stays in
// effect until the file parses and validates again.
func reloadConfig(tr *tracker.Tracker, dp DataPaths) {
	cfg, err := config.Load(dp.Root)
	if err != nil {
		slog.Warn("config reload failed", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		slog.Warn("config reload rejected", "error", err)
		return
	}
	slog.Info("config reloaded", "idle_timeout", cfg.IdleTimeout())
	tr.SetIdleTimeout(cfg.IdleTimeout())
}
