// Package main implements timecordctl, the command-line client for the
// timecord daemon's control socket. Editors shell out to it (or speak the
// socket protocol directly) for login, start/stop, status, and the
// dashboard.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tools.zach/dev/timecord/internal/control"
	"tools.zach/dev/timecord/internal/logger"
	"tools.zach/dev/timecord/internal/paths"
)

const usageText = `Usage: timecordctl [-data-dir DIR] COMMAND

Commands:
  login TOKEN   Sign in with a GitHub personal access token
  logout        Discard the stored token
  start         Start tracking time
  stop          Stop tracking time
  status        Show the current tracking state
  dashboard     Show recent entries and totals
  watch         Stream status updates until interrupted
  logs [-n N]   Print the last N daemon log lines (default 50)
  ping          Check that the daemon is reachable
`

func usage() {
	fmt.Fprint(os.Stderr, usageText)
	os.Exit(2)
}

// defaultDataDir mirrors the daemon's default so both sides agree on the
// socket location.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory of the daemon")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}
	dp := paths.DataDir{Root: *dataDir}
	command, rest := args[0], args[1:]

	switch command {
	case "logs":
		runLogs(dp, rest)
		return
	case "login":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "usage: timecordctl login TOKEN")
			os.Exit(2)
		}
	case "logout", "start", "stop", "status", "dashboard", "watch", "ping":
		if len(rest) != 0 {
			usage()
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
	}

	client, err := control.Dial(dp.Control())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach the daemon: %v\nIs timecord running?\n", err)
		os.Exit(1)
	}
	defer client.Close()

	switch command {
	case "login":
		doCommand(client, control.Request{Command: control.CmdLogin, Token: rest[0]})
	case "logout":
		doCommand(client, control.Request{Command: control.CmdLogout})
	case "start":
		doCommand(client, control.Request{Command: control.CmdStart})
	case "stop":
		doCommand(client, control.Request{Command: control.CmdStop})
	case "ping":
		doCommand(client, control.Request{Command: control.CmdPing})
	case "status":
		runStatus(client)
	case "dashboard":
		runDashboard(client)
	case "watch":
		runWatch(client)
	}
}

// doCommand sends a request and prints the actor-facing message line.
func doCommand(client *control.Client, req control.Request) {
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, resp.Message)
		os.Exit(1)
	}
	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
	if resp.Status != nil {
		printStatus(*resp.Status)
	}
}

func runStatus(client *control.Client) {
	resp, err := client.Do(control.Request{Command: control.CmdStatus})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !resp.OK || resp.Status == nil {
		fmt.Fprintln(os.Stderr, resp.Message)
		os.Exit(1)
	}
	printStatus(*resp.Status)
}

func printStatus(st control.StatusPayload) {
	if !st.Active {
		if st.StopReason != "" {
			fmt.Printf("Not tracking (stopped: %s)\n", st.StopReason)
			return
		}
		fmt.Println("Not tracking")
		return
	}
	fmt.Printf("Tracking %s for %s\n", st.Workspace, st.Elapsed)
}

func runDashboard(client *control.Client) {
	resp, err := client.Do(control.Request{Command: control.CmdDashboard})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !resp.OK || resp.Dashboard == nil {
		fmt.Fprintln(os.Stderr, resp.Message)
		os.Exit(1)
	}
	d := resp.Dashboard

	fmt.Printf("Today %s | This week %s | Total %s\n\n", d.Today, d.Week, d.Total)
	if len(d.Entries) == 0 {
		fmt.Println("No entries yet")
		return
	}
	for _, e := range d.Entries {
		marker := " "
		if e.Active {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s  %-8s %s", marker, e.StartTime, e.Duration, e.Workspace)
		if e.StopReason != "" {
			line += "  (" + e.StopReason + ")"
		}
		fmt.Println(line)
	}
}

func runWatch(client *control.Client) {
	err := client.Watch(func(p control.StatusPayload) bool {
		printStatus(p)
		return true
	})
	if err != nil && !strings.Contains(err.Error(), "closed") {
		fmt.Fprintf(os.Stderr, "watch ended: %v\n", err)
		os.Exit(1)
	}
}

// runLogs tails the daemon log directly from disk, no daemon needed.
func runLogs(dp paths.DataDir, args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	lines := fs.Int("n", 50, "Number of log lines to print")
	fs.Parse(args)

	out, err := logger.ReadTail(dp.Log(), *lines)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}
