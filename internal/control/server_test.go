//go:build !windows

package control

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tools.zach/dev/timecord/internal/fault"
)

// startServer binds a server on a per-test unix socket and returns a
// connected client.
func startServer(t *testing.T, handlers Handlers) (*Server, *Client) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix socket test")
	}
	sock := filepath.Join(t.TempDir(), "control.sock")
	ln, err := Listen(sock)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	srv := NewServer(handlers)
	go srv.Serve(ln)
	t.Cleanup(srv.Close)

	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestPing(t *testing.T) {
	_, client := startServer(t, Handlers{})

	resp, err := client.Do(Request{Command: CmdPing})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !resp.OK || resp.Message != "pong" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	active := false
	_, client := startServer(t, Handlers{
		Start: func(ctx context.Context) (StatusPayload, error) {
			active = true
			return StatusPayload{Active: true, Elapsed: "00:00", Workspace: "timecord"}, nil
		},
		Stop: func(ctx context.Context) (StatusPayload, error) {
			active = false
			return StatusPayload{Active: false}, nil
		},
	})

	resp, err := client.Do(Request{Command: CmdStart})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !resp.OK || resp.Status == nil || !resp.Status.Active {
		t.Errorf("start resp = %+v", resp)
	}
	if !active {
		t.Error("start handler never ran")
	}

	resp, err = client.Do(Request{Command: CmdStop})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !resp.OK || resp.Status == nil || resp.Status.Active {
		t.Errorf("stop resp = %+v", resp)
	}
}

func TestLoginPassesToken(t *testing.T) {
	var gotToken string
	_, client := startServer(t, Handlers{
		Login: func(ctx context.Context, token string) (string, error) {
			gotToken = token
			return "Signed in as octocat", nil
		},
	})

	resp, err := client.Do(Request{Command: CmdLogin, Token: "ghp_secret"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !resp.OK || resp.Message != "Signed in as octocat" {
		t.Errorf("resp = %+v", resp)
	}
	if gotToken != "ghp_secret" {
		t.Errorf("token = %q", gotToken)
	}
}

func TestFailureCarriesKindAndMessage(t *testing.T) {
	_, client := startServer(t, Handlers{
		Start: func(ctx context.Context) (StatusPayload, error) {
			return StatusPayload{}, fault.Newf(fault.Network, "store.post", "connection refused")
		},
	})

	resp, err := client.Do(Request{Command: CmdStart})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.OK {
		t.Error("expected failure response")
	}
	if resp.ErrorKind != "network" {
		t.Errorf("ErrorKind = %q, want network", resp.ErrorKind)
	}
	if resp.Message == "" || resp.Message == "connection refused" {
		t.Errorf("message %q must be the actor-facing line, not the raw cause", resp.Message)
	}
}

func TestUnsupportedCommand(t *testing.T) {
	_, client := startServer(t, Handlers{})

	resp, err := client.Do(Request{Command: "reboot"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.OK {
		t.Error("expected failure for unknown command")
	}
}

func TestActivityCommand(t *testing.T) {
	var touches atomic.Int32
	_, client := startServer(t, Handlers{
		Activity: func() { touches.Add(1) },
	})

	for i := 0; i < 3; i++ {
		if _, err := client.Do(Request{Command: CmdActivity}); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	if got := touches.Load(); got != 3 {
		t.Errorf("touches = %d, want 3", got)
	}
}

func TestWatchReceivesBroadcasts(t *testing.T) {
	srv, client := startServer(t, Handlers{})

	got := make(chan StatusPayload, 8)
	done := make(chan error, 1)
	go func() {
		done <- client.Watch(func(p StatusPayload) bool {
			got <- p
			return false
		})
	}()

	// Watch mode flips on the server after the watch response; give the
	// broadcast a few attempts.
	payload := StatusPayload{Active: true, Elapsed: "00:07", Workspace: "timecord"}
	deadline := time.After(2 * time.Second)
	for {
		srv.Broadcast(payload)
		select {
		case p := <-got:
			if p.Elapsed != "00:07" || !p.Active {
				t.Errorf("event = %+v", p)
			}
			if err := <-done; err != nil {
				t.Errorf("Watch: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("no event received")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatchEventCarriesStopReason(t *testing.T) {
	srv, client := startServer(t, Handlers{})

	got := make(chan StatusPayload, 8)
	go func() {
		client.Watch(func(p StatusPayload) bool {
			got <- p
			return false
		})
	}()

	// An idle auto-stop must reach watchers with its reason, so the render
	// can distinguish it from a manual stop.
	payload := StatusPayload{Active: false, StopReason: "inactivity"}
	deadline := time.After(2 * time.Second)
	for {
		srv.Broadcast(payload)
		select {
		case p := <-got:
			if p.Active || p.StopReason != "inactivity" {
				t.Errorf("event = %+v", p)
			}
			return
		case <-deadline:
			t.Fatal("no event received")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBroadcastDropsStalledWatcher(t *testing.T) {
	orig := broadcastTimeout
	broadcastTimeout = 50 * time.Millisecond
	defer func() { broadcastTimeout = orig }()

	sock := filepath.Join(t.TempDir(), "control.sock")
	ln, err := Listen(sock)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := NewServer(Handlers{})
	go srv.Serve(ln)
	t.Cleanup(srv.Close)

	// Subscribe, then never read another frame. Events pile up until the
	// socket buffer is full and writes start blocking.
	stalled, err := Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { stalled.Close() })
	if _, err := stalled.Do(Request{Command: CmdWatch}); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Broadcast runs on the tracker's render path while the tracker mutex is
	// held, so it must finish in bounded time no matter what the watcher does.
	big := StatusPayload{Active: true, Workspace: strings.Repeat("w", 1<<15)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			srv.Broadcast(big)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast wedged on a watcher that stopped reading")
	}

	// The stalled connection is gone; everyone else is still served.
	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	resp, err := client.Do(Request{Command: CmdPing})
	if err != nil {
		t.Fatalf("ping after drop: %v", err)
	}
	if !resp.OK {
		t.Errorf("resp = %+v", resp)
	}
}

func TestBroadcastSkipsNonWatchers(t *testing.T) {
	srv, client := startServer(t, Handlers{})

	srv.Broadcast(StatusPayload{Active: true})
	// The connection never subscribed, so a normal command must still get
	// its response with no event frame ahead of it.
	resp, err := client.Do(Request{Command: CmdPing})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !resp.OK {
		t.Errorf("resp = %+v", resp)
	}
}

func TestServerCloseUnblocksClients(t *testing.T) {
	srv, client := startServer(t, Handlers{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Watch(func(StatusPayload) bool { return true })
	}()
	time.Sleep(20 * time.Millisecond)
	srv.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("watch should fail once the server closes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch never returned after server close")
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "control.sock")
	ln, err := Listen(sock)
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	ln.Close()

	// The socket file may linger after an unclean shutdown.
	ln2, err := Listen(sock)
	if err != nil {
		t.Fatalf("second Listen: %v", err)
	}
	ln2.Close()
}

func TestDialWithoutDaemon(t *testing.T) {
	_, err := Dial(filepath.Join(t.TempDir(), "control.sock"))
	if err == nil {
		t.Fatal("expected connection error")
	}
	var perr *fault.Error
	if errors.As(err, &perr) {
		t.Error("dial errors stay unclassified; the CLI owns the messaging")
	}
}
