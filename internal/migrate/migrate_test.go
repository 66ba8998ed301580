// Tests for sequential migration running, ordering, error propagation,
// and the [Registry] duplicate guard.
package migrate

import (
	"errors"
	"strings"
	"testing"
)

func appendMigration(version int, suffix string) Migration {
	return Migration{
		Version:     version,
		Description: "append " + suffix,
		Upgrade: func(data []byte) ([]byte, error) {
			return append(data, []byte(suffix)...), nil
		},
	}
}

func TestRunAppliesInOrder(t *testing.T) {
	// Registered out of order on purpose; Run must sort by version.
	migrations := []Migration{
		appendMigration(3, "c"),
		appendMigration(2, "b"),
	}

	data, version, err := Run([]byte("a"), 1, migrations)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("data = %q, want %q", data, "abc")
	}
	if version != 3 {
		t.Errorf("version = %d, want 3", version)
	}
}

func TestRunSkipsApplied(t *testing.T) {
	migrations := []Migration{appendMigration(2, "b"), appendMigration(3, "c")}

	data, version, err := Run([]byte("x"), 2, migrations)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(data) != "xc" {
		t.Errorf("data = %q, want %q", data, "xc")
	}
	if version != 3 {
		t.Errorf("version = %d, want 3", version)
	}
}

func TestRunPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	migrations := []Migration{{
		Version:     2,
		Description: "failing",
		Upgrade:     func([]byte) ([]byte, error) { return nil, boom },
	}}

	_, version, err := Run([]byte("x"), 1, migrations)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1 (unchanged on failure)", version)
	}
}

func TestNeedsMigration(t *testing.T) {
	migrations := []Migration{appendMigration(2, "b")}

	tests := []struct {
		name        string
		fileVersion int
		current     int
		want        bool
	}{
		{"behind", 1, 2, true},
		{"current", 2, 2, false},
		{"ahead", 3, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsMigration(tt.fileVersion, tt.current, migrations); got != tt.want {
				t.Errorf("NeedsMigration(%d, %d) = %v, want %v", tt.fileVersion, tt.current, got, tt.want)
			}
		})
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := &Registry{CurrentVersion: 2}
	r.Register(appendMigration(2, "b"))

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic on duplicate version")
		}
		if !strings.Contains(rec.(string), "duplicate migration version 2") {
			t.Errorf("panic = %v", rec)
		}
	}()
	r.Register(appendMigration(2, "b again"))
}
