package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "tracking.idle_timeout_minutes")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated config.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version — do not edit.",
	},

	// ── Store ────────────────────────────────────────────────────
	"store.url": {
		Comment: "Session store connection. Both url and key are REQUIRED;\nthe daemon will not start without them.\nFor Supabase: Project Settings -> API -> Project URL / service key.",
	},
	"store.key": {},
	"store.retry_max": {
		Comment: "Transport-level retries for store requests. 0 disables retries.",
	},
	"store.timeout_seconds": {
		Comment: "Per-request timeout for store calls.",
	},

	// ── Identity ─────────────────────────────────────────────────
	"identity.api_base_url": {
		Comment: "Identity provider API base. Change for GitHub Enterprise.",
		Alternatives: []string{
			`api_base_url = "https://github.example.com/api/v3"`,
		},
	},

	// ── Tracking ─────────────────────────────────────────────────
	"tracking.idle_timeout_minutes": {
		Comment: "Minutes without editor activity before an active session\nauto-stops with stop_reason = \"inactivity\".",
	},
	"tracking.dashboard_entry_limit": {
		Comment: "How many recent entries the dashboard command loads.",
	},

	// ── Workspace ────────────────────────────────────────────────
	"workspace.name": {
		Comment: "Workspace label resolution. name wins outright; otherwise the\nfirst folder's basename is used, then root_path's basename,\nthen a literal fallback label.",
		Alternatives: []string{
			`name = "my-project"`,
			`folders = [{ path = "/home/me/src/my-project" }]`,
			`root_path = "/home/me/src/my-project"`,
		},
	},

	// ── Privacy ──────────────────────────────────────────────────
	"privacy.ignore": {
		Comment: "Glob patterns for workspace paths whose label must not be\npersisted. Matching workspaces are stored under hidden_workspace_text.",
		Alternatives: []string{
			`ignore = ["/home/me/work/secret/**"]`,
		},
	},
	"privacy.hidden_workspace_text": {},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Minimum log level: debug, info, warn, error.",
	},
	"log.max_size_mb": {
		Comment: "Log file size before rotation.",
	},
}
