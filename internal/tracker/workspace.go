package tracker

import (
	"path/filepath"

	"tools.zach/dev/timecord/internal/config"
)

// FallbackLabel is used when no workspace information is configured at all.
const FallbackLabel = "No Workspace"

// Label resolves the workspace label persisted on entries. The chain is:
// explicit workspace name, then the first folder's display name, then the
// basename of the first folder's path, then the basename of the root path,
// then [FallbackLabel]. Privacy patterns apply last: when the workspace's
// path matches an ignore glob, the configured hidden text replaces the label
// so the real name never reaches the store.
func Label(cfg *config.Config) string {
	if path := workspacePath(cfg); path != "" && cfg.IsIgnored(path) {
		return cfg.Privacy.HiddenWorkspaceText
	}

	if cfg.Workspace.Name != "" {
		return cfg.Workspace.Name
	}
	if len(cfg.Workspace.Folders) > 0 {
		first := cfg.Workspace.Folders[0]
		if first.Name != "" {
			return first.Name
		}
		if first.Path != "" {
			return filepath.Base(first.Path)
		}
	}
	if cfg.Workspace.RootPath != "" {
		return filepath.Base(cfg.Workspace.RootPath)
	}
	return FallbackLabel
}

// workspacePath returns the path checked against privacy globs: the first
// folder's path when present, otherwise the root path.
func workspacePath(cfg *config.Config) string {
	if len(cfg.Workspace.Folders) > 0 && cfg.Workspace.Folders[0].Path != "" {
		return cfg.Workspace.Folders[0].Path
	}
	return cfg.Workspace.RootPath
}
