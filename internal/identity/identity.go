// Package identity resolves who the tracked time belongs to.
//
// The daemon never runs an OAuth flow itself: the actor supplies a GitHub
// personal access token once (via the control surface or the
// TIMECORD_GITHUB_TOKEN environment variable) and the package verifies it
// against the GitHub API, then persists it in the data directory. Subsequent
// lookups are silent: a missing token yields [ErrNoSession] rather than a
// prompt, so background paths like recovery never block on interaction.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"tools.zach/dev/timecord/internal/atomicfile"
	"tools.zach/dev/timecord/internal/fault"
)

// TokenEnvVar overrides the persisted token when set. Useful for headless
// environments where writing a token file is undesirable.
const TokenEnvVar = "TIMECORD_GITHUB_TOKEN"

// ErrNoSession is returned when no token is available and the caller asked
// for a silent lookup.
var ErrNoSession = errors.New("no signed-in identity")

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Identity is a verified account the daemon attributes entries to.
type Identity struct {
	// UserID is the stable numeric account ID, used as the owner key on
	// store entries.
	UserID int64
	// Login is the account's display handle.
	Login string
}

// Provider resolves and verifies identities.
type Provider interface {
	// Identity returns the current identity. When interactive is false and
	// no token is available, it returns [ErrNoSession] without side effects.
	Identity(ctx context.Context, interactive bool) (Identity, error)
	// Login verifies token and persists it for future silent lookups.
	Login(ctx context.Context, token string) (Identity, error)
	// Logout discards the persisted token.
	Logout() error
}

// ///////////////////////////////////////////////
// GitHub Provider
// ///////////////////////////////////////////////

// GitHub verifies tokens against the GitHub REST API.
type GitHub struct {
	apiBase   string
	tokenPath string
	client    *http.Client
}

// NewGitHub builds a provider. apiBase is the API root (normally
// https://api.github.com); tokenPath is where the verified token is persisted.
func NewGitHub(apiBase, tokenPath string) *GitHub {
	return &GitHub{
		apiBase:   strings.TrimRight(apiBase, "/"),
		tokenPath: tokenPath,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Identity resolves the current identity from the environment token or the
// persisted token file, verifying whichever is found.
func (g *GitHub) Identity(ctx context.Context, interactive bool) (Identity, error) {
	token, err := g.loadToken()
	if err != nil {
		return Identity{}, err
	}
	if token == "" {
		if !interactive {
			return Identity{}, ErrNoSession
		}
		return Identity{}, fault.New(fault.AuthRequired, "identity.resolve", ErrNoSession).
			WithHint("Sign in with a GitHub token to start tracking")
	}
	return g.Verify(ctx, token)
}

// Login verifies token against the API and persists it on success.
func (g *GitHub) Login(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fault.Newf(fault.Validation, "identity.login", "empty token")
	}
	id, err := g.Verify(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if err := atomicfile.Write(g.tokenPath, []byte(token+"\n"), 0o600); err != nil {
		return Identity{}, fmt.Errorf("persist token: %w", err)
	}
	return id, nil
}

// Logout removes the persisted token. Missing file is not an error.
func (g *GitHub) Logout() error {
	if err := os.Remove(g.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// Verify checks token against GET {apiBase}/user and returns the account it
// belongs to. A 401 maps to [fault.AuthRequired]; transport failures map to
// [fault.Network].
func (g *GitHub) Verify(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"/user", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Identity{}, fault.New(fault.Network, "identity.verify", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Identity{}, fault.Newf(fault.AuthRequired, "identity.verify", "token rejected (status 401)").
			WithHint("The GitHub token is invalid or expired: sign in again")
	case resp.StatusCode != http.StatusOK:
		return Identity{}, fault.Newf(fault.Unknown, "identity.verify", "unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Identity{}, fault.New(fault.Network, "identity.verify", err)
	}

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return Identity{}, fmt.Errorf("parse user response: %w", err)
	}
	if user.ID == 0 {
		return Identity{}, fault.Newf(fault.Unknown, "identity.verify", "user response missing id")
	}
	return Identity{UserID: user.ID, Login: user.Login}, nil
}

// ///////////////////////////////////////////////
// Token Storage
// ///////////////////////////////////////////////

// loadToken returns the active token: the environment override if set,
// otherwise the persisted file. Empty string means no token.
func (g *GitHub) loadToken() (string, error) {
	if env := strings.TrimSpace(os.Getenv(TokenEnvVar)); env != "" {
		return env, nil
	}
	data, err := os.ReadFile(g.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
