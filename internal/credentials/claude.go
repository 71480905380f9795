package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

type claudeCredentials struct {
	ClaudeAiOauth *oauthCredentials `json:"claudeAiOauth"`
}

type oauthCredentials struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// AnthropicOAuthCredentials is the token this package saves for/loads from
// its own cache, distinct from a locally installed Claude Code CLI's store.
type AnthropicOAuthCredentials struct {
	AccessToken string `json:"accessToken"`
}

// ownCredentialsPath returns where this tool caches its own OAuth token,
// used when no Claude Code CLI installation is present to borrow from.
func ownCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tunacode", "anthropic-oauth.json"), nil
}

// GetAnthropicOAuthCredentials returns a saved OAuth token, preferring a
// locally installed Claude Code CLI's credentials and falling back to this
// tool's own cache.
func GetAnthropicOAuthCredentials() (*AnthropicOAuthCredentials, error) {
	if token, err := GetClaudeToken(); err == nil {
		return &AnthropicOAuthCredentials{AccessToken: token}, nil
	}

	path, err := ownCredentialsPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no saved Anthropic OAuth token: %w", err)
	}
	var creds AnthropicOAuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse saved Anthropic OAuth token: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("saved Anthropic OAuth token is empty")
	}
	return &creds, nil
}

// SaveAnthropicOAuthCredentials writes a freshly validated token to this
// tool's own cache, mode 0600 since it is a bearer credential.
func SaveAnthropicOAuthCredentials(creds *AnthropicOAuthCredentials) error {
	path, err := ownCredentialsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode Anthropic OAuth credentials: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// GetClaudeToken retrieves the Anthropic API token from a locally installed
// Claude Code CLI's credentials.
// On macOS, it reads from the system keychain.
// On other platforms, it reads from ~/.claude/.credentials.json
func GetClaudeToken() (string, error) {
	var jsonData []byte
	var err error

	if runtime.GOOS == "darwin" {
		jsonData, err = getFromMacKeychain()
	} else {
		jsonData, err = getFromCredentialsFile()
	}

	if err != nil {
		return "", err
	}

	var creds claudeCredentials
	if err := json.Unmarshal(jsonData, &creds); err != nil {
		return "", fmt.Errorf("failed to parse claude credentials: %w", err)
	}

	if creds.ClaudeAiOauth == nil || creds.ClaudeAiOauth.AccessToken == "" {
		return "", fmt.Errorf("no access token found in claude credentials")
	}

	return creds.ClaudeAiOauth.AccessToken, nil
}

func getFromMacKeychain() ([]byte, error) {
	user := os.Getenv("USER")
	if user == "" {
		return nil, fmt.Errorf("USER environment variable not set")
	}

	cmd := exec.Command("security", "find-generic-password",
		"-s", "Claude Code-credentials",
		"-a", user,
		"-w")

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to read from keychain: %w (is Claude Code installed and logged in?)", err)
	}

	return output, nil
}

func getFromCredentialsFile() ([]byte, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	credPath := filepath.Join(home, ".claude", ".credentials.json")
	data, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w (is Claude Code installed and logged in?)", credPath, err)
	}

	return data, nil
}
