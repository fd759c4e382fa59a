// Package auth stores the private package index token.
//
// Tokens are sourced in the following priority order:
//  1. Environment variable: PYEZ_INDEX_TOKEN
//  2. OS Keyring (macOS Keychain, Windows Credential Manager, Linux Secret Service)
//  3. File fallback: <config root>/index-token (for non-interactive environments)
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/pyeasyenv/pyez/internal/paths"
)

const (
	// keyringService is the service name used in OS keyring storage.
	keyringService = "pyez"
	// keyringUser is the account name used in OS keyring storage.
	keyringUser = "index-token"
	// EnvVarName is the environment variable holding the index token.
	EnvVarName = "PYEZ_INDEX_TOKEN"
	// tokenUser is the username pip indexes expect for token auth.
	tokenUser = "__token__"
)

// ErrNoToken is returned by Delete when nothing was stored.
var ErrNoToken = errors.New("no stored index token found")

// CredentialSource indicates where the token was found.
type CredentialSource string

// Credential source constants identify where the token was loaded from.
const (
	SourceEnv     CredentialSource = "environment variable"
	SourceKeyring CredentialSource = "keyring"
	SourceFile    CredentialSource = "config file"
	SourceNone    CredentialSource = ""
)

// GetToken returns the index token and its source.
// Returns empty strings if no token is found.
func GetToken() (source CredentialSource, token string) {
	if tok := strings.TrimSpace(os.Getenv(EnvVarName)); tok != "" {
		return SourceEnv, tok
	}

	if tok, err := keyring.Get(keyringService, keyringUser); err == nil && tok != "" {
		return SourceKeyring, tok
	}

	if tok := readTokenFile(); tok != "" {
		return SourceFile, tok
	}

	return SourceNone, ""
}

// StoreToken stores the token in the OS keyring, falling back to the file.
func StoreToken(token string) (CredentialSource, error) {
	if err := keyring.Set(keyringService, keyringUser, token); err == nil {
		return SourceKeyring, nil
	}

	if err := writeTokenFile(token); err != nil {
		return SourceNone, err
	}

	return SourceFile, nil
}

// DeleteToken removes the token from the keyring and the file fallback.
func DeleteToken() error {
	keyringErr := keyring.Delete(keyringService, keyringUser)
	fileErr := deleteTokenFile()

	if keyringErr != nil && fileErr != nil {
		return ErrNoToken
	}

	return nil
}

// IndexURLWithToken returns indexURL with token set as its userinfo.
func IndexURLWithToken(indexURL, token string) (string, error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return "", fmt.Errorf("parse index url: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("index url must be absolute: %q", indexURL)
	}

	if token != "" {
		u.User = url.UserPassword(tokenUser, token)
	}

	return u.String(), nil
}

// IndexEnv returns the environment collaborators need to reach the private
// index, or nil when no index is configured.
func IndexEnv(indexURL string) ([]string, error) {
	if indexURL == "" {
		return nil, nil
	}

	_, token := GetToken()

	full, err := IndexURLWithToken(indexURL, token)
	if err != nil {
		return nil, err
	}

	return []string{"PIP_INDEX_URL=" + full}, nil
}

func tokenFilePath() string {
	path, err := paths.CredentialsFile()
	if err != nil {
		return ""
	}

	return filepath.Clean(path)
}

func readTokenFile() string {
	path := tokenFilePath()
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from controlled config directory
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func writeTokenFile(token string) error {
	path := tokenFilePath()
	if path == "" {
		return fmt.Errorf("could not determine config directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

func deleteTokenFile() error {
	path := tokenFilePath()
	if path == "" {
		return fmt.Errorf("could not determine config directory")
	}

	err := os.Remove(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("token file not found")
	}

	if err != nil {
		return fmt.Errorf("remove token file: %w", err)
	}

	return nil
}
