package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/auth"
	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/prompt"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the private package index token",
		Long: `Store the token pip uses to reach a private package index. The index URL
itself is the index.url setting; the token is kept in the system keyring and
passed to pip-compile and pip-sync through PIP_INDEX_URL.`,
		Example: `  pyez config set index.url https://pypi.example.com/simple
  pyez index login
  pyez index status`,
		Args: noArgs,
	}

	cmd.AddCommand(newIndexLoginCmd())
	cmd.AddCommand(newIndexStatusCmd())
	cmd.AddCommand(newIndexLogoutCmd())

	return cmd
}

func newIndexLoginCmd() *cobra.Command {
	var tokenFlag string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the index token",
		Long: `Store the private index token in the system keyring (macOS Keychain,
Windows Credential Manager or Linux Secret Service), falling back to a file
readable only by you.

The PYEZ_INDEX_TOKEN environment variable takes precedence when set.`,
		Example: `  pyez index login
  pyez index login --token "$TOKEN"`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			prompter := prompt.New(out)

			if os.Getenv(auth.EnvVarName) != "" {
				out.Info("%s environment variable is set", auth.EnvVarName)
				out.Muted("Environment variable takes precedence over stored tokens")
				out.Println()
			}

			token := tokenFlag
			if token == "" {
				if !prompter.CanPrompt() {
					return clierrors.CannotPrompt(auth.EnvVarName)
				}

				var err error

				token, err = prompter.Password("Enter your package index token")
				if err != nil {
					return fmt.Errorf("read index token prompt: %w", err)
				}
			}

			if token == "" {
				return clierrors.TokenEmpty()
			}

			source, err := auth.StoreToken(token)
			if err != nil {
				return clierrors.ConfigFailed("store index token", err)
			}

			out.Success("Index token stored in %s", source)

			if config.Load().IndexURL() == "" {
				out.Muted("  Set the index with 'pyez config set index.url <url>'")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "Token for non-interactive login (prefer PYEZ_INDEX_TOKEN to avoid shell history exposure)")

	return cmd
}

// IndexStatus is the JSON form of the index configuration.
type IndexStatus struct {
	URL    string `json:"url"`
	Source string `json:"tokenSource"`
}

func newIndexStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the index and token source",
		Long:    `Show the configured package index and where its token comes from. The token itself is never printed.`,
		Example: `  pyez index status`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			indexURL := config.Load().IndexURL()
			source, _ := auth.GetToken()

			status := IndexStatus{URL: indexURL, Source: string(source)}

			if out.JSON {
				return out.PrintJSON(status)
			}

			url := indexURL
			if url == "" {
				url = "(default index)"
			}

			tokenSource := string(source)
			if tokenSource == "" {
				tokenSource = "none"
			}

			out.Print("Index: %s\n", url)
			out.Print("Token: %s\n", tokenSource)

			return nil
		},
	}
}

func newIndexLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "Remove the stored index token",
		Long:    `Remove the index token from the keyring and the file fallback.`,
		Example: `  pyez index logout`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if err := auth.DeleteToken(); err != nil {
				if errors.Is(err, auth.ErrNoToken) {
					out.Muted("No stored index token found")
					return nil
				}

				return clierrors.ConfigFailed("remove index token", err)
			}

			out.Success("Index token removed")

			if os.Getenv(auth.EnvVarName) != "" {
				out.Println()
				out.Warning("%s environment variable is still set", auth.EnvVarName)
			}

			return nil
		},
	}
}
