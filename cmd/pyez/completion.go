package main

import (
	"fmt"

	"github.com/spf13/cobra"

	clierrors "github.com/pyeasyenv/pyez/internal/errors"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Long: `Generate the autocompletion script for the given shell.

Bash:
  source <(pyez completion bash)

Zsh:
  pyez completion zsh > "${fpath[1]}/_pyez"

Fish:
  pyez completion fish > ~/.config/fish/completions/pyez.fish

PowerShell:
  pyez completion powershell | Out-String | Invoke-Expression`,
		Example: `  pyez completion bash
  pyez completion zsh`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  exactArgs(1, "a shell name"),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			w := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(w)
			default:
				return clierrors.New(clierrors.ExitUsage, fmt.Sprintf("Unsupported shell: %s", args[0])).
					WithHint("Use one of: bash, zsh, fish, powershell")
			}
		},
	}
}
