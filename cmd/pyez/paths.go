package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/auth"
	"github.com/pyeasyenv/pyez/internal/config"
	"github.com/pyeasyenv/pyez/internal/observability"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/paths"
	"github.com/pyeasyenv/pyez/internal/tools"
)

// PathsInfo holds all resolved paths for JSON output.
type PathsInfo struct {
	ConfigRoot    string `json:"config_root"`
	StateRoot     string `json:"state_root"`
	ConfigFile    string `json:"config_file"`
	Collaborators string `json:"collaborators_dir"`
	Credentials   string `json:"credentials"`
	LogFile       string `json:"log_file"`
	HistoryDir    string `json:"history_dir"`
	UpdateState   string `json:"update_state"`
	ProjectsRoot  string `json:"projects_root"`
	Python        string `json:"python"`
	IndexURL      string `json:"index_url"`
	TokenSource   string `json:"token_source"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show where pyez stores files",
		Long: `Display all file and directory paths used by pyez.

Useful for debugging, scripting, and understanding where configuration,
state, history, and credential files are stored on this system.`,
		Example: `  pyez paths
  pyez paths --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			info := resolvePathsInfo()

			if out.JSON {
				return out.PrintJSON(info)
			}

			out.Print("Config root:    %s\n", info.ConfigRoot)
			out.Print("State root:     %s\n", info.StateRoot)
			out.Print("\n")
			out.Print("Config file:    %s\n", info.ConfigFile)
			out.Print("Collaborators:  %s\n", info.Collaborators)
			out.Print("Credentials:    %s\n", info.Credentials)
			out.Print("Log file:       %s\n", info.LogFile)
			out.Print("History dir:    %s\n", info.HistoryDir)
			out.Print("Update state:   %s\n", info.UpdateState)
			out.Print("\n")
			out.Print("Projects root:  %s\n", info.ProjectsRoot)
			out.Print("Python:         %s\n", info.Python)
			out.Print("Index URL:      %s\n", info.IndexURL)
			out.Print("Token source:   %s\n", info.TokenSource)

			return nil
		},
	}
}

func resolvePathsInfo() PathsInfo {
	cfg := config.Load()

	info := PathsInfo{
		ConfigRoot:    resolveOrError(paths.ConfigRoot),
		StateRoot:     resolveOrError(paths.StateRoot),
		ConfigFile:    resolveOrError(paths.ConfigFile),
		Collaborators: resolveOrError(paths.CollaboratorsDir),
		Credentials:   resolveOrError(paths.CredentialsFile),
		LogFile:       resolveOrError(paths.DefaultLogFile),
		HistoryDir:    resolveOrError(paths.HistoryDir),
		UpdateState:   resolveOrError(paths.UpdateStateFile),
		ProjectsRoot:  cfg.ProjectsRoot(),
	}

	if dir := cfg.HistoryDir(); dir != "" {
		info.HistoryDir = dir
	}

	if cfg.Layout() == config.LayoutSingle {
		info.ProjectsRoot = "(single layout)"
	}

	info.Python = resolveOrError(func() (string, error) {
		return tools.ResolveInterpreter(cfg.PythonExec())
	})

	info.IndexURL = "(default index)"
	if u := cfg.IndexURL(); u != "" {
		info.IndexURL, _ = observability.RedactURL(u)
	}

	source, _ := auth.GetToken()
	if source == auth.SourceNone {
		info.TokenSource = "none"
	} else {
		info.TokenSource = string(source)
	}

	return info
}

func resolveOrError(fn func() (string, error)) string {
	val, err := fn()
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}

	return val
}
