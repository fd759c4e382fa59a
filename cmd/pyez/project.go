package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/project"
)

// ProjectInfo is the JSON form of a project.
type ProjectInfo struct {
	Name      string    `json:"name"`
	Selected  bool      `json:"selected"`
	Dir       string    `json:"dir"`
	Source    string    `json:"source"`
	Manifest  string    `json:"manifest"`
	Lockfile  string    `json:"lockfile"`
	HasLock   bool      `json:"hasLockfile"`
	HasInput  bool      `json:"hasManifest"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

func projectInfo(p *project.Project, selected bool) ProjectInfo {
	return ProjectInfo{
		Name:      p.Name,
		Selected:  selected,
		Dir:       p.Dir,
		Source:    p.Source,
		Manifest:  p.ManifestPath,
		Lockfile:  p.LockfilePath,
		HasLock:   p.HasLockfile(),
		HasInput:  p.HasManifest(),
		CreatedAt: p.Settings.CreatedAt,
	}
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long: `Create, list and select the projects of the multi layout. Each project
is a directory under the projects root holding its own manifest and lockfile.`,
		Example: `  pyez project list
  pyez project create api --source ./services/api
  pyez project select api`,
		Args: noArgs,
	}

	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectSelectCmd())
	cmd.AddCommand(newProjectShowCmd())

	return cmd
}

// multiSession loads the session and rejects the single layout.
func multiSession(cmd *cobra.Command) (*project.Session, error) {
	cfg := config.Load()

	session, err := loadSession(cfg, globalFlagsFrom(cmd.Context()).project)
	if err != nil {
		return nil, err
	}

	if session.IsSingle() {
		return nil, clierrors.New(clierrors.ExitUsage, "Projects are only available in the multi layout").
			WithHint("Run 'pyez config set layout multi' to manage several projects")
	}

	return session, nil
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List projects",
		Long:    `List the projects under the projects root. The selected project is marked.`,
		Example: `  pyez project list`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			session, err := multiSession(cmd)
			if err != nil {
				return err
			}

			store := session.Store()

			names, err := store.List()
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Cannot list projects", err)
			}

			var current string
			if p, curErr := session.Current(); curErr == nil {
				current = p.Name
			}

			infos := make([]ProjectInfo, 0, len(names))

			for _, name := range names {
				p, getErr := store.Get(name)
				if getErr != nil {
					continue
				}

				infos = append(infos, projectInfo(p, name == current))
			}

			if out.JSON {
				return out.PrintJSON(infos)
			}

			if len(infos) == 0 {
				out.Muted("No projects yet")
				out.Muted("  Run 'pyez project create <name>' to create one")

				return nil
			}

			rows := make([][]string, 0, len(infos))

			for _, info := range infos {
				mark := ""
				if info.Selected {
					mark = "*"
				}

				rows = append(rows, []string{mark, info.Name, yesNo(info.HasInput), yesNo(info.HasLock)})
			}

			out.Table([]string{"", "NAME", "MANIFEST", "LOCKFILE"}, rows)

			return nil
		},
	}
}

func newProjectCreateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project and select it",
		Long: `Create a new project directory under the projects root and make it the
selected project. --source sets the directory 'pyez scan' reads imports from.`,
		Example: `  pyez project create api
  pyez project create worker --source ./services/worker`,
		Args: exactArgs(1, "a project name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			session, err := multiSession(cmd)
			if err != nil {
				return err
			}

			p, err := session.Store().Create(name, source)
			if err != nil {
				return projectError(err, name)
			}

			if _, err := session.Select(name); err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Cannot select the new project", err)
			}

			if out.JSON {
				return out.PrintJSON(projectInfo(p, true))
			}

			out.Success("Created project %s", name)
			out.Muted("  %s", p.Dir)

			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Directory to scan for imports (default: current directory)")

	return cmd
}

func newProjectSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "select <name>",
		Short:   "Select the active project",
		Long:    `Make the named project the active one. The selection is remembered.`,
		Example: `  pyez project select api`,
		Args:    exactArgs(1, "a project name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			session, err := multiSession(cmd)
			if err != nil {
				return err
			}

			p, err := session.Select(name)
			if err != nil {
				return projectError(err, name)
			}

			if out.JSON {
				return out.PrintJSON(projectInfo(p, true))
			}

			out.Success("Switched to project '%s'", p.Name)

			return nil
		},
	}
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project",
		Long: `Show the active project's files and whether they exist. In the single
layout this is the current directory.`,
		Example: `  pyez project show
  pyez project show --project api --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			session, err := loadSession(config.Load(), globalFlagsFrom(cmd.Context()).project)
			if err != nil {
				return err
			}

			p, err := session.Current()
			if err != nil {
				return projectError(err, "")
			}

			info := projectInfo(p, true)

			if out.JSON {
				return out.PrintJSON(info)
			}

			out.Print("Project:   %s\n", info.Name)
			out.Print("Directory: %s\n", info.Dir)
			out.Print("Source:    %s\n", info.Source)
			out.Print("Manifest:  %s (%s)\n", info.Manifest, presence(info.HasInput))
			out.Print("Lockfile:  %s (%s)\n", info.Lockfile, presence(info.HasLock))

			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func presence(b bool) string {
	if b {
		return "present"
	}

	return "missing"
}
