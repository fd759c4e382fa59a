package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/update"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `View and modify pyez configuration settings.

Values come from PYEZ_* environment variables first (dots become
underscores, e.g. PYEZ_FILES_MANIFEST), then the config file, then defaults.`,
		Example: `  pyez config list
  pyez config set layout single`,
		Args: noArgs,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display every configuration setting and its effective value.`,
		Example: `  pyez config list
  pyez config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			settings := make(map[string]any, len(config.Keys))
			for _, key := range config.Keys {
				settings[key] = cfg.Get(key)
			}

			if out.JSON {
				return out.PrintJSON(settings)
			}

			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}

			sort.Strings(keys)

			for _, key := range keys {
				out.Print("%s = %v\n", key, settings[key])
			}

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  pyez config get projects.root`,
		Args:    exactArgs(1, "a configuration key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]

			if err := checkKey(key); err != nil {
				return err
			}

			value := config.Load().Get(key)

			if out.JSON {
				return out.PrintJSON(map[string]any{key: value})
			}

			if value == nil || value == "" {
				out.Muted("%s is not set", key)
				return nil
			}

			out.Print("%s = %v\n", key, value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  `Set a configuration key to the given value. The value is persisted to the config file.`,
		Example: `  pyez config set layout multi
  pyez config set python.exec ~/.venvs/app/bin/python`,
		Args: exactArgs(2, "a key and a value"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, raw := args[0], args[1]

			if err := checkKey(key); err != nil {
				return err
			}

			value, err := parseValue(key, raw)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitUsage, fmt.Sprintf("Invalid value for %s: %q", key, raw), err)
			}

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, raw)

			return nil
		},
	}
}

func checkKey(key string) error {
	if config.IsKnownKey(key) {
		return nil
	}

	return clierrors.New(clierrors.ExitUsage, fmt.Sprintf("Unknown configuration key: %s", key)).
		WithHint("Known keys: " + strings.Join(config.Keys, ", "))
}

// parseValue validates raw for keys with a fixed type.
func parseValue(key, raw string) (any, error) {
	switch key {
	case "layout":
		if raw != config.LayoutSingle && raw != config.LayoutMulti {
			return nil, fmt.Errorf("layout must be %s or %s", config.LayoutSingle, config.LayoutMulti)
		}
	case "history.enabled", "update.check":
		return strconv.ParseBool(raw)
	case "update.channel":
		c, err := update.ParseChannel(raw)
		if err != nil {
			return nil, err
		}

		return string(c), nil
	case "ui.poll_interval", "history.retention", "update.interval":
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, err
		}

		if d <= 0 {
			return nil, fmt.Errorf("duration must be positive")
		}
	case "files.manifest", "files.lockfile":
		if raw == "" || strings.ContainsAny(raw, `/\`) {
			return nil, fmt.Errorf("must be a plain file name")
		}
	}

	return raw, nil
}
