package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	selfupdate "github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/buildinfo"
	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/observability"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/update"
)

const releasesURL = "https://github.com/pyeasyenv/pyez/releases"

func newUpdateCmd() *cobra.Command {
	var (
		targetVersion string
		channel       string
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update pyez to the latest version",
		Long: `Update pyez to the latest version from GitHub Releases.

Downloads the new binary, verifies its checksum, and replaces the current
executable. If the binary is not writable, sudo is requested automatically.

Releases come from the update.channel channel (stable or prerelease).
Set update.check to false, or PYEZ_UPDATE_DISABLED=1, to turn checks off.`,
		Example: `  pyez update
  pyez update --version 1.4.0
  pyez update --channel prerelease`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			settings := update.SettingsFrom(config.Load())

			if channel != "" {
				c, err := update.ParseChannel(channel)
				if err != nil {
					return clierrors.New(clierrors.ExitUsage, err.Error()).WithHint("Use --channel stable or --channel prerelease")
				}

				settings.Channel = c
			}

			return runUpdate(cmd, out, settings, targetVersion, force)
		},
	}

	cmd.Flags().StringVar(&targetVersion, "version", "", "Install a specific version (e.g. 1.2.3)")
	cmd.Flags().StringVar(&channel, "channel", "", "Release channel for this run: stable or prerelease")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reinstall even if already up to date")

	return cmd
}

func runUpdate(cmd *cobra.Command, out *output.Writer, settings update.Settings, targetVersion string, force bool) error {
	ctx := cmd.Context()

	if why := settings.Disabled(); why != "" {
		out.Warning("Updates are disabled (%s)", why)
		return nil
	}

	currentVersion := buildinfo.Version

	if currentVersion == "dev" && targetVersion == "" {
		out.Warning("Development build, cannot determine current version")
		out.Info("Install a release build: %s", releasesURL)

		return nil
	}

	updater, err := update.NewUpdater(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize updater: %w", err)
	}

	if targetVersion != "" {
		targetVersion = strings.TrimPrefix(targetVersion, "v")
		return updateToVersion(ctx, out, updater, targetVersion)
	}

	spin := out.Spinner(fmt.Sprintf("Checking the %s channel for updates", settings.Channel))
	spin.Start()

	info, err := updater.CheckLatest(ctx, currentVersion)
	if err != nil {
		spin.StopWithFailure(fmt.Sprintf("Failed to check for updates: %v", err))

		if strings.Contains(err.Error(), "403") {
			out.Info("Set GITHUB_TOKEN to avoid rate limits")
		}

		return fmt.Errorf("update check failed: %w", err)
	}

	if err := update.NewChecker(settings, currentVersion).Record(info); err != nil {
		observability.FromContext(ctx).Debug("save update state", slog.String("error", err.Error()))
	}

	if out.JSON {
		spin.Stop()
		return out.PrintJSON(info)
	}

	if !info.UpdateAvailable && !force {
		spin.StopWithSuccess(fmt.Sprintf("Already up to date (v%s)", currentVersion))
		return nil
	}

	if info.Release == nil {
		spin.StopWithFailure("No release found for this platform")
		return fmt.Errorf("no release found for this platform")
	}

	if info.UpdateAvailable {
		spin.StopWithSuccess(fmt.Sprintf("Update available: v%s → v%s", currentVersion, info.LatestVersion))
	} else {
		spin.StopWithSuccess(fmt.Sprintf("Reinstalling v%s", info.LatestVersion))
	}

	if reexeced, err := elevateIfNeeded(); err != nil || reexeced {
		return err
	}

	spin = out.Spinner(fmt.Sprintf("Downloading v%s", info.LatestVersion))
	spin.Start()

	if err := updater.Apply(ctx, info.Release); err != nil {
		spin.StopWithFailure(fmt.Sprintf("Update failed: %v", err))
		return fmt.Errorf("update failed: %w", err)
	}

	spin.StopWithSuccess(fmt.Sprintf("Updated to v%s", info.LatestVersion))

	if info.ReleaseURL != "" {
		out.Muted("Release notes: %s", info.ReleaseURL)
	}

	return nil
}

func updateToVersion(ctx context.Context, out *output.Writer, updater *update.Updater, version string) error {
	if reexeced, err := elevateIfNeeded(); err != nil || reexeced {
		return err
	}

	spin := out.Spinner(fmt.Sprintf("Installing v%s", version))
	spin.Start()

	release, err := updater.ApplyVersion(ctx, version)
	if err != nil {
		spin.StopWithFailure(fmt.Sprintf("Failed to install v%s: %v", version, err))

		if strings.Contains(err.Error(), "not found") {
			out.Info("Check available versions at %s", releasesURL)
		}

		return fmt.Errorf("install failed: %w", err)
	}

	spin.StopWithSuccess(fmt.Sprintf("Installed v%s", release.Version()))

	return nil
}

// elevateIfNeeded re-runs the command under sudo when the binary's directory
// is not writable. It reports whether the re-exec happened.
func elevateIfNeeded() (bool, error) {
	exe, err := selfupdate.ExecutablePath()
	if err != nil || update.CanReplace(exe) {
		return false, nil
	}

	if err := update.Elevate(exe, os.Args[1:]); err != nil {
		return true, fmt.Errorf("re-exec updater with sudo: %w", err)
	}

	return true, nil
}
