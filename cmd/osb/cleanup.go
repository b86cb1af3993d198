package main

import (
	"fmt"
	"os"

	"github.com/mukan-bot/OpenStackBuilder/pkg/cleanup"
	"github.com/mukan-bot/OpenStackBuilder/pkg/confirm"
	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/mukan-bot/OpenStackBuilder/pkg/network"
	"github.com/mukan-bot/OpenStackBuilder/pkg/summary"
	"github.com/mukan-bot/OpenStackBuilder/pkg/sysinfo"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove the deployment from this host",
	Long: `Stop services, run clean.sh and remove osb state. Removing the managed
user, bridges, packages, logs and caches asks for confirmation on a terminal
and is skipped otherwise, unless --force is given.

Backups of local.conf are kept.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().Bool("force", false, "Remove everything without asking")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	cfg, closer, err := setup("cleanup")
	if err != nil {
		return err
	}
	defer closer.Close()

	if !sysinfo.IsPrivileged() {
		return types.Errorf(types.KindPrerequisite, "check privileges", "osb cleanup must run as root")
	}

	runner := executor.NewLocalRunner()
	engine := cleanup.NewEngine(cleanup.Config{
		Installer:      newInstaller(cfg, "", nil),
		Runner:         runner,
		Confirmer:      confirm.ForTerminal(force),
		Bridges:        network.NewBridgeManager(runner, cfg.Network.Bridges),
		NAT:            network.NewNATCleaner(runner),
		StateDir:       cfg.Paths.StateDir,
		User:           cfg.DevStack.User,
		Packages:       cfg.Cleanup.Packages,
		LogDirs:        cfg.Cleanup.LogDirs,
		Caches:         cfg.Cleanup.Caches,
		FloatingRanges: []string{cfg.Network.FloatingRange},
	})

	report := engine.Clean(cmd.Context(), cleanup.Options{Force: force})
	exportMetrics(cfg, "cleanup")
	fmt.Fprint(os.Stdout, summary.RenderCleanup(report, logFile))

	if errs := report.Errors(); len(errs) > 0 {
		return fmt.Errorf("%d cleanup steps failed: %w", len(errs), report.Err())
	}
	return nil
}
