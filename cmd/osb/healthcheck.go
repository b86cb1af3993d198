package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/mukan-bot/OpenStackBuilder/pkg/health"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/metrics"
	"github.com/mukan-bot/OpenStackBuilder/pkg/state"
	"github.com/mukan-bot/OpenStackBuilder/pkg/storage"
	"github.com/mukan-bot/OpenStackBuilder/pkg/summary"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/spf13/cobra"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Verify the deployment on this host",
	Long: `Probe identity, compute, image, network, storage, resources and logs.

Exits with code 6 when any mandatory category fails or the local state is
inconsistent.`,
	RunE: runHealthcheck,
}

func init() {
	addRoleFlags(healthcheckCmd)
	healthcheckCmd.Flags().Bool("json", false, "Print the report as JSON")
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	role, _ := cmd.Flags().GetString("role")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, closer, err := setup(roleLogName("healthcheck", role))
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	topo, err := roleTopology(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	detector := &state.Detector{
		StateDir:  cfg.Paths.StateDir,
		Processes: newInstaller(cfg, "", nil),
	}
	if store, err := storage.NewReadOnlyBoltStore(cfg.Paths.StateDir); err == nil {
		defer store.Close()
		detector.History = store
	} else {
		log.Logger.Debug().Err(err).Msg("Run history unavailable")
	}

	verifier := health.NewVerifier(health.Options{
		Runner:     executor.NewLocalRunner(),
		Timeout:    cfg.Timeouts.Probe,
		LogDir:     cfg.DevStack.LogDir,
		Thresholds: cfg.Thresholds.For(topo.Role),
		State:      detector,
	})
	report := verifier.Check(ctx, topo)

	for _, e := range report.Entries {
		metrics.SetHealth(topo.Role, e)
	}
	exportMetrics(cfg, "healthcheck")

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		fmt.Print(summary.RenderHealth(report, logFile))
	}

	if report.Overall() == types.HealthError {
		return types.ErrUnhealthy
	}
	return nil
}
