package main

import (
	"fmt"

	"github.com/mukan-bot/OpenStackBuilder/pkg/state"
	"github.com/mukan-bot/OpenStackBuilder/pkg/storage"
	"github.com/mukan-bot/OpenStackBuilder/pkg/summary"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/spf13/cobra"
)

// statusRuns is how many recent runs status lists
const statusRuns = 5

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the install state and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := setup("")
		if err != nil {
			return err
		}
		defer closer.Close()

		detector := &state.Detector{
			StateDir:  cfg.Paths.StateDir,
			Processes: newInstaller(cfg, "", nil),
		}

		var runs []*types.RunRecord
		if store, err := storage.NewReadOnlyBoltStore(cfg.Paths.StateDir); err == nil {
			defer store.Close()
			detector.History = store
			all, err := store.ListRuns()
			if err != nil {
				return err
			}
			if len(all) > statusRuns {
				all = all[len(all)-statusRuns:]
			}
			runs = all
		}

		fmt.Print(summary.RenderStatus(detector.Detect(), runs))
		return nil
	},
}
