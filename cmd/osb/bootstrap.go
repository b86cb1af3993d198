package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mukan-bot/OpenStackBuilder/pkg/lifecycle"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/storage"
	"github.com/mukan-bot/OpenStackBuilder/pkg/summary"
	"github.com/mukan-bot/OpenStackBuilder/pkg/sysinfo"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Install the role on this host",
	Long: `Install DevStack for the given role on this host.

A host that already carries a deployment, complete or not, is cleaned first.
The previous local.conf is backed up before the new one is written.

Examples:
  # Controller, floating range taken from the second interface
  osb bootstrap --role controller --password secret

  # Compute node pointing at the controller
  OSB_PASSWORD=secret osb bootstrap --role compute --peer 10.0.0.5

  # Show what would be written
  osb bootstrap --role controller --password secret --dry-run`,
	RunE: runBootstrap,
}

func init() {
	addRoleFlags(bootstrapCmd)
	bootstrapCmd.Flags().String("password", "", "Service password (default from "+PasswordEnv+" or prompt)")
	bootstrapCmd.Flags().String("branch", "", "DevStack branch (default from settings)")
	bootstrapCmd.Flags().String("public-interface", "", "Secondary interface backing the floating range")
	bootstrapCmd.Flags().Bool("dry-run", false, "Check prerequisites and print the configuration without changing the host")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	role, _ := cmd.Flags().GetString("role")
	branch, _ := cmd.Flags().GetString("branch")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, closer, err := setup(roleLogName("bootstrap", role))
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()

	pw, err := password(cmd)
	if err != nil {
		return err
	}

	topo, err := roleTopology(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	doc, err := synthesizer(cfg, pw).Synthesize(topo)
	if err != nil {
		return err
	}
	for _, s := range doc.Secrets() {
		log.RegisterSecret(s)
	}

	if branch == "" {
		branch = cfg.DevStack.Branch
	}

	var progress io.Writer
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progress = os.Stderr
	}

	mcfg := lifecycle.Config{
		Installer:  newInstaller(cfg, branch, progress),
		StateDir:   cfg.Paths.StateDir,
		BackupDir:  cfg.Paths.BackupDir,
		LocalConf:  cfg.DevStack.LocalConf(),
		User:       cfg.DevStack.User,
		Thresholds: cfg.Thresholds.For(topo.Role),
	}

	// the exclusive history lock keeps a second bootstrap out
	if !dryRun {
		if !sysinfo.IsPrivileged() {
			return types.Errorf(types.KindPrerequisite, "check privileges", "osb bootstrap must run as root")
		}
		store, err := storage.NewBoltStore(cfg.Paths.StateDir)
		if err != nil {
			return err
		}
		defer store.Close()
		mcfg.History = store
	} else if store, err := storage.NewReadOnlyBoltStore(cfg.Paths.StateDir); err == nil {
		defer store.Close()
		mcfg.History = store
	}

	machine := lifecycle.NewMachine(mcfg)
	st, runErr := machine.Run(ctx, doc, lifecycle.Options{
		Topology: topo,
		Branch:   branch,
		DryRun:   dryRun,
		Out:      os.Stdout,
	})
	if dryRun {
		return runErr
	}

	exportMetrics(cfg, "bootstrap")

	peer := ""
	if topo.PeerIP != nil {
		peer = topo.PeerIP.String()
	}
	fmt.Print(summary.RenderBootstrap(summary.Bootstrap{
		Role:    topo.Role,
		State:   st,
		HostIP:  topo.Self.IP.String(),
		PeerIP:  peer,
		RunID:   machine.Last().RunID,
		Backup:  machine.Last().Backup,
		LogFile: logFile,
		Err:     runErr,
	}))
	return runErr
}

// roleLogName names per-role log files; an invalid role still gets a log
func roleLogName(command, role string) string {
	if r, err := types.ParseRole(role); err == nil {
		return command + "-" + string(r)
	}
	return command + "-" + strings.ToLower(strings.TrimSpace(role))
}
