package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/config"
	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/mukan-bot/OpenStackBuilder/pkg/installer"
	"github.com/mukan-bot/OpenStackBuilder/pkg/localconf"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/metrics"
	"github.com/mukan-bot/OpenStackBuilder/pkg/probe"
	"github.com/mukan-bot/OpenStackBuilder/pkg/topology"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// PasswordEnv is read when --password is not given
const PasswordEnv = "OSB_PASSWORD"

// setup loads settings and opens the command's log file
func setup(logName string) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	path := ""
	if logName != "" {
		path = filepath.Join(cfg.Paths.LogDir, logName+".log")
	}
	closer, err := log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: jsonLogs,
		FilePath:   path,
	})
	if err != nil {
		// the log directory is unwritable without root; keep console logging
		closer, _ = log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: jsonLogs})
		log.Logger.Warn().Err(err).Msg("Logging to console only")
		path = ""
	}
	logFile = path
	return cfg, closer, nil
}

// roleTopology probes the host and resolves the topology for the role flags
func roleTopology(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (types.ClusterTopology, error) {
	role, _ := cmd.Flags().GetString("role")
	peer, _ := cmd.Flags().GetString("peer")
	publicIface, _ := cmd.Flags().GetString("public-interface")

	// reject bad input before probing
	parsed, err := types.ParseRole(role)
	if err != nil {
		return types.ClusterTopology{}, err
	}
	if parsed == types.RoleCompute && peer == "" {
		return types.ClusterTopology{}, types.Errorf(types.KindConfiguration, "resolve topology",
			"--peer is required for the compute role")
	}

	facts, err := probe.NewProber().Probe(ctx)
	if err != nil {
		return types.ClusterTopology{}, err
	}
	log.Logger.Info().
		Str("interface", facts.Interface).
		Str("ip", facts.IP.String()).
		Str("arch", string(facts.Arch)).
		Str("virt", string(facts.Virt)).
		Msg("Host probed")

	resolver := topology.NewResolver(topology.NewICMPPinger(cfg.Timeouts.Ping))
	return resolver.Resolve(ctx, topology.Request{
		Role:            role,
		Peer:            peer,
		PublicInterface: publicIface,
	}, facts)
}

// password resolves the shared service password: flag, environment, then an
// interactive prompt
func password(cmd *cobra.Command) (string, error) {
	pw, _ := cmd.Flags().GetString("password")
	if pw == "" {
		pw = os.Getenv(PasswordEnv)
	}
	if pw == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Service password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", types.NewError(types.KindConfiguration, "read password", err)
		}
		pw = string(b)
	}
	if pw == "" {
		return "", types.Errorf(types.KindConfiguration, "read password",
			"no password given (use --password, %s or a terminal)", PasswordEnv)
	}
	log.RegisterSecret(pw)
	return pw, nil
}

func synthesizer(cfg *config.Config, pw string) *localconf.Synthesizer {
	return localconf.NewSynthesizer(localconf.Params{
		Password:      pw,
		PoolSize:      cfg.Network.PoolSize,
		FixedRange:    cfg.Network.FixedRange,
		FloatingRange: cfg.Network.FloatingRange,
		Dest:          cfg.DevStack.Home,
		LogDir:        cfg.DevStack.LogDir,
	})
}

func newInstaller(cfg *config.Config, branch string, progress io.Writer) *installer.DevStack {
	if branch == "" {
		branch = cfg.DevStack.Branch
	}
	return installer.New(executor.NewLocalRunner(), installer.Options{
		User:        cfg.DevStack.User,
		Home:        cfg.DevStack.Home,
		Repo:        cfg.DevStack.Repo,
		Branch:      branch,
		StopTimeout: cfg.Timeouts.Stop,
		Progress:    progress,
	})
}

// exportMetrics stamps the command and writes the textfile when configured
func exportMetrics(cfg *config.Config, command string) {
	metrics.LastRunTimestamp.WithLabelValues(command).Set(float64(time.Now().Unix()))
	if err := metrics.WriteTextfile(cfg.Metrics.TextfileDir, command); err != nil {
		log.Logger.Warn().Err(err).Msg("Could not write metrics textfile")
	}
}

func addRoleFlags(cmd *cobra.Command) {
	cmd.Flags().String("role", "", "Host role: controller or compute (required)")
	cmd.Flags().String("peer", "", "Controller IPv4 address (required for compute)")
	_ = cmd.MarkFlagRequired("role")
}
