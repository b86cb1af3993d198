package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mukan-bot/OpenStackBuilder/pkg/config"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags
var (
	configPath string
	logLevel   string
	jsonLogs   bool
)

// logFile is the log of the running command, printed with fatal errors
var logFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(types.ExitCode(err))
	}
}

// printError reports a fatal error. Installer failures carry output lines,
// so the text is masked like any log line.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", log.Redact(err.Error()))
	if logFile != "" {
		fmt.Fprintf(w, "See %s for details\n", logFile)
	}
}

var rootCmd = &cobra.Command{
	Use:   "osb",
	Short: "osb - OpenStack node bootstrap",
	Long: `osb bootstraps a two-role DevStack deployment onto bare Linux hosts.

A controller host carries the control plane; compute hosts run workloads and
point every service locator at the controller. osb probes the host, writes a
role-specific local.conf, runs stack.sh and can verify or tear down the result.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"osb version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Settings file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log as JSON")

	// Add subcommands
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}
