package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the configuration bootstrap would write",
	Long: `Probe the host and print the role's local.conf with secrets masked.
Nothing on the host is changed and root is not required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := setup("")
		if err != nil {
			return err
		}
		defer closer.Close()

		pw, err := password(cmd)
		if err != nil {
			return err
		}
		topo, err := roleTopology(cmd.Context(), cmd, cfg)
		if err != nil {
			return err
		}
		doc, err := synthesizer(cfg, pw).Synthesize(topo)
		if err != nil {
			return err
		}

		fmt.Print(doc.Redacted())
		return nil
	},
}

func init() {
	addRoleFlags(renderCmd)
	renderCmd.Flags().String("password", "", "Service password (default from "+PasswordEnv+" or prompt)")
	renderCmd.Flags().String("public-interface", "", "Secondary interface backing the floating range")
}
