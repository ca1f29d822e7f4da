package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet-cli/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented configuration template",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "apkfleet.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		if err := config.SaveTemplate(path); err != nil {
			return fmt.Errorf("failed to write config template: %w", err)
		}

		fmt.Printf("✅ wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")

	rootCmd.AddCommand(initCmd)
}
