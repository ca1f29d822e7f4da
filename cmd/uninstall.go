package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	uninstallDevice string
	uninstallAll    bool
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <package>...",
	Short: "Remove packages from connected devices",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		b := newBridge()
		devices, err := resolveDevices(ctx, b, uninstallDevice, uninstallAll)
		if err != nil {
			return err
		}

		failed := 0
		for _, device := range devices {
			if !device.Online() {
				fmt.Printf("⏭️  %s skipped: device %s\n", device.Serial, device.State)
				continue
			}
			for _, pkg := range args {
				if err := b.Uninstall(ctx, device.Serial, pkg); err != nil {
					fmt.Printf("❌ %s on %s: %v\n", pkg, device.Serial, err)
					failed++
					continue
				}
				fmt.Printf("✅ %s removed from %s\n", pkg, device.Serial)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d uninstall(s) failed", failed)
		}
		return nil
	},
}

func init() {
	uninstallCmd.Flags().StringVarP(&uninstallDevice, "device", "s", "", "target device serial")
	uninstallCmd.Flags().BoolVar(&uninstallAll, "all", false, "uninstall from all connected devices")

	rootCmd.AddCommand(uninstallCmd)
}
