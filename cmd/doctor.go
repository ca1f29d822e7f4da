package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet-cli/internal/i18n"
	"github.com/apkfleet/apkfleet-cli/pkg/apk"
	"github.com/apkfleet/apkfleet-cli/pkg/bridge"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local toolchain and device connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		healthy := true

		runner := bridge.NewExecRunner(cfg.Bridge.Path)
		if runner.Available() {
			fmt.Printf("✅ adb found (%s)\n", cfg.Bridge.Path)

			b := bridge.NewWithRunner(runner)
			devices, err := b.Devices(ctx)
			switch {
			case err != nil:
				fmt.Printf("❌ adb is not responding: %v\n", err)
				healthy = false
			case len(devices) == 0:
				fmt.Println("⚠️  no devices connected")
			default:
				online := 0
				for _, d := range devices {
					if d.State == "device" {
						online++
					}
				}
				fmt.Printf("✅ %d device(s) connected, %d online\n", len(devices), online)
			}
		} else {
			fmt.Printf("❌ %s\n", i18n.T("doctor.bridge_missing"))
			healthy = false
		}

		if err := apk.NewBadgingParser(cfg.Tools.AAPTPath).Check(); err == nil {
			fmt.Println("✅ aapt found")
		} else {
			fmt.Printf("⚠️  %s\n", i18n.T("doctor.aapt_missing"))
		}

		if !healthy {
			return fmt.Errorf("environment is not ready")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
