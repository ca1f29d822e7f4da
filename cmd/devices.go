package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
)

var devicesFormat string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices with their capabilities",
	Long: `List connected Android devices together with the capability snapshot
used for split matching: supported ABIs, screen density, SDK level and
locale.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := newBridge()
		devices, err := b.EnrichedDevices(cmd.Context(), cfg.Workers.Enrich)
		if err != nil {
			return err
		}

		switch devicesFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(devices)
		default:
			showDevicesTable(devices)
			return nil
		}
	},
}

func showDevicesTable(devices []deploy.DeviceProps) {
	if len(devices) == 0 {
		fmt.Println("❌ No devices found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tSTATE\tMODEL\tSDK\tDENSITY\tABIS\tLOCALE")
	for _, d := range devices {
		icon := "🟢"
		if !d.Online() {
			icon = "🔴"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			icon, d.Serial, d.State, d.Model, d.SDK, d.Density,
			strings.Join(d.ABIs, ","), d.Locale)
	}
	w.Flush()
}

func init() {
	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "table", "output format: table, json")

	rootCmd.AddCommand(devicesCmd)
}
