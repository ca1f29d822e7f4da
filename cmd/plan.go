package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/apkfleet/apkfleet-cli/internal/i18n"
	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
	"github.com/apkfleet/apkfleet-cli/pkg/utils"
)

var (
	planDevice string
	planAll    bool
	planFormat string
)

var planCmd = &cobra.Command{
	Use:   "plan <apk-or-dir>...",
	Short: "Show what an install run would do, without installing",
	Long: `Build the per-device installation plan for the given APKs: how files
group into units, which splits each device would receive, and which units
would be skipped and why. Nothing is installed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		options, err := buildOptions()
		if err != nil {
			return err
		}

		paths, err := collectApkPaths(args)
		if err != nil {
			return err
		}
		files, err := extractFiles(ctx, paths)
		if err != nil {
			return err
		}

		b := newBridge()
		devices, err := resolveDevices(ctx, b, planDevice, planAll)
		if err != nil {
			return err
		}

		units, warnings := deploy.BuildUnits(files)
		for _, w := range warnings {
			utils.Warn("group %s dropped: %s", w.PackageName, w.Reason)
		}

		orchestrator := deploy.NewOrchestrator(nil, nil)
		plans := orchestrator.BuildPlans(units, devices, options)

		switch planFormat {
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(plans)
		default:
			showPlansTable(plans)
			return nil
		}
	},
}

func showPlansTable(plans []deploy.DeviceInstallPlan) {
	for _, plan := range plans {
		fmt.Printf("📱 %s (%s)\n", plan.Serial, plan.Device.State)

		if !plan.CanExecute {
			fmt.Println(i18n.T("plan.device_skipped", map[string]interface{}{
				"Serial": plan.Serial,
				"State":  plan.Device.State,
				"Count":  len(plan.Skipped),
			}))
			fmt.Println()
			continue
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		for _, unit := range plan.Units {
			strategy := deploy.SelectStrategy(unit, plan.Options)
			fmt.Fprintf(w, "  %s\tv%d\t%d file(s)\t%s\t%s\n",
				unit.PackageName(), unit.Base.VersionCode, unit.FileCount(),
				utils.FormatBytes(unit.TotalSize()), strategy)
		}
		for _, skipped := range plan.Skipped {
			fmt.Fprintf(w, "  %s\tskipped: %s\n", skipped.PackageName, skipped.Reason)
		}
		w.Flush()
		fmt.Println()
	}
}

func init() {
	planCmd.Flags().StringVarP(&planDevice, "device", "s", "", "target device serial")
	planCmd.Flags().BoolVar(&planAll, "all", false, "plan for all connected devices")
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "table", "output format: table, yaml")

	rootCmd.AddCommand(planCmd)
}
