package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/apkfleet/apkfleet-cli/pkg/apk"
	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
	"github.com/apkfleet/apkfleet-cli/pkg/utils"
)

var (
	inspectFormat  string
	inspectIconDir string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <apk-or-dir>...",
	Short: "Classify APK files and show how they group into units",
	Long: `Parse APK metadata, classify each file as a base or split, and show the
resulting installation units with their validation status. With --icons,
launcher icons are extracted next to the report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := collectApkPaths(args)
		if err != nil {
			return err
		}
		files, err := extractFiles(cmd.Context(), paths)
		if err != nil {
			return err
		}

		units, warnings := deploy.BuildUnits(files)
		options, err := buildOptions()
		if err != nil {
			return err
		}

		if inspectIconDir != "" {
			extractIcons(units)
		}

		switch inspectFormat {
		case "yaml":
			type unitReport struct {
				Unit   deploy.InstallationUnit `yaml:"unit"`
				Valid  bool                    `yaml:"valid"`
				Errors []string                `yaml:"errors,omitempty"`
			}
			reports := make([]unitReport, 0, len(units))
			for _, unit := range units {
				result := deploy.Validate(unit, options)
				reports = append(reports, unitReport{
					Unit: unit, Valid: result.Valid, Errors: result.Errors,
				})
			}
			return yaml.NewEncoder(os.Stdout).Encode(reports)
		default:
			showUnits(units, warnings, options)
			return nil
		}
	},
}

func showUnits(units []deploy.InstallationUnit, warnings []deploy.GroupWarning, options deploy.DeviceInstallOptions) {
	for _, unit := range units {
		result := deploy.Validate(unit, options)

		status := "✅"
		if !result.Valid {
			status = "❌"
		}
		fmt.Printf("%s %s v%s (%d) — %d file(s), %s\n",
			status, unit.PackageName(), unit.Base.VersionName,
			unit.Base.VersionCode, unit.FileCount(), utils.FormatBytes(unit.TotalSize()))

		for _, f := range deploy.InstallOrder(unit) {
			fmt.Printf("    %-8s %s %s\n", f.Class, f.DiscriminatorKey(), filepath.Base(f.Path))
		}
		for _, msg := range result.Errors {
			fmt.Printf("    ⚠️  %s\n", msg)
		}
		fmt.Println()
	}

	for _, w := range warnings {
		fmt.Printf("⚠️  group %s dropped: %s\n", w.PackageName, w.Reason)
	}
}

func extractIcons(units []deploy.InstallationUnit) {
	extractor := apk.NewIconExtractor()
	if err := os.MkdirAll(inspectIconDir, 0755); err != nil {
		utils.Warn("cannot create icon directory: %v", err)
		return
	}

	for _, unit := range units {
		data, ext, err := extractor.ExtractIcon(unit.Base.Path)
		if err != nil {
			utils.Debug("no icon for %s: %v", unit.PackageName(), err)
			continue
		}
		out := filepath.Join(inspectIconDir, unit.PackageName()+ext)
		if err := os.WriteFile(out, data, 0644); err != nil {
			utils.Warn("cannot write %s: %v", out, err)
			continue
		}
		fmt.Printf("🖼️  %s\n", out)
	}
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "table", "output format: table, yaml")
	inspectCmd.Flags().StringVar(&inspectIconDir, "icons", "", "extract launcher icons into this directory")

	rootCmd.AddCommand(inspectCmd)
}
