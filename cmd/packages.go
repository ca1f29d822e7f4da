package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	packagesDevice string
	packagesUser   int
	packagesFilter string
	packagesFormat string
)

var packagesCmd = &cobra.Command{
	Use:   "packages [package]",
	Short: "List installed packages on a device",
	Long: `List packages installed on a device. With a package name argument, show
its label and version details instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		b := newBridge()
		devices, err := resolveDevices(ctx, b, packagesDevice, false)
		if err != nil {
			return err
		}
		serial := devices[0].Serial

		if len(args) == 1 {
			detail, err := b.PackageInfo(ctx, serial, args[0])
			if err != nil {
				return err
			}
			if packagesFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(detail)
			}
			fmt.Printf("📦 %s\n", detail.Name)
			if detail.Label != "" {
				fmt.Printf("   label:   %s\n", detail.Label)
			}
			fmt.Printf("   version: %s (%d)\n", detail.VersionName, detail.VersionCode)
			return nil
		}

		packages, err := b.ListPackages(ctx, serial, packagesUser)
		if err != nil {
			return err
		}

		if packagesFilter != "" {
			filtered := packages[:0]
			for _, p := range packages {
				if strings.Contains(p.Name, packagesFilter) {
					filtered = append(filtered, p)
				}
			}
			packages = filtered
		}
		sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })

		if packagesFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(packages)
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PACKAGE\tPATH")
		for _, p := range packages {
			fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Path)
		}
		w.Flush()
		fmt.Printf("\n%d package(s)\n", len(packages))
		return nil
	},
}

func init() {
	packagesCmd.Flags().StringVarP(&packagesDevice, "device", "s", "", "target device serial")
	packagesCmd.Flags().IntVar(&packagesUser, "user", -1, "list packages for the given user id")
	packagesCmd.Flags().StringVar(&packagesFilter, "filter", "", "only show packages containing this substring")
	packagesCmd.Flags().StringVarP(&packagesFormat, "format", "f", "table", "output format: table, json")

	rootCmd.AddCommand(packagesCmd)
}
