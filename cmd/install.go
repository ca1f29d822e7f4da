package cmd

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet-cli/internal/i18n"
	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
	"github.com/apkfleet/apkfleet-cli/pkg/utils"
)

var (
	installDevice    string
	installAll       bool
	installReinstall bool
	installDowngrade bool
	installGrant     bool
	installUser      int
	installMatch     string
	installStrategy  string
	installRetries   int
	installRateKBps  int64
	installVerifySig bool
	installVerifyVer bool
	installDryRun    bool
)

var installCmd = &cobra.Command{
	Use:   "install <apk-or-dir>...",
	Short: "Install APK sets on connected devices",
	Long: `Install one or more applications on connected devices. Base and split
APKs are grouped per package, matched against each device's ABI, screen
density and locale, and installed atomically. Interrupting with Ctrl-C
stops before the next unit; completed installs are kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		options, err := buildOptions()
		if err != nil {
			return err
		}
		applyInstallFlags(cmd, &options)

		paths, err := collectApkPaths(args)
		if err != nil {
			return err
		}

		fmt.Printf("📦 Parsing %d APK file(s)...\n", len(paths))
		files, err := extractFiles(ctx, paths)
		if err != nil {
			return err
		}

		b := newBridge()
		devices, err := resolveDevices(ctx, b, installDevice, installAll)
		if err != nil {
			return err
		}

		if installDryRun {
			units, warnings := deploy.BuildUnits(files)
			for _, w := range warnings {
				utils.Warn("group %s dropped: %s", w.PackageName, w.Reason)
			}
			plans := deploy.NewOrchestrator(nil, nil).BuildPlans(units, devices, options)
			showPlansTable(plans)
			return nil
		}

		bus := deploy.NewEventBus(256)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			renderEvents(bus)
		}()

		orchestrator := deploy.NewOrchestrator(b, bus,
			deploy.WithChunkSize(cfg.Install.ChunkKB*1024))
		summary, runErr := orchestrator.Run(ctx, files, devices, options)

		bus.Close()
		wg.Wait()

		printSummary(summary)
		if runErr != nil {
			return runErr
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d unit(s) failed", summary.Failed)
		}
		return nil
	},
}

// applyInstallFlags overrides config-derived options with explicit flags.
func applyInstallFlags(cmd *cobra.Command, options *deploy.DeviceInstallOptions) {
	if cmd.Flags().Changed("reinstall") {
		options.Reinstall = installReinstall
	}
	if cmd.Flags().Changed("downgrade") {
		options.AllowDowngrade = installDowngrade
	}
	if cmd.Flags().Changed("grant") {
		options.GrantPermissions = installGrant
	}
	if cmd.Flags().Changed("user") {
		options.UserID = installUser
	}
	if cmd.Flags().Changed("retries") {
		options.MaxRetries = installRetries
	}
	if cmd.Flags().Changed("rate") {
		options.MaxTransferRate = installRateKBps * 1024
	}
	if cmd.Flags().Changed("verify-signature") {
		options.VerifySignature = installVerifySig
	}
	if cmd.Flags().Changed("verify-version") {
		options.VerifyVersionHomogeneity = installVerifyVer
	}
	if cmd.Flags().Changed("match") {
		if match, err := deploy.ParseSplitMatchMode(installMatch); err == nil {
			options.SplitMatch = match
		} else {
			utils.Warn("%v, keeping %s", err, options.SplitMatch)
		}
	}
	if cmd.Flags().Changed("strategy") {
		if strategy, err := deploy.ParseInstallStrategy(installStrategy); err == nil {
			options.Strategy = strategy
		} else {
			utils.Warn("%v, keeping %s", err, options.Strategy)
		}
	}
}

// renderEvents consumes the event stream until the bus closes.
func renderEvents(bus *deploy.EventBus) {
	var bar *utils.TransferBar

	for e := range bus.Events() {
		switch e.Type {
		case deploy.EventPlanBuilt:
			fmt.Printf("🗺️  %s: %s\n", e.Serial, e.Message)
		case deploy.EventUnitStarted:
			fmt.Printf("▶️  %s → %s\n", e.PackageName, e.Serial)
		case deploy.EventSessionProgress:
			if bar == nil || bar.Total() != e.TotalBytes {
				bar = utils.NewTransferBar(e.TotalBytes, e.PackageName)
			}
			bar.Update(e.Bytes)
			if e.Bytes >= e.TotalBytes {
				bar.Finish()
				bar = nil
			}
		case deploy.EventRetryAttempt:
			fmt.Printf("🔁 %s on %s: retry %d (%v)\n", e.PackageName, e.Serial, e.Attempt, e.Err)
		case deploy.EventUnitSucceeded:
			fmt.Printf("✅ %s installed on %s\n", e.PackageName, e.Serial)
		case deploy.EventUnitFailed:
			fmt.Printf("❌ %s failed on %s: %v\n", e.PackageName, e.Serial, e.Err)
		case deploy.EventUnitSkipped:
			fmt.Printf("⏭️  %s skipped on %s: %s\n", e.PackageName, e.Serial, e.Message)
		case deploy.EventWarning:
			fmt.Printf("⚠️  %s\n", e.Message)
		case deploy.EventDeviceCompleted:
			if e.Message != "" {
				fmt.Printf("📱 %s: %s\n", e.Serial, e.Message)
			}
		}
	}
}

func printSummary(summary *deploy.InstallationSummary) {
	if summary == nil {
		return
	}

	fmt.Printf("\n%s\n", i18n.T("summary.header"))
	fmt.Println(i18n.T("summary.line", map[string]interface{}{
		"Succeeded": summary.Succeeded,
		"Failed":    summary.Failed,
		"Skipped":   summary.Skipped,
		"Total":     summary.TotalUnits,
		"Elapsed":   summary.Elapsed.Round(10 * time.Millisecond),
	}))
	if summary.Retries > 0 {
		fmt.Printf("retries used: %d\n", summary.Retries)
	}
	if summary.Cancelled {
		fmt.Println(i18n.T("summary.cancelled"))
	}
	for _, msg := range summary.Errors {
		fmt.Printf("  - %s\n", msg)
	}
}

func init() {
	installCmd.Flags().StringVarP(&installDevice, "device", "s", "", "target device serial")
	installCmd.Flags().BoolVar(&installAll, "all", false, "install on all connected devices")
	installCmd.Flags().BoolVar(&installReinstall, "reinstall", true, "replace the app if already installed (-r)")
	installCmd.Flags().BoolVar(&installDowngrade, "downgrade", false, "allow version downgrade (-d)")
	installCmd.Flags().BoolVar(&installGrant, "grant", false, "grant all runtime permissions (-g)")
	installCmd.Flags().IntVar(&installUser, "user", -1, "install for the given user id")
	installCmd.Flags().StringVar(&installMatch, "match", "", "split match mode: strict, relaxed, base-only")
	installCmd.Flags().StringVar(&installStrategy, "strategy", "", "install strategy: auto, multi, session")
	installCmd.Flags().IntVar(&installRetries, "retries", 2, "retry attempts for transient failures")
	installCmd.Flags().Int64Var(&installRateKBps, "rate", 0, "session transfer cap in KB/s (0 = unlimited)")
	installCmd.Flags().BoolVar(&installVerifySig, "verify-signature", false, "reject units whose files carry different signer content hashes")
	installCmd.Flags().BoolVar(&installVerifyVer, "verify-version", true, "require identical version codes across a unit's files")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "show the plan without installing")

	rootCmd.AddCommand(installCmd)
}
