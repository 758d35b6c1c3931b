package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/crytic/schlau/cmd/exitcodes"
	"github.com/crytic/schlau/config"
	"github.com/crytic/schlau/logging"
	"github.com/crytic/schlau/logging/colors"
	"github.com/crytic/schlau/sandbox"
	"github.com/crytic/schlau/workload"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// runCmd represents the command provider for run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deploys the configured contract and executes its workloads",
	Long: `Builds the configured contract, then for every workload deploys it into a fresh sandbox and calls the
configured message repeatedly, printing a timing summary`,
	Args:              cmdValidateNoArgs("run"),
	ValidArgsFunction: cmdValidFlagArgs,
	RunE:              cmdRunRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	addConfigFlags(runCmd)
	runCmd.Flags().StringSlice("workload", []string{}, "names of the workloads to run (default is all configured workloads)")
	runCmd.Flags().Int("iterations", 0, "number of calls per workload, overriding the configured iterations")
	runCmd.Flags().Bool("debug-output", false, "collect contract debug messages on the ledger backend")
	rootCmd.AddCommand(runCmd)
}

// updateProjectConfigWithRunFlags will update the given projectConfig with the run-specific CLI arguments
func updateProjectConfigWithRunFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	names, err := cmd.Flags().GetStringSlice("workload")
	if err != nil {
		return err
	}
	if len(names) > 0 {
		selected := make([]config.WorkloadConfig, 0, len(names))
		for _, name := range names {
			i := slices.IndexFunc(projectConfig.Workloads, func(w config.WorkloadConfig) bool { return w.Name == name })
			if i < 0 {
				return errors.Errorf("no workload named '%s'", name)
			}
			selected = append(selected, projectConfig.Workloads[i])
		}
		projectConfig.Workloads = selected
	}

	if cmd.Flags().Changed("iterations") {
		iterations, err := cmd.Flags().GetInt("iterations")
		if err != nil {
			return err
		}
		if iterations <= 0 {
			return errors.New("iterations must be a positive number")
		}
		for i := range projectConfig.Workloads {
			projectConfig.Workloads[i].Iterations = iterations
		}
	}

	if cmd.Flags().Changed("debug-output") {
		if projectConfig.Sandbox.DebugOutput, err = cmd.Flags().GetBool("debug-output"); err != nil {
			return err
		}
	}
	return nil
}

// cmdRunRun executes the run CLI command
func cmdRunRun(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}
	if err = updateProjectConfigWithRunFlags(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}
	if len(projectConfig.Workloads) == 0 {
		err = errors.New("no workloads are configured")
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}
	closeLog, err := configureLogging(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}
	defer closeLog()

	artifact, err := buildProject(projectConfig)
	if err != nil {
		return err
	}

	// Stop the workloads on keyboard interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			cmdLogger.Warn("Interrupted, stopping after the current call")
			cancel()
		case <-ctx.Done():
		}
	}()

	runner := workload.NewRunner(artifact, projectConfig.Sandbox, logging.GlobalLogger)
	progressLogger := logging.GlobalLogger.NewSubLogger("module", "run")
	runner.Events.ContractDeployed.Subscribe(func(event workload.ContractDeployedEvent) {
		progressLogger.Debug("Deployed the contract for ", event.Workload, " in ", event.Duration)
	})
	runner.Events.CallCompleted.Subscribe(func(event workload.CallCompletedEvent) {
		progressLogger.Debug(event.Workload, " call ", event.Iteration, ": ", event.Duration, ", ", event.GasUsed, " gas")
	})
	summaries := make([]workload.Summary, 0, len(projectConfig.Workloads))
	var runErr error
	for _, w := range projectConfig.Workloads {
		measurement, err := runner.Run(ctx, w)
		if measurement != nil && measurement.Iterations() > 0 {
			summaries = append(summaries, measurement.Summarize())
			if words, err := measurement.OutputWords(); err == nil {
				progressLogger.Debug(w.Name, " returned ", formatWords(words))
			}
		}
		if err != nil {
			cmdLogger.Error(
				"Workload ", colors.Bold, w.Name, colors.Reset, " failed (", colors.Red(sandbox.Classify(err)), ")", err,
			)
			runErr = exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeExecutionFailed)
			if ctx.Err() != nil {
				break
			}
		}
	}

	printSummaries(cmd.OutOrStdout(), summaries)
	return runErr
}

// printSummaries writes the timing summary table. Times are in milliseconds.
func printSummaries(w io.Writer, summaries []workload.Summary) {
	if len(summaries) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "workload\tbackend\tcalls\tdeploy ms\tmean ms\tmedian ms\tmin ms\tmax ms\tmean gas\t")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Name, s.Backend, s.Iterations,
			s.Deploy.StringFixed(3), s.Mean.StringFixed(3), s.Median.StringFixed(3),
			s.Min.StringFixed(3), s.Max.StringFixed(3), s.MeanGas.StringFixed(0),
		)
	}
	_ = tw.Flush()
}

// formatWords renders 256-bit words as space separated hex.
func formatWords(words [][sandbox.WordSize]byte) string {
	hexWords := make([]string, len(words))
	for i, word := range words {
		hexWords[i] = fmt.Sprintf("0x%x", word)
	}
	return strings.Join(hexWords, " ")
}
