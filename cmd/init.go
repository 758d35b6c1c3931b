package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/crytic/schlau/compilation"
	"github.com/crytic/schlau/config"
	"github.com/crytic/schlau/logging/colors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// supportedPlatforms are offered as completions of `schlau init <tab>` and used to validate its argument.
var supportedPlatforms = compilation.GetSupportedCompilationPlatforms()

// initCmd represents the command provider for init
var initCmd = &cobra.Command{
	Use:   "init [platform]",
	Short: "Writes a default project configuration",
	Long: `Writes a default project configuration for the given compilation platform (default "ink"), with an example
workload calling triangle_number`,
	Args:              cmdValidateInitArgs,
	ValidArgsFunction: cmdValidInitArgs,
	RunE:              cmdRunInit,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	addInitFlags()
	rootCmd.AddCommand(initCmd)
}

// cmdValidInitArgs completes unused flags, and the platforms while no platform or flag was given.
func cmdValidInitArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	completions, directive := cmdValidFlagArgs(cmd, args, toComplete)
	flagUsed := false
	cmd.Flags().Visit(func(*pflag.Flag) { flagUsed = true })
	if len(args) == 0 && !flagUsed {
		completions = append(completions, supportedPlatforms...)
	}
	return completions, directive
}

// cmdValidateInitArgs accepts at most one argument, naming a supported platform.
func cmdValidateInitArgs(cmd *cobra.Command, args []string) error {
	var err error
	switch {
	case len(args) > 1:
		err = errors.Errorf("init accepts at most 1 platform argument (options: %s), the default is %s",
			strings.Join(supportedPlatforms, ", "), DefaultCompilationPlatform)
	case len(args) == 1 && !compilation.IsSupportedCompilationPlatform(args[0]):
		err = errors.Errorf("unsupported platform '%s' (options: %s)", args[0], strings.Join(supportedPlatforms, ", "))
	}
	if err != nil {
		cmdLogger.Error("Failed to validate args to the init command", err)
	}
	return err
}

// cmdRunInit executes the init CLI command
func cmdRunInit(cmd *cobra.Command, args []string) error {
	platform := DefaultCompilationPlatform
	if len(args) == 1 {
		platform = args[0]
	}
	outputPath, err := writeInitConfig(cmd, platform)
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	if outputPath != "" {
		cmdLogger.Info("Project configuration written to: ", colors.Bold, outputPath, colors.Reset)
	}
	return nil
}

// writeInitConfig writes the default configuration of platform, with the init flags applied, and returns the
// absolute path written. An empty path means the user declined to overwrite an existing file.
func writeInitConfig(cmd *cobra.Command, platform string) (string, error) {
	outputPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return "", err
	}
	if outputPath == "" {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return "", errors.WithStack(err)
		}
		outputPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	projectConfig, err := config.GetDefaultProjectConfig(platform)
	if err != nil {
		return "", err
	}
	if err = updateProjectConfigWithInitFlags(cmd, projectConfig); err != nil {
		return "", err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return "", err
	}
	if _, err = os.Stat(outputPath); err == nil && !force {
		overwrite, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "The file already exists. Overwrite? (y/n): ")
		if err != nil {
			return "", err
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Operation canceled.")
			return "", nil
		}
	}

	if err = projectConfig.WriteToFile(outputPath); err != nil {
		return "", err
	}
	if absoluteOutputPath, err := filepath.Abs(outputPath); err == nil {
		outputPath = absoluteOutputPath
	}
	return outputPath, nil
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprint(out, question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.WithStack(err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
