package cmd

import (
	"github.com/crytic/schlau/logging/colors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// buildCmd represents the command provider for build
var buildCmd = &cobra.Command{
	Use:               "build",
	Short:             "Compiles the configured contract",
	Long:              `Compiles the configured contract and stores the artifact in the build cache`,
	Args:              cmdValidateNoArgs("build"),
	ValidArgsFunction: cmdValidFlagArgs,
	RunE:              cmdRunBuild,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	addConfigFlags(buildCmd)
	rootCmd.AddCommand(buildCmd)
}

// cmdValidateNoArgs makes sure that there are no positional arguments provided to a command
func cmdValidateNoArgs(name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			err = errors.Errorf("%s does not accept any positional arguments, only flags and their associated values", name)
			cmdLogger.Error("Failed to validate args to the "+name+" command", err)
			return err
		}
		return nil
	}
}

// cmdRunBuild executes the build CLI command
func cmdRunBuild(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the build command", err)
		return err
	}
	closeLog, err := configureLogging(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to run the build command", err)
		return err
	}
	defer closeLog()

	artifact, err := buildProject(projectConfig)
	if err != nil {
		return err
	}
	cmdLogger.Info(
		"Built ", colors.Bold, artifact.ContractName, colors.Reset,
		" for the ", artifact.Backend, " backend: ", len(artifact.Code), " bytes, code hash ", artifact.CodeHash(),
	)
	return nil
}
