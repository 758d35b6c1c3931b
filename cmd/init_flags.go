package cmd

import (
	"github.com/crytic/schlau/config"
	"github.com/spf13/cobra"
)

// addInitFlags adds the flags of the init command
func addInitFlags() {
	initCmd.Flags().String("out", "", "output path for the new project configuration file (default is \"schlau.json\" in the working directory)")
	initCmd.Flags().String("target", "", TargetFlagDescription)
	initCmd.Flags().Bool("force", false, "overwrite an existing configuration file without asking")
}

// updateProjectConfigWithInitFlags applies the init flags to projectConfig.
func updateProjectConfigWithInitFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	return updateCompilationTarget(cmd, projectConfig)
}
