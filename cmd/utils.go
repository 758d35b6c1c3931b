package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crytic/schlau/cmd/exitcodes"
	"github.com/crytic/schlau/compilation"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/config"
	"github.com/crytic/schlau/logging"
	"github.com/crytic/schlau/logging/colors"
	"github.com/crytic/schlau/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cmdValidFlagArgs returns the flags that are valid for dynamic completion and have not been used yet.
func cmdValidFlagArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			// The "--" prefix marks the suggestion as a flag rather than a positional argument.
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// addConfigFlags adds the flags shared by the commands that read a project configuration.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().String("config", "", "path to config file")
	cmd.Flags().String("target", "", TargetFlagDescription)
	cmd.Flags().String("cache-dir", "", "directory of the build artifact cache (unless a config file is provided, default is \".schlau\")")
	cmd.Flags().Bool("no-cache", false, "always rebuild the contract instead of reusing cached artifacts")
	cmd.Flags().Bool("no-color", false, "disable colored terminal output")
}

// updateCompilationTarget will update the compilation target in the projectConfig if the --target flag is used in the
// command
func updateCompilationTarget(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	if !cmd.Flags().Changed("target") {
		return nil
	}
	newTarget, err := cmd.Flags().GetString("target")
	if err != nil {
		return err
	}
	if projectConfig.Compilation == nil {
		return errors.New("cannot set a target without a compilation platform")
	}

	platformConfig, err := projectConfig.Compilation.GetPlatformConfig()
	if err != nil {
		return err
	}
	platformConfig.SetTarget(newTarget)

	projectConfig.Compilation, err = compilation.NewCompilationConfigFromPlatformConfig(platformConfig)
	return err
}

// updateProjectConfigWithConfigFlags applies the shared flags to projectConfig.
func updateProjectConfigWithConfigFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	if err := updateCompilationTarget(cmd, projectConfig); err != nil {
		return err
	}
	if cmd.Flags().Changed("cache-dir") {
		cacheDirectory, err := cmd.Flags().GetString("cache-dir")
		if err != nil {
			return err
		}
		projectConfig.Sandbox.CacheDirectory = cacheDirectory
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	if noCache {
		projectConfig.Sandbox.CacheDirectory = ""
	}
	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return err
	}
	if noColor {
		projectConfig.Logging.NoColor = true
	}
	return nil
}

// loadProjectConfig resolves the project configuration of a command:
// #1: If a custom config file (via --config) or the default (schlau.json) exists, read it.
// #2: If a custom file was provided and it does not exist, fail.
// #3: Otherwise use the default project configuration for the default compilation platform.
// The working directory is changed to the directory of the configuration file, since compilation targets are
// relative to it. Flags are applied and the result is validated.
func loadProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	var projectConfig *config.ProjectConfig
	_, existenceError := os.Stat(configPath)
	switch {
	case existenceError == nil:
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		if projectConfig, err = config.ReadProjectConfigFromFile(configPath); err != nil {
			return nil, err
		}
		if err = os.Chdir(filepath.Dir(configPath)); err != nil {
			return nil, errors.WithStack(err)
		}
	case configFlagUsed:
		return nil, errors.Wrapf(existenceError, "could not find the config file at %v", configPath)
	default:
		cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration for the "+
			"%v compilation platform instead", configPath, DefaultCompilationPlatform))
		if projectConfig, err = config.GetDefaultProjectConfig(DefaultCompilationPlatform); err != nil {
			return nil, err
		}
	}

	if err = updateProjectConfigWithConfigFlags(cmd, projectConfig); err != nil {
		return nil, err
	}
	if err = projectConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid project configuration")
	}
	return projectConfig, nil
}

// configureLogging replaces the global logger with one configured by the project's logging settings. The returned
// function closes the log file, if one was opened.
func configureLogging(loggingConfig config.LoggingConfig) (func(), error) {
	colors.SetEnabled(!loggingConfig.NoColor)
	logging.GlobalLogger = logging.NewLogger(loggingConfig.Level, true)
	if loggingConfig.LogDirectory == "" {
		return func() {}, nil
	}

	if err := utils.MakeDirectory(loggingConfig.LogDirectory); err != nil {
		return nil, err
	}
	filename := filepath.Join(loggingConfig.LogDirectory, "log-"+time.Now().Format("20060102-150405")+".json")
	file, err := os.Create(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	logging.GlobalLogger.AddWriter(file, logging.STRUCTURED)
	return func() {
		logging.GlobalLogger.RemoveWriter(file)
		_ = file.Close()
	}, nil
}

// buildProject compiles the configured contract, reusing the artifact cache if one is configured. Failures are
// logged and returned with ExitCodeBuildError.
func buildProject(projectConfig *config.ProjectConfig) (*types.BuildArtifact, error) {
	logger := logging.GlobalLogger.NewSubLogger("module", "build")

	var cache *compilation.ArtifactCache
	if projectConfig.Sandbox.CacheDirectory != "" {
		var err error
		cache, err = compilation.OpenArtifactCache(projectConfig.Sandbox.CacheDirectory)
		if err != nil {
			logger.Warn("Could not open the artifact cache, compiling without it", err)
		} else {
			defer cache.Close()
		}
	}

	artifact, output, err := compilation.CompileWithCache(projectConfig.Compilation, cache, logger)
	if err != nil {
		if output != "" {
			logger.Error("Compiler output:\n", output)
		}
		logger.Error("Failed to build the contract", err)
		return nil, exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeBuildError)
	}
	return artifact, nil
}
