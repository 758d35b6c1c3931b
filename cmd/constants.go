package cmd

import "github.com/crytic/schlau/config"

// DefaultProjectConfigFilename describes the default config filename for a given project folder.
const DefaultProjectConfigFilename = config.DefaultProjectConfigFilename

// DefaultCompilationPlatform describes the default compilation platform to use if one is not provided
const DefaultCompilationPlatform = "ink"

// TargetFlagDescription describes the --target flag shared by several commands.
const TargetFlagDescription = "path to the contract source to compile: a crate directory for ink, a source file for solang and solc"
