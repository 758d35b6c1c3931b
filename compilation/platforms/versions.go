package platforms

import (
	"os/exec"
	"regexp"

	"github.com/Masterminds/semver"
	"github.com/crytic/schlau/utils"
	"github.com/pkg/errors"
)

// versionExpression matches the first semantic version in a tool's version output.
var versionExpression = regexp.MustCompile(`\d+\.\d+\.\d+`)

// getToolVersion runs the tool with the given arguments and parses the first version number from its output.
func getToolVersion(name string, args ...string) (*semver.Version, error) {
	if _, err := utils.RequireExecutable(name); err != nil {
		return nil, err
	}
	_, _, out, err := utils.RunCommandWithOutputAndError(exec.Command(name, args...))
	if err != nil {
		return nil, errors.Wrapf(err, "error while executing %s:\nOUTPUT:\n%s", name, string(out))
	}

	versionStr := versionExpression.FindString(string(out))
	if versionStr == "" {
		return nil, errors.Errorf("could not parse version from '%s' output", name)
	}
	return semver.NewVersion(versionStr)
}

// requireMinimumVersion checks a tool version against a ">= minimum" constraint.
func requireMinimumVersion(name string, version *semver.Version, minimum string) error {
	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return errors.WithStack(err)
	}
	if !constraint.Check(version) {
		return errors.Errorf("%s %s is not supported, version %s or newer is required", name, version, minimum)
	}
	return nil
}
