package testutils

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/crytic/schlau/utils"
	"github.com/stretchr/testify/require"
)

// CopyToTestDirectory copies a file or directory (relative to the working directory of the test) into an ephemeral
// directory and returns the absolute path of the copy.
func CopyToTestDirectory(t *testing.T, filePath string) string {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	sourcePath := filepath.Join(cwd, filePath)

	sourcePathInfo, err := os.Stat(sourcePath)
	require.NoError(t, err)

	targetPath := filepath.Join(t.TempDir(), "schlauTest", sourcePathInfo.Name())
	if sourcePathInfo.IsDir() {
		err = utils.CopyDirectory(sourcePath, targetPath, true)
	} else {
		err = utils.CopyFile(sourcePath, targetPath)
	}
	require.NoError(t, err)

	targetPath, err = filepath.Abs(targetPath)
	require.NoError(t, err)
	return targetPath
}

// ExecuteInDirectory runs method with the working directory set to testPath (or its parent directory if it refers to
// a file), restoring the previous working directory afterwards.
func ExecuteInDirectory(t *testing.T, testPath string, method func()) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	testPathInfo, err := os.Stat(testPath)
	require.NoError(t, err)
	testDirectory := testPath
	if !testPathInfo.IsDir() {
		testDirectory = filepath.Dir(testPath)
	}

	require.NoError(t, os.Chdir(testDirectory))
	defer func() {
		require.NoError(t, os.Chdir(cwd))
	}()
	method()
}

// RequireBinary skips the test if the named external tool is not installed.
func RequireBinary(t *testing.T, name string) {
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("skipping: '%s' is not installed", name)
	}
}

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir string, name string, content []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}
