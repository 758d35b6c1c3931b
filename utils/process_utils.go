package utils

import (
	"bytes"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
)

// RunCommandWithOutputAndError runs a given exec.Cmd and returns the stdout, stderr, and
// combined output as bytes, or an error if one occurred.
func RunCommandWithOutputAndError(command *exec.Cmd) ([]byte, []byte, []byte, error) {
	var bStdout, bStderr, bCombined bytes.Buffer

	// Both streams write into bCombined, possibly from different goroutines.
	var combinedWriter io.Writer = &synchronizedWriter{writer: &bCombined}
	command.Stdout = io.MultiWriter(&bStdout, combinedWriter)
	command.Stderr = io.MultiWriter(&bStderr, combinedWriter)

	err := command.Run()
	return bStdout.Bytes(), bStderr.Bytes(), bCombined.Bytes(), err
}

// RequireExecutable resolves the named binary on PATH, returning a descriptive error if it cannot be found.
func RequireExecutable(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, "'%s' was not found on PATH", name)
	}
	return path, nil
}

// synchronizedWriter wraps an io.Writer to avoid a data race when writing.
type synchronizedWriter struct {
	writer io.Writer
	mutex  sync.Mutex
}

func (s *synchronizedWriter) Write(p []byte) (n int, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.writer.Write(p)
}
