package exitcodes

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestGetInnerErrorAndExitCode(t *testing.T) {
	err, code := GetInnerErrorAndExitCode(nil)
	assert.NoError(t, err)
	assert.Equal(t, ExitCodeSuccess, code)

	generic := errors.New("generic")
	err, code = GetInnerErrorAndExitCode(generic)
	assert.Equal(t, generic, err)
	assert.Equal(t, ExitCodeGeneralError, code)

	inner := errors.New("build failed")
	err, code = GetInnerErrorAndExitCode(errors.Wrap(NewErrorWithExitCode(inner, ExitCodeBuildError), "context"))
	assert.Equal(t, inner, err)
	assert.Equal(t, ExitCodeBuildError, code)
}
