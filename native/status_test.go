package native

import (
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "S_OK", StatusOK.String())
	assert.Equal(t, "E_ABORT", StatusAbort.String())
	assert.Equal(t, "0x80001234", Status(-0x7fffedcc).String())
}

func TestStatus_Err(t *testing.T) {
	t.Parallel()

	assert.NoError(t, StatusOK.Err())
	assert.NoError(t, StatusFalse.Err(), "informational codes are not errors")
	assert.ErrorIs(t, StatusAccessDenied.Err(), StatusAccessDenied)
	assert.True(t, StatusSkip.Succeeded())
	assert.True(t, StatusFail.Failed())
}

func TestStatusFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"not exist", &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, StatusFileNotFound},
		{"permission", os.ErrPermission, StatusAccessDenied},
		{"exist", fs.ErrExist, StatusAlreadyExists},
		{"wrapped status", fmt.Errorf("wrap: %w", StatusWrongThread), StatusWrongThread},
		{"other", fmt.Errorf("boom"), StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFromError(tt.err))
		})
	}
}
