package native

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Status is an HRESULT-style result code. Negative values are failures.
type Status int32

const (
	StatusOK    Status = 0
	StatusFalse Status = 1

	// Copy engine informational codes returned from pre-operation hooks.
	StatusSkip             Status = 0x00270005 // COPYENGINE_S_USER_IGNORED
	StatusDontProcessChild Status = 0x00270008 // COPYENGINE_S_DONT_PROCESS_CHILDREN

	StatusNotImplemented Status = -0x7fffbfff // 0x80004001
	StatusNoInterface    Status = -0x7fffbffe // 0x80004002
	StatusPointer        Status = -0x7fffbffd // 0x80004003
	StatusAbort          Status = -0x7fffbffc // 0x80004004
	StatusFail           Status = -0x7fffbffb // 0x80004005
	StatusUnexpected     Status = -0x7fff0001 // 0x8000FFFF
	StatusInvalidArg     Status = -0x7ff8ffa9 // 0x80070057
	StatusFileNotFound   Status = -0x7ff8fffe // 0x80070002
	StatusPathNotFound   Status = -0x7ff8fffd // 0x80070003
	StatusAccessDenied   Status = -0x7ff8fffb // 0x80070005
	StatusAlreadyExists  Status = -0x7ff8ff49 // 0x800700B7
	StatusDirNotEmpty    Status = -0x7ff8ff6f // 0x80070091
	StatusCancelled      Status = -0x7ff8fb39 // 0x800704C7
	StatusNotInitialized Status = -0x7ffbfe10 // 0x800401F0 CO_E_NOTINITIALIZED
	StatusWrongThread    Status = -0x7ffefef2 // 0x8001010E RPC_E_WRONG_THREAD
	StatusUserCancelled  Status = -0x7fd90000 // 0x80270000 COPYENGINE_E_USER_CANCELLED
)

var statusNames = map[Status]string{
	StatusOK:               "S_OK",
	StatusFalse:            "S_FALSE",
	StatusSkip:             "COPYENGINE_S_USER_IGNORED",
	StatusDontProcessChild: "COPYENGINE_S_DONT_PROCESS_CHILDREN",
	StatusNotImplemented:   "E_NOTIMPL",
	StatusNoInterface:      "E_NOINTERFACE",
	StatusPointer:          "E_POINTER",
	StatusAbort:            "E_ABORT",
	StatusFail:             "E_FAIL",
	StatusUnexpected:       "E_UNEXPECTED",
	StatusInvalidArg:       "E_INVALIDARG",
	StatusFileNotFound:     "ERROR_FILE_NOT_FOUND",
	StatusPathNotFound:     "ERROR_PATH_NOT_FOUND",
	StatusAccessDenied:     "E_ACCESSDENIED",
	StatusAlreadyExists:    "ERROR_ALREADY_EXISTS",
	StatusDirNotEmpty:      "ERROR_DIR_NOT_EMPTY",
	StatusCancelled:        "ERROR_CANCELLED",
	StatusNotInitialized:   "CO_E_NOTINITIALIZED",
	StatusWrongThread:      "RPC_E_WRONG_THREAD",
	StatusUserCancelled:    "COPYENGINE_E_USER_CANCELLED",
}

func (s Status) Failed() bool    { return s < 0 }
func (s Status) Succeeded() bool { return s >= 0 }

// IsNotFound reports whether s is one of the file/path not found codes.
func (s Status) IsNotFound() bool {
	return s == StatusFileNotFound || s == StatusPathNotFound
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}

// Error implements error so a failed Status can travel through Go error paths.
func (s Status) Error() string {
	return "native status " + s.String()
}

// Err returns nil for success codes and the status itself otherwise.
func (s Status) Err() error {
	if s.Succeeded() {
		return nil
	}
	return s
}

// StatusFromError maps Go filesystem errors onto status codes.
func StatusFromError(err error) Status {
	if err == nil {
		return StatusOK
	}
	var st Status
	if errors.As(err, &st) {
		return st
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return StatusFileNotFound
	case errors.Is(err, fs.ErrPermission):
		return StatusAccessDenied
	case errors.Is(err, fs.ErrExist):
		return StatusAlreadyExists
	case errors.Is(err, syscall.ENOTDIR):
		return StatusPathNotFound
	case errors.Is(err, syscall.ENOTEMPTY):
		return StatusDirNotEmpty
	case errors.Is(err, fs.ErrInvalid):
		return StatusInvalidArg
	}
	return StatusFail
}
