package domain

import "github.com/ohcore/fbekeyd/internal/errors"

// Error codes for the errors returned by the public BaseKey/KeyManager/
// UserManager operations, as computed by ErrCode: 0 on success, negative
// otherwise.
const (
	CodeOK               = 0
	CodeNoMemory         = -1
	CodeNotFound         = -2
	CodeAlreadyExists    = -3
	CodeBadState         = -4
	CodeMountFailed      = -5
	CodeUmountFailed     = -6
	CodePrepareDirFailed = -7
	CodeDestroyDirFailed = -8
	CodeCryptoFailed     = -9
	CodeInvalidInput     = -10
)

// ErrCode maps err to the spec's integer error code via errors.Is, walking
// the sentinel set in a fixed, most-specific-first order. An error that
// matches none of the sentinels maps to CodeCryptoFailed.
func ErrCode(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, errors.ErrNoMemory):
		return CodeNoMemory
	case errors.Is(err, errors.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, errors.ErrConflict):
		return CodeAlreadyExists
	case errors.Is(err, errors.ErrBadState):
		return CodeBadState
	case errors.Is(err, errors.ErrMountFailed):
		return CodeMountFailed
	case errors.Is(err, errors.ErrUmountFailed):
		return CodeUmountFailed
	case errors.Is(err, errors.ErrPrepareDirFailed):
		return CodePrepareDirFailed
	case errors.Is(err, errors.ErrDestroyDirFailed):
		return CodeDestroyDirFailed
	case errors.Is(err, errors.ErrCryptoFailed):
		return CodeCryptoFailed
	case errors.Is(err, errors.ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeCryptoFailed
	}
}
