package domain

import (
	"path/filepath"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/ohcore/fbekeyd/internal/errors"
)

// maxAuthLen bounds a caller-supplied token/composePwd: they are opaque
// to this core, but an unbounded value is still a malformed request, not
// a valid (if unusual) credential.
const maxAuthLen = 4096

// notBlank rejects a string that is empty once surrounding whitespace is
// stripped — Required alone still passes an all-whitespace value.
var notBlank = validation.By(func(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_not_blank", "must not be blank")
	}
	return nil
})

// absPath rejects a relative path — every path this core is asked to tag
// with an encryption policy must be fully qualified.
var absPath = validation.By(func(value any) error {
	s, _ := value.(string)
	if !filepath.IsAbs(s) {
		return validation.NewError("validation_abs_path", "must be an absolute path")
	}
	return nil
})

// WrapValidationError adapts a jellydator/validation error into the
// ErrInvalidInput sentinel ErrCode maps to CodeInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.ErrInvalidInput, err.Error())
}

// ValidateUserAuth bounds the length of a caller-supplied token and
// compose password. Both are opaque bytes handed to the keystore gateway
// as wrapping material, so an empty token is a legitimate credential —
// NullUserAuth is one — but an unbounded one is still a malformed
// request, not a valid credential.
func ValidateUserAuth(auth UserAuth) error {
	return WrapValidationError(validation.ValidateStruct(&auth,
		validation.Field(&auth.Token, validation.Length(0, maxAuthLen)),
		validation.Field(&auth.ComposePwd, validation.Length(0, maxAuthLen)),
	))
}

// ValidatePaths rejects an empty path list or any path that is blank or
// not absolute.
func ValidatePaths(paths []string) error {
	if len(paths) == 0 {
		return WrapValidationError(validation.NewError("validation_required", "paths must not be empty"))
	}
	for _, p := range paths {
		if err := validation.Validate(p, validation.Required.Error("path is required"), notBlank, absPath); err != nil {
			return WrapValidationError(err)
		}
	}
	return nil
}
