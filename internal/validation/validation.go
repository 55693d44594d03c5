package validation

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	trixerrors "trix/internal/errors"
)

// ReservedDir is the repository directory no staged path may enter.
const ReservedDir = ".trix"

type Validator interface {
	Validate() error
}

// All returns the first failure among validators.
func All(validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CommitMessage rejects blank messages. Messages must be valid UTF-8 so
// they survive the JSON commit record unchanged.
func CommitMessage(message string) error {
	if !utf8.ValidString(message) {
		return trixerrors.ValidationError("commit message must be valid UTF-8")
	}
	if strings.TrimSpace(message) == "" {
		return trixerrors.ValidationError("commit message cannot be empty")
	}
	return nil
}

// RepoPath checks that p is a clean, slash-separated path relative to the
// work tree root and outside the repository directory. Paths must be valid
// UTF-8 because the index stores them as JSON strings.
func RepoPath(p string) error {
	switch {
	case p == "":
		return trixerrors.ValidationError("path cannot be empty")
	case !utf8.ValidString(p):
		return trixerrors.ValidationError(fmt.Sprintf("path %q is not valid UTF-8", p))
	case strings.ContainsRune(p, '\\'):
		return trixerrors.ValidationError(fmt.Sprintf("path %q must use forward slashes", p))
	case strings.HasPrefix(p, "/"):
		return trixerrors.ValidationError(fmt.Sprintf("path %q must be relative to the repository root", p))
	case path.Clean(p) != p || p == ".":
		return trixerrors.ValidationError(fmt.Sprintf("path %q is not clean", p))
	case p == ".." || strings.HasPrefix(p, "../"):
		return trixerrors.ValidationError(fmt.Sprintf("path %q is outside the repository", p))
	case p == ReservedDir || strings.HasPrefix(p, ReservedDir+"/"):
		return trixerrors.ValidationError(fmt.Sprintf("path %q is inside the repository directory", p))
	}
	return nil
}
