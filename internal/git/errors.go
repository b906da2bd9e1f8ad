package git

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotARepository is returned when discovery walks up to the
	// filesystem root without finding a repository.
	ErrNotARepository = errors.New("not a git repository")

	ErrInvalidBranchName   = errors.New("invalid branch name")
	ErrBranchNotFound      = errors.New("branch not found")
	ErrBranchAlreadyExists = errors.New("branch already exists")
	ErrDetachedHead        = errors.New("HEAD is detached")
	ErrUnbornBranch        = errors.New("HEAD points to an unborn branch")
	ErrNoMainBranch        = errors.New("no main branch found")
	ErrNoProvenance        = errors.New("no branch provenance found")
	ErrNoMergeBase         = errors.New("branches share no common history")
)

// RepositoryError wraps an underlying object-store failure with the
// operation that hit it. It is the catch-all for faults that are not one of
// the sentinel conditions above.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

func repoErr(op string, err error) error {
	return &RepositoryError{Op: op, Err: err}
}

// MergeConflictError reports a merge that stopped on conflicting changes.
// Files holds every conflicted path, sorted, matching the paths listed in
// the abort artifact.
type MergeConflictError struct {
	Files []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %d file(s): %s", len(e.Files), strings.Join(e.Files, ", "))
}
