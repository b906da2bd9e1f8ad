package git

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// mainBranchCandidates are tried in order by MainBranch.
var mainBranchCandidates = []string{"main", "master"}

// CurrentBranch returns the branch HEAD points at. Branch-oriented
// workflows need a named branch, so a detached HEAD is a distinct failure
// rather than a hash result.
func (s *Service) CurrentBranch() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentBranchLocked()
}

func (s *Service) currentBranchLocked() (string, error) {
	_, name, ok, err := s.backend.HeadState()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUnbornBranch
	}
	if name == "HEAD" {
		return "", ErrDetachedHead
	}
	return name, nil
}

// BranchExists reports whether a local branch exists. A missing branch is a
// false result, never an error; only repository-level faults error.
func (s *Service) BranchExists(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branchExistsLocked(name)
}

func (s *Service) branchExistsLocked(name string) (bool, error) {
	names, err := s.backend.ListBranchNames()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// LocalBranchNames returns the sorted local branch names plus the current
// HEAD name ("HEAD" when detached or unborn).
func (s *Service) LocalBranchNames() ([]string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.backend.ListBranchNames()
	if err != nil {
		return nil, "", err
	}
	_, headName, ok, err := s.backend.HeadState()
	if err != nil {
		return nil, "", err
	}
	if !ok || strings.TrimSpace(headName) == "" {
		headName = "HEAD"
	}
	return names, headName, nil
}

// ValidateBranchName checks a name against git's reference-naming rules.
// Purely syntactic; existence is not consulted.
func ValidateBranchName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidBranchName)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: %q starts with a dash", ErrInvalidBranchName, name)
	}
	if err := plumbing.NewBranchReferenceName(name).Validate(); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidBranchName, name, err)
	}
	return nil
}

// CreateAndCheckout creates a branch at the current HEAD commit and
// switches to it, syncing the working tree. Requires the name to be valid
// and unused and HEAD to resolve to a commit. Either the reference update
// and tree sync both happen or the operation fails without moving HEAD.
func (s *Service) CreateAndCheckout(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAndCheckoutLocked(name)
}

func (s *Service) createAndCheckoutLocked(name string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	exists, err := s.branchExistsLocked(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrBranchAlreadyExists, name)
	}
	_, _, ok, err := s.backend.HeadState()
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnbornBranch
	}
	if err := s.backend.Checkout(name, true); err != nil {
		return err
	}
	slog.Debug("branch created", slog.String("branch", name))
	return nil
}

// Checkout switches HEAD to an existing branch and syncs the working tree.
// It does not guard against overwriting uncommitted changes; callers
// wanting that safety consult HasUncommittedChanges first.
func (s *Service) Checkout(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkoutLocked(name)
}

func (s *Service) checkoutLocked(name string) error {
	exists, err := s.branchExistsLocked(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	if err := s.backend.Checkout(name, false); err != nil {
		return err
	}
	slog.Debug("checked out", slog.String("branch", name))
	return nil
}

// MainBranch returns the repository's integration branch, trying the
// conventional name first and the historical fallback second.
func (s *Service) MainBranch() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mainBranchLocked()
}

func (s *Service) mainBranchLocked() (string, error) {
	for _, name := range mainBranchCandidates {
		exists, err := s.branchExistsLocked(name)
		if err != nil {
			return "", err
		}
		if exists {
			return name, nil
		}
	}
	return "", ErrNoMainBranch
}
