package git

// StatusSummary is the categorized breakdown of working-tree and index
// state, for diagnostics and reporting. Each slice is sorted by path.
type StatusSummary struct {
	StagedModified   []string
	UnstagedModified []string
	Untracked        []string
	Deleted          []string
	Renamed          []string
}

// Empty reports a fully clean summary.
func (s StatusSummary) Empty() bool {
	return len(s.StagedModified) == 0 &&
		len(s.UnstagedModified) == 0 &&
		len(s.Untracked) == 0 &&
		len(s.Deleted) == 0 &&
		len(s.Renamed) == 0
}

// ListChanges enumerates every changed path: staged, tracked-and-modified
// and untracked, ignored paths excluded. The order is deterministic (sorted
// by path) within a call.
func (s *Service) ListChanges() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes, err := s.backend.Status()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path)
	}
	return paths, nil
}

// HasUncommittedChanges reports whether any tracked work is staged or
// modified. Untracked files alone do not count: the gate protects tracked
// work during merges and checkouts, not stray new files.
func (s *Service) HasUncommittedChanges() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasUncommittedChangesLocked()
}

func (s *Service) hasUncommittedChangesLocked() (bool, error) {
	changes, err := s.backend.Status()
	if err != nil {
		return false, err
	}
	for _, c := range changes {
		if c.Staging != ChangeNone {
			return true, nil
		}
		if c.Worktree != ChangeNone && c.Worktree != ChangeUntracked {
			return true, nil
		}
	}
	return false, nil
}

// StatusSummary categorizes every change, a superset view over ListChanges
// and HasUncommittedChanges.
func (s *Service) StatusSummary() (StatusSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary StatusSummary
	changes, err := s.backend.Status()
	if err != nil {
		return summary, err
	}
	for _, c := range changes {
		switch {
		case c.Worktree == ChangeUntracked:
			summary.Untracked = append(summary.Untracked, c.Path)
			continue
		case c.Staging == ChangeDeleted || c.Worktree == ChangeDeleted:
			summary.Deleted = append(summary.Deleted, c.Path)
			continue
		case c.Staging == ChangeRenamed || c.Worktree == ChangeRenamed:
			summary.Renamed = append(summary.Renamed, c.Path)
			continue
		}
		if c.Staging != ChangeNone {
			summary.StagedModified = append(summary.StagedModified, c.Path)
		}
		if c.Worktree != ChangeNone {
			summary.UnstagedModified = append(summary.UnstagedModified, c.Path)
		}
	}
	return summary, nil
}
