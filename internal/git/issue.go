package git

import "strings"

// IssueBranchName derives the conventional working-branch name for an issue
// identifier.
func (s *Service) IssueBranchName(issueID string) string {
	return s.issuePrefix() + issueID
}

func (s *Service) isIssueBranch(name string) bool {
	return strings.HasPrefix(name, s.issuePrefix())
}

// IsIssueBranch reports whether a branch follows the issue naming
// convention. Merge-target resolution refuses such branches as candidates
// so issue branches never chain onto each other.
func (s *Service) IsIssueBranch(name string) bool {
	return s.isIssueBranch(name)
}

// CreateIssueBranch creates and checks out the working branch for an issue,
// returning the branch name.
func (s *Service) CreateIssueBranch(issueID string) (string, error) {
	name := s.IssueBranchName(issueID)
	if err := s.CreateAndCheckout(name); err != nil {
		return "", err
	}
	return name, nil
}
