package git

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Signature identifies an author or committer.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitInfo is a transient view of one commit, materialized per query.
type CommitInfo struct {
	Hash        string
	ShortHash   string
	Message     string
	Summary     string
	Author      Signature
	Committer   Signature
	ParentCount int
}

func newCommitInfo(c *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:        c.Hash.String(),
		ShortHash:   c.Hash.String()[:7],
		Message:     c.Message,
		Summary:     formatSummary(c),
		Author:      Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer:   Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		ParentCount: len(c.ParentHashes),
	}
}

func commitSubject(c *object.Commit) string {
	return strings.SplitN(strings.TrimSpace(c.Message), "\n", 2)[0]
}

func formatSummary(c *object.Commit) string {
	firstLine := commitSubject(c)
	if len(firstLine) > 80 {
		firstLine = firstLine[:77] + "..."
	}
	timestamp := c.Committer.When.Format("2006-01-02 15:04")
	return fmt.Sprintf("%s  %s  %s", c.Hash.String()[:7], timestamp, firstLine)
}

// LastCommitSummary returns a single pipe-delimited line for the HEAD
// commit: id, subject, author name and an ISO-8601 timestamp, in that
// fixed order for downstream parsers.
func (s *Service) LastCommitSummary() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.repo.headCommitHash()
	if err != nil {
		return "", err
	}
	commit, err := s.repo.CommitObject(hash)
	if err != nil {
		return "", repoErr("read HEAD commit", err)
	}
	return fmt.Sprintf("%s | %s | %s | %s",
		commit.Hash,
		commitSubject(commit),
		commit.Author.Name,
		commit.Author.When.Format(time.RFC3339),
	), nil
}

// History walks commit ancestry from HEAD, newest-first. limit <= 0 walks
// everything.
func (s *Service) History(limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.repo.headCommitHash()
	if err != nil {
		return nil, err
	}
	return s.collectLocked(hash, limit, nil)
}

// BranchHistory is History seeded from the given branch instead of HEAD.
func (s *Service) BranchHistory(branch string, limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.repo.branchHash(branch)
	if err != nil {
		return nil, err
	}
	return s.collectLocked(hash, limit, nil)
}

// UniqueToBranch returns the commits reachable from branch but not from
// base, computed by pruning the walk at their merge bases. This is the
// "what would this merge bring in" view.
func (s *Service) UniqueToBranch(branch, base string) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branchHash, err := s.repo.branchHash(branch)
	if err != nil {
		return nil, err
	}
	baseHash, err := s.repo.branchHash(base)
	if err != nil {
		return nil, err
	}
	branchCommit, err := s.repo.CommitObject(branchHash)
	if err != nil {
		return nil, repoErr("read branch commit", err)
	}
	baseCommit, err := s.repo.CommitObject(baseHash)
	if err != nil {
		return nil, repoErr("read base commit", err)
	}
	mergeBases, err := branchCommit.MergeBase(baseCommit)
	if err != nil {
		return nil, repoErr("find merge base", err)
	}
	ignore := make([]plumbing.Hash, 0, len(mergeBases)+1)
	for _, mb := range mergeBases {
		ignore = append(ignore, mb.Hash)
	}
	ignore = append(ignore, baseHash)

	var infos []CommitInfo
	iter := object.NewCommitIterCTime(branchCommit, nil, ignore)
	defer iter.Close()
	err = iter.ForEach(func(c *object.Commit) error {
		infos = append(infos, newCommitInfo(c))
		return nil
	})
	if err != nil {
		return nil, repoErr("walk branch commits", err)
	}
	return infos, nil
}

// ByAuthor filters History down to commits whose author name or email
// contains the given substring, case-insensitively.
func (s *Service) ByAuthor(nameOrEmail string, limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.repo.headCommitHash()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(nameOrEmail)
	return s.collectLocked(hash, limit, func(c *object.Commit) bool {
		return strings.Contains(strings.ToLower(c.Author.Name), needle) ||
			strings.Contains(strings.ToLower(c.Author.Email), needle)
	})
}

// InRange windows History to commits committed in [since, until].
func (s *Service) InRange(since, until time.Time) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.repo.headCommitHash()
	if err != nil {
		return nil, err
	}
	iter, err := s.repo.Log(&gitlib.LogOptions{
		From:  hash,
		Order: gitlib.LogOrderCommitterTime,
		Since: &since,
		Until: &until,
	})
	if err != nil {
		return nil, repoErr("read commits", err)
	}
	defer iter.Close()

	var infos []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		infos = append(infos, newCommitInfo(c))
		return nil
	})
	if err != nil {
		return nil, repoErr("iterate commits", err)
	}
	return infos, nil
}

func (s *Service) collectLocked(from plumbing.Hash, limit int, keep func(*object.Commit) bool) ([]CommitInfo, error) {
	iter, err := s.repo.Log(&gitlib.LogOptions{From: from, Order: gitlib.LogOrderCommitterTime})
	if err != nil {
		return nil, repoErr("read commits", err)
	}
	defer iter.Close()

	var infos []CommitInfo
	for {
		if limit > 0 && len(infos) >= limit {
			break
		}
		commit, err := iter.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, repoErr("iterate commits", err)
		}
		if keep != nil && !keep(commit) {
			continue
		}
		infos = append(infos, newCommitInfo(commit))
	}
	return infos, nil
}
