package git

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// ReflogEntry is one line of the HEAD reflog, read-only historical evidence
// of where HEAD pointed and why it moved.
type ReflogEntry struct {
	OldHash   string
	NewHash   string
	Committer string
	When      time.Time
	Message   string
}

// EvidenceKind reports which source answered a provenance question. Reflog
// evidence is first-hand; external evidence comes from the injected
// ProvenanceStore and is only consulted when the reflog has expired.
type EvidenceKind string

const (
	EvidenceReflog   EvidenceKind = "reflog"
	EvidenceExternal EvidenceKind = "external"
)

func headReflogPath(repo *repoHandle) string {
	return filepath.Join(repo.GitDir(), "logs", "HEAD")
}

// readHeadReflog returns the HEAD reflog newest-first. A missing log file is
// an empty history, not an error.
func readHeadReflog(repo *repoHandle) ([]ReflogEntry, error) {
	f, err := os.Open(headReflogPath(repo))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, repoErr("read HEAD reflog", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry, ok := parseReflogLine(scanner.Text())
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, repoErr("read HEAD reflog", err)
	}
	// The file is oldest-first; callers want newest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// parseReflogLine parses git's reflog format:
//
//	<old> <new> <name> <<email>> <unix> <tz>\t<message>
func parseReflogLine(line string) (ReflogEntry, bool) {
	header, message, _ := strings.Cut(line, "\t")
	fields := strings.Fields(header)
	if len(fields) < 4 {
		return ReflogEntry{}, false
	}
	var entry ReflogEntry
	entry.OldHash = fields[0]
	entry.NewHash = fields[1]
	entry.Message = strings.TrimSpace(message)

	tz := fields[len(fields)-1]
	unix, err := strconv.ParseInt(fields[len(fields)-2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	entry.When = time.Unix(unix, 0)
	if loc, locErr := parseTimezone(tz); locErr == nil {
		entry.When = entry.When.In(loc)
	}
	entry.Committer = strings.Join(fields[2:len(fields)-2], " ")
	return entry, true
}

func parseTimezone(tz string) (*time.Location, error) {
	if len(tz) != 5 {
		return nil, fmt.Errorf("malformed timezone %q", tz)
	}
	t, err := time.Parse("-0700", tz)
	if err != nil {
		return nil, err
	}
	return t.Location(), nil
}

// appendHeadReflog records one HEAD movement in git's reflog format. go-git
// performs no reflog bookkeeping of its own, so the native backend calls
// this after every checkout and merge.
func appendHeadReflog(repo *repoHandle, oldHash, newHash, message string) error {
	if oldHash == "" {
		oldHash = plumbing.ZeroHash.String()
	}
	sig := repoSignature(repo)
	line := fmt.Sprintf("%s %s %s <%s> %d %s\t%s\n",
		oldHash, newHash, sig.Name, sig.Email, sig.When.Unix(), sig.When.Format("-0700"), message)

	logPath := headReflogPath(repo)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return repoErr("append HEAD reflog", err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return repoErr("append HEAD reflog", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return repoErr("append HEAD reflog", err)
	}
	return nil
}

// parseCheckoutMessage decodes the "checkout: moving from A to B" reflog
// message. Reference names cannot contain spaces, so a plain cut on the
// separator is unambiguous.
func parseCheckoutMessage(message string) (from, to string, ok bool) {
	rest, ok := strings.CutPrefix(message, "checkout: moving from ")
	if !ok {
		return "", "", false
	}
	from, to, ok = strings.Cut(rest, " to ")
	if !ok || from == "" || to == "" {
		return "", "", false
	}
	return from, to, true
}

// FindMergeTarget reconstructs, from the HEAD reflog alone, which branch the
// given issue branch was created from. The newest matching checkout
// transition wins, so a branch deleted and recreated from a different source
// resolves to the most recent source. Candidates must still exist and must
// not themselves be issue branches.
func (s *Service) FindMergeTarget(issueBranch string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findMergeTargetLocked(issueBranch)
}

func (s *Service) findMergeTargetLocked(issueBranch string) (string, error) {
	entries, err := readHeadReflog(s.repo)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		from, to, ok := parseCheckoutMessage(entry.Message)
		if !ok || to != issueBranch {
			continue
		}
		if s.isIssueBranch(from) {
			continue
		}
		exists, err := s.branchExistsLocked(from)
		if err != nil {
			return "", err
		}
		if exists {
			return from, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoProvenance, issueBranch)
}

// RecentOperations returns up to limit reflog entries, newest-first.
func (s *Service) RecentOperations(limit int) ([]ReflogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := readHeadReflog(s.repo)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// BranchCreationPoint resolves a branch's source branch, preferring reflog
// evidence and falling back to the externally persisted provenance store
// when the reflog no longer remembers the creation.
func (s *Service) BranchCreationPoint(branch string) (string, EvidenceKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branchCreationPointLocked(branch)
}

func (s *Service) branchCreationPointLocked(branch string) (string, EvidenceKind, error) {
	source, err := s.findMergeTargetLocked(branch)
	if err == nil {
		return source, EvidenceReflog, nil
	}
	if !errors.Is(err, ErrNoProvenance) {
		return "", "", err
	}
	if s.opts.Provenance != nil {
		if source, ok := s.opts.Provenance.SourceBranch(branch); ok {
			exists, existsErr := s.branchExistsLocked(source)
			if existsErr != nil {
				return "", "", existsErr
			}
			if exists {
				return source, EvidenceExternal, nil
			}
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNoProvenance, branch)
}
