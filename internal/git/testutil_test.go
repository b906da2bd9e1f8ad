package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitClock hands out strictly increasing timestamps so committer-time
// ordering is deterministic inside a test.
var commitClock = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func nextCommitTime() time.Time {
	commitClock = commitClock.Add(time.Minute)
	return commitClock
}

// initTestRepo creates an on-disk repository with a "main" default branch,
// one initial commit, and a Service opened on it. No git binary involved.
func initTestRepo(t *testing.T) (string, *gitlib.Repository, *Service) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gitlib.PlainInitWithOptions(dir, &gitlib.PlainInitOptions{
		InitOptions: gitlib.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	commitFile(t, repo, dir, "README.md", "initial\n", "initial commit")

	svc, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return dir, repo, svc
}

func commitFile(t *testing.T, repo *gitlib.Repository, dir, name, content, msg string) plumbing.Hash {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	when := nextCommitTime()
	hash, err := wt.Commit(msg, &gitlib.CommitOptions{
		Author:    &object.Signature{Name: "Test Author", Email: "test@example.com", When: when},
		Committer: &object.Signature{Name: "Test Author", Email: "test@example.com", When: when},
	})
	if err != nil {
		t.Fatalf("commit %s: %v", msg, err)
	}
	return hash
}

func resolveBranch(t *testing.T, repo *gitlib.Repository, name string) plumbing.Hash {
	t.Helper()
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return ref.Hash()
}

func readWorktreeFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}
