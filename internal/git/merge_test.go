package git

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
)

func TestMerge_UpToDate(t *testing.T) {
	_, _, svc := initTestRepo(t)

	before, err := svc.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	result, err := svc.Merge("main", "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Classification != MergeUpToDate {
		t.Fatalf("classification = %s, want up-to-date", result.Classification)
	}
	if result.Commit != "" {
		t.Fatalf("up-to-date merge created commit %s", result.Commit)
	}
	after, err := svc.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("history grew from %d to %d", len(before), len(after))
	}
}

func TestMerge_FastForwardForcesMergeCommit(t *testing.T) {
	dir, repo, svc := initTestRepo(t)

	commitFile(t, repo, dir, "b.txt", "b\n", "commit B")
	targetBefore := resolveBranch(t, repo, "main")

	if _, err := svc.CreateIssueBranch("1"); err != nil {
		t.Fatalf("CreateIssueBranch: %v", err)
	}
	sourceHead := commitFile(t, repo, dir, "c.txt", "c\n", "commit C")

	// No explicit target: provenance comes from the reflog.
	result, err := svc.Merge("issue/1", "")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Target != "main" {
		t.Fatalf("target = %q, want main", result.Target)
	}
	if result.Evidence != EvidenceReflog {
		t.Fatalf("evidence = %q, want reflog", result.Evidence)
	}
	if result.Classification != MergeFastForward {
		t.Fatalf("classification = %s, want fast-forward", result.Classification)
	}

	mergeHash := resolveBranch(t, repo, "main")
	if mergeHash.String() != result.Commit {
		t.Fatalf("main = %s, result commit %s", mergeHash, result.Commit)
	}
	commit, err := repo.CommitObject(mergeHash)
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	wantParents := []plumbing.Hash{targetBefore, sourceHead}
	if !slices.Equal(commit.ParentHashes, wantParents) {
		t.Fatalf("parents = %v, want %v", commit.ParentHashes, wantParents)
	}

	history, err := svc.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	// The worktree reflects the merge.
	if got := readWorktreeFile(t, dir, "c.txt"); got != "c\n" {
		t.Fatalf("c.txt = %q after merge", got)
	}
}

func TestMerge_AlreadyMergedIsUpToDate(t *testing.T) {
	dir, repo, svc := initTestRepo(t)

	if _, err := svc.CreateIssueBranch("2"); err != nil {
		t.Fatalf("CreateIssueBranch: %v", err)
	}
	commitFile(t, repo, dir, "work.txt", "w\n", "issue work")
	if _, err := svc.Merge("issue/2", "main"); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	result, err := svc.Merge("issue/2", "main")
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if result.Classification != MergeUpToDate {
		t.Fatalf("classification = %s, want up-to-date", result.Classification)
	}
}

func TestMerge_DivergentWithoutConflicts(t *testing.T) {
	dir, repo, svc := initTestRepo(t)

	if _, err := svc.CreateIssueBranch("3"); err != nil {
		t.Fatalf("CreateIssueBranch: %v", err)
	}
	commitFile(t, repo, dir, "from-issue.txt", "issue side\n", "issue commit")

	if err := svc.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	commitFile(t, repo, dir, "from-main.txt", "main side\n", "main commit")

	result, err := svc.Merge("issue/3", "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Classification != MergeNormal {
		t.Fatalf("classification = %s, want normal", result.Classification)
	}

	commit, err := repo.CommitObject(resolveBranch(t, repo, "main"))
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	if len(commit.ParentHashes) != 2 {
		t.Fatalf("parents = %v, want two", commit.ParentHashes)
	}
	tree, err := commit.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	for _, name := range []string{"from-issue.txt", "from-main.txt"} {
		if _, err := tree.File(name); err != nil {
			t.Fatalf("merged tree missing %s: %v", name, err)
		}
	}
	// Both sets of changes are in the working tree too.
	if got := readWorktreeFile(t, dir, "from-issue.txt"); got != "issue side\n" {
		t.Fatalf("from-issue.txt = %q", got)
	}
}

func TestMerge_SameFileDifferentRegions(t *testing.T) {
	dir, repo, svc := initTestRepo(t)

	commitFile(t, repo, dir, "shared.txt", "top\nmiddle\nbottom\n", "add shared")

	if _, err := svc.CreateIssueBranch("4"); err != nil {
		t.Fatalf("CreateIssueBranch: %v", err)
	}
	commitFile(t, repo, dir, "shared.txt", "top\nmiddle\nBOTTOM\n", "issue edits bottom")

	if err := svc.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	commitFile(t, repo, dir, "shared.txt", "TOP\nmiddle\nbottom\n", "main edits top")

	result, err := svc.Merge("issue/4", "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Classification != MergeNormal {
		t.Fatalf("classification = %s, want normal", result.Classification)
	}
	if got := readWorktreeFile(t, dir, "shared.txt"); got != "TOP\nmiddle\nBOTTOM\n" {
		t.Fatalf("shared.txt = %q, want both edits", got)
	}
}

func TestMerge_ConflictReportsFilesAndWritesArtifact(t *testing.T) {
	dir, repo, svc := initTestRepo(t)

	commitFile(t, repo, dir, "conflict.txt", "line1\nline2\nline3\n", "add conflict file")

	if _, err := svc.CreateIssueBranch("5"); err != nil {
		t.Fatalf("CreateIssueBranch: %v", err)
	}
	commitFile(t, repo, dir, "conflict.txt", "line1\nissue version\nline3\n", "issue edit")

	if err := svc.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	commitFile(t, repo, dir, "conflict.txt", "line1\nmain version\nline3\n", "main edit")
	mainBefore := resolveBranch(t, repo, "main")

	_, err := svc.Merge("issue/5", "main")
	var conflict *MergeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Merge() error = %v, want MergeConflictError", err)
	}
	if !slices.Equal(conflict.Files, []string{"conflict.txt"}) {
		t.Fatalf("conflict files = %v", conflict.Files)
	}

	// No reference moved.
	if after := resolveBranch(t, repo, "main"); after != mainBefore {
		t.Fatalf("main moved on conflict: %s -> %s", mainBefore, after)
	}

	// The conflicted file carries markers for both sides.
	content := readWorktreeFile(t, dir, "conflict.txt")
	for _, marker := range []string{"<<<<<<< main", "main version", "=======", "issue version", ">>>>>>> issue/5"} {
		if !strings.Contains(content, marker) {
			t.Fatalf("conflict.txt missing %q:\n%s", marker, content)
		}
	}

	// The abort artifact lists the same path.
	artifact, err := os.ReadFile(filepath.Join(dir, AbortFileName))
	if err != nil {
		t.Fatalf("abort artifact: %v", err)
	}
	if !strings.Contains(string(artifact), "conflict.txt") {
		t.Fatalf("artifact does not list conflicted file:\n%s", artifact)
	}
}

func TestMerge_NoProvenanceWritesArtifact(t *testing.T) {
	dir, repo, svc := initTestRepo(t)

	// Branch created out-of-band: no reflog evidence, no provenance store.
	head := resolveBranch(t, repo, "main")
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName("issue/99"), head)
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("SetReference: %v", err)
	}

	_, err := svc.Merge("issue/99", "")
	if !errors.Is(err, ErrNoProvenance) {
		t.Fatalf("Merge() error = %v, want ErrNoProvenance", err)
	}
	if _, err := os.Stat(filepath.Join(dir, AbortFileName)); err != nil {
		t.Fatalf("abort artifact missing: %v", err)
	}
}

func TestMerge_DisjointHistories(t *testing.T) {
	dir, repo, svc := initTestRepo(t)

	// Build an orphan branch whose first commit has no parents.
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("orphan"))); err != nil {
		t.Fatalf("SetReference: %v", err)
	}
	commitFile(t, repo, dir, "orphan.txt", "o\n", "orphan root")

	_, err := svc.Merge("orphan", "main")
	if !errors.Is(err, ErrNoMergeBase) {
		t.Fatalf("Merge() error = %v, want ErrNoMergeBase", err)
	}
	if _, err := os.Stat(filepath.Join(dir, AbortFileName)); err != nil {
		t.Fatalf("abort artifact missing: %v", err)
	}
}

func TestMerge_MissingSource(t *testing.T) {
	_, _, svc := initTestRepo(t)

	if _, err := svc.Merge("ghost", "main"); !errors.Is(err, ErrBranchNotFound) {
		t.Fatalf("Merge() error = %v, want ErrBranchNotFound", err)
	}
}
