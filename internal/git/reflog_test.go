package git

import (
	"errors"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
)

func TestParseReflogLine(t *testing.T) {
	t.Parallel()

	line := "0000000000000000000000000000000000000000 89ab89ab89ab89ab89ab89ab89ab89ab89ab89ab " +
		"Jane Doe <jane@example.com> 1700000000 +0100\tcheckout: moving from main to issue/42"
	entry, ok := parseReflogLine(line)
	if !ok {
		t.Fatalf("parseReflogLine failed")
	}
	if entry.NewHash != "89ab89ab89ab89ab89ab89ab89ab89ab89ab89ab" {
		t.Fatalf("NewHash = %q", entry.NewHash)
	}
	if entry.Committer != "Jane Doe <jane@example.com>" {
		t.Fatalf("Committer = %q", entry.Committer)
	}
	if entry.When.Unix() != 1700000000 {
		t.Fatalf("When = %v", entry.When)
	}
	if entry.Message != "checkout: moving from main to issue/42" {
		t.Fatalf("Message = %q", entry.Message)
	}

	if _, ok := parseReflogLine("garbage"); ok {
		t.Fatalf("expected malformed line to be skipped")
	}
}

func TestParseCheckoutMessage(t *testing.T) {
	t.Parallel()

	from, to, ok := parseCheckoutMessage("checkout: moving from feature/x to issue/42")
	if !ok || from != "feature/x" || to != "issue/42" {
		t.Fatalf("got (%q, %q, %v)", from, to, ok)
	}
	if _, _, ok := parseCheckoutMessage("commit: something"); ok {
		t.Fatalf("non-checkout message accepted")
	}
}

func TestFindMergeTarget_FromReflog(t *testing.T) {
	_, _, svc := initTestRepo(t)

	if err := svc.CreateAndCheckout("feature/x"); err != nil {
		t.Fatalf("CreateAndCheckout feature/x: %v", err)
	}
	if err := svc.CreateAndCheckout("issue/42"); err != nil {
		t.Fatalf("CreateAndCheckout issue/42: %v", err)
	}

	target, err := svc.FindMergeTarget("issue/42")
	if err != nil {
		t.Fatalf("FindMergeTarget: %v", err)
	}
	if target != "feature/x" {
		t.Fatalf("target = %q, want %q (not the main branch)", target, "feature/x")
	}
}

func TestFindMergeTarget_RecreatedBranchUsesLatestSource(t *testing.T) {
	_, repo, svc := initTestRepo(t)

	if err := svc.CreateAndCheckout("issue/7"); err != nil {
		t.Fatalf("CreateAndCheckout issue/7: %v", err)
	}
	if err := svc.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	// Delete the issue branch out-of-band, as the issue workflow does
	// after an abandoned attempt.
	if err := repo.Storer.RemoveReference(plumbing.NewBranchReferenceName("issue/7")); err != nil {
		t.Fatalf("RemoveReference: %v", err)
	}
	if err := svc.CreateAndCheckout("feature/y"); err != nil {
		t.Fatalf("CreateAndCheckout feature/y: %v", err)
	}
	if err := svc.CreateAndCheckout("issue/7"); err != nil {
		t.Fatalf("recreate issue/7: %v", err)
	}

	target, err := svc.FindMergeTarget("issue/7")
	if err != nil {
		t.Fatalf("FindMergeTarget: %v", err)
	}
	if target != "feature/y" {
		t.Fatalf("target = %q, want most recent source %q", target, "feature/y")
	}
}

func TestFindMergeTarget_SkipsIssueBranchCandidates(t *testing.T) {
	_, _, svc := initTestRepo(t)

	if err := svc.CreateAndCheckout("issue/1"); err != nil {
		t.Fatalf("CreateAndCheckout issue/1: %v", err)
	}
	if err := svc.CreateAndCheckout("issue/2"); err != nil {
		t.Fatalf("CreateAndCheckout issue/2: %v", err)
	}

	// issue/2 was literally created from issue/1, but issue branches must
	// not chain; with no other evidence the scan reports no provenance.
	_, err := svc.FindMergeTarget("issue/2")
	if !errors.Is(err, ErrNoProvenance) {
		t.Fatalf("FindMergeTarget() error = %v, want ErrNoProvenance", err)
	}
}

func TestFindMergeTarget_NoEvidence(t *testing.T) {
	_, _, svc := initTestRepo(t)

	_, err := svc.FindMergeTarget("issue/never-created")
	if !errors.Is(err, ErrNoProvenance) {
		t.Fatalf("FindMergeTarget() error = %v, want ErrNoProvenance", err)
	}
}

type stubProvenance map[string]string

func (s stubProvenance) SourceBranch(issueBranch string) (string, bool) {
	src, ok := s[issueBranch]
	return src, ok
}

func TestBranchCreationPoint_ExternalFallback(t *testing.T) {
	dir, _, svc := initTestRepo(t)

	if err := svc.CreateAndCheckout("feature/z"); err != nil {
		t.Fatalf("CreateAndCheckout feature/z: %v", err)
	}

	// Re-open with a provenance store; the reflog knows nothing about
	// issue/9 so the external record must answer.
	svc2, err := Open(dir, Options{Provenance: stubProvenance{"issue/9": "feature/z"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	source, evidence, err := svc2.BranchCreationPoint("issue/9")
	if err != nil {
		t.Fatalf("BranchCreationPoint: %v", err)
	}
	if source != "feature/z" || evidence != EvidenceExternal {
		t.Fatalf("got (%q, %q), want (feature/z, external)", source, evidence)
	}
}

func TestBranchCreationPoint_PrefersReflog(t *testing.T) {
	dir, _, svc := initTestRepo(t)

	if err := svc.CreateAndCheckout("issue/5"); err != nil {
		t.Fatalf("CreateAndCheckout issue/5: %v", err)
	}
	svc2, err := Open(dir, Options{Provenance: stubProvenance{"issue/5": "stale-record"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	source, evidence, err := svc2.BranchCreationPoint("issue/5")
	if err != nil {
		t.Fatalf("BranchCreationPoint: %v", err)
	}
	if source != "main" || evidence != EvidenceReflog {
		t.Fatalf("got (%q, %q), want (main, reflog)", source, evidence)
	}
}

func TestRecentOperations_NewestFirstAndCapped(t *testing.T) {
	_, _, svc := initTestRepo(t)

	for _, name := range []string{"a", "b", "c"} {
		if err := svc.CreateAndCheckout(name); err != nil {
			t.Fatalf("CreateAndCheckout %s: %v", name, err)
		}
	}
	entries, err := svc.RecentOperations(2)
	if err != nil {
		t.Fatalf("RecentOperations: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Message != "checkout: moving from b to c" {
		t.Fatalf("entries[0].Message = %q", entries[0].Message)
	}
	if entries[1].Message != "checkout: moving from a to b" {
		t.Fatalf("entries[1].Message = %q", entries[1].Message)
	}
}
