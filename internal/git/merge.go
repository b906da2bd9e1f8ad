package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// MergeClassification describes the relationship between source and target
// at the moment a merge is attempted. Computed per attempt, never stored.
type MergeClassification uint8

const (
	// MergeUpToDate means the target already contains the source.
	MergeUpToDate MergeClassification = iota
	// MergeFastForward means the target's history is a strict prefix of
	// the source's.
	MergeFastForward
	// MergeNormal means the branches diverged and need a three-way merge.
	MergeNormal
	// MergeUnmerged means the branches share no usable merge base.
	MergeUnmerged
)

func (c MergeClassification) String() string {
	switch c {
	case MergeUpToDate:
		return "up-to-date"
	case MergeFastForward:
		return "fast-forward"
	case MergeNormal:
		return "normal"
	default:
		return "unmerged"
	}
}

// MergeResult reports a completed merge. Commit is empty when the
// classification was up-to-date and nothing was created.
type MergeResult struct {
	Classification MergeClassification
	Commit         string
	Target         string
	// Evidence is set when the target was resolved implicitly.
	Evidence EvidenceKind
}

// Merge merges source into target. When target is empty it is resolved
// from branch provenance (reflog first, external store second); if that
// fails an abort artifact is written for the operator.
//
// Fast-forward-eligible merges are never plain pointer moves: the engine
// always records an explicit merge commit with parents (target, source).
// Conflicts leave marker files plus an abort artifact and move no
// references.
func (s *Service) Merge(source, target string) (*MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return nil, repoErr("merge", errors.New("native repository access required"))
	}

	exists, err := s.branchExistsLocked(source)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, source)
	}

	var evidence EvidenceKind
	if target == "" {
		target, evidence, err = s.branchCreationPointLocked(source)
		if err != nil {
			if errors.Is(err, ErrNoProvenance) {
				reason := fmt.Sprintf(
					"No merge target could be determined for branch '%s'.\n"+
						"The repository history no longer records which branch it was created\n"+
						"from. Merge again with an explicit target branch.", source)
				if artifactErr := writeAbortArtifact(s.repo.Root(), reason, nil); artifactErr != nil {
					slog.Error("abort artifact not written", slog.Any("error", artifactErr))
				}
			}
			return nil, err
		}
		slog.Debug("merge target resolved",
			slog.String("source", source),
			slog.String("target", target),
			slog.String("evidence", string(evidence)),
		)
	}

	if err := s.checkoutLocked(target); err != nil {
		return nil, err
	}

	sourceHash, err := s.repo.branchHash(source)
	if err != nil {
		return nil, err
	}
	targetHash, err := s.repo.branchHash(target)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{Target: target, Evidence: evidence}
	if sourceHash == targetHash {
		result.Classification = MergeUpToDate
		return result, nil
	}

	sourceCommit, err := s.repo.CommitObject(sourceHash)
	if err != nil {
		return nil, repoErr("read source commit", err)
	}
	targetCommit, err := s.repo.CommitObject(targetHash)
	if err != nil {
		return nil, repoErr("read target commit", err)
	}
	bases, err := sourceCommit.MergeBase(targetCommit)
	if err != nil {
		return nil, repoErr("find merge base", err)
	}
	if len(bases) == 0 {
		reason := fmt.Sprintf(
			"Branches '%s' and '%s' share no common history, so there is no\n"+
				"valid base to merge from. The repository is in a state this tool\n"+
				"cannot resolve; a person needs to decide how to reconcile the two\n"+
				"histories.", source, target)
		if artifactErr := writeAbortArtifact(s.repo.Root(), reason, nil); artifactErr != nil {
			slog.Error("abort artifact not written", slog.Any("error", artifactErr))
		}
		return nil, fmt.Errorf("%w: %s and %s", ErrNoMergeBase, source, target)
	}
	base := bases[0]

	if base.Hash == sourceHash {
		// Source is already contained in target.
		result.Classification = MergeUpToDate
		return result, nil
	}

	message := fmt.Sprintf("Merge branch '%s' into %s", source, target)
	parents := []plumbing.Hash{targetHash, sourceHash}

	if base.Hash == targetHash {
		// Fast-forward eligible. Record an explicit merge commit whose
		// tree is the source tree instead of advancing the pointer.
		result.Classification = MergeFastForward
		commit, err := s.finishMergeLocked(source, target, targetHash, sourceCommit.TreeHash, parents, message)
		if err != nil {
			return nil, err
		}
		result.Commit = commit
		return result, nil
	}

	result.Classification = MergeNormal
	baseEntries, err := commitTreeEntries(base)
	if err != nil {
		return nil, err
	}
	targetEntries, err := commitTreeEntries(targetCommit)
	if err != nil {
		return nil, err
	}
	sourceEntries, err := commitTreeEntries(sourceCommit)
	if err != nil {
		return nil, err
	}

	merged, conflicts, err := s.mergeTreeEntries(baseEntries, targetEntries, sourceEntries, target, source)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, s.reportConflictsLocked(source, target, conflicts)
	}

	treeHash, err := s.buildTree(merged)
	if err != nil {
		return nil, err
	}
	commit, err := s.finishMergeLocked(source, target, targetHash, treeHash, parents, message)
	if err != nil {
		return nil, err
	}
	result.Commit = commit
	return result, nil
}

// finishMergeLocked creates the merge commit, advances the target branch,
// records the reflog line and syncs the working tree. The commit object is
// written before any reference moves, so a failure part-way never leaves a
// reference at a commit that does not exist.
func (s *Service) finishMergeLocked(source, target string, targetHash, treeHash plumbing.Hash, parents []plumbing.Hash, message string) (string, error) {
	sig := repoSignature(s.repo)
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}
	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", repoErr("encode merge commit", err)
	}
	commitHash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", repoErr("store merge commit", err)
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(target), commitHash)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return "", repoErr("update target branch", err)
	}
	reflogMsg := fmt.Sprintf("merge %s: Merge made by gitmerge", source)
	if err := appendHeadReflog(s.repo, targetHash.String(), commitHash.String(), reflogMsg); err != nil {
		return "", err
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return "", repoErr("open worktree", err)
	}
	if err := wt.Reset(&gitlib.ResetOptions{Mode: gitlib.HardReset, Commit: commitHash}); err != nil {
		return "", repoErr("sync working tree", err)
	}
	slog.Debug("merge committed",
		slog.String("source", source),
		slog.String("target", target),
		slog.String("commit", commitHash.String()),
	)
	return commitHash.String(), nil
}

// reportConflictsLocked materializes conflict markers in the working tree,
// writes the abort artifact and returns the MergeConflictError carrying the
// same file list.
func (s *Service) reportConflictsLocked(source, target string, conflicts []fileConflict) error {
	files := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		files = append(files, c.path)
		if c.content == nil {
			continue
		}
		full := filepath.Join(s.repo.Root(), c.path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return repoErr("write conflict markers", err)
		}
		if err := os.WriteFile(full, c.content, 0o644); err != nil {
			return repoErr("write conflict markers", err)
		}
	}
	reason := fmt.Sprintf(
		"Merging branch '%s' into '%s' hit changes that conflict with each\n"+
			"other. The merge was not committed and '%s' was not moved.", source, target, target)
	if err := writeAbortArtifact(s.repo.Root(), reason, files); err != nil {
		slog.Error("abort artifact not written", slog.Any("error", err))
	}
	slog.Debug("merge conflicted",
		slog.String("source", source),
		slog.String("target", target),
		slog.Int("files", len(files)),
	)
	return &MergeConflictError{Files: files}
}
