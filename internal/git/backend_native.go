package git

import (
	"errors"
	"fmt"
	"sort"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// nativeBackend performs worktree operations through go-git object access.
// Since go-git does not maintain reflogs, checkouts append the HEAD reflog
// entry themselves so provenance reconstruction keeps working on
// repositories only ever touched natively.
type nativeBackend struct {
	repo *repoHandle
}

func newNativeBackend(repo *repoHandle) *nativeBackend {
	return &nativeBackend{repo: repo}
}

func (b *nativeBackend) RepoPath() string {
	return b.repo.Root()
}

func (b *nativeBackend) HeadState() (string, string, bool, error) {
	ref, err := b.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", "", false, nil
		}
		return "", "", false, repoErr("resolve HEAD", err)
	}
	name := "HEAD"
	if ref.Name().IsBranch() {
		name = ref.Name().Short()
	}
	return ref.Hash().String(), name, true, nil
}

func (b *nativeBackend) ListBranchNames() ([]string, error) {
	iter, err := b.repo.Branches()
	if err != nil {
		return nil, repoErr("list branches", err)
	}
	defer iter.Close()
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, repoErr("list branches", err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *nativeBackend) Checkout(name string, create bool) error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return repoErr("open worktree", err)
	}

	oldHash, oldName, ok, err := b.HeadState()
	if err != nil {
		return err
	}
	if !ok {
		oldName = "HEAD"
	}

	err = wt.Checkout(&gitlib.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: create,
		Force:  true,
	})
	if err != nil {
		return repoErr(fmt.Sprintf("checkout %s", name), err)
	}

	newHash, _, _, err := b.HeadState()
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("checkout: moving from %s to %s", oldName, name)
	if err := appendHeadReflog(b.repo, oldHash, newHash, msg); err != nil {
		return err
	}
	return nil
}

func (b *nativeBackend) Status() ([]Change, error) {
	wt, err := b.repo.Worktree()
	if err != nil {
		return nil, repoErr("open worktree", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, repoErr("read status", err)
	}
	changes := make([]Change, 0, len(status))
	for path, st := range status {
		if st.Staging == gitlib.Unmodified && st.Worktree == gitlib.Unmodified {
			continue
		}
		if st.Worktree == gitlib.Untracked {
			changes = append(changes, Change{Path: path, Worktree: ChangeUntracked})
			continue
		}
		changes = append(changes, Change{
			Path:     path,
			Staging:  changeKindFromStatus(st.Staging),
			Worktree: changeKindFromStatus(st.Worktree),
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func changeKindFromStatus(code gitlib.StatusCode) ChangeKind {
	switch code {
	case gitlib.Modified, gitlib.UpdatedButUnmerged:
		return ChangeModified
	case gitlib.Added:
		return ChangeAdded
	case gitlib.Deleted:
		return ChangeDeleted
	case gitlib.Renamed:
		return ChangeRenamed
	case gitlib.Copied:
		return ChangeCopied
	case gitlib.Untracked:
		return ChangeUntracked
	default:
		return ChangeNone
	}
}
