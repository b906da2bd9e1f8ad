package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// repoHandle owns the open repository connection for the Service lifetime.
// It is opened once via discovery and never re-discovered; callers that
// change directory context construct a new Service.
type repoHandle struct {
	*gitlib.Repository

	root   string // worktree root (empty for bare repositories)
	gitDir string
	bare   bool
}

func openRepo(path string) (*repoHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, repoErr("resolve repository path", err)
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gitlib.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, abs)
		}
		return nil, repoErr("open repository", err)
	}
	root, gitDir, err := discoverLayout(abs)
	if err != nil {
		return nil, err
	}
	return &repoHandle{
		Repository: repo,
		root:       root,
		gitDir:     gitDir,
		bare:       root == "",
	}, nil
}

// discoverLayout walks upward from path until it finds a .git entry,
// mirroring go-git's DetectDotGit discovery so the handle knows its gitdir
// (go-git does not expose it). A .git file redirects to a linked worktree's
// gitdir.
func discoverLayout(path string) (root, gitDir string, err error) {
	dir := path
	for {
		dotGit := filepath.Join(dir, gitlib.GitDirName)
		info, statErr := os.Stat(dotGit)
		if statErr == nil {
			if info.IsDir() {
				return dir, dotGit, nil
			}
			linked, linkErr := readGitDirFile(dotGit)
			if linkErr != nil {
				return "", "", linkErr
			}
			if !filepath.IsAbs(linked) {
				linked = filepath.Join(dir, linked)
			}
			return dir, linked, nil
		}
		if looksLikeGitDir(dir) {
			return "", dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		dir = parent
	}
}

func readGitDirFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", repoErr("read .git file", err)
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", repoErr("read .git file", fmt.Errorf("malformed gitdir pointer %q", line))
	}
	return strings.TrimSpace(target), nil
}

func looksLikeGitDir(dir string) bool {
	for _, entry := range []string{"HEAD", "objects", "refs"} {
		if _, err := os.Stat(filepath.Join(dir, entry)); err != nil {
			return false
		}
	}
	return true
}

// Root returns the worktree root, empty when the repository is bare.
func (r *repoHandle) Root() string { return r.root }

// GitDir returns the repository's .git directory.
func (r *repoHandle) GitDir() string { return r.gitDir }

func (r *repoHandle) Bare() bool { return r.bare }

// headCommitHash resolves HEAD to a commit hash, ErrUnbornBranch when HEAD
// points at a ref with no commits yet.
func (r *repoHandle) headCommitHash() (plumbing.Hash, error) {
	ref, err := r.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, ErrUnbornBranch
		}
		return plumbing.ZeroHash, repoErr("resolve HEAD", err)
	}
	return ref.Hash(), nil
}

// branchHash resolves a local branch name to its commit hash.
func (r *repoHandle) branchHash(name string) (plumbing.Hash, error) {
	ref, err := r.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrBranchNotFound, name)
		}
		return plumbing.ZeroHash, repoErr(fmt.Sprintf("resolve branch %s", name), err)
	}
	return ref.Hash(), nil
}
