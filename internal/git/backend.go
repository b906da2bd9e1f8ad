package git

// ChangeKind classifies what happened to a path on one side (index or
// working tree) of the status.
type ChangeKind uint8

const (
	ChangeNone ChangeKind = iota
	ChangeModified
	ChangeAdded
	ChangeDeleted
	ChangeRenamed
	ChangeCopied
	ChangeUntracked
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeModified:
		return "modified"
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	case ChangeCopied:
		return "copied"
	case ChangeUntracked:
		return "untracked"
	default:
		return "none"
	}
}

// Change is one path's status, split into its index and working-tree sides.
type Change struct {
	Path     string
	Staging  ChangeKind
	Worktree ChangeKind
}

// Backend abstracts the worktree-touching repository operations.
//
// The default implementation uses go-git object access directly; the git-CLI
// implementation remains selectable as a fallback while the native path is
// rolled out. Merge, history and reflog analysis always run natively.
type Backend interface {
	RepoPath() string

	// HeadState reports the current HEAD commit and short branch name.
	// ok is false when HEAD is unborn; headName is "HEAD" when detached.
	HeadState() (hash string, headName string, ok bool, err error)

	ListBranchNames() ([]string, error)

	// Checkout switches HEAD to the named branch and syncs the working
	// tree, creating the branch at the current HEAD commit when create is
	// set. Precondition checks (name validity, existence) are the
	// caller's job.
	Checkout(name string, create bool) error

	// Status enumerates changed paths sorted by path. Ignored paths are
	// excluded.
	Status() ([]Change, error)
}
