package git

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultIssuePrefix is the conventional prefix for issue working branches.
const DefaultIssuePrefix = "issue/"

// ProvenanceStore is the externally persisted source-branch association used
// when reflog evidence of a branch's creation has expired. It is owned by
// the issue/workflow layer; the engine only ever reads it.
type ProvenanceStore interface {
	// SourceBranch returns the recorded source branch for an issue
	// branch, ok=false when no association is recorded.
	SourceBranch(issueBranch string) (source string, ok bool)
}

// Options configures a Service.
type Options struct {
	// UseCLI selects the git-executable backend for worktree operations
	// instead of the native one.
	UseCLI bool

	// IssuePrefix overrides DefaultIssuePrefix.
	IssuePrefix string

	// Provenance is the fallback consulted when the reflog no longer
	// holds creation evidence. Optional.
	Provenance ProvenanceStore
}

// Service is the engine facade. One Service exclusively owns one open
// repository; operations are serialized by mu because git index and
// reference updates are not internally synchronized. Hosts sharing a
// repository across processes must still enforce at-most-one operation per
// working directory themselves.
type Service struct {
	mu sync.Mutex

	repo    *repoHandle
	backend Backend
	opts    Options
}

// Open discovers the repository containing path (walking upward like git
// does) and builds a Service around it. The handle is cached for the
// Service's lifetime; no implicit re-discovery happens afterwards.
func Open(path string, opts Options) (*Service, error) {
	repo, err := openRepo(path)
	if err != nil {
		return nil, err
	}
	s := &Service{repo: repo, opts: opts}
	if opts.UseCLI {
		s.backend = newCLIBackend(repo.Root())
	} else {
		s.backend = newNativeBackend(repo)
	}
	slog.Debug("repository opened",
		slog.String("root", repo.Root()),
		slog.String("gitdir", repo.GitDir()),
		slog.Bool("bare", repo.Bare()),
		slog.Bool("cli_backend", opts.UseCLI),
	)
	return s, nil
}

// NewWithBackend builds a Service over an explicit backend. Used by tests;
// operations that need object access beyond the Backend surface require a
// Service from Open.
func NewWithBackend(b Backend) *Service {
	return &Service{backend: b}
}

// RepoPath returns the working tree root.
func (s *Service) RepoPath() string {
	return s.backend.RepoPath()
}

// GitDir returns the repository's .git directory.
func (s *Service) GitDir() string {
	return s.repo.GitDir()
}

func (s *Service) issuePrefix() string {
	if s.opts.IssuePrefix != "" {
		return s.opts.IssuePrefix
	}
	return DefaultIssuePrefix
}

// repoSignature resolves the identity used for merge commits and reflog
// lines from git config, falling back to a fixed engine identity when the
// repository has no user configured.
func repoSignature(repo *repoHandle) object.Signature {
	sig := object.Signature{
		Name:  "gitmerge",
		Email: "gitmerge@localhost",
		When:  time.Now(),
	}
	if repo == nil || repo.Repository == nil {
		return sig
	}
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}
