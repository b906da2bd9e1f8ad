package cmd

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/thiagokokada/gitmerge-go/internal/buildinfo"
	"github.com/thiagokokada/gitmerge-go/internal/git"
)

const usage = `usage: gitmerge [flags] <command> [args]

commands:
  branch                   list local branches
  create <issue-id>        create and check out the issue branch
  checkout <branch>        switch to an existing branch
  status                   show working tree changes
  target <branch>          show the branch's resolved merge target
  merge <source> [target]  merge source, resolving the target when omitted
  log [limit]              show commit history
  last                     show the last commit summary line
  recent [limit]           show recent repository operations
  watch                    report repository changes until interrupted

flags:
`

func Run() error {
	return run(os.Args[1:])
}

func run(args []string) error {
	fs := flag.NewFlagSet("gitmerge", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	repoPath := fs.String("repo", ".", "repository path (discovery walks upward)")
	useCLI := fs.Bool("gitcli", false, "use the git executable for worktree operations")
	prefix := fs.String("prefix", git.DefaultIssuePrefix, "issue branch name prefix")
	verbose := fs.Bool("verbose", false, "enable verbose logging")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println(buildinfo.VersionWithTags())
		return nil
	}
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		fs.Usage()
		return fmt.Errorf("no command given")
	}

	svc, err := git.Open(*repoPath, git.Options{UseCLI: *useCLI, IssuePrefix: *prefix})
	if err != nil {
		return err
	}
	return runCommand(svc, remaining[0], remaining[1:])
}

func runCommand(svc *git.Service, command string, args []string) error {
	switch command {
	case "branch":
		return runBranch(svc)
	case "create":
		if len(args) != 1 {
			return fmt.Errorf("usage: gitmerge create <issue-id>")
		}
		name, err := svc.CreateIssueBranch(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("created and checked out %s\n", name)
		return nil
	case "checkout":
		if len(args) != 1 {
			return fmt.Errorf("usage: gitmerge checkout <branch>")
		}
		return svc.Checkout(args[0])
	case "status":
		return runStatus(svc)
	case "target":
		if len(args) != 1 {
			return fmt.Errorf("usage: gitmerge target <branch>")
		}
		source, evidence, err := svc.BranchCreationPoint(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (from %s evidence)\n", source, evidence)
		return nil
	case "merge":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: gitmerge merge <source> [target]")
		}
		target := ""
		if len(args) == 2 {
			target = args[1]
		}
		return runMerge(svc, args[0], target)
	case "log":
		limit, err := parseLimit(args, 0)
		if err != nil {
			return err
		}
		infos, err := svc.History(limit)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Println(info.Summary)
		}
		return nil
	case "last":
		line, err := svc.LastCommitSummary()
		if err != nil {
			return err
		}
		fmt.Println(line)
		return nil
	case "recent":
		limit, err := parseLimit(args, 20)
		if err != nil {
			return err
		}
		entries, err := svc.RecentOperations(limit)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Printf("%s  %s\n", entry.When.Format("2006-01-02 15:04:05"), entry.Message)
		}
		return nil
	case "watch":
		return runWatch(svc)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func parseLimit(args []string, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	var limit int
	if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil {
		return 0, fmt.Errorf("invalid limit %q", args[0])
	}
	return limit, nil
}

func runBranch(svc *git.Service) error {
	branches, head, err := svc.LocalBranchNames()
	if err != nil {
		return err
	}
	for _, branch := range branches {
		marker := "  "
		if branch == head {
			marker = "* "
		}
		fmt.Println(marker + branch)
	}
	return nil
}

func runStatus(svc *git.Service) error {
	summary, err := svc.StatusSummary()
	if err != nil {
		return err
	}
	if summary.Empty() {
		fmt.Println("working tree clean")
		return nil
	}
	printPaths := func(label string, paths []string) {
		for _, p := range paths {
			fmt.Printf("%-10s %s\n", label+":", p)
		}
	}
	printPaths("staged", summary.StagedModified)
	printPaths("modified", summary.UnstagedModified)
	printPaths("deleted", summary.Deleted)
	printPaths("renamed", summary.Renamed)
	printPaths("untracked", summary.Untracked)
	return nil
}

func runMerge(svc *git.Service, source, target string) error {
	result, err := svc.Merge(source, target)
	if err != nil {
		var conflict *git.MergeConflictError
		if errors.As(err, &conflict) {
			fmt.Printf("merge stopped on %d conflicted file(s):\n", len(conflict.Files))
			for _, f := range conflict.Files {
				fmt.Printf("  %s\n", f)
			}
			fmt.Printf("see %s for guidance\n", svc.AbortFilePath())
		}
		return err
	}
	switch result.Classification {
	case git.MergeUpToDate:
		fmt.Printf("%s is already up to date with %s\n", result.Target, source)
	default:
		fmt.Printf("merged %s into %s (%s): %s\n", source, result.Target, result.Classification, result.Commit)
	}
	if result.Evidence != "" {
		fmt.Printf("target resolved from %s evidence\n", result.Evidence)
	}
	return nil
}

func runWatch(svc *git.Service) error {
	watcher, err := svc.Watch(func() {
		fmt.Println("repository changed")
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	fmt.Printf("watching %s (interrupt to stop)\n", svc.GitDir())
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	return nil
}
