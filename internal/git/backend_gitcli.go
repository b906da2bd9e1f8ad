package git

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
)

// cliBackend shells out to the git executable. It is the rollout fallback
// for hosts not yet trusting the native worktree path; the two backends are
// interchangeable behind Backend.
type cliBackend struct {
	path string
}

func newCLIBackend(root string) *cliBackend {
	return &cliBackend{path: root}
}

func (g *cliBackend) RepoPath() string {
	return g.path
}

func (g *cliBackend) runGitCommand(args []string, allowExit1 bool, context string) (string, error) {
	if g.path == "" {
		return "", fmt.Errorf("repository root not set")
	}
	cmdArgs := append([]string{"-C", g.path}, args...)
	cmd := exec.Command("git", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if allowExit1 && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
			// exit code 1 without stderr signals "differences found", not failure
		} else {
			if stderr.Len() > 0 {
				return "", fmt.Errorf("%s: %v: %s", context, err, strings.TrimSpace(stderr.String()))
			}
			return "", fmt.Errorf("%s: %w", context, err)
		}
	}
	return stdout.String(), nil
}

func (g *cliBackend) HeadState() (string, string, bool, error) {
	out, err := g.runGitCommand([]string{"rev-parse", "-q", "--verify", "HEAD"}, true, "git rev-parse")
	if err != nil {
		return "", "", false, err
	}
	hash := strings.TrimSpace(out)
	if hash == "" {
		return "", "", false, nil
	}
	ref, err := g.runGitCommand([]string{"symbolic-ref", "-q", "--short", "HEAD"}, true, "git symbolic-ref")
	if err != nil {
		return "", "", false, err
	}
	headName := strings.TrimSpace(ref)
	if headName == "" {
		headName = "HEAD"
	}
	return hash, headName, true, nil
}

func (g *cliBackend) ListBranchNames() ([]string, error) {
	out, err := g.runGitCommand(
		[]string{"for-each-ref", "--format=%(refname:short)", "refs/heads"},
		false,
		"git for-each-ref",
	)
	if err != nil {
		return nil, err
	}
	var names []string
	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *cliBackend) Checkout(name string, create bool) error {
	args := []string{"checkout", "--force"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, name)
	_, err := g.runGitCommand(args, false, "git checkout")
	return err
}

func (g *cliBackend) Status() ([]Change, error) {
	out, err := g.runGitCommand([]string{"status", "--porcelain=v2"}, false, "git status")
	if err != nil {
		return nil, err
	}
	changes, err := parseStatusPorcelainV2(strings.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("parse git status: %w", err)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func parseStatusPorcelainV2(r io.Reader) ([]Change, error) {
	var changes []Change
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case '1':
			// 1 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <path>
			fields := strings.SplitN(line, " ", 9)
			if len(fields) < 9 || len(fields[1]) < 2 {
				continue
			}
			changes = append(changes, Change{
				Path:     fields[8],
				Staging:  changeKindFromPorcelain(fields[1][0]),
				Worktree: changeKindFromPorcelain(fields[1][1]),
			})
		case 'u':
			// u <XY> <sub> <m1> <m2> <m3> <mW> <h1> <h2> <h3> <path>
			fields := strings.SplitN(line, " ", 11)
			if len(fields) < 11 || len(fields[1]) < 2 {
				continue
			}
			changes = append(changes, Change{
				Path:     fields[10],
				Staging:  changeKindFromPorcelain(fields[1][0]),
				Worktree: changeKindFromPorcelain(fields[1][1]),
			})
		case '2':
			// 2 <XY> ... <path><tab><origPath>
			fields := strings.SplitN(line, " ", 10)
			if len(fields) < 10 || len(fields[1]) < 2 {
				continue
			}
			path, _, _ := strings.Cut(fields[9], "\t")
			changes = append(changes, Change{
				Path:     path,
				Staging:  changeKindFromPorcelain(fields[1][0]),
				Worktree: changeKindFromPorcelain(fields[1][1]),
			})
		case '?':
			changes = append(changes, Change{Path: line[2:], Worktree: ChangeUntracked})
		default:
			// '!' ignored, headers
		}
	}
	return changes, scanner.Err()
}

func changeKindFromPorcelain(code byte) ChangeKind {
	switch code {
	case 'M', 'U':
		return ChangeModified
	case 'A':
		return ChangeAdded
	case 'D':
		return ChangeDeleted
	case 'R':
		return ChangeRenamed
	case 'C':
		return ChangeCopied
	default:
		return ChangeNone
	}
}
