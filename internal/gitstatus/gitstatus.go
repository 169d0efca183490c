// Package gitstatus implements the read-only Git Status collaborator
// (spec.md §6.3) the Knowledge Indexer and Context Retriever consult
// for repository state: current branch, per-file working-tree status,
// and HEAD commit. Shells out to the system git binary the same way
// the pack's worktree-discovery tooling does (`exec.Command("git",
// "worktree", "list", "--porcelain")`), parsing porcelain output
// instead of hand-rolling a .git reader.
package gitstatus

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FileStatusKind is one of the working-tree states spec.md §6.3 names.
type FileStatusKind string

const (
	StatusModified  FileStatusKind = "Modified"
	StatusAdded     FileStatusKind = "Added"
	StatusDeleted   FileStatusKind = "Deleted"
	StatusRenamed   FileStatusKind = "Renamed"
	StatusUntracked FileStatusKind = "Untracked"
	StatusIgnored   FileStatusKind = "Ignored"
)

// FileStatus is one entry of file_statuses(repo).
type FileStatus struct {
	Path   string
	Status FileStatusKind
}

// Reader queries git state for a repository path via the system git
// binary.
type Reader struct {
	GitBin string
}

// New constructs a Reader using the "git" binary on PATH.
func New() *Reader {
	return &Reader{GitBin: "git"}
}

func (r *Reader) bin() string {
	if r.GitBin == "" {
		return "git"
	}
	return r.GitBin
}

func (r *Reader) run(ctx context.Context, repo string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.bin(), args...)
	cmd.Dir = repo
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// CurrentBranch returns the repository's current branch name.
func (r *Reader) CurrentBranch(ctx context.Context, repo string) (string, error) {
	out, err := r.run(ctx, repo, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HeadCommit returns the repository's HEAD commit hash.
func (r *Reader) HeadCommit(ctx context.Context, repo string) (string, error) {
	out, err := r.run(ctx, repo, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// FileStatuses returns the working-tree status of every changed or
// untracked file, parsed from `git status --porcelain=v1`.
func (r *Reader) FileStatuses(ctx context.Context, repo string) ([]FileStatus, error) {
	out, err := r.run(ctx, repo, "status", "--porcelain=v1", "--ignored")
	if err != nil {
		return nil, err
	}

	var statuses []FileStatus
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		if kind, ok := classifyPorcelainCode(code); ok {
			if kind == StatusRenamed {
				// porcelain renders "old -> new"; keep the new path.
				if idx := strings.Index(path, " -> "); idx >= 0 {
					path = path[idx+4:]
				}
			}
			statuses = append(statuses, FileStatus{Path: path, Status: kind})
		}
	}
	return statuses, nil
}

func classifyPorcelainCode(code string) (FileStatusKind, bool) {
	switch {
	case code == "??":
		return StatusUntracked, true
	case code == "!!":
		return StatusIgnored, true
	case strings.Contains(code, "R"):
		return StatusRenamed, true
	case strings.Contains(code, "A"):
		return StatusAdded, true
	case strings.Contains(code, "D"):
		return StatusDeleted, true
	case strings.Contains(code, "M"):
		return StatusModified, true
	default:
		return "", false
	}
}
