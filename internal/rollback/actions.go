package rollback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/engineerr"
)

// rejectPathTraversal enforces spec.md §4.8's "..": reject paths
// containing a `..` path segment.
func rejectPathTraversal(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		for _, part := range strings.Split(filepath.ToSlash(p), "/") {
			if part == ".." {
				return fmt.Errorf("%w: %q", engineerr.ErrPathTraversal, p)
			}
		}
	}
	return nil
}

// writeAtomic writes content to path by writing to a temp file in the
// same directory then renaming over path, so a crash mid-write never
// leaves a partial file (spec.md §4.8 "write atomically").
func writeAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".rollback-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if perm != 0 {
		if err := os.Chmod(tmpPath, perm); err != nil {
			return err
		}
	}
	return os.Rename(tmpPath, path)
}

// executeAction performs one RollbackAction's semantics (spec.md
// §4.8). In dry-run mode it validates preconditions (existence checks,
// path-traversal rejection) but performs no mutation.
func executeAction(ctx context.Context, action domain.RollbackAction, dryRun bool) error {
	switch action.Kind {
	case domain.ActionDeleteCreatedFile:
		return actionDeleteCreatedFile(action, dryRun)
	case domain.ActionRestoreFromBackup:
		return actionRestoreFromBackup(action, dryRun)
	case domain.ActionUndoRename:
		return actionUndoRename(action, dryRun)
	case domain.ActionRecreateDeletedFile:
		return actionRecreateDeletedFile(action, dryRun)
	case domain.ActionRevertModification:
		return actionRevertModification(action, dryRun)
	case domain.ActionRestoreDirectory:
		return actionRestoreDirectory(action, dryRun)
	case domain.ActionRunScript:
		return actionRunScript(ctx, action, dryRun)
	case domain.ActionGitRevert:
		return actionGitRevert(ctx, action, dryRun)
	case domain.ActionNoOp:
		return nil
	default:
		return fmt.Errorf("unknown rollback action kind %q", action.Kind)
	}
}

func actionDeleteCreatedFile(a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.Path); err != nil {
		return err
	}
	if _, err := os.Stat(a.Path); os.IsNotExist(err) {
		return nil // idempotent: absent is success
	}
	if dryRun {
		return nil
	}
	return os.Remove(a.Path)
}

func actionRestoreFromBackup(a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.Backup, a.Target); err != nil {
		return err
	}
	src, err := os.Open(a.Backup)
	if err != nil {
		return fmt.Errorf("backup missing: %w", err)
	}
	defer src.Close()

	if dryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Target), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(a.Target)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

func actionUndoRename(a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.Current, a.Original); err != nil {
		return err
	}
	if _, err := os.Stat(a.Current); err != nil {
		return fmt.Errorf("current path missing: %w", err)
	}
	if dryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Original), 0o755); err != nil {
		return err
	}
	return os.Rename(a.Current, a.Original)
}

func actionRecreateDeletedFile(a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.Path); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	var perm os.FileMode = 0o644
	if a.Permissions != nil {
		perm = os.FileMode(*a.Permissions)
	}
	return writeAtomic(a.Path, []byte(a.Content), perm)
}

func actionRevertModification(a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.Path); err != nil {
		return err
	}
	if _, err := os.Stat(a.Path); err != nil {
		return fmt.Errorf("path missing: %w", err)
	}
	if dryRun {
		return nil
	}
	return writeAtomic(a.Path, []byte(a.OriginalContent), 0)
}

func actionRestoreDirectory(a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.Path); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	return os.MkdirAll(a.Path, 0o755)
}

func actionRunScript(ctx context.Context, a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.ScriptPath); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	cmd := exec.CommandContext(ctx, a.ScriptPath, a.ScriptArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script failed: %w: %s", err, stderr.String())
	}
	return nil
}

func actionGitRevert(ctx context.Context, a domain.RollbackAction, dryRun bool) error {
	if err := rejectPathTraversal(a.Paths...); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	args := []string{"revert", "--no-commit", a.Commit}
	if len(a.Paths) > 0 {
		args = append(args, "--")
		args = append(args, a.Paths...)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git revert failed: %w: %s", err, stderr.String())
	}
	return nil
}
