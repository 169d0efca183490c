package gitstatus

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "committed.txt"), []byte("v1"), 0o644))
	run("add", "committed.txt")
	run("commit", "-q", "-m", "initial")

	return dir
}

func TestCurrentBranchAndHeadCommit(t *testing.T) {
	repo := initRepo(t)
	r := New()

	branch, err := r.CurrentBranch(context.Background(), repo)
	require.NoError(t, err)
	assert.NotEmpty(t, branch)

	commit, err := r.HeadCommit(context.Background(), repo)
	require.NoError(t, err)
	assert.Len(t, commit, 40)
}

func TestFileStatusesDetectsUntrackedAndModified(t *testing.T) {
	repo := initRepo(t)
	r := New()

	require.NoError(t, os.WriteFile(filepath.Join(repo, "committed.txt"), []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "new.txt"), []byte("new"), 0o644))

	statuses, err := r.FileStatuses(context.Background(), repo)
	require.NoError(t, err)

	byPath := make(map[string]FileStatusKind)
	for _, s := range statuses {
		byPath[s.Path] = s.Status
	}
	assert.Equal(t, StatusModified, byPath["committed.txt"])
	assert.Equal(t, StatusUntracked, byPath["new.txt"])
}
