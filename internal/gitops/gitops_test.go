package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitLog(t *testing.T, dir, format string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--format="+format, "-1")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	require.NoError(t, Init(context.Background(), dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommitAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))
	repo := Repo{Dir: dir, AuthorName: "Test Author", AuthorEmail: "test@example.com"}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello"), 0o644))

	hash, err := repo.CommitAll(ctx, "init: test commit")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Contains(t, gitLog(t, dir, "%s"), "init: test commit")
	assert.Contains(t, gitLog(t, dir, "%an <%ae>"), "Test Author <test@example.com>")
	assert.Contains(t, gitLog(t, dir, "%cn"), "Test Author")
}

func TestCommitAll_NothingToCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))
	repo := Repo{Dir: dir, AuthorName: "a", AuthorEmail: "a@example.com"}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))
	_, err := repo.CommitAll(ctx, "first")
	require.NoError(t, err)

	hash, err := repo.CommitAll(ctx, "second")
	require.NoError(t, err)
	assert.Empty(t, hash)
	assert.Contains(t, gitLog(t, dir, "%s"), "first")
}

func TestCommitAll_NotARepo(t *testing.T) {
	repo := Repo{Dir: t.TempDir(), AuthorName: "a", AuthorEmail: "a@example.com"}
	_, err := repo.CommitAll(context.Background(), "msg")
	assert.Error(t, err)
}
