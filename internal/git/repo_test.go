package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a git repository with one commit, skipping when git is
// unavailable.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"-c", "user.name=test", "-c", "user.email=test@example.com", "commit", "-q", "--allow-empty", "-m", "init"},
	} {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	return dir
}

func TestToplevel(t *testing.T) {
	repo := initRepo(t)
	sub := filepath.Join(repo, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	top, err := Toplevel(sub)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(repo)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(top)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestToplevel_NotRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())
	_, err := Toplevel(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestHeadCommit(t *testing.T) {
	repo := initRepo(t)

	head, err := HeadCommit(repo)
	require.NoError(t, err)
	assert.Len(t, head, 40)
}

func TestHeadCommit_NoRepository(t *testing.T) {
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())
	_, err := HeadCommit(t.TempDir())
	assert.Error(t, err)
}

func TestFindProjectRoot_Marker(t *testing.T) {
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".claude"), 0o755))
	deep := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, FindProjectRoot(deep, ".claude"))
}

func TestFindProjectRoot_FallsBackToDir(t *testing.T) {
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())
	dir := t.TempDir()
	assert.Equal(t, dir, FindProjectRoot(dir, ".no-such-marker-here"))
}

func TestFindGitDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	sub := filepath.Join(root, "x")
	require.NoError(t, os.Mkdir(sub, 0o755))

	got, err := findGitDir(sub)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	_, err = findParentWith(sub, ".definitely-missing")
	assert.Error(t, err)
}
