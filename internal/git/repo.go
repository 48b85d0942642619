package git

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when no enclosing git work tree is found.
var ErrNotRepository = errors.New("not a git repository")

// Toplevel returns the root of the git work tree containing dir. It asks git
// first and falls back to walking up for a .git entry when git is not
// installed.
func Toplevel(dir string) (string, error) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err == nil {
		if top := strings.TrimSpace(string(out)); top != "" {
			return top, nil
		}
		return "", ErrNotRepository
	}
	if errors.Is(err, exec.ErrNotFound) {
		return findGitDir(dir)
	}
	return "", ErrNotRepository
}

// HeadCommit returns the commit hash HEAD points at in dir.
func HeadCommit(dir string) (string, error) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// FindProjectRoot resolves the project a command runs in: the git work tree
// root, else the nearest parent holding marker (usually ".claude"), else dir.
func FindProjectRoot(dir, marker string) string {
	if top, err := Toplevel(dir); err == nil {
		return top
	}
	if root, err := findParentWith(dir, marker); err == nil {
		return root
	}
	return dir
}

// findGitDir finds the directory holding .git, starting from the given path
func findGitDir(startPath string) (string, error) {
	return findParentWith(startPath, ".git")
}

func findParentWith(startPath, name string) (string, error) {
	path := startPath
	for {
		if _, err := os.Stat(filepath.Join(path, name)); err == nil {
			return path, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("no %s found above %s", name, startPath)
		}
		path = parent
	}
}
