package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, when time.Time) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	sig := &object.Signature{Name: "anda", Email: "anda@example.com", When: when}
	hash, err := wt.Commit("update", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash.String()
}

func TestHeadAndChangedFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	when := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	commitFiles(t, repo, dir, map[string]string{"a/a.spec": "1", "b/b.spec": "1"}, when)
	hash := commitFiles(t, repo, dir, map[string]string{"b/b.spec": "2", "c/anda.hcl": "x"}, when.Add(time.Hour))

	head, err := Head(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.Equal(t, hash, head.Hash)
	assert.Equal(t, hash[:8], head.Short(8))
	assert.True(t, head.When.Equal(when.Add(time.Hour)))

	files, err := ChangedFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"b/b.spec", "c/anda.hcl"}, files)
}

func TestHead_NoRepository(t *testing.T) {
	_, err := Head(t.TempDir())
	assert.ErrorIs(t, err, ErrNoRepository)
}
