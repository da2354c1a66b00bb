package specedit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloSpec = `%global commit abc123
%define shortname hello
Name:    hello
Version: 1.0.0
Release: 3%{?dist}
Source0: https://example.com/hello-1.0.0.tar.gz
Source1: hello.service

%description
Hello.
`

func openSpec(t *testing.T) *Spec {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.spec")
	require.NoError(t, os.WriteFile(path, []byte(helloSpec), 0o644))
	s, err := Open(context.Background(), "hello", path)
	require.NoError(t, err)
	return s
}

func TestVersion_ResetsRelease(t *testing.T) {
	s := openSpec(t)

	require.NoError(t, s.Version("1.1.0"))

	assert.True(t, s.Changed())
	assert.Contains(t, s.Text(), "Version: 1.1.0\n")
	assert.Contains(t, s.Text(), "Release: 1%{?dist}\n")
}

func TestVersion_SameVersionIsNoop(t *testing.T) {
	s := openSpec(t)

	require.NoError(t, s.Version("1.0.0"))

	assert.False(t, s.Changed())
	assert.Equal(t, helloSpec, s.Text())
}

func TestDefineAndGlobal(t *testing.T) {
	s := openSpec(t)

	require.NoError(t, s.Global("commit", "def456"))
	require.NoError(t, s.Define("shortname", "hi"))
	assert.Error(t, s.Define("missing", "x"))

	assert.Contains(t, s.Text(), "%global commit def456\n")
	assert.Contains(t, s.Text(), "%define shortname hi\n")
}

func TestSource_ReplacesOnlyTheIndexedEntry(t *testing.T) {
	s := openSpec(t)

	require.NoError(t, s.Source(1, "hello@.service"))
	assert.Error(t, s.Source(7, "nope"))

	assert.Contains(t, s.Text(), "Source0: https://example.com/hello-1.0.0.tar.gz\n")
	assert.Contains(t, s.Text(), "Source1: hello@.service\n")
}

func TestWrite_OnlyWhenChanged(t *testing.T) {
	s := openSpec(t)
	require.NoError(t, os.Chmod(s.Path, 0o600))

	require.NoError(t, s.Write())
	data, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.Equal(t, helloSpec, string(data))

	s.SetText("Name: other\n")
	require.NoError(t, s.Write())
	data, err = os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.Equal(t, "Name: other\n", string(data))
	assert.False(t, s.Changed())

	info, err := os.Stat(s.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
