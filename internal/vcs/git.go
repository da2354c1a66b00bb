// Package vcs reads the commit metadata and change sets used for automatic
// version macros and CI matrices.
package vcs

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNoRepository is returned when no git repository contains the path.
var ErrNoRepository = errors.New("not a git repository")

// Commit describes the HEAD commit of a repository.
type Commit struct {
	Hash string
	When time.Time
}

// Short returns the first n characters of the hash.
func (c Commit) Short(n int) string {
	if len(c.Hash) <= n {
		return c.Hash
	}
	return c.Hash[:n]
}

func open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNoRepository, path)
		}
		return nil, err
	}
	return repo, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return repo.CommitObject(ref.Hash())
}

// Head returns the HEAD commit of the repository containing path.
func Head(path string) (Commit, error) {
	repo, err := open(path)
	if err != nil {
		return Commit{}, err
	}
	c, err := headCommit(repo)
	if err != nil {
		return Commit{}, err
	}
	return Commit{Hash: c.Hash.String(), When: c.Committer.When}, nil
}

// ChangedFiles lists the slash-separated paths touched by the HEAD commit
// relative to its first parent. A root commit reports all of its files.
func ChangedFiles(path string) ([]string, error) {
	repo, err := open(path)
	if err != nil {
		return nil, err
	}
	head, err := headCommit(repo)
	if err != nil {
		return nil, err
	}
	headTree, err := head.Tree()
	if err != nil {
		return nil, err
	}

	var parentTree *object.Tree
	if head.NumParents() > 0 {
		parent, err := head.Parent(0)
		if err != nil {
			return nil, err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTree(parentTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff HEAD: %w", err)
	}
	seen := map[string]struct{}{}
	for _, ch := range changes {
		for _, name := range []string{ch.From.Name, ch.To.Name} {
			if name != "" {
				seen[name] = struct{}{}
			}
		}
	}
	files := make([]string, 0, len(seen))
	for name := range seen {
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}
