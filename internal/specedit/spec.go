// Package specedit rewrites preamble values of RPM spec files in place.
// It is used by update scripts to bump versions and source URLs.
package specedit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"

	"github.com/specialistvlad/anda/internal/ctxlog"
)

var (
	versionRe = regexp.MustCompile(`Version:(\s+)([\.\d]+)\n`)
	releaseRe = regexp.MustCompile(`Release:(\s+)([^\n]+)\n`)
	defineRe  = regexp.MustCompile(`(?m)%define(\s+)(\S+)(\s+)(\S+)$`)
	globalRe  = regexp.MustCompile(`(?m)%global(\s+)(\S+)(\s+)(\S+)$`)
	sourceRe  = regexp.MustCompile(`Source(\d+):(\s+)([^\n]+)\n`)
)

// Spec is an RPM spec file loaded into memory. Edits are kept in memory
// until Write is called.
type Spec struct {
	Name string
	Path string

	text    string
	changed bool
	logger  *slog.Logger
}

// Open reads the spec file at path. name identifies the owning project in
// log messages.
func Open(ctx context.Context, name, path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file %s: %w", path, err)
	}
	return &Spec{
		Name:   name,
		Path:   path,
		text:   string(data),
		logger: ctxlog.FromContext(ctx),
	}, nil
}

// Text returns the current contents.
func (s *Spec) Text() string { return s.text }

// SetText replaces the contents and marks the spec as changed.
func (s *Spec) SetText(text string) {
	s.text = text
	s.changed = true
}

// Changed reports whether any edit was made.
func (s *Spec) Changed() bool { return s.changed }

// Version sets the Version preamble. When the version actually changes the
// release is reset to 1.
func (s *Spec) Version(ver string) error {
	m := versionRe.FindStringSubmatch(s.text)
	if m == nil {
		return fmt.Errorf("no version preamble in spec %s", s.Path)
	}
	if m[2] == ver {
		return nil
	}
	s.logger.Info("Updating version.", "project", s.Name, "from", m[2], "to", ver)
	s.text = replaceFirst(versionRe, s.text, "Version:"+m[1]+ver+"\n")
	s.changed = true
	if releaseRe.MatchString(s.text) {
		return s.Release("1")
	}
	return nil
}

// Release sets the Release preamble to rel%{?dist}.
func (s *Spec) Release(rel string) error {
	m := releaseRe.FindStringSubmatch(s.text)
	if m == nil {
		return fmt.Errorf("no release preamble in spec %s", s.Path)
	}
	s.text = replaceFirst(releaseRe, s.text, "Release:"+m[1]+rel+"%{?dist}\n")
	s.changed = true
	return nil
}

// Define changes the value of an existing %define.
func (s *Spec) Define(name, value string) error {
	return s.setMacro(defineRe, "%define", name, value)
}

// Global changes the value of an existing %global.
func (s *Spec) Global(name, value string) error {
	return s.setMacro(globalRe, "%global", name, value)
}

func (s *Spec) setMacro(re *regexp.Regexp, keyword, name, value string) error {
	for _, m := range re.FindAllStringSubmatchIndex(s.text, -1) {
		if s.text[m[4]:m[5]] != name {
			continue
		}
		line := keyword + s.text[m[2]:m[3]] + name + s.text[m[6]:m[7]] + value
		s.text = s.text[:m[0]] + line + s.text[m[1]:]
		s.changed = true
		return nil
	}
	return fmt.Errorf("no `%s %s` in spec %s", keyword, name, s.Path)
}

// Source sets the value of the SourceN preamble.
func (s *Spec) Source(i int, value string) error {
	idx := strconv.Itoa(i)
	for _, m := range sourceRe.FindAllStringSubmatchIndex(s.text, -1) {
		if s.text[m[2]:m[3]] != idx {
			continue
		}
		s.logger.Info("Updating source.", "project", s.Name, "source", idx, "value", value)
		line := "Source" + idx + ":" + s.text[m[4]:m[5]] + value + "\n"
		s.text = s.text[:m[0]] + line + s.text[m[1]:]
		s.changed = true
		return nil
	}
	return fmt.Errorf("no Source%d preamble in spec %s", i, s.Path)
}

// Write saves the spec if it was changed.
func (s *Spec) Write() error {
	if !s.changed {
		return nil
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, []byte(s.text), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write spec file %s: %w", s.Path, err)
	}
	s.changed = false
	return nil
}

func replaceFirst(re *regexp.Regexp, text, repl string) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + repl + text[loc[1]:]
}
