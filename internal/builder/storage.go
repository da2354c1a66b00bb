package builder

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/gookit/color"
	rpmutils "github.com/sassoftware/go-rpmutils"
	"github.com/specialistvlad/anda/internal/ctxlog"
	"lukechampine.com/blake3"
)

// ArtifactsFile is written to the target directory after every build.
const ArtifactsFile = "artifacts.json"

// Artifact is one file or image produced by a build.
type Artifact struct {
	Path    string      `json:"path"`
	Kind    PackageKind `json:"kind"`
	Project string      `json:"project"`
	NEVRA   string      `json:"nevra,omitempty"`
	Size    int64       `json:"size,omitempty"`
	Blake3  string      `json:"blake3,omitempty"`
}

// Storage records the artifacts of one run, keyed by path.
type Storage struct {
	mu    sync.Mutex
	items map[string]*Artifact
}

// NewStorage returns an empty store.
func NewStorage() *Storage {
	return &Storage{items: map[string]*Artifact{}}
}

// Add records path as an artifact of project. Adding the same path again
// replaces the earlier record.
func (s *Storage) Add(project, path string, kind PackageKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[path] = &Artifact{Path: path, Kind: kind, Project: project}
}

// List returns the artifacts ordered by path.
func (s *Storage) List() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Artifact, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ForProject returns the artifacts of one project ordered by path.
func (s *Storage) ForProject(project string) []Artifact {
	var out []Artifact
	for _, a := range s.List() {
		if a.Project == project {
			out = append(out, a)
		}
	}
	return out
}

// Describe fills in size, digest and NEVRA of RPM artifacts. Files that
// cannot be read are left undescribed.
func (s *Storage) Describe(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.Kind != KindRpm || a.Blake3 != "" {
			continue
		}
		if err := describeRPM(a); err != nil {
			logger.Debug("Could not describe artifact.", "path", a.Path, "error", err)
		}
	}
}

func describeRPM(a *Artifact) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	a.Size = info.Size()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	a.Blake3 = hex.EncodeToString(h.Sum(nil))

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	hdr, err := rpmutils.ReadHeader(f)
	if err != nil {
		return fmt.Errorf("failed to read rpm header: %w", err)
	}
	nevra, err := hdr.GetNEVRA()
	if err != nil {
		return err
	}
	a.NEVRA = nevra.String()
	return nil
}

// Summarize prints one `Built <kind>: <path>` line per artifact of project
// and logs the details gathered by Describe.
func (s *Storage) Summarize(ctx context.Context, out io.Writer, project string, useColor bool) {
	logger := ctxlog.FromContext(ctx)
	for _, a := range s.ForProject(project) {
		label := "Built " + a.Kind.Label() + ":"
		if useColor {
			label = color.Green.Sprint(label)
		}
		fmt.Fprintf(out, "%s %s\n", label, a.Path)

		if a.Blake3 != "" {
			logger.Info("Artifact details.",
				"path", a.Path,
				"nevra", a.NEVRA,
				"size", humanize.Bytes(uint64(a.Size)),
				"blake3", a.Blake3,
			)
		}
	}
}

// WriteJSON writes every artifact to dir/artifacts.json.
func (s *Storage) WriteJSON(dir string) error {
	data, err := json.MarshalIndent(s.List(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, ArtifactsFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
