package manifest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/autohost-updater/internal/config"
)

// State records which package versions are installed locally.
type State struct {
	// Timestamp is when the record was last written.
	Timestamp time.Time
	// Packages maps package names to their installed versions.
	Packages map[string]string
}

// NewState returns an empty installed-packages record.
func NewState() *State {
	return &State{
		Packages: make(map[string]string),
	}
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *State) Clone() *State {
	cloned := &State{
		Timestamp: s.Timestamp,
		Packages:  make(map[string]string, len(s.Packages)),
	}

	maps.Copy(cloned.Packages, s.Packages)

	return cloned
}

// Repository defines persistence operations for the installed-packages record.
type Repository interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// FileRepository persists the installed-packages record as a plain text
// file: an epoch-seconds line followed by name:version lines.
type FileRepository struct {
	// path is the filesystem location of the record.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// NewFileRepository creates a repository reading and writing the record at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk. A missing file is an empty state, not an
// error: first runs start from nothing. Lines that fit neither the
// timestamp nor the name:version shape are skipped.
func (r *FileRepository) Load(_ context.Context) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := NewState()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}

		return nil, fmt.Errorf("read installed record: %w", err)
	}

	for _, line := range strings.SplitAfter(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if epoch, parseErr := strconv.ParseInt(line, 10, 64); parseErr == nil {
			if state.Timestamp.IsZero() {
				state.Timestamp = time.Unix(epoch, 0)
			}

			continue
		}

		name, version, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		state.Packages[strings.TrimSpace(name)] = strings.TrimSpace(version)
	}

	return state, nil
}

// Save writes the record to disk with a fresh timestamp. A write failure is
// a hard error for the caller: files already swapped on disk must never be
// silently forgotten by the record.
func (r *FileRepository) Save(_ context.Context, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(state.Packages))
	for name := range state.Packages {
		names = append(names, name)
	}

	sort.Strings(names)

	var builder strings.Builder

	builder.WriteString(strconv.FormatInt(time.Now().Unix(), 10))
	builder.WriteString("\n")

	for _, name := range names {
		builder.WriteString(name)
		builder.WriteString(":")
		builder.WriteString(state.Packages[name])
		builder.WriteString("\n")
	}

	if err := os.WriteFile(r.path, []byte(builder.String()), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write installed record: %w", err)
	}

	return nil
}
