package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/spf13/afero"
)

// Source finds platform documents by name.
type Source interface {
	// Lookup returns the document defining name. Project-local documents
	// shadow shared ones. Missing platforms wrap ErrPlatformNotFound.
	Lookup(ctx context.Context, name, projectContext string) (*Document, error)
	// Reset drops anything the source remembered about the filesystem.
	Reset()
}

// DirSource reads documents from directories on an afero filesystem. For a
// non-empty project context, <projectContext>/platforms is searched before the
// shared roots.
type DirSource struct {
	fs     afero.Fs
	shared []string

	mu    sync.Mutex
	index map[string]*dirIndex
}

type dirIndex struct {
	docs map[string]*Document
	errs error
}

var _ Source = (*DirSource)(nil)

// NewDirSource creates a source over fs with the given shared roots.
func NewDirSource(fs afero.Fs, shared ...string) *DirSource {
	return &DirSource{fs: fs, shared: shared, index: make(map[string]*dirIndex)}
}

// SearchPath returns the directories consulted for a project context, in
// priority order.
func (s *DirSource) SearchPath(projectContext string) []string {
	var dirs []string
	if projectContext != "" {
		dirs = append(dirs, filepath.Join(projectContext, "platforms"))
	}
	return append(dirs, s.shared...)
}

func (s *DirSource) Lookup(ctx context.Context, name, projectContext string) (*Document, error) {
	var errs error
	for _, dir := range s.SearchPath(projectContext) {
		idx := s.indexDir(ctx, dir)
		if doc, ok := idx.docs[name]; ok {
			return doc, nil
		}
		if idx.errs != nil {
			errs = multierror.Append(errs, idx.errs)
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %q (some documents failed to load: %v)", ErrPlatformNotFound, name, errs)
	}
	return nil, fmt.Errorf("%w: %q", ErrPlatformNotFound, name)
}

func (s *DirSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[string]*dirIndex)
}

// Names lists every platform visible from a project context, sorted.
func (s *DirSource) Names(ctx context.Context, projectContext string) []string {
	seen := map[string]bool{}
	for _, dir := range s.SearchPath(projectContext) {
		for name := range s.indexDir(ctx, dir).docs {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// indexDir parses every document directly inside dir once. Files that fail to
// parse are remembered as errors so one broken file does not hide the rest.
func (s *DirSource) indexDir(ctx context.Context, dir string) *dirIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.index[dir]; ok {
		return idx
	}

	logger := ctxlog.FromContext(ctx)
	idx := &dirIndex{docs: make(map[string]*Document)}
	s.index[dir] = idx

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		logger.Debug("Platform directory not readable.", "dir", dir, "error", err)
		return idx
	}
	for _, entry := range entries {
		if entry.IsDir() || !SupportedExt(filepath.Ext(entry.Name())) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := afero.ReadFile(s.fs, path)
		if err != nil {
			idx.errs = multierror.Append(idx.errs, fmt.Errorf("failed to read %s: %w", path, err))
			continue
		}
		docs, err := ParseDocuments(path, src)
		if err != nil {
			logger.Warn("Skipping unparsable platform document.", "path", path, "error", err)
			idx.errs = multierror.Append(idx.errs, err)
			continue
		}
		for _, doc := range docs {
			if prev, dup := idx.docs[doc.Name]; dup {
				logger.Warn("Platform defined twice in one directory, keeping the first.", "name", doc.Name, "kept", prev.Path, "ignored", path)
				continue
			}
			idx.docs[doc.Name] = doc
		}
	}
	logger.Debug("Indexed platform directory.", "dir", dir, "platforms", len(idx.docs))
	return idx
}

// MapSource serves documents from memory.
type MapSource struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

var _ Source = (*MapSource)(nil)

// NewMapSource builds a source from raw documents keyed by platform name. Each
// document gets a synthetic path "<name>.platform".
func NewMapSource(raw map[string]map[string]any) *MapSource {
	s := &MapSource{docs: make(map[string]*Document, len(raw))}
	for name, doc := range raw {
		s.Set(name, doc)
	}
	return s
}

// Set adds or replaces a document.
func (s *MapSource) Set(name string, raw map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw == nil {
		raw = map[string]any{}
	}
	s.docs[name] = &Document{Name: name, Path: name + ".platform", Raw: raw}
}

func (s *MapSource) Lookup(_ context.Context, name, _ string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlatformNotFound, name)
	}
	return doc, nil
}

func (s *MapSource) Reset() {}
