// Package fsutil is the file layer shared by the point cloud readers, the
// raster writers and the report server. Production code goes through
// OSFileSystem; tests swap in MemoryFileSystem so whole pipeline runs can
// happen without touching disk.
package fsutil

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FileSystem is the set of operations the canopy tools perform on files.
type FileSystem interface {
	// Open opens name for reading. Point cloud headers are read with
	// seeks, so the returned file must be seekable.
	Open(name string) (io.ReadSeekCloser, error)

	// Create creates or truncates name. Contents become visible once the
	// writer is closed.
	Create(name string) (io.WriteCloser, error)

	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	Remove(name string) error

	// RemoveAll removes path and everything below it. A missing path is
	// not an error.
	RemoveAll(path string) error

	// Rename moves oldpath over newpath. Raster writers rely on this to
	// publish a finished file in one step.
	Rename(oldpath, newpath string) error

	// Exists reports whether name is a file or directory.
	Exists(name string) bool
}

// OSFileSystem is the FileSystem backed by the host filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (io.ReadSeekCloser, error) { return os.Open(name) }
func (OSFileSystem) Create(name string) (io.WriteCloser, error)  { return os.Create(name) }
func (OSFileSystem) ReadFile(name string) ([]byte, error)        { return os.ReadFile(name) }
func (OSFileSystem) Remove(name string) error                    { return os.Remove(name) }
func (OSFileSystem) RemoveAll(path string) error                 { return os.RemoveAll(path) }
func (OSFileSystem) Rename(oldpath, newpath string) error        { return os.Rename(oldpath, newpath) }

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem keeps files in a map keyed by cleaned path. Directories
// are tracked only so Exists and RemoveAll behave like the host filesystem;
// files may be written without creating their parent first.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]struct{}
}

// NewMemoryFileSystem returns an empty MemoryFileSystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
	}
}

func notExist(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

// Open returns a reader over a snapshot of the file's current contents.
func (m *MemoryFileSystem) Open(name string) (io.ReadSeekCloser, error) {
	data, err := m.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return nopCloser{bytes.NewReader(data)}, nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

// Create truncates name immediately and fills it when the writer closes.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	name = filepath.Clean(name)
	m.mu.Lock()
	m.files[name] = nil
	m.mu.Unlock()
	return &memWriter{fs: m, name: name}, nil
}

type memWriter struct {
	fs   *MemoryFileSystem
	name string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.name] = w.buf.Bytes()
	return nil
}

func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	name = filepath.Clean(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	if !ok {
		return nil, notExist("open", name)
	}
	return bytes.Clone(data), nil
}

func (m *MemoryFileSystem) WriteFile(name string, data []byte, _ os.FileMode) error {
	name = filepath.Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = bytes.Clone(data)
	return nil
}

func (m *MemoryFileSystem) MkdirAll(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := filepath.Clean(path); p != "." && p != string(filepath.Separator); p = filepath.Dir(p) {
		m.dirs[p] = struct{}{}
	}
	return nil
}

// Remove deletes a file or a directory marker. Unlike os.Remove it does
// not refuse to drop a non-empty directory.
func (m *MemoryFileSystem) Remove(name string) error {
	name = filepath.Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; ok {
		delete(m.files, name)
		return nil
	}
	if _, ok := m.dirs[name]; ok {
		delete(m.dirs, name)
		return nil
	}
	return notExist("remove", name)
}

func (m *MemoryFileSystem) RemoveAll(path string) error {
	path = filepath.Clean(path)
	below := path + string(filepath.Separator)
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.files {
		if name == path || strings.HasPrefix(name, below) {
			delete(m.files, name)
		}
	}
	for name := range m.dirs {
		if name == path || strings.HasPrefix(name, below) {
			delete(m.dirs, name)
		}
	}
	return nil
}

// Rename moves a single file. Directories cannot be renamed.
func (m *MemoryFileSystem) Rename(oldpath, newpath string) error {
	oldpath, newpath = filepath.Clean(oldpath), filepath.Clean(newpath)
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[oldpath]
	if !ok {
		return notExist("rename", oldpath)
	}
	delete(m.files, oldpath)
	m.files[newpath] = data
	return nil
}

func (m *MemoryFileSystem) Exists(name string) bool {
	name = filepath.Clean(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[name]; ok {
		return true
	}
	_, ok := m.dirs[name]
	return ok
}

// Paths lists every file currently held, sorted. Tests use it to check
// that no temporary files were left behind.
func (m *MemoryFileSystem) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for name := range m.files {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
