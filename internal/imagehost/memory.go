package imagehost

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
)

// Memory is an in-process Host used by tests. Failing makes every call
// return the given error.
type Memory struct {
	Folder  string
	Failing error

	mu      sync.Mutex
	n       int
	objects map[string][]byte
	calls   []File
}

func NewMemory(folder string) *Memory {
	return &Memory{Folder: folder, objects: map[string][]byte{}}
}

func (m *Memory) Upload(_ context.Context, f File) (Asset, error) {
	if m.Failing != nil {
		return Asset{}, m.Failing
	}
	b, err := io.ReadAll(f.Body)
	if err != nil {
		return Asset{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	ext := strings.TrimPrefix(path.Ext(f.Name), ".")
	id := fmt.Sprintf("%s/obj%d", m.Folder, m.n)
	m.objects[id] = b
	m.calls = append(m.calls, File{Name: f.Name, Transform: f.Transform})
	return Asset{
		URL:          "https://img.test/" + id + "." + ext,
		PublicID:     id,
		Format:       ext,
		Bytes:        len(b),
		OriginalName: f.Name,
	}, nil
}

func (m *Memory) Destroy(_ context.Context, publicID string) error {
	if m.Failing != nil {
		return m.Failing
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[publicID]; !ok {
		return ErrNotFound
	}
	delete(m.objects, publicID)
	return nil
}

// Has reports whether an object is stored.
func (m *Memory) Has(publicID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[publicID]
	return ok
}

// Put stores an object directly, bypassing Upload.
func (m *Memory) Put(publicID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[publicID] = nil
}

// Uploads returns the files passed to Upload, bodies omitted.
func (m *Memory) Uploads() []File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]File(nil), m.calls...)
}
