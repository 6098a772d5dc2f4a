package cache

import (
	"os"
	"strings"
)

type mockFilesystem struct {
	files    map[string][]byte
	dirs     map[string]bool
	mkdirErr error
	readErr  error
}

func newMockFilesystem() *mockFilesystem {
	return &mockFilesystem{files: make(map[string][]byte), dirs: make(map[string]bool)}
}

func (m *mockFilesystem) ReadFile(filename string) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	bb, ok := m.files[filename]
	if !ok {
		return nil, os.ErrNotExist
	}
	return bb, nil
}

func (m *mockFilesystem) WriteFile(filename string, data []byte) error {
	m.files[filename] = data
	return nil
}

func (m *mockFilesystem) MkdirAll(dir string) error {
	if m.mkdirErr != nil {
		return m.mkdirErr
	}
	m.dirs[strings.TrimSuffix(dir, "/")] = true
	return nil
}

func (m *mockFilesystem) Exists(filename string) bool {
	if m.dirs[filename] {
		return true
	}
	_, ok := m.files[filename]
	return ok
}
