package cache

import (
	"os"
)

// Filesystem is the functionality the cache needs to persist entries.
type Filesystem interface {
	ReadFile(filename string) ([]byte, error)
	WriteFile(filename string, data []byte) error
	MkdirAll(dir string) error
	Exists(filename string) bool
}

type filesystemImpl struct{}

// NewFilesystem creates a Filesystem that uses the real file system.
func NewFilesystem() Filesystem {
	return &filesystemImpl{}
}

func (f *filesystemImpl) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// WriteFile writes to a temporary file first so a concurrently starting process never loads a half written entry.
func (f *filesystemImpl) WriteFile(filename string, data []byte) error {
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, filename)
}

func (f *filesystemImpl) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func (f *filesystemImpl) Exists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
