package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Store persists compiled rule databases so that unchanged rule files don't need to be compiled again on startup.
type Store interface {
	// Load returns the entry saved under id, or nil if there is no usable entry.
	Load(id string) []byte
	Save(id string, data []byte) error
}

type storeImpl struct {
	logger zerolog.Logger
	fs     Filesystem
	dir    string
}

// NewStore creates a Store that keeps one file per entry in dir.
func NewStore(logger zerolog.Logger, fs Filesystem, dir string) Store {
	return &storeImpl{logger: logger, fs: fs, dir: dir}
}

// ID computes a cache ID from everything that influences the compiled result.
func ID(parts ...[]byte) string {
	hash := sha1.New()
	for _, p := range parts {
		hash.Write(p)
		hash.Write([]byte{0})
	}

	return hex.EncodeToString(hash.Sum(nil))
}

func (s *storeImpl) Load(id string) []byte {
	if !s.fs.Exists(s.dir) {
		return nil
	}

	path := filepath.Join(s.dir, id)
	bb, err := s.fs.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("file", path).Msg("Failed to read rules cache entry, compiling instead")
		}
		return nil
	}

	if len(bb) == 0 {
		return nil
	}

	return bb
}

func (s *storeImpl) Save(id string, data []byte) error {
	if err := s.fs.MkdirAll(s.dir); err != nil {
		return err
	}

	return s.fs.WriteFile(filepath.Join(s.dir, id), data)
}
