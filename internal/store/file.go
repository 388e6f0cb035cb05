package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"multibot/internal/session"
)

// File persists the session snapshot as a JSON file. A missing or
// unreadable snapshot loads as the empty set, so a corrupt file costs
// the pending conversations but never blocks startup.
type File struct {
	path   string
	codec  *Codec
	logger *slog.Logger
}

func NewFile(path string, codec *Codec, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, codec: codec, logger: logger}
}

func (f *File) Load() ([]session.Session, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read session snapshot: %w", err)
	}

	sessions, err := f.codec.Decode(data)
	if err != nil {
		f.logger.Warn("discarding unreadable session snapshot", "path", f.path, "error", err)
		return nil, nil
	}
	return sessions, nil
}

func (f *File) Save(sessions []session.Session) error {
	data, err := f.codec.Encode(sessions)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("cannot create snapshot directory: %w", err)
	}

	// Write-then-rename keeps the previous snapshot intact if the
	// process dies mid-write.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cannot write session snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("cannot replace session snapshot: %w", err)
	}
	return nil
}
