package voice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voicewarden/internal/logging"
)

// ScratchDir hands out unique per-task file paths inside one writable
// directory and owns their deletion. Files live only for the duration of a
// single pipeline stage handoff.
type ScratchDir struct {
	dir string
}

// NewScratchDir ensures dir exists and returns a handle for it.
func NewScratchDir(dir string) (*ScratchDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir %s: %w", dir, err)
	}
	return &ScratchDir{dir: dir}, nil
}

// Path returns a unique scratch file path for the speaker. The short UUID
// suffix keeps two rapid utterances from the same speaker from colliding.
func (s *ScratchDir) Path(speakerID string) string {
	ts := time.Now().UTC().Format("20060102T150405.000Z")
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.wav", speakerID, ts, short))
}

// Save writes data to path atomically by writing to a tmp file in the same
// directory, fsyncing, closing, and renaming into place.
func (s *ScratchDir) Save(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Remove deletes a scratch file. Already-removed paths are ignored.
func (s *ScratchDir) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warnw("scratch remove failed", "path", path, "err", err)
	}
}
