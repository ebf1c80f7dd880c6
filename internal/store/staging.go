package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gutensearch/gutensearch/internal/index"
)

// checkpointFile sits next to the staged artifacts and records how much of
// which corpus they cover.
const checkpointFile = "checkpoint.json"

type checkpointMeta struct {
	FormatVersion uint32    `json:"format_version"`
	Fingerprint   string    `json:"corpus_fingerprint"`
	BatchesDone   int       `json:"batches_done"`
	WrittenAt     time.Time `json:"written_at"`
}

// Staging persists partially merged builds into a staging directory so an
// interrupted build can resume at batch granularity. It satisfies
// index.CheckpointStore.
type Staging struct {
	dir    string
	logger *slog.Logger
}

// NewStaging creates a Staging rooted at dir. The directory is created
// lazily on the first checkpoint.
func NewStaging(dir string) *Staging {
	return &Staging{
		dir:    dir,
		logger: slog.Default().With("component", "build-staging"),
	}
}

// SaveCheckpoint writes the merged-so-far index plus checkpoint metadata.
// The checkpoint file goes last, so a crash mid-save leaves no metadata
// pointing at torn artifacts.
func (s *Staging) SaveCheckpoint(ix *index.Index, batchesDone int, fingerprint string) error {
	if err := Save(ix, s.dir); err != nil {
		return fmt.Errorf("staging index: %w", err)
	}
	meta := checkpointMeta{
		FormatVersion: FormatVersion,
		Fingerprint:   fingerprint,
		BatchesDone:   batchesDone,
		WrittenAt:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	path := filepath.Join(s.dir, checkpointFile)
	if err := os.WriteFile(path+".tmp", data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return os.Rename(path+".tmp", path)
}

// LoadCheckpoint returns the staged index when a checkpoint exists and its
// fingerprint matches the current corpus. A missing, stale, or corrupt
// checkpoint returns (nil, 0, nil) with a log line rather than failing the
// build; a fresh build is always a safe fallback.
func (s *Staging) LoadCheckpoint(fingerprint string) (*index.Index, int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, checkpointFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("reading checkpoint: %w", err)
	}
	var meta checkpointMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("discarding unreadable checkpoint", "error", err)
		return nil, 0, nil
	}
	if meta.FormatVersion != FormatVersion {
		s.logger.Warn("discarding checkpoint with old format", "version", meta.FormatVersion)
		return nil, 0, nil
	}
	if meta.Fingerprint != fingerprint {
		s.logger.Info("corpus changed since checkpoint, starting fresh")
		return nil, 0, nil
	}
	ix, err := Load(s.dir)
	if err != nil {
		s.logger.Warn("discarding checkpoint with unreadable staged index", "error", err)
		return nil, 0, nil
	}
	return ix, meta.BatchesDone, nil
}

// ClearCheckpoint removes the staging directory after a completed build.
func (s *Staging) ClearCheckpoint() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing staging directory: %w", err)
	}
	return nil
}
