package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ModelFile is the artifact name inside the models directory.
const ModelFile = "models.json"

// ErrNoArtifact is returned when no model set has been saved yet.
var ErrNoArtifact = errors.New("no saved model set")

// SaveModelSet writes set to path. The file is replaced atomically so a
// concurrent reader never sees a partial artifact.
func SaveModelSet(path string, set *ModelSet) error {
	if set == nil || set.Primary == nil || set.Fallback == nil {
		return fmt.Errorf("save model set: %w", ErrNotTrained)
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode model set: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write model set: %w", err)
	}
	return nil
}

// LoadModelSet reads a model set saved by SaveModelSet.
func LoadModelSet(path string) (*ModelSet, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("read model set: %w", err)
	}

	var set ModelSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode model set: %w", err)
	}
	if set.Primary == nil || set.Fallback == nil || set.Primary.Classifier == nil || set.Fallback.Classifier == nil {
		return nil, fmt.Errorf("decode model set: %w", ErrNotTrained)
	}
	return &set, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir) // #nosec G304 - directory of the artifact
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.Sync()
}
