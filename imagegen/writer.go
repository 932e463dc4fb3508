package imagegen

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Filename builds the img_<unixts>_<uuid8>.png name for a fresh image.
func Filename(now time.Time) string {
	return fmt.Sprintf("img_%d_%s.png", now.Unix(), uuid.NewString()[:8])
}

// Save writes PNG bytes into dir under a unique name and returns the path.
func Save(dir string, png []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, Filename(time.Now()))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", path, err)
	}
	return path, nil
}
