package fsstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ReadJSON decodes path into out. A missing or empty file is not an error;
// it reports found=false so callers can start from a zero state.
func ReadJSON(path string, out any) (bool, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(clean)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read json %s: %w", clean, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrDecodeFailed, clean, err)
	}
	return true, nil
}

// WriteJSONAtomic marshals v and replaces path in a single rename.
func WriteJSONAtomic(path string, v any) error {
	clean, err := cleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrEncodeFailed, clean, err)
	}
	return writeAtomic(clean, append(data, '\n'))
}
