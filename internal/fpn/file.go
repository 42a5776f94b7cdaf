package fpn

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
)

// SnapshotName returns the file name a save taken at now gets.
func SnapshotName(now time.Time) string {
	return "4peanuts-" + now.Format("2006_01_02-15_04_05") + "-save" + Extension
}

// SaveFile encodes c to path, creating parent directories as needed. The file is
// written next to its destination and renamed into place.
func SaveFile(path string, c *catalog.Catalog) error {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fpn-*")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish save: %w", err)
	}
	return nil
}

// LoadFile decodes the save file at path.
func LoadFile(path string) (*catalog.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open save: %w", err)
	}
	defer f.Close()
	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}
