package captions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FileCache keeps one caption file per id, <id>_caption.txt, next to the
// image it describes, <id>.png. The existence of the caption file is what
// marks an id as captioned, so captions survive restarts.
type FileCache struct {
	getOrComputer
	dir string
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create caption directory: %w", err)
	}

	c := &FileCache{dir: dir}
	c.getOrComputer.store = c
	return c, nil
}

func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) SaveImage(_ context.Context, id int64, png []byte) error {
	if err := writeFileAtomic(c.imagePath(id), png); err != nil {
		return fmt.Errorf("failed to save image %d: %w", id, err)
	}
	return nil
}

func (c *FileCache) load(_ context.Context, id int64) (string, bool, error) {
	data, err := os.ReadFile(c.captionPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (c *FileCache) save(_ context.Context, id int64, caption string) error {
	return writeFileAtomic(c.captionPath(id), []byte(caption))
}

func (c *FileCache) captionPath(id int64) string {
	return filepath.Join(c.dir, strconv.FormatInt(id, 10)+"_caption.txt")
}

func (c *FileCache) imagePath(id int64) string {
	return filepath.Join(c.dir, strconv.FormatInt(id, 10)+".png")
}

// writeFileAtomic writes through a temporary file so a crash never leaves a
// partial caption that would count as done.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
