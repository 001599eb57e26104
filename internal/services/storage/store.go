package storage

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

// TimestampFormat is the second-resolution stamp used in stored file names.
const TimestampFormat = "20060102_150405"

// ErrIO is returned when a stored image cannot be written or read.
var ErrIO = errors.New("image store io error")

// ImageStore writes PNG files under a single folder. Two saves with the same
// prefix within the same second resolve to the same path and the later one
// overwrites the earlier.
type ImageStore struct {
	imagesDir string
	now       func() time.Time
}

func NewImageStore(imagesDir string) *ImageStore {
	return &ImageStore{
		imagesDir: imagesDir,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for file names.
func (s *ImageStore) WithClock(now func() time.Time) *ImageStore {
	s.now = now
	return s
}

// Dir returns the folder images are written to.
func (s *ImageStore) Dir() string {
	return s.imagesDir
}

// Save writes img as <dir>/<prefix>_<YYYYMMDD_HHMMSS>.png and returns the path.
func (s *ImageStore) Save(img image.Image, prefix string) (string, error) {
	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating directory %s: %v", ErrIO, s.imagesDir, err)
	}

	filename := fmt.Sprintf("%s_%s.png", prefix, s.now().Format(TimestampFormat))
	fullpath := filepath.Join(s.imagesDir, filename)

	if err := imaging.Save(img, fullpath); err != nil {
		return "", fmt.Errorf("%w: saving %s: %v", ErrIO, filename, err)
	}

	return fullpath, nil
}

// Open reads back a stored image.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	return img, nil
}
