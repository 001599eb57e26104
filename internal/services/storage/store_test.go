package storage

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
}

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func TestSave_PathFormat(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	store := NewImageStore(dir).WithClock(fixedClock)

	path, err := store.Save(createTestImage(4, 4), "uploaded")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	expected := filepath.Join(dir, "uploaded_20240309_140507.png")
	if path != expected {
		t.Errorf("Expected path %s, got %s", expected, path)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Stored file should exist: %v", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	store := NewImageStore(t.TempDir())
	original := createTestImage(37, 21)

	path, err := store.Save(original, "output")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if loaded.Bounds().Dx() != 37 || loaded.Bounds().Dy() != 21 {
		t.Fatalf("Unexpected bounds %v", loaded.Bounds())
	}

	for y := 0; y < 21; y++ {
		for x := 0; x < 37; x++ {
			want := color.NRGBAModel.Convert(original.At(x, y))
			got := color.NRGBAModel.Convert(loaded.At(x, y))
			if want != got {
				t.Fatalf("Pixel (%d,%d) = %v, expected %v", x, y, got, want)
			}
		}
	}
}

func TestSave_SameSecondOverwrites(t *testing.T) {
	store := NewImageStore(t.TempDir()).WithClock(fixedClock)

	first, err := store.Save(createTestImage(2, 2), "uploaded")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := store.Save(createTestImage(3, 3), "uploaded")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if first != second {
		t.Fatalf("Expected colliding paths, got %s and %s", first, second)
	}

	loaded, err := Open(second)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if loaded.Bounds().Dx() != 3 {
		t.Errorf("Expected the later image to win, got width %d", loaded.Bounds().Dx())
	}
}

func TestSave_UnwritableFolder(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not_a_dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create blocker file: %v", err)
	}

	store := NewImageStore(filepath.Join(blocker, "images"))
	if _, err := store.Save(createTestImage(2, 2), "uploaded"); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.png")); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
}
