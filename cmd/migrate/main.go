package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"breastscan/internal/config"
	"breastscan/internal/repository/sqlite"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	imagesDir := flag.String("images", "", "Image directory to check for files no prediction references (usually IMAGE_DIR)")
	serverDir := flag.String("root", ".", "Working directory of the server, used to resolve relative image paths stored in the database")
	prune := flag.Bool("prune", false, "Delete unreferenced images found with -images")
	flag.Parse()

	fmt.Printf("Initializing schema in %s\n", *dbPath)

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	predictions := sqlite.NewPredictionRepository(db)

	stats, err := predictions.GetStats()
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	fmt.Printf("\nDatabase statistics:\n")
	fmt.Printf("   Total predictions: %d\n", stats.TotalPredictions)
	for _, cs := range stats.PerClass {
		fmt.Printf("      - %s: %d (mean score %.2f)\n", cs.Class, cs.Count, cs.MeanScore)
	}

	if *imagesDir == "" {
		return
	}

	referenced, err := predictions.ReferencedImagePaths()
	if err != nil {
		log.Fatalf("Failed to read image paths: %v", err)
	}

	scan, err := findOrphans(referenced, *imagesDir, *serverDir)
	if err != nil {
		log.Fatalf("Failed to scan images: %v", err)
	}
	fmt.Printf("\n%d stored images are referenced, %d are not referenced by any prediction\n", scan.Matched, len(scan.Orphans))

	if !*prune {
		for _, path := range scan.Orphans {
			fmt.Printf("   %s\n", path)
		}
		return
	}

	if err := checkPrune(referenced, scan); err != nil {
		log.Fatalf("Refusing to prune: %v", err)
	}

	removed := 0
	for _, path := range scan.Orphans {
		if err := os.Remove(path); err != nil {
			log.Printf("Failed to delete %s: %v", path, err)
			continue
		}
		removed++
	}
	fmt.Printf("Deleted %d images\n", removed)
}

// orphanScan is the result of matching an image directory against the
// paths recorded in the database.
type orphanScan struct {
	Orphans []string
	Matched int
}

// findOrphans lists the PNGs in imagesDir that no prediction points at.
// Requests that fail after saving leave such files behind. Recorded paths
// that are relative are resolved against serverDir, the directory the
// server ran in; imagesDir is resolved against the current directory.
func findOrphans(referenced map[string]bool, imagesDir, serverDir string) (*orphanScan, error) {
	root, err := filepath.Abs(serverDir)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(referenced))
	for path := range referenced {
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		known[filepath.Clean(path)] = true
	}

	dir, err := filepath.Abs(imagesDir)
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	scan := &orphanScan{}
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".png") {
			continue
		}
		path := filepath.Join(dir, file.Name())
		if known[path] {
			scan.Matched++
			continue
		}
		scan.Orphans = append(scan.Orphans, path)
	}
	return scan, nil
}

// checkPrune rejects a prune when predictions exist but none of them points
// into the scanned directory, which means -images or -root is wrong.
func checkPrune(referenced map[string]bool, scan *orphanScan) error {
	if len(referenced) > 0 && scan.Matched == 0 && len(scan.Orphans) > 0 {
		return errors.New("no stored image matches a recorded path; check -images and -root")
	}
	return nil
}
