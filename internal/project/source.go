package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"docflow/internal/extractor"
)

// SourceUnit is one source file captured at scan time. Immutable for the
// duration of a run.
type SourceUnit struct {
	// Path is relative to the project root, slash-separated, stable
	// across runs.
	Path    string
	Content []byte
	Hash    string
}

// ScanOptions bounds what the scanner picks up. The ignore predicate is an
// external collaborator concern; it is applied before extraction to bound
// cost.
type ScanOptions struct {
	// Ignore reports whether a directory or file (relative slash path)
	// should be skipped. Nil means default patterns only.
	Ignore func(rel string, isDir bool) bool
	// MaxFileSize caps individual files; larger files are skipped with a
	// notice. Zero means the 100 KiB default.
	MaxFileSize int64
	// MaxTotalSize caps the whole scan; once exceeded, remaining files are
	// skipped. Zero means the 512 KiB default.
	MaxTotalSize int64
}

const (
	defaultMaxFileSize  = 100 << 10
	defaultMaxTotalSize = 512 << 10
)

// ScanStats reports what the scanner dropped for size.
type ScanStats struct {
	// SkippedOversize counts files dropped for exceeding MaxFileSize.
	SkippedOversize int
	// Truncated is set when the total-size cap stopped the walk early.
	Truncated bool
}

// defaultIgnoreDirs are always skipped regardless of the caller's predicate.
var defaultIgnoreDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"env":          true,
	"dist":         true,
	"build":        true,
	".idea":        true,
	".vscode":      true,
	"testdata":     true,
}

// Scan walks the root directory and collects SourceUnits for files whose
// extension the extractor handles. Enumeration order is not significant:
// the tree builder sorts everything.
func Scan(root string, ext *extractor.Extractor, opts ScanOptions) ([]SourceUnit, ScanStats, error) {
	var stats ScanStats

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, stats, fmt.Errorf("resolving root %s: %w", root, err)
	}

	maxFile := opts.MaxFileSize
	if maxFile <= 0 {
		maxFile = defaultMaxFileSize
	}
	maxTotal := opts.MaxTotalSize
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotalSize
	}

	var units []SourceUnit
	var total int64

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, the walk continues
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if defaultIgnoreDirs[d.Name()] {
				return filepath.SkipDir
			}
			if opts.Ignore != nil && opts.Ignore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		fileExt := strings.TrimPrefix(filepath.Ext(path), ".")
		if !ext.Handles(fileExt) {
			return nil
		}
		if opts.Ignore != nil && opts.Ignore(rel, false) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if info.Size() == 0 {
			return nil
		}
		if info.Size() > maxFile {
			stats.SkippedOversize++
			log.Printf("scan: skipping %s: %d bytes exceeds the %d byte file cap", rel, info.Size(), maxFile)
			return nil
		}
		if total+info.Size() > maxTotal {
			stats.Truncated = true
			log.Printf("scan: total size cap of %d bytes reached at %s, remaining files skipped", maxTotal, rel)
			return fs.SkipAll
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		sum := sha256.Sum256(content)
		units = append(units, SourceUnit{
			Path:    rel,
			Content: content,
			Hash:    hex.EncodeToString(sum[:]),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	return units, stats, nil
}
