package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type corpusFile struct {
	Name  string
	Path  string
	Size  int64
	Mtime int64
}

// scanPDFs lists the *.pdf files directly under dir, sorted by name.
func scanPDFs(dir string) ([]corpusFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	files := make([]corpusFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, corpusFile{
			Name:  entry.Name(),
			Path:  filepath.Join(dir, entry.Name()),
			Size:  info.Size(),
			Mtime: info.ModTime().Unix(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// fingerprint changes whenever a file is added, removed, resized or touched.
func fingerprint(files []corpusFile) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s|%d|%d\n", f.Name, f.Size, f.Mtime)
	}
	return hex.EncodeToString(h.Sum(nil))
}
