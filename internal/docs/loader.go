package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"docsearch/pkg/models"
)

// Loader collects markdown documents from a directory tree. It stands
// in for the markdown-processing collaborator that owns rendering:
// here we only need each file's raw text, a display title, and the URL
// its rendered page lives at.
type Loader struct {
	Root    string
	BaseURL string // prefix for page URLs, e.g. "/docs"
}

var titleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// Load walks the root and returns documents in a stable path order.
func (l *Loader) Load() ([]models.Document, error) {
	var paths []string
	err := godirwalk.Walk(l.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if shouldSkipDir(de.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".md", ".markdown":
				paths = append(paths, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.Root, err)
	}
	sort.Strings(paths)

	docs := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to read document")
			continue
		}
		rel := relPath(l.Root, path)
		content := string(b)
		docs = append(docs, models.Document{
			Path:    rel,
			Content: content,
			Title:   title(rel, content),
			URL:     l.pageURL(rel),
		})
	}
	return docs, nil
}

func shouldSkipDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	switch name {
	case "node_modules", "vendor", "dist", "build", "out":
		return true
	}
	return false
}

// title is the document's first h1, or the file name without extension.
func title(rel, content string) string {
	if m := titleRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// pageURL maps a source path to its rendered page route: extension
// dropped, trailing "index" collapsed to the directory.
func (l *Loader) pageURL(rel string) string {
	p := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	if p == "index" || strings.HasSuffix(p, "/index") {
		p = strings.TrimSuffix(p, "index")
	}
	p = strings.TrimSuffix(p, "/")
	base := strings.TrimRight(l.BaseURL, "/")
	if p == "" {
		if base == "" {
			return "/"
		}
		return base + "/"
	}
	return base + "/" + p
}

func relPath(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}
