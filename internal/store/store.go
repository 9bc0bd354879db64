package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"docsearch/pkg/models"
)

// ErrDimensionMismatch reports a query/chunk vector length disagreement.
// That is a data-integrity bug, never a recoverable search condition.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store reads and writes the single persisted vector database artifact
// and answers exact cosine-similarity searches over it.
//
// Loading is single-flight: the first caller parses the file and
// concurrent callers share that parse. Writes assume a single build
// process at a time.
type Store struct {
	path string

	once sync.Once
	db   *models.VectorDatabase
}

// New creates a Store bound to an artifact path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the artifact path.
func (s *Store) Path() string { return s.path }

// Load parses the artifact once and returns the shared result. A
// missing or unparsable artifact yields an empty database rather than
// an error: at build time that simply means a full rebuild, and at
// query time the search legitimately returns nothing.
func (s *Store) Load() *models.VectorDatabase {
	s.once.Do(func() {
		s.db = s.read()
	})
	return s.db
}

func (s *Store) read() *models.VectorDatabase {
	empty := &models.VectorDatabase{Version: models.DatabaseVersion}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("failed to read vector database")
		}
		return empty
	}

	var db models.VectorDatabase
	if err := json.Unmarshal(b, &db); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("vector database unparsable, treating as empty")
		return empty
	}
	return &db
}

// Save serializes the database and overwrites the prior artifact. The
// write goes through a temp file in the same directory so a crash
// mid-write never leaves a truncated artifact behind.
func (s *Store) Save(db *models.VectorDatabase) error {
	b, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("marshal vector database: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vector-db-*.json")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// CacheEntry groups a document's previously indexed chunks with the
// content hash they were produced from. The hash is keyed at the
// document level; staleness checks never have to dig it out of
// individual chunk metadata.
type CacheEntry struct {
	ContentHash string
	Chunks      []models.DocumentChunk
}

// CacheIndex groups a database's chunks by source file for fast
// "is this document unchanged" checks during an incremental build.
// Chunk order within each entry follows artifact order.
func CacheIndex(db *models.VectorDatabase) map[string]CacheEntry {
	index := make(map[string]CacheEntry)
	if db == nil {
		return index
	}
	for _, chunk := range db.Chunks {
		entry := index[chunk.Metadata.SourceFile]
		if len(entry.Chunks) == 0 {
			entry.ContentHash = chunk.Metadata.ContentHash
		}
		entry.Chunks = append(entry.Chunks, chunk)
		index[chunk.Metadata.SourceFile] = entry
	}
	return index
}

// Search ranks every chunk by cosine similarity to queryVec and returns
// the topK best, stably sorted descending so ties keep artifact order.
// Asking for more results than the database holds returns them all.
func (s *Store) Search(queryVec []float32, topK int) ([]models.SearchResult, error) {
	db := s.Load()

	results := make([]models.SearchResult, 0, len(db.Chunks))
	for _, chunk := range db.Chunks {
		score, err := Cosine(queryVec, chunk.Embedding)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		results = append(results, models.SearchResult{Chunk: chunk, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < 0 {
		topK = 0
	}
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Cosine returns the cosine similarity of two equal-length vectors:
// dot(a,b) / (||a|| * ||b||), or exactly 0 when either norm is zero.
// Mismatched lengths are an error, not a silently wrong score.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
