package store

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/pkg/models"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func chunkWithVec(id string, vec []float32) models.DocumentChunk {
	return models.DocumentChunk{
		ID:        id,
		Text:      "text for " + id,
		Embedding: vec,
		Metadata: models.ChunkMetadata{
			SourceFile: id + ".md",
			Title:      id,
			URL:        "/" + id,
		},
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector left", []float32{0, 0}, []float32{1, 2}, 0},
		{"zero vector right", []float32{1, 2}, []float32{0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosine_Bounds(t *testing.T) {
	vecs := [][]float32{
		{0.3, -0.7, 1.2},
		{5, 5, 5},
		{-1, 0.001, 2},
	}
	for _, a := range vecs {
		for _, b := range vecs {
			got, err := Cosine(a, b)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, -1-1e-9)
			assert.LessOrEqual(t, got, 1+1e-9)
		}
		self, err := Cosine(a, a)
		require.NoError(t, err)
		assert.InDelta(t, 1, self, 1e-9)
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"))
	db := s.Load()
	require.NotNil(t, db)
	assert.Empty(t, db.Chunks)
	assert.Equal(t, models.DatabaseVersion, db.Version)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector-db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	db := New(path).Load()
	require.NotNil(t, db)
	assert.Empty(t, db.Chunks)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector-db.json")
	original := &models.VectorDatabase{
		Version:   models.DatabaseVersion,
		Model:     "all-MiniLM-L6-v2",
		Dimension: 3,
		Chunks: []models.DocumentChunk{
			chunkWithVec("a", []float32{1, 0, 0}),
			chunkWithVec("b", []float32{0, 1, 0}),
		},
	}
	require.NoError(t, New(path).Save(original))

	loaded := New(path).Load()
	assert.Equal(t, original, loaded)
}

func TestStore_SaveOverwritesPriorArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector-db.json")
	s := New(path)
	require.NoError(t, s.Save(&models.VectorDatabase{Version: "1.0", Dimension: 2,
		Chunks: []models.DocumentChunk{chunkWithVec("old", []float32{1, 0})}}))
	require.NoError(t, s.Save(&models.VectorDatabase{Version: "1.0", Dimension: 2,
		Chunks: []models.DocumentChunk{chunkWithVec("new", []float32{0, 1})}}))

	loaded := New(path).Load()
	require.Len(t, loaded.Chunks, 1)
	assert.Equal(t, "new", loaded.Chunks[0].ID)
}

func TestStore_LoadIsSingleFlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector-db.json")
	require.NoError(t, New(path).Save(&models.VectorDatabase{Version: "1.0", Dimension: 1,
		Chunks: []models.DocumentChunk{chunkWithVec("x", []float32{1})}}))

	s := New(path)
	const callers = 16
	got := make([]*models.VectorDatabase, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.Load()
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, got[0], got[i], "caller %d observed a different parse", i)
	}
}

func TestCacheIndex(t *testing.T) {
	a1 := chunkWithVec("a1", []float32{1})
	a1.Metadata.SourceFile = "a.md"
	a1.Metadata.ContentHash = "hash-a"
	a2 := chunkWithVec("a2", []float32{2})
	a2.Metadata.SourceFile = "a.md"
	b1 := chunkWithVec("b1", []float32{3})
	b1.Metadata.SourceFile = "b.md"
	b1.Metadata.ContentHash = "hash-b"

	index := CacheIndex(&models.VectorDatabase{Chunks: []models.DocumentChunk{a1, a2, b1}})

	require.Len(t, index, 2)
	assert.Equal(t, "hash-a", index["a.md"].ContentHash)
	require.Len(t, index["a.md"].Chunks, 2)
	assert.Equal(t, "a1", index["a.md"].Chunks[0].ID)
	assert.Equal(t, "a2", index["a.md"].Chunks[1].ID)
	assert.Equal(t, "hash-b", index["b.md"].ContentHash)
}

func TestCacheIndex_Nil(t *testing.T) {
	assert.Empty(t, CacheIndex(nil))
}

func newSearchStore(t *testing.T, chunks []models.DocumentChunk, dim int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vector-db.json")
	s := New(path)
	require.NoError(t, s.Save(&models.VectorDatabase{
		Version: models.DatabaseVersion, Model: "stub", Dimension: dim, Chunks: chunks,
	}))
	return New(path)
}

func TestStore_Search_RanksByCosine(t *testing.T) {
	chunks := []models.DocumentChunk{
		chunkWithVec("far", []float32{0, 1, 0}),
		chunkWithVec("near", []float32{1, 0.05, 0}),
		chunkWithVec("mid", []float32{0.5, 0.5, 0}),
		chunkWithVec("anti", []float32{-1, 0, 0}),
		chunkWithVec("close", []float32{0.9, 0.1, 0}),
	}
	s := newSearchStore(t, chunks, 3)

	res, err := s.Search([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "near", res[0].Chunk.ID)

	res, err = s.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 5)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
	assert.Equal(t, "anti", res[4].Chunk.ID)
}

func TestStore_Search_TopKLargerThanCorpus(t *testing.T) {
	s := newSearchStore(t, []models.DocumentChunk{
		chunkWithVec("a", []float32{1, 0}),
		chunkWithVec("b", []float32{0, 1}),
	}, 2)

	res, err := s.Search([]float32{1, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestStore_Search_StableTies(t *testing.T) {
	// Identical embeddings tie exactly; artifact order must win.
	vec := []float32{1, 1}
	s := newSearchStore(t, []models.DocumentChunk{
		chunkWithVec("first", vec),
		chunkWithVec("second", vec),
		chunkWithVec("third", vec),
	}, 2)

	res, err := s.Search([]float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "first", res[0].Chunk.ID)
	assert.Equal(t, "second", res[1].Chunk.ID)
	assert.Equal(t, "third", res[2].Chunk.ID)
}

func TestStore_Search_DimensionMismatchFailsLoudly(t *testing.T) {
	s := newSearchStore(t, []models.DocumentChunk{
		chunkWithVec("a", []float32{1, 0, 0}),
	}, 3)

	_, err := s.Search([]float32{1, 0}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStore_Search_EmptyDatabase(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"))
	res, err := s.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStore_ArtifactWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector-db.json")
	chunk := chunkWithVec("abc123", []float32{0.5, -0.5})
	chunk.Metadata.Heading = "Install"
	chunk.Metadata.HeadingID = "install"
	chunk.Metadata.ContentHash = "deadbeef"
	require.NoError(t, New(path).Save(&models.VectorDatabase{
		Version: "1.0", Model: "stub", Dimension: 2,
		Chunks: []models.DocumentChunk{chunk},
	}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "1.0", raw["version"])
	assert.Equal(t, "stub", raw["model"])
	assert.Equal(t, float64(2), raw["dimension"])

	chunks := raw["chunks"].([]any)
	require.Len(t, chunks, 1)
	first := chunks[0].(map[string]any)
	assert.Equal(t, "abc123", first["id"])
	md := first["metadata"].(map[string]any)
	assert.Equal(t, "install", md["headingId"])
	assert.Equal(t, "deadbeef", md["contentHash"])

	// NaN-free floats only; scores must stay finite end to end.
	for _, v := range first["embedding"].([]any) {
		assert.False(t, math.IsNaN(v.(float64)))
	}
}
