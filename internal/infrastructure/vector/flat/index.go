package flat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
)

// ErrMismatchedPair is returned when the persisted vector file and chunk
// store disagree: one file exists without the other, or their entry counts
// differ. A mismatched pair is never silently tolerated.
var ErrMismatchedPair = errors.New("vector index and chunk store are mismatched")

// Index is an in-process flat vector index: embeddings stored side by side,
// by position, with the chunk records they were built from. It is scoped to
// one research session; sharing it across concurrent sessions would corrupt
// neighborhood expansion, which assumes document identity is session-unique.
//
// The session pipeline is single-threaded, so Index carries no locking.
type Index struct {
	embedder ports.Embedder

	indexPath string // binary vectors; "" disables persistence
	storePath string // JSON chunk store

	dim     int
	vectors [][]float32
	chunks  []domain.Chunk
	seen    map[string]struct{}
}

// New creates a memory-only index.
func New(embedder ports.Embedder) *Index {
	return &Index{
		embedder: embedder,
		seen:     make(map[string]struct{}),
	}
}

// Open creates an index persisted as the (indexPath, storePath) pair,
// loading any existing pair. Both files absent means start empty; a
// mismatched pair is an error.
func Open(embedder ports.Embedder, indexPath, storePath string) (*Index, error) {
	idx := New(embedder)
	idx.indexPath = indexPath
	idx.storePath = storePath
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add embeds and stores every chunk whose exact text has not been seen
// before. Re-adding identical text is a no-op. Chunks whose embedding fails
// are skipped rather than failing the batch. Returns the number of chunks
// actually added.
func (idx *Index) Add(ctx context.Context, chunks []domain.Chunk) (int, error) {
	var fresh []domain.Chunk
	var texts []string
	batch := make(map[string]struct{})
	for _, c := range chunks {
		if c.Text == "" {
			continue
		}
		if _, ok := idx.seen[c.Text]; ok {
			continue
		}
		if _, ok := batch[c.Text]; ok {
			continue
		}
		batch[c.Text] = struct{}{}
		fresh = append(fresh, c)
		texts = append(texts, c.Text)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(fresh) {
		return 0, fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(vectors), len(fresh))
	}

	// A chunk counts as seen only once its vector is stored, so a failed or
	// skipped embedding can be retried on a later Add.
	added := 0
	for i, vec := range vectors {
		if len(vec) == 0 || isZero(vec) {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(vec)
		}
		if len(vec) != idx.dim {
			continue
		}
		idx.vectors = append(idx.vectors, vec)
		idx.chunks = append(idx.chunks, fresh[i])
		idx.seen[fresh[i].Text] = struct{}{}
		added++
	}

	if added > 0 && idx.indexPath != "" {
		if err := idx.save(); err != nil {
			return added, fmt.Errorf("persist index: %w", err)
		}
	}
	return added, nil
}

// Search returns the k nearest chunks to the query by cosine similarity,
// best first. An empty index or an unusable query embedding yields an empty
// result, not an error.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) != idx.dim || isZero(queryVec) {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, len(idx.vectors))
	for i, vec := range idx.vectors {
		scored[i] = domain.ScoredChunk{
			Chunk: idx.chunks[i],
			Score: cosine(queryVec, vec),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Chunks returns the stored chunk records in insertion order.
func (idx *Index) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(idx.chunks))
	copy(out, idx.chunks)
	return out
}

func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Reset drops everything, including the persisted pair.
func (idx *Index) Reset() error {
	idx.dim = 0
	idx.vectors = nil
	idx.chunks = nil
	idx.seen = make(map[string]struct{})

	if idx.indexPath == "" {
		return nil
	}
	for _, path := range []string{idx.indexPath, idx.storePath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// save writes both halves to temporary names first and renames them as the
// final step, so a crash mid-write never leaves a readable-but-mismatched
// pair behind.
func (idx *Index) save() error {
	vecTmp := idx.indexPath + ".tmp"
	storeTmp := idx.storePath + ".tmp"

	if err := writeVectors(vecTmp, idx.dim, idx.vectors); err != nil {
		return err
	}
	storeBody, err := json.Marshal(idx.chunks)
	if err != nil {
		return fmt.Errorf("marshal chunk store: %w", err)
	}
	if err := os.WriteFile(storeTmp, storeBody, 0o644); err != nil {
		return fmt.Errorf("write chunk store: %w", err)
	}

	if err := os.Rename(vecTmp, idx.indexPath); err != nil {
		return fmt.Errorf("rename vector file: %w", err)
	}
	if err := os.Rename(storeTmp, idx.storePath); err != nil {
		return fmt.Errorf("rename chunk store: %w", err)
	}
	return nil
}

func (idx *Index) load() error {
	_, vecErr := os.Stat(idx.indexPath)
	_, storeErr := os.Stat(idx.storePath)

	vecMissing := os.IsNotExist(vecErr)
	storeMissing := os.IsNotExist(storeErr)

	if vecMissing && storeMissing {
		return nil
	}
	if vecMissing != storeMissing {
		return fmt.Errorf("%w: only one of %s, %s exists",
			ErrMismatchedPair, filepath.Base(idx.indexPath), filepath.Base(idx.storePath))
	}

	dim, vectors, err := readVectors(idx.indexPath)
	if err != nil {
		return err
	}
	storeBody, err := os.ReadFile(idx.storePath)
	if err != nil {
		return fmt.Errorf("read chunk store: %w", err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(storeBody, &chunks); err != nil {
		return fmt.Errorf("decode chunk store: %w", err)
	}

	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors vs %d chunks", ErrMismatchedPair, len(vectors), len(chunks))
	}

	idx.dim = dim
	idx.vectors = vectors
	idx.chunks = chunks
	for _, c := range chunks {
		idx.seen[c.Text] = struct{}{}
	}
	return nil
}

func writeVectors(path string, dim int, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer f.Close()

	header := []uint32{uint32(dim), uint32(len(vectors))}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write vector header: %w", err)
	}
	for _, vec := range vectors {
		if err := binary.Write(f, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("write vector row: %w", err)
		}
	}
	return f.Sync()
}

func readVectors(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, nil, fmt.Errorf("stat vector file: %w", err)
	}

	header := make([]uint32, 2)
	if err := binary.Read(f, binary.LittleEndian, header); err != nil {
		return 0, nil, fmt.Errorf("read vector header: %w", err)
	}
	dim, count := int(header[0]), int(header[1])

	// Never trust the header for allocation: the body length it implies must
	// match what is actually on disk.
	want := int64(8) + 4*int64(dim)*int64(count)
	if want != info.Size() {
		return 0, nil, fmt.Errorf("vector file corrupt: header claims %dx%d (%d bytes), file has %d",
			count, dim, want, info.Size())
	}

	vectors := make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, vec); err != nil {
			return 0, nil, fmt.Errorf("read vector row %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return dim, vectors, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
