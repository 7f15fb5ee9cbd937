package badger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any)   { a.logger.Error(fmt.Sprintf(msg, items...)) }
func (a *slogAdapter) Warningf(msg string, items ...any) { a.logger.Warn(fmt.Sprintf(msg, items...)) }
func (a *slogAdapter) Infof(msg string, items ...any)    { a.logger.Debug(fmt.Sprintf(msg, items...)) }
func (a *slogAdapter) Debugf(msg string, items ...any)   { a.logger.Debug(fmt.Sprintf(msg, items...)) }

// Open opens the cache database at dir. An empty dir keeps it in memory.
func Open(dir string) (*badger.DB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create embedding cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &slogAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return db, nil
}

// CachedEmbedder memoizes embeddings by model and exact text. Chunk texts
// are re-embedded on every ingest and eval run; only misses reach the model.
type CachedEmbedder struct {
	next  ports.Embedder
	db    *badger.DB
	model string
}

func NewCachedEmbedder(next ports.Embedder, db *badger.DB, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, db: db, model: model}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(text))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missTexts = append(missTexts, text)
				missIdx = append(missIdx, i)
				continue
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			vec, err := decodeVector(raw)
			if err != nil {
				return err
			}
			out[i] = vec
		}
		return nil
	})
	if err != nil {
		slog.Warn("embedding_cache_read_failed", "error", err)
		return c.next.Embed(ctx, texts)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		if err := wb.Set(c.key(missTexts[j]), encodeVector(vec)); err != nil {
			slog.Warn("embedding_cache_write_failed", "error", err)
			return out, nil
		}
	}
	if err := wb.Flush(); err != nil {
		slog.Warn("embedding_cache_write_failed", "error", err)
	}
	return out, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (c *CachedEmbedder) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return append([]byte("emb:"), sum[:]...)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}
