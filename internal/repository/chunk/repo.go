// Package chunk persists course chunks as Redis hashes covered by one FT vector index.
package chunk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/db"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// fetchBatch bounds keys per HGETALL pipeline.
const fetchBatch = 100

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
	Scan(ctx context.Context, pattern string, limit int) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

// Config holds repository tuning.
type Config struct {
	KeyPrefix  string
	Dimensions int
	BatchSize  int
	HNSW       HNSWConfig
}

// Repo implements the chunk persistence used by usecase/vectorstore.
type Repo struct {
	store     store
	keys      Keys
	dim       int
	batchSize int
	hnsw      HNSWConfig
	logger    *zap.Logger
}

// New creates a chunk repository.
func New(s store, cfg Config, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Repo{
		store:     s,
		keys:      NewKeys(cfg.KeyPrefix),
		dim:       cfg.Dimensions,
		batchSize: batch,
		hnsw:      cfg.HNSW,
		logger:    logger,
	}
}

// Insert writes chunks in batches. Batches are independent: on failure the
// returned count covers the batches already written.
func (r *Repo) Insert(ctx context.Context, chunks []domchunk.Chunk) (int, error) {
	written := 0
	for start := 0; start < len(chunks); start += r.batchSize {
		end := min(start+r.batchSize, len(chunks))

		items := make([]db.HashSetItem, 0, end-start)
		for _, c := range chunks[start:end] {
			fields, err := encode(c)
			if err != nil {
				return written, fmt.Errorf("encode chunk %s: %w", c.ID(), err)
			}
			items = append(items, db.HashSetItem{Key: r.keys.Chunk(c.Namespace(), c.ID()), Fields: fields})
		}

		if err := r.store.HSetMulti(ctx, items); err != nil {
			return written, fmt.Errorf("insert batch at %d: %w", start, err)
		}
		written += len(items)
	}
	return written, nil
}

// Nearest runs the server-side KNN within a namespace. Similarity is 1 - cosine distance.
func (r *Repo) Nearest(ctx context.Context, namespace string, vec []float32, k int) ([]domchunk.Retrieved, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.keys.Index(),
		Tags:         map[string]string{fieldNamespace: namespace},
		Vector:       vec,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", namespace, err)
	}
	if res == nil {
		return nil, nil
	}

	out := make([]domchunk.Retrieved, 0, len(res.Entries))
	for _, e := range res.Entries {
		c, ok := r.decodeEntry(e.Key, e.Fields)
		if !ok {
			continue
		}
		if c.Namespace() != namespace {
			r.logger.Warn("KNN hit outside namespace dropped",
				zap.String("key", e.Key), zap.String("namespace", namespace))
			continue
		}
		out = append(out, domchunk.Retrieved{Chunk: c, Similarity: domchunk.Score(e.Score)})
	}
	return out, nil
}

// ScanNamespace reads up to limit chunks of one namespace without the index.
func (r *Repo) ScanNamespace(ctx context.Context, namespace string, limit int) ([]domchunk.Chunk, error) {
	keys, err := r.store.Scan(ctx, r.keys.NamespacePattern(namespace), limit)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", namespace, err)
	}
	chunks, err := r.load(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c.Namespace() == namespace {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindByCourse selects chunks whose metadata course_id equals courseID, across namespaces.
func (r *Repo) FindByCourse(ctx context.Context, courseID string, limit int) ([]domchunk.Chunk, error) {
	return r.findByTag(ctx, fieldCourseID, courseID, limit, func(m domchunk.Metadata) string { return m.CourseID })
}

// FindByUser selects chunks tagged with user_id, across namespaces.
func (r *Repo) FindByUser(ctx context.Context, userID string, limit int) ([]domchunk.Chunk, error) {
	return r.findByTag(ctx, fieldUserID, userID, limit, func(m domchunk.Metadata) string { return m.UserID })
}

// findByTag uses the index for metadata equality; without an index it scans all chunks.
func (r *Repo) findByTag(
	ctx context.Context, field, value string, limit int, get func(domchunk.Metadata) string,
) ([]domchunk.Chunk, error) {
	query := db.TagFilter(map[string]string{field: value})
	res, err := r.store.SearchList(ctx, r.keys.Index(), query, 0, limit, returnFields)
	if err == nil {
		if res == nil {
			return nil, nil
		}
		out := make([]domchunk.Chunk, 0, len(res.Entries))
		for _, e := range res.Entries {
			if c, ok := r.decodeEntry(e.Key, e.Fields); ok {
				out = append(out, c)
			}
		}
		return out, nil
	}
	if !errors.Is(err, db.ErrIndexNotFound) {
		return nil, fmt.Errorf("lookup %s=%s: %w", field, value, err)
	}

	r.logger.Warn("Chunk index missing, scanning keys", zap.String("field", field))
	keys, err := r.store.Scan(ctx, r.keys.AllPattern(), 0)
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	all, err := r.load(ctx, keys)
	if err != nil {
		return nil, err
	}

	var out []domchunk.Chunk
	for _, c := range all {
		if get(c.Metadata()) != value {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeleteByContentID removes every chunk of a namespace whose content_id matches.
func (r *Repo) DeleteByContentID(ctx context.Context, namespace, contentID string) (int, error) {
	keys, err := r.store.Scan(ctx, r.keys.NamespacePattern(namespace), 0)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", namespace, err)
	}

	var victims []string
	for start := 0; start < len(keys); start += fetchBatch {
		batch := keys[start:min(start+fetchBatch, len(keys))]
		hashes, err := r.store.HGetAllMulti(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", namespace, err)
		}
		for i, h := range hashes {
			if h[fieldNamespace] != namespace {
				continue
			}
			if h[fieldContentID] == contentID || metadataContentID(h) == contentID {
				victims = append(victims, batch[i])
			}
		}
	}

	if len(victims) == 0 {
		return 0, nil
	}
	n, err := r.store.Del(ctx, victims...)
	if err != nil {
		return 0, fmt.Errorf("delete %s/%s: %w", namespace, contentID, err)
	}
	return n, nil
}

// load fetches and decodes hashes in pipelined batches; undecodable entries are skipped.
func (r *Repo) load(ctx context.Context, keys []string) ([]domchunk.Chunk, error) {
	out := make([]domchunk.Chunk, 0, len(keys))
	for start := 0; start < len(keys); start += fetchBatch {
		batch := keys[start:min(start+fetchBatch, len(keys))]
		hashes, err := r.store.HGetAllMulti(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("load chunks: %w", err)
		}
		for i, h := range hashes {
			if len(h) == 0 {
				continue // deleted between SCAN and HGETALL
			}
			if c, ok := r.decodeEntry(batch[i], h); ok {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (r *Repo) decodeEntry(key string, fields map[string]string) (domchunk.Chunk, bool) {
	d, err := decode(r.keys.ID(key), fields, r.dim)
	if err != nil {
		r.logger.Warn("Skipping malformed chunk", zap.String("key", key), zap.Error(err))
		return domchunk.Chunk{}, false
	}
	if d.coerced {
		r.logger.Warn("Stored embedding dimension mismatch, coerced",
			zap.String("key", key), zap.Int("stored", d.rawDim), zap.Int("expected", r.dim))
	}
	return d.chunk, true
}

func metadataContentID(h map[string]string) string {
	m, err := decodeMetadata(map[string]string{fieldMetadata: h[fieldMetadata]})
	if err != nil {
		return ""
	}
	return m.ContentID
}
