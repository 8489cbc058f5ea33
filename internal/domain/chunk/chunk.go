package chunk

import (
	"errors"
	"fmt"
)

// Type is the kind of indexed unit.
type Type string

const (
	// TypeText is a plain text segment.
	TypeText Type = "text"
	// TypeFile is a text segment extracted from an uploaded file.
	TypeFile Type = "file"
	// TypeImage is a single image; it never grounds generation.
	TypeImage Type = "image"
)

// ParseType validates a stored or requested chunk type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeText, TypeFile, TypeImage:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown chunk type %q", s)
	}
}

// Source tags used by the pipeline.
const (
	SourceGeneratedMaterial = "generated_material"
	SourceHandwrittenNote   = "handwritten_note"
)

// Params holds the raw fields of a chunk.
type Params struct {
	ID        string
	Namespace string
	Content   string
	Embedding []float32
	Metadata  Metadata
	Type      Type
	Source    string
	FileURL   string
}

// Chunk is the stored document unit (immutable value object).
type Chunk struct {
	id        string
	namespace string
	content   string
	embedding []float32
	metadata  Metadata
	typ       Type
	source    string
	fileURL   string
}

// New validates and creates a Chunk.
// Text and file chunks need content; image chunks carry an empty content.
func New(p Params) (Chunk, error) {
	if p.ID == "" {
		return Chunk{}, errors.New("chunk ID is required")
	}
	if p.Namespace == "" {
		return Chunk{}, errors.New("namespace is required")
	}
	if len(p.Embedding) == 0 {
		return Chunk{}, errors.New("embedding is required")
	}
	if _, err := ParseType(string(p.Type)); err != nil {
		return Chunk{}, err
	}
	if p.Type != TypeImage && p.Content == "" {
		return Chunk{}, errors.New("content is required for text chunks")
	}
	return Reconstruct(p), nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(p Params) Chunk {
	return Chunk{
		id:        p.ID,
		namespace: p.Namespace,
		content:   p.Content,
		embedding: p.Embedding,
		metadata:  p.Metadata,
		typ:       p.Type,
		source:    p.Source,
		fileURL:   p.FileURL,
	}
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return c.id }

// Namespace returns the partition key (one per course).
func (c Chunk) Namespace() string { return c.namespace }

// Content returns the chunk text.
func (c Chunk) Content() string { return c.content }

// Embedding returns the vector.
func (c Chunk) Embedding() []float32 { return c.embedding }

// Metadata returns the typed metadata.
func (c Chunk) Metadata() Metadata { return c.metadata }

// Type returns the chunk type.
func (c Chunk) Type() Type { return c.typ }

// Source returns the provenance tag.
func (c Chunk) Source() string { return c.source }

// FileURL returns the originating file location, if any.
func (c Chunk) FileURL() string { return c.fileURL }

// IsImage reports whether the chunk is an image entry.
func (c Chunk) IsImage() bool { return c.typ == TypeImage }

// IsGenerated reports whether the chunk was produced by the generation pipeline.
func (c Chunk) IsGenerated() bool {
	return c.source == SourceGeneratedMaterial || c.metadata.IsGenerated()
}

// WithEmbedding returns a copy with the given embedding.
func (c Chunk) WithEmbedding(v []float32) Chunk {
	c.embedding = v
	return c
}

// Retrieved is a chunk returned by a similarity lookup.
// Similarity is nil when the chunk came from a metadata-only lookup.
type Retrieved struct {
	Chunk      Chunk
	Similarity *float64
}

// SimilarityOrZero returns the similarity, treating a missing value as 0.
func (r Retrieved) SimilarityOrZero() float64 {
	if r.Similarity == nil {
		return 0
	}
	return *r.Similarity
}

// Score returns a pointer to s, for building Retrieved literals.
func Score(s float64) *float64 { return &s }
