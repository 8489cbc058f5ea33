package chunk

import (
	"strings"

	"github.com/kailas-cloud/edurag/internal/db"
)

// Keys builds Redis key names under a deployment prefix (e.g. "edurag:").
type Keys struct {
	prefix string
}

// NewKeys creates a key builder.
func NewKeys(prefix string) Keys {
	return Keys{prefix: prefix}
}

// Index is the FT index over all chunk hashes.
func (k Keys) Index() string { return k.prefix + "chunks" }

// ChunkPrefix is the key prefix covered by the index.
func (k Keys) ChunkPrefix() string { return k.prefix + "chunk:" }

// Chunk is the hash key of one chunk: {prefix}chunk:{namespace}:{id}.
func (k Keys) Chunk(namespace, id string) string {
	return k.ChunkPrefix() + namespace + ":" + id
}

// NamespacePattern matches every chunk of one namespace, literally.
func (k Keys) NamespacePattern(namespace string) string {
	return db.EscapeGlob(k.ChunkPrefix()+namespace+":") + "*"
}

// AllPattern matches every chunk.
func (k Keys) AllPattern() string {
	return db.EscapeGlob(k.ChunkPrefix()) + "*"
}

// ID extracts the chunk ID from a hash key. IDs never contain ':'.
func (k Keys) ID(key string) string {
	rest := strings.TrimPrefix(key, k.ChunkPrefix())
	if i := strings.LastIndexByte(rest, ':'); i >= 0 {
		return rest[i+1:]
	}
	return rest
}
