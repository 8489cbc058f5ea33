package db

// KNNQuery asks for the K nearest chunks to Vector.
type KNNQuery struct {
	IndexName string
	// Tags are AND-combined TAG equality pre-filters (attribute -> value).
	Tags         map[string]string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is one FT.SEARCH page. Total counts all matches, not just Entries.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. For KNN hits Score is the cosine similarity
// (1 - cosine distance) in [-1, 1]; list hits leave it at zero.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
