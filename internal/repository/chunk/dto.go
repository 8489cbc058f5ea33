package chunk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/domain/vector"
)

// Hash field names. Tag fields duplicate metadata keys so the index can filter on them.
const (
	fieldNamespace = "namespace"
	fieldContent   = "content"
	fieldVector    = "__vector"
	fieldEmbedding = "embedding" // string-encoded vector written by older ingesters
	fieldType      = "type"
	fieldSource    = "source"
	fieldFileURL   = "file_url"
	fieldMetadata  = "metadata"
	fieldCourseID  = domchunk.KeyCourseID
	fieldContentID = domchunk.KeyContentID
	fieldUserID    = domchunk.KeyUserID
	fieldKind      = domchunk.KeyKind
	fieldCategory  = domchunk.KeyCategory
	fieldTopic     = domchunk.KeyTopic
	fieldLanguage  = domchunk.KeyLanguage
	fieldWeek      = domchunk.KeyWeek
)

// returnFields are fetched for search hits.
var returnFields = []string{
	fieldNamespace, fieldContent, fieldVector, fieldEmbedding, fieldType, fieldSource, fieldFileURL,
	fieldMetadata, fieldCourseID, fieldContentID, fieldUserID, fieldKind, fieldCategory, fieldTopic,
	fieldLanguage, fieldWeek,
}

// ErrDecode marks a stored hash that could not be turned into a chunk.
var ErrDecode = errors.New("undecodable chunk")

// decoded is a chunk read from storage plus a note when its vector was reshaped.
type decoded struct {
	chunk   domchunk.Chunk
	coerced bool
	rawDim  int
}

// encode flattens a chunk into hash fields.
func encode(c domchunk.Chunk) (map[string]string, error) {
	meta, err := json.Marshal(c.Metadata())
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	m := c.Metadata()
	fields := map[string]string{
		fieldNamespace: c.Namespace(),
		fieldContent:   c.Content(),
		fieldVector:    string(vector.ToBytes(c.Embedding())),
		fieldType:      string(c.Type()),
		fieldSource:    c.Source(),
		fieldMetadata:  string(meta),
	}
	putIfSet(fields, fieldFileURL, c.FileURL())
	putIfSet(fields, fieldCourseID, m.CourseID)
	putIfSet(fields, fieldContentID, m.ContentID)
	putIfSet(fields, fieldUserID, m.UserID)
	putIfSet(fields, fieldKind, m.Kind)
	putIfSet(fields, fieldCategory, m.Category)
	putIfSet(fields, fieldTopic, m.Topic)
	putIfSet(fields, fieldLanguage, m.Language)
	if m.Week != nil {
		fields[fieldWeek] = strconv.Itoa(*m.Week)
	}
	return fields, nil
}

// decode turns stored hash fields into a chunk, or an ErrDecode-wrapped error.
// The embedding is reshaped to dim when its stored length differs.
func decode(id string, fields map[string]string, dim int) (decoded, error) {
	if len(fields) == 0 {
		return decoded{}, fmt.Errorf("%w %s: empty hash", ErrDecode, id)
	}

	emb, err := decodeVector(fields)
	if err != nil {
		return decoded{}, fmt.Errorf("%w %s: %w", ErrDecode, id, err)
	}

	typ := domchunk.TypeText
	if raw := fields[fieldType]; raw != "" {
		typ, err = domchunk.ParseType(raw)
		if err != nil {
			return decoded{}, fmt.Errorf("%w %s: %w", ErrDecode, id, err)
		}
	}

	meta, err := decodeMetadata(fields)
	if err != nil {
		return decoded{}, fmt.Errorf("%w %s: %w", ErrDecode, id, err)
	}

	fileURL := fields[fieldFileURL]
	if fileURL == "" {
		fileURL = meta.FileURL
	}

	out := decoded{rawDim: len(emb)}
	emb, out.coerced = vector.Coerce(emb, dim)
	out.chunk = domchunk.Reconstruct(domchunk.Params{
		ID:        id,
		Namespace: fields[fieldNamespace],
		Content:   fields[fieldContent],
		Embedding: emb,
		Metadata:  meta,
		Type:      typ,
		Source:    fields[fieldSource],
		FileURL:   fileURL,
	})
	return out, nil
}

// decodeVector reads the vector field as a string encoding when it parses as one, else as float32 bytes.
func decodeVector(fields map[string]string) ([]float32, error) {
	raw, ok := fields[fieldVector]
	if !ok || raw == "" {
		raw, ok = fields[fieldEmbedding]
		if !ok || raw == "" {
			return nil, errors.New("no embedding")
		}
		return vector.Parse(raw)
	}

	if looksTextual(raw) {
		if v, err := vector.Parse(raw); err == nil {
			return v, nil
		}
	}
	return vector.FromBytes([]byte(raw))
}

func looksTextual(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[0] {
	case '[', '"', '-', '.':
		return true
	}
	return s[0] >= '0' && s[0] <= '9'
}

// decodeMetadata reads the JSON metadata blob; flat tag fields fill keys it lacks.
func decodeMetadata(fields map[string]string) (domchunk.Metadata, error) {
	var m domchunk.Metadata
	if raw := fields[fieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return domchunk.Metadata{}, err
		}
	}

	fillString(&m.CourseID, fields[fieldCourseID])
	fillString(&m.ContentID, fields[fieldContentID])
	fillString(&m.UserID, fields[fieldUserID])
	fillString(&m.Kind, fields[fieldKind])
	fillString(&m.Category, fields[fieldCategory])
	fillString(&m.Topic, fields[fieldTopic])
	fillString(&m.Language, fields[fieldLanguage])
	if m.Week == nil {
		if w, ok := domchunk.ParseInt(fields[fieldWeek]); ok {
			m.Week = &w
		}
	}
	return m, nil
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func putIfSet(m map[string]string, k, v string) {
	if v != "" {
		m[k] = v
	}
}
