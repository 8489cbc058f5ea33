package chunk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeneratedKindPrefix marks metadata.kind of pipeline-generated content.
const GeneratedKindPrefix = "generated_"

// Recognized metadata keys.
const (
	KeyCourseID    = "course_id"
	KeyContentID   = "content_id"
	KeyCategory    = "category"
	KeyWeek        = "week"
	KeyTopic       = "topic"
	KeyTitle       = "title"
	KeyLanguage    = "language"
	KeyContentType = "content_type"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
	KeyFileURL     = "file_url"
	KeyCreatedBy   = "created_by"
	KeyKind        = "kind"
	KeyUserID      = "user_id"
)

// Metadata is the typed view of chunk metadata. Unknown keys survive in Extra.
type Metadata struct {
	CourseID    string
	ContentID   string
	Category    string
	Week        *int
	Topic       string
	Title       string
	Language    string
	ContentType string
	ChunkIndex  *int
	TotalChunks *int
	FileURL     string
	CreatedBy   string
	Kind        string
	UserID      string
	Extra       map[string]any
}

// IsGenerated reports whether kind carries the generated_ prefix.
func (m Metadata) IsGenerated() bool {
	return strings.HasPrefix(m.Kind, GeneratedKindPrefix)
}

// GeneratedKind returns the kind tag for generated material of a category.
func GeneratedKind(category string) string {
	return GeneratedKindPrefix + category
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// MarshalJSON writes known keys flat next to Extra keys; known keys win on collision.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+14)
	for k, v := range m.Extra {
		out[k] = v
	}
	putString(out, KeyCourseID, m.CourseID)
	putString(out, KeyContentID, m.ContentID)
	putString(out, KeyCategory, m.Category)
	putString(out, KeyTopic, m.Topic)
	putString(out, KeyTitle, m.Title)
	putString(out, KeyLanguage, m.Language)
	putString(out, KeyContentType, m.ContentType)
	putString(out, KeyFileURL, m.FileURL)
	putString(out, KeyCreatedBy, m.CreatedBy)
	putString(out, KeyKind, m.Kind)
	putString(out, KeyUserID, m.UserID)
	putInt(out, KeyWeek, m.Week)
	putInt(out, KeyChunkIndex, m.ChunkIndex)
	putInt(out, KeyTotalChunks, m.TotalChunks)
	return json.Marshal(out)
}

// UnmarshalJSON decodes stored metadata, coercing heterogeneous value types.
// Numbers may arrive as JSON numbers or strings; values that cannot be coerced are dropped.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	*m = Metadata{}
	for k, v := range raw {
		switch k {
		case KeyCourseID:
			m.CourseID = coerceString(v)
		case KeyContentID:
			m.ContentID = coerceString(v)
		case KeyCategory:
			m.Category = coerceString(v)
		case KeyTopic:
			m.Topic = coerceString(v)
		case KeyTitle:
			m.Title = coerceString(v)
		case KeyLanguage:
			m.Language = coerceString(v)
		case KeyContentType:
			m.ContentType = coerceString(v)
		case KeyFileURL:
			m.FileURL = coerceString(v)
		case KeyCreatedBy:
			m.CreatedBy = coerceString(v)
		case KeyKind:
			m.Kind = coerceString(v)
		case KeyUserID:
			m.UserID = coerceString(v)
		case KeyWeek:
			m.Week = coerceInt(v)
		case KeyChunkIndex:
			m.ChunkIndex = coerceInt(v)
		case KeyTotalChunks:
			m.TotalChunks = coerceInt(v)
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				continue
			}
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[k] = val
		}
	}
	return nil
}

// ParseInt coerces a loosely typed value (int, float, numeric string) to int.
// Non-integral and non-numeric values are rejected.
func ParseInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return floatToInt(t)
	case json.Number:
		return ParseInt(string(t))
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func coerceInt(raw json.RawMessage) *int {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	i, ok := ParseInt(v)
	if !ok {
		return nil
	}
	return &i
}

func coerceString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func putInt(m map[string]any, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}
