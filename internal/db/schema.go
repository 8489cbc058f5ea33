package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DistanceMetric is the vector similarity function of an index.
type DistanceMetric string

// Supported distance metrics. Chunk search assumes COSINE (score = 1 - distance).
const (
	DistanceCosine DistanceMetric = "COSINE"
	DistanceIP     DistanceMetric = "IP"
	DistanceL2     DistanceMetric = "L2"
)

// VectorAlgorithm selects how the vector attribute is indexed.
type VectorAlgorithm string

// Supported vector algorithms.
const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// TagField is a TAG attribute used for exact-match pre-filters.
type TagField struct {
	Name          string
	CaseSensitive bool
}

// VectorField is the embedding attribute, stored as a little-endian FLOAT32 blob.
// Zero M / EFConstruction leave the server defaults in place.
type VectorField struct {
	Name           string
	Alias          string
	Dim            int
	Distance       DistanceMetric
	Algorithm      VectorAlgorithm
	M              int
	EFConstruction int
}

// IndexDefinition describes an FT index over hash keys matching Prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Tags     []TagField
	Vector   *VectorField
}

// Validate reports the first structural problem with the definition.
func (d *IndexDefinition) Validate() error {
	if d.Name == "" {
		return errors.New("index name is required")
	}
	if !validIdentifier(d.Name) {
		return fmt.Errorf("index name %q contains invalid characters", d.Name)
	}
	if len(d.Tags) == 0 && d.Vector == nil {
		return errors.New("index needs at least one attribute")
	}

	seen := make(map[string]struct{}, len(d.Tags)+1)
	claim := func(name string) error {
		if name == "" {
			return errors.New("attribute name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate attribute %q", name)
		}
		seen[name] = struct{}{}
		return nil
	}
	for _, t := range d.Tags {
		if err := claim(t.Name); err != nil {
			return err
		}
	}
	if v := d.Vector; v != nil {
		name := v.Name
		if v.Alias != "" {
			name = v.Alias
		}
		if err := claim(name); err != nil {
			return err
		}
		if v.Dim <= 0 {
			return fmt.Errorf("vector %q needs a positive dimension", name)
		}
	}
	return nil
}

// Args renders the FT.CREATE arguments (everything after the command name).
func (d *IndexDefinition) Args() []string {
	args := []string{d.Name, "ON", "HASH"}
	if len(d.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(d.Prefixes)))
		args = append(args, d.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for _, t := range d.Tags {
		args = append(args, t.Name, "TAG")
		if t.CaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
	}
	if d.Vector != nil {
		args = append(args, d.Vector.args()...)
	}
	return args
}

// String is the FT.CREATE command line, for logs.
func (d *IndexDefinition) String() string {
	return "FT.CREATE " + strings.Join(d.Args(), " ")
}

func (v *VectorField) args() []string {
	algo := v.Algorithm
	if algo == "" {
		algo = VectorHNSW
	}
	distance := v.Distance
	if distance == "" {
		distance = DistanceCosine
	}

	attrs := []string{"TYPE", "FLOAT32", "DIM", strconv.Itoa(v.Dim), "DISTANCE_METRIC", string(distance)}
	if algo == VectorHNSW {
		if v.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(v.M))
		}
		if v.EFConstruction > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruction))
		}
	}

	out := []string{v.Name}
	if v.Alias != "" {
		out = append(out, "AS", v.Alias)
	}
	out = append(out, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	return append(out, attrs...)
}

// validIdentifier accepts [a-zA-Z0-9_:-]+, the characters used in index and key prefixes.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}

// IndexBuilder assembles an IndexDefinition.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts a definition named name.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix restricts the index to keys starting with any of prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Tag adds case-insensitive TAG attributes.
func (b *IndexBuilder) Tag(names ...string) *IndexBuilder {
	for _, n := range names {
		b.def.Tags = append(b.def.Tags, TagField{Name: n})
	}
	return b
}

// ExactTag adds a case-sensitive TAG attribute.
func (b *IndexBuilder) ExactTag(name string) *IndexBuilder {
	b.def.Tags = append(b.def.Tags, TagField{Name: name, CaseSensitive: true})
	return b
}

// Vector sets the embedding attribute.
func (b *IndexBuilder) Vector(v VectorField) *IndexBuilder {
	b.def.Vector = &v
	return b
}

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	def := b.def
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}
