package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/sha1n/mathfuse/internal/domain"
)

// Index kinds.
const (
	KindPost = "post"
	KindMath = "math"
)

// Field declares one index field. MaxBytes bounds the stored value returned
// as hit metadata; searchable fields are analyzed and matched by free-text
// queries.
type Field struct {
	Name       string
	MaxBytes   int
	Searchable bool
}

// Schema declares the fields of an index kind.
type Schema struct {
	Kind   string
	Fields []Field
}

// PostSchema is the text index over post records.
var PostSchema = Schema{
	Kind: KindPost,
	Fields: []Field{
		{Name: domain.FieldDocNo, MaxBytes: 16},
		{Name: domain.FieldTitle, MaxBytes: 256, Searchable: true},
		{Name: domain.FieldText, MaxBytes: 4096, Searchable: true},
		{Name: domain.FieldTags, MaxBytes: 128, Searchable: true},
		{Name: domain.FieldVotes, MaxBytes: 8},
		{Name: domain.FieldParentNo, MaxBytes: 20, Searchable: true},
		{Name: domain.FieldMathNos, MaxBytes: 20},
	},
}

// MathSchema is the formula index.
var MathSchema = Schema{
	Kind: KindMath,
	Fields: []Field{
		{Name: domain.FieldDocNo, MaxBytes: 20},
		{Name: domain.FieldText, MaxBytes: 1024, Searchable: true},
		{Name: domain.FieldPostNo, MaxBytes: 20},
		{Name: domain.FieldParentNo, MaxBytes: 20, Searchable: true},
	},
}

// SchemaFor returns the schema of an index kind.
func SchemaFor(kind string) (Schema, bool) {
	switch kind {
	case KindPost:
		return PostSchema, true
	case KindMath:
		return MathSchema, true
	}
	return Schema{}, false
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns all field names in declaration order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Searchable returns the names of the searchable fields.
func (s Schema) Searchable() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Searchable {
			out = append(out, f.Name)
		}
	}
	return out
}

// Document is one record ready for indexing, keyed by docno.
type Document struct {
	ID     string
	Fields map[string]string
}

// PostDocument converts a post record. Formula ids are stored space-joined.
func PostDocument(r domain.PostRecord) Document {
	return Document{
		ID: r.DocNo,
		Fields: map[string]string{
			domain.FieldDocNo:    r.DocNo,
			domain.FieldTitle:    r.Title,
			domain.FieldText:     r.Text,
			domain.FieldTags:     r.Tags,
			domain.FieldVotes:    r.Votes,
			domain.FieldParentNo: r.ParentNo,
			domain.FieldMathNos:  strings.Join(r.FormulaIDs, " "),
		},
	}
}

// FormulaDocument converts a formula record.
func FormulaDocument(r domain.FormulaRecord) Document {
	return Document{
		ID: r.DocNo,
		Fields: map[string]string{
			domain.FieldDocNo:    r.DocNo,
			domain.FieldText:     r.Text,
			domain.FieldPostNo:   r.PostNo,
			domain.FieldParentNo: r.ParentNo,
		},
	}
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
// n <= 0 means unbounded.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
