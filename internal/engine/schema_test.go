package engine

import (
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "hello", n: 10, want: "hello"},
		{in: "hello", n: 3, want: "hel"},
		{in: "héllo", n: 2, want: "h"},
		{in: "héllo", n: 3, want: "hé"},
		{in: "abc", n: 0, want: "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestSchema_Searchable(t *testing.T) {
	want := []string{"title", "text", "tags", "parentno"}
	if got := PostSchema.Searchable(); !reflect.DeepEqual(got, want) {
		t.Errorf("PostSchema.Searchable() = %v, want %v", got, want)
	}
	if f, ok := MathSchema.Field("text"); !ok || f.MaxBytes != 1024 {
		t.Errorf("MathSchema text = %+v, %v", f, ok)
	}
	if _, ok := SchemaFor("other"); ok {
		t.Error("Expected unknown kind to be rejected")
	}
}

func TestParseTokens(t *testing.T) {
	got, err := ParseTokens("Stopwords, PorterStemmer")
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("filters = %v, want lowercase, stop, porter", got)
	}
	if got, _ := ParseTokens(""); len(got) != 1 {
		t.Errorf("filters = %v, want lowercase only", got)
	}
}

func TestParseModel(t *testing.T) {
	for in, want := range map[string]Model{"bm25": ModelBM25, "TF_IDF": ModelTFIDF, "tf-idf": ModelTFIDF} {
		got, err := ParseModel(in)
		if err != nil || got != want {
			t.Errorf("ParseModel(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseModel("DPH"); err == nil {
		t.Error("Expected error for unsupported model")
	}
}

func TestModel_Scoring(t *testing.T) {
	for model, want := range map[Model]string{ModelBM25: "bm25", ModelTFIDF: "tf-idf"} {
		if got := model.scoring(); got != want {
			t.Errorf("%s.scoring() = %q, want %q", model, got, want)
		}
	}
}
