package qrels

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sha1n/mathfuse/internal/domain"
)

const sample = `A.1 0 100 3
A.1 0 101 1
# comment

A.1 0 102 2
A.2 0 200 0
`

func TestLoad(t *testing.T) {
	entries, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("len(entries) = %d, want 4", len(entries))
	}
	want := domain.JudgmentEntry{QID: "A.1", DocNo: "102", Grade: 2}
	if entries[2] != want {
		t.Errorf("entries[2] = %+v, want %+v", entries[2], want)
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name, input, field string
	}{
		{name: "short line", input: "A.1 0 100\n", field: "docno"},
		{name: "bad grade", input: "A.1 0 100 high\n", field: "grade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			var se *domain.StructuralInputError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StructuralInputError", err)
			}
			if se.Field != tt.field || se.RecordID != "line 1" {
				t.Errorf("StructuralInputError = %+v", se)
			}
		})
	}
}

func TestSet_Lookups(t *testing.T) {
	entries, _ := Load(strings.NewReader(sample))
	s := NewSet(entries)

	if g, ok := s.Grade("A.1", "100"); !ok || g != 3 {
		t.Errorf("Grade(A.1, 100) = %d, %v, want 3, true", g, ok)
	}
	if s.Has("A.1", "999") {
		t.Error("Expected unjudged pair to be absent")
	}
	if got := s.Grades("A.1"); !reflect.DeepEqual(got, []int{3, 2, 1}) {
		t.Errorf("Grades(A.1) = %v, want [3 2 1]", got)
	}
	if !reflect.DeepEqual(s.QIDs(), []string{"A.1", "A.2"}) {
		t.Errorf("QIDs = %v", s.QIDs())
	}
	if s.Len() != 4 {
		t.Errorf("Len = %d, want 4", s.Len())
	}
	if s.Count("missing") != 0 {
		t.Errorf("Count(missing) = %d, want 0", s.Count("missing"))
	}
}

func TestSet_Binarize(t *testing.T) {
	entries, _ := Load(strings.NewReader(sample))
	b := NewSet(entries).Binarize(DefaultThreshold)

	if b.Count("A.1") != 2 {
		t.Errorf("Count(A.1) = %d, want 2", b.Count("A.1"))
	}
	if b.Has("A.1", "101") {
		t.Error("Expected grade 1 to be dropped at threshold 2")
	}
	if b.Count("A.2") != 0 {
		t.Errorf("Count(A.2) = %d, want 0", b.Count("A.2"))
	}
	if g, _ := b.Grade("A.1", "100"); g != 1 {
		t.Errorf("binary grade = %d, want 1", g)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrels.txt")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if s.Len() != 4 {
		t.Errorf("Len = %d, want 4", s.Len())
	}
	if got := s.Entries(); got[0].DocNo != "100" || got[3].QID != "A.2" {
		t.Errorf("Entries = %+v", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing file")
	}
}
