package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
)

func TestRunIndex_MathPost(t *testing.T) {
	ws := newWorkspace(t)
	flags := parseFlags(t, RegisterIndexFlags,
		"--index-dir", ws.indexes, "--mathpost", "--stats", "--lexicon", "-q", "determinant")

	var out bytes.Buffer
	if err := RunIndex(context.Background(), testParams(&out), flags, IndexArgsFromFlags(ws.posts, flags)); err != nil {
		t.Fatalf("RunIndex failed: %v", err)
	}

	for _, want := range []string{"Index post", "Index math", "Lexicon: title", "post index, query 1: determinant", "math index, query 1: determinant"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, out.String())
		}
	}

	counts := map[string]uint64{engine.KindPost: 3, engine.KindMath: 3}
	for kind, want := range counts {
		h, err := engine.Open(engine.Path(ws.indexes, "mathfuse", kind), nil)
		if err != nil {
			t.Fatalf("Open %s failed: %v", kind, err)
		}
		stats, err := h.Stats()
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.DocCount != want {
			t.Errorf("%s DocCount = %d, want %d", kind, stats.DocCount, want)
		}
		if stats.Manifest.Source != ws.posts {
			t.Errorf("%s Source = %q, want %q", kind, stats.Manifest.Source, ws.posts)
		}
		if err := h.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}
}

func TestRunIndex_PostOnlyByDefault(t *testing.T) {
	ws := newWorkspace(t)
	flags := parseFlags(t, RegisterIndexFlags, "--index-dir", ws.indexes, "--index-name", "forum")

	var out bytes.Buffer
	if err := RunIndex(context.Background(), testParams(&out), flags, IndexArgsFromFlags(ws.posts, flags)); err != nil {
		t.Fatalf("RunIndex failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}

	h, err := engine.Open(engine.Path(ws.indexes, "forum", engine.KindPost), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = h.Close()
	if _, err := engine.Open(engine.Path(ws.indexes, "forum", engine.KindMath), nil); err == nil {
		t.Error("formula index was built without --math")
	}
}

func TestRunIndex_Debug(t *testing.T) {
	ws := newWorkspace(t)
	flags := parseFlags(t, RegisterIndexFlags, "--index-dir", ws.indexes, "--debug")

	var out bytes.Buffer
	if err := RunIndex(context.Background(), testParams(&out), flags, IndexArgsFromFlags(ws.posts, flags)); err != nil {
		t.Fatalf("RunIndex failed: %v", err)
	}
	if !strings.Contains(out.String(), "DOCNO: 3\nTITLE: Determinant of a matrix") {
		t.Errorf("debug output missing post 3:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "TAGS: calculus, derivatives") {
		t.Errorf("debug output missing tags:\n%s", out.String())
	}
}

func TestRunIndex_MutuallyExclusive(t *testing.T) {
	ws := newWorkspace(t)
	flags := parseFlags(t, RegisterIndexFlags, "--index-dir", ws.indexes, "--math", "--mathpost")

	err := RunIndex(context.Background(), testParams(&bytes.Buffer{}), flags, IndexArgsFromFlags(ws.posts, flags))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("err = %v, want mutually exclusive", err)
	}
}

func TestRunIndex_StructuralError(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, ws.posts, `<posts><row Id="7" PostTypeId="1" Body="no score" /></posts>`)
	flags := parseFlags(t, RegisterIndexFlags, "--index-dir", ws.indexes)

	err := RunIndex(context.Background(), testParams(&bytes.Buffer{}), flags, IndexArgsFromFlags(ws.posts, flags))
	var structural *domain.StructuralInputError
	if !errors.As(err, &structural) {
		t.Fatalf("err = %v, want StructuralInputError", err)
	}
	if structural.RecordID != "7" || structural.Field != "score" {
		t.Errorf("error = %+v", structural)
	}
}

func TestRunIndex_MissingFile(t *testing.T) {
	ws := newWorkspace(t)
	flags := parseFlags(t, RegisterIndexFlags, "--index-dir", ws.indexes)

	if err := RunIndex(context.Background(), testParams(&bytes.Buffer{}), flags, IndexArgs{Path: ws.dir + "/missing.xml"}); err == nil {
		t.Error("Expected error for missing input file")
	}
}
