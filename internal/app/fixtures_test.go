package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

const postsXML = `<?xml version="1.0" encoding="utf-8"?>
<posts>
  <row Id="1" PostTypeId="1" Score="5" Title="Derivative of &lt;span class=&quot;math-container&quot; id=&quot;10&quot;&gt;x^2&lt;/span&gt;" Body="&lt;p&gt;How do I differentiate a polynomial like &lt;span class=&quot;math-container&quot; id=&quot;11&quot;&gt;x^2+1&lt;/span&gt;?&lt;/p&gt;" Tags="&lt;calculus&gt;&lt;derivatives&gt;" />
  <row Id="2" PostTypeId="2" ParentId="1" Score="3" Body="&lt;p&gt;Use the power rule: &lt;span class=&quot;math-container&quot; id=&quot;20&quot;&gt;2x&lt;/span&gt;&lt;/p&gt;" />
  <row Id="3" PostTypeId="1" Score="1" Title="Determinant of a matrix" Body="&lt;p&gt;How do I compute the determinant of a &lt;a href=&quot;#&quot;&gt;matrix&lt;/a&gt;?&lt;/p&gt;" Tags="&lt;linear-algebra&gt;" />
</posts>`

const topicsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Topics>
  <Topic number="A.1">
    <Title>Derivative of a polynomial</Title>
    <Question>&lt;p&gt;How to differentiate &lt;span class="math-container" id="q_1"&gt;$x^2$&lt;/span&gt;?&lt;/p&gt;</Question>
    <Tags>calculus</Tags>
  </Topic>
  <Topic number="A.2">
    <Title>Matrix determinant</Title>
    <Question>&lt;p&gt;Compute a determinant.&lt;/p&gt;</Question>
    <Tags>linear-algebra</Tags>
  </Topic>
</Topics>`

const qrelsText = `A.1 0 1 3
A.1 0 2 2
A.1 0 3 0
A.2 0 3 3
`

// workspace holds the input files and index directory of one test.
type workspace struct {
	dir     string
	indexes string
	posts   string
	topics  string
	qrels   string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:     dir,
		indexes: filepath.Join(dir, "indexes"),
		posts:   filepath.Join(dir, "posts.xml"),
		topics:  filepath.Join(dir, "topics.xml"),
		qrels:   filepath.Join(dir, "qrels.tsv"),
	}
	writeFile(t, ws.posts, postsXML)
	writeFile(t, ws.topics, topicsXML)
	writeFile(t, ws.qrels, qrelsText)
	return ws
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func parseFlags(t *testing.T, register func(*pflag.FlagSet), args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	register(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	return flags
}

// testParams returns production dependencies writing reports to out.
func testParams(out *bytes.Buffer) RunParams {
	params := DefaultRunParams()
	params.Stdout = out
	return params
}

// buildIndexes indexes the workspace posts into both indexes.
func (ws workspace) buildIndexes(t *testing.T) {
	t.Helper()
	flags := parseFlags(t, RegisterIndexFlags, "--index-dir", ws.indexes, "--mathpost")
	var out bytes.Buffer
	if err := RunIndex(context.Background(), testParams(&out), flags, IndexArgsFromFlags(ws.posts, flags)); err != nil {
		t.Fatalf("RunIndex failed: %v", err)
	}
}
