// Package qrels loads graded relevance judgments in TREC format and derives
// their binarized subset.
package qrels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sha1n/mathfuse/internal/domain"
)

// DefaultThreshold is the minimum grade counted as relevant.
const DefaultThreshold = 2

// Load reads "qid iteration docno grade" lines. Blank lines and lines
// starting with '#' are ignored.
func Load(r io.Reader) ([]domain.JudgmentEntry, error) {
	var entries []domain.JudgmentEntry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, &domain.StructuralInputError{Kind: "qrels", RecordID: "line " + strconv.Itoa(line), Field: "docno"}
		}
		grade, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, &domain.StructuralInputError{Kind: "qrels", RecordID: "line " + strconv.Itoa(line), Field: "grade"}
		}
		entries = append(entries, domain.JudgmentEntry{QID: fields[0], DocNo: fields[2], Grade: grade})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read qrels: %w", err)
	}
	return entries, nil
}

// LoadFile opens and loads a qrels file.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open qrels: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewSet(entries), nil
}

// Set indexes judgments by query. A repeated (qid, docno) keeps the last grade.
type Set struct {
	grades map[string]map[string]int
}

// NewSet builds a Set from entries.
func NewSet(entries []domain.JudgmentEntry) *Set {
	s := &Set{grades: make(map[string]map[string]int)}
	for _, e := range entries {
		q, ok := s.grades[e.QID]
		if !ok {
			q = make(map[string]int)
			s.grades[e.QID] = q
		}
		q[e.DocNo] = e.Grade
	}
	return s
}

// Grade returns the grade of (qid, docno) and whether the pair is judged.
func (s *Set) Grade(qid, docNo string) (int, bool) {
	g, ok := s.grades[qid][docNo]
	return g, ok
}

// Has reports whether (qid, docno) is judged.
func (s *Set) Has(qid, docNo string) bool {
	_, ok := s.grades[qid][docNo]
	return ok
}

// Grades returns every judged grade of qid in descending order.
func (s *Set) Grades(qid string) []int {
	q := s.grades[qid]
	out := make([]int, 0, len(q))
	for _, g := range q {
		out = append(out, g)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Count returns the number of judged documents for qid.
func (s *Set) Count(qid string) int {
	return len(s.grades[qid])
}

// QIDs returns the judged query ids in sorted order.
func (s *Set) QIDs() []string {
	out := make([]string, 0, len(s.grades))
	for qid := range s.grades {
		out = append(out, qid)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of judgments.
func (s *Set) Len() int {
	n := 0
	for _, q := range s.grades {
		n += len(q)
	}
	return n
}

// Entries returns all judgments ordered by qid then docno.
func (s *Set) Entries() []domain.JudgmentEntry {
	var out []domain.JudgmentEntry
	for _, qid := range s.QIDs() {
		docs := make([]string, 0, len(s.grades[qid]))
		for d := range s.grades[qid] {
			docs = append(docs, d)
		}
		sort.Strings(docs)
		for _, d := range docs {
			out = append(out, domain.JudgmentEntry{QID: qid, DocNo: d, Grade: s.grades[qid][d]})
		}
	}
	return out
}

// Binarize returns the subset with grade >= threshold, each graded 1.
// Queries left without relevant documents are absent from the result.
func (s *Set) Binarize(threshold int) *Set {
	b := &Set{grades: make(map[string]map[string]int)}
	for qid, q := range s.grades {
		for doc, g := range q {
			if g < threshold {
				continue
			}
			if b.grades[qid] == nil {
				b.grades[qid] = make(map[string]int)
			}
			b.grades[qid][doc] = 1
		}
	}
	return b
}
