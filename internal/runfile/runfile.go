// Package runfile reads and writes ranked lists in the TREC run format
// "qid Q0 docno rank score tag", gzip-compressed when the path ends in .gz.
package runfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/sha1n/mathfuse/internal/domain"
)

// Extension is the suffix of compressed run files.
const Extension = ".res.gz"

// Write writes hits in the order given. Ranks are written as stored.
func Write(w io.Writer, hits []domain.FusedHit, tag string) error {
	bw := bufio.NewWriter(w)
	for _, h := range hits {
		if _, err := fmt.Fprintf(bw, "%s Q0 %s %d %s %s\n", h.QID, h.DocNo, h.Rank, strconv.FormatFloat(h.Score, 'g', -1, 64), tag); err != nil {
			return fmt.Errorf("failed to write run: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	return nil
}

// Read parses a run. The tag column is ignored.
func Read(r io.Reader) ([]domain.FusedHit, error) {
	var hits []domain.FusedHit
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 5 {
			return nil, &domain.StructuralInputError{Kind: "run", RecordID: "line " + strconv.Itoa(line), Field: "score"}
		}
		rank, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, &domain.StructuralInputError{Kind: "run", RecordID: "line " + strconv.Itoa(line), Field: "rank"}
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, &domain.StructuralInputError{Kind: "run", RecordID: "line " + strconv.Itoa(line), Field: "score"}
		}
		hits = append(hits, domain.FusedHit{QID: fields[0], DocNo: fields[2], Rank: rank, Score: score})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	return hits, nil
}

// WriteFile writes a run file, creating parent directories.
func WriteFile(path string, hits []domain.FusedHit, tag string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create run file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return Write(f, hits, tag)
	}
	zw := gzip.NewWriter(f)
	if err := Write(zw, hits, tag); err != nil {
		return err
	}
	return zw.Close()
}

// ReadFile reads a plain or gzip-compressed run file.
func ReadFile(path string) (hits []domain.FusedHit, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return Read(r)
}

// Tag returns name as a single whitespace-free token, safe as a run tag and
// a file name.
func Tag(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '\t':
			return '_'
		}
		return r
	}, name)
}

// FileName returns the run file name for an experiment.
func FileName(name string) string {
	return Tag(name) + Extension
}
