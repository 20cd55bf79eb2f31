package corpus

import (
	"github.com/sha1n/mathfuse/internal/domain"
)

// Linkage maps formula docnos to the docno of their owning post.
type Linkage struct {
	owners map[string]string
}

// NewLinkage creates an empty Linkage.
func NewLinkage() *Linkage {
	return &Linkage{owners: make(map[string]string)}
}

// Add records the owner of f. A formula without an owner violates the
// builder's cross-reference invariant.
func (l *Linkage) Add(f domain.FormulaRecord) error {
	if f.PostNo == "" {
		return &domain.LinkageError{FormulaID: f.DocNo}
	}
	l.owners[f.DocNo] = f.PostNo
	return nil
}

// Len returns the number of linked formulas.
func (l *Linkage) Len() int {
	return len(l.owners)
}

// Owner returns the owning post of a formula hit.
func (l *Linkage) Owner(hit domain.ScoredHit) (string, error) {
	post, ok := l.owners[hit.DocNo]
	if !ok {
		return "", &domain.LinkageError{FormulaID: hit.DocNo}
	}
	return post, nil
}

// CheckLinkage verifies that every formula references one of the given posts.
func CheckLinkage(posts []domain.PostRecord, formulas []domain.FormulaRecord) error {
	known := make(map[string]bool, len(posts))
	for _, p := range posts {
		known[p.DocNo] = true
	}
	for _, f := range formulas {
		if !known[f.PostNo] {
			return &domain.LinkageError{FormulaID: f.DocNo, PostNo: f.PostNo}
		}
	}
	return nil
}
