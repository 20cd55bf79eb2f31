package corpus

import (
	"errors"
	"testing"

	"github.com/sha1n/mathfuse/internal/domain"
)

func TestLinkage_Owner(t *testing.T) {
	l := NewLinkage()
	if err := l.Add(domain.FormulaRecord{DocNo: "f1", PostNo: "10"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	owner, err := l.Owner(domain.ScoredHit{DocNo: "f1"})
	if err != nil {
		t.Fatalf("Owner failed: %v", err)
	}
	if owner != "10" {
		t.Errorf("Owner = %q, want %q", owner, "10")
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}

	if _, err := l.Owner(domain.ScoredHit{DocNo: "f2"}); !errors.Is(err, domain.ErrLinkage) {
		t.Errorf("Owner(unknown) error = %v, want ErrLinkage", err)
	}
}

func TestLinkage_AddWithoutOwner(t *testing.T) {
	if err := NewLinkage().Add(domain.FormulaRecord{DocNo: "f1"}); !errors.Is(err, domain.ErrLinkage) {
		t.Errorf("Add error = %v, want ErrLinkage", err)
	}
}

func TestCheckLinkage(t *testing.T) {
	posts := []domain.PostRecord{{DocNo: "1"}}

	if err := CheckLinkage(posts, []domain.FormulaRecord{{DocNo: "f", PostNo: "1"}}); err != nil {
		t.Errorf("CheckLinkage failed: %v", err)
	}

	err := CheckLinkage(posts, []domain.FormulaRecord{{DocNo: "g", PostNo: "2"}})
	var le *domain.LinkageError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *LinkageError", err)
	}
	if le.PostNo != "2" || le.FormulaID != "g" {
		t.Errorf("LinkageError = %+v", le)
	}
}
