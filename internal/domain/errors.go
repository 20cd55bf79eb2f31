package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuralInput indicates a raw record lacks a required field.
	ErrStructuralInput = errors.New("structural input error")

	// ErrLinkage indicates a formula references a post that does not exist.
	ErrLinkage = errors.New("linkage error")

	// ErrExternalEngine indicates an index, search or scoring collaborator failed.
	ErrExternalEngine = errors.New("external engine error")
)

// StructuralInputError names the record and field that made a raw input unusable.
type StructuralInputError struct {
	Kind     string // "post" or "topic"
	RecordID string
	Field    string
}

func (e *StructuralInputError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("%s %s: missing required field %q", e.Kind, id, e.Field)
}

func (e *StructuralInputError) Unwrap() error {
	return ErrStructuralInput
}

// LinkageError reports a formula whose owning post cannot be resolved.
type LinkageError struct {
	FormulaID string
	PostNo    string
}

func (e *LinkageError) Error() string {
	if e.PostNo == "" {
		return fmt.Sprintf("formula %s: no owning post", e.FormulaID)
	}
	return fmt.Sprintf("formula %s: owning post %s does not exist", e.FormulaID, e.PostNo)
}

func (e *LinkageError) Unwrap() error {
	return ErrLinkage
}

// EngineError wraps a failure of an external collaborator for one query.
type EngineError struct {
	Engine string
	Op     string
	QID    string
	Err    error
}

func (e *EngineError) Error() string {
	if e.QID != "" {
		return fmt.Sprintf("%s %s (qid %s): %v", e.Engine, e.Op, e.QID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *EngineError) Unwrap() []error {
	return []error{ErrExternalEngine, e.Err}
}
