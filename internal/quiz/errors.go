package quiz

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNodeNotFound reports a state that points at an id missing from the tree.
	ErrNodeNotFound = errors.New("quiz: node not found")
	// ErrInvalidOption reports an option index outside the current question.
	ErrInvalidOption = errors.New("quiz: invalid option")
	// ErrNotAQuestion reports an attempt to advance from a result node.
	ErrNotAQuestion = errors.New("quiz: current node is not a question")
	// ErrInvalidTree is wrapped by every load-time validation failure.
	ErrInvalidTree = errors.New("quiz: invalid tree")
)

// Problem is a single validation failure located by a path such as
// "nodes.q1.options[0].next".
type Problem struct {
	Path   string
	Reason string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Reason
	}
	return fmt.Sprintf("%s: %s", p.Path, p.Reason)
}

// ValidationError aggregates every problem found while loading a tree.
type ValidationError struct {
	Source   string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	prefix := "quiz: invalid tree"
	if e.Source != "" {
		prefix += " " + e.Source
	}
	if len(e.Problems) == 1 {
		return prefix + ": " + e.Problems[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d problems:", prefix, len(e.Problems))
	for i, p := range e.Problems {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, p)
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrInvalidTree.
func (e *ValidationError) Unwrap() error { return ErrInvalidTree }

// Problems returns the validation problems carried by err, or nil.
func Problems(err error) []Problem {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Problems
	}
	return nil
}
