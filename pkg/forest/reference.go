package forest

import (
	"strings"

	"github.com/nestfold/nestfold/pkg/errors"
	"github.com/nestfold/nestfold/pkg/resolve"
)

// RefState classifies the outcome of parent reference resolution.
type RefState int

const (
	// RefNone means the node declares no usable parent: the field is absent,
	// not a string, or not wrapped in wikilink delimiters. This is an
	// expected, common case and never an error.
	RefNone RefState = iota

	// RefResolved means the reference maps to a concrete, existing node.
	RefResolved

	// RefUnresolved means the reference is syntactically valid but names no
	// existing node. The stripped text becomes the candidate placeholder
	// identity.
	RefUnresolved
)

// String returns the state name for logs.
func (s RefState) String() string {
	switch s {
	case RefResolved:
		return "resolved"
	case RefUnresolved:
		return "unresolved"
	default:
		return "none"
	}
}

// Reference is the result of resolving a node's raw parent declaration.
// For RefResolved, Target is the canonical node ID; for RefUnresolved it is
// the stripped reference text; for RefNone it is empty.
type Reference struct {
	State  RefState
	Target string
}

// ResolveReference parses a node's raw parent declaration and resolves it
// against the link resolver. It is a pure function of (value, resolver): it
// never mutates the graph.
//
// Only string values wrapped in wikilink delimiters ("[[Name]]") are accepted
// as a declaration; anything else yields RefNone. Text that survives
// stripping but fails reference validation (brackets, traversal sequences,
// control characters) is treated as malformed, also RefNone.
func ResolveReference(value any, fromID string, resolver resolve.Resolver) Reference {
	text, ok := stripWikilink(value)
	if !ok {
		return Reference{State: RefNone}
	}
	if err := errors.ValidateReferenceText(text); err != nil {
		return Reference{State: RefNone}
	}

	if resolver != nil {
		if id, ok := resolver.Resolve(text, fromID); ok {
			return Reference{State: RefResolved, Target: id}
		}
	}
	return Reference{State: RefUnresolved, Target: text}
}

// stripWikilink extracts the reference text from a [[Name]] declaration.
// Returns false for non-strings, missing delimiters, or empty inner text.
func stripWikilink(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[[") || !strings.HasSuffix(s, "]]") || len(s) < 5 {
		return "", false
	}
	inner := strings.TrimSpace(s[2 : len(s)-2])
	if inner == "" {
		return "", false
	}
	// A piped alias still names the same target.
	if i := strings.Index(inner, "|"); i >= 0 {
		inner = strings.TrimSpace(inner[:i])
		if inner == "" {
			return "", false
		}
	}
	return inner, true
}
