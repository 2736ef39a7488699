package forest

import (
	"testing"

	"github.com/nestfold/nestfold/pkg/resolve"
)

func testResolver() resolve.Resolver {
	return resolve.NewIndex([]resolve.Entry{
		{ID: "Projects", Path: "Projects.md"},
		{ID: "Go Notes", Path: "go/Go Notes.md", Aliases: []string{"gn"}},
	})
}

func TestResolveReference(t *testing.T) {
	r := testResolver()

	tests := []struct {
		name       string
		value      any
		wantState  RefState
		wantTarget string
	}{
		{"Resolved", "[[Projects]]", RefResolved, "Projects"},
		{"ResolvedViaAlias", "[[gn]]", RefResolved, "Go Notes"},
		{"ResolvedWithAliasPipe", "[[Projects|my stuff]]", RefResolved, "Projects"},
		{"ResolvedPadded", "  [[ Projects ]]  ", RefResolved, "Projects"},
		{"Unresolved", "[[Missing]]", RefUnresolved, "Missing"},

		{"AbsentField", nil, RefNone, ""},
		{"WrongType", 42, RefNone, ""},
		{"WrongTypeList", []any{"[[Projects]]"}, RefNone, ""},
		{"BareText", "Projects", RefNone, ""},
		{"SingleBrackets", "[Projects]", RefNone, ""},
		{"UnclosedDelimiter", "[[Projects", RefNone, ""},
		{"EmptyInner", "[[]]", RefNone, ""},
		{"BlankInner", "[[   ]]", RefNone, ""},
		{"OnlyPipe", "[[|alias]]", RefNone, ""},
		{"TraversalText", "[[../secret]]", RefNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveReference(tt.value, "Some Note", r)
			if got.State != tt.wantState || got.Target != tt.wantTarget {
				t.Errorf("ResolveReference(%v) = {%v %q}, want {%v %q}",
					tt.value, got.State, got.Target, tt.wantState, tt.wantTarget)
			}
		})
	}
}

func TestResolveReferenceNilResolver(t *testing.T) {
	got := ResolveReference("[[Anything]]", "n", nil)
	if got.State != RefUnresolved || got.Target != "Anything" {
		t.Errorf("nil resolver: got {%v %q}, want unresolved Anything", got.State, got.Target)
	}
}

func TestRefStateString(t *testing.T) {
	tests := []struct {
		state RefState
		want  string
	}{
		{RefNone, "none"},
		{RefResolved, "resolved"},
		{RefUnresolved, "unresolved"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
