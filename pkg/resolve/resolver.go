// Package resolve maps free-text references to canonical note identities.
//
// A reference like [[Go Notes]] can match a note by exact name, by
// case-insensitive name, by path stem, or by a frontmatter alias. The
// [Index] built from a vault applies those rules in order; [Composite]
// chains independent resolvers so hosts can layer custom lookup logic in
// front of the vault index.
package resolve

import (
	"sort"
	"strings"
)

// Resolver maps free text (plus the identity of the note the text appears
// in, for future context-sensitive rules) to a canonical node identity.
// The boolean reports whether a concrete, existing target was found.
type Resolver interface {
	Resolve(text, fromID string) (string, bool)
}

// Func adapts a plain function to the Resolver interface.
type Func func(text, fromID string) (string, bool)

// Resolve calls f.
func (f Func) Resolve(text, fromID string) (string, bool) { return f(text, fromID) }

// Entry describes one resolvable note for index construction.
type Entry struct {
	ID      string   // Canonical identity (note name)
	Path    string   // Vault-relative path
	Aliases []string // Frontmatter aliases
}

// Index resolves references against a fixed snapshot of a vault.
//
// Lookup order: exact name, case-insensitive name, alias. Ambiguity at any
// stage resolves to the candidate with the shortest path, then
// lexicographically smallest, so resolution is deterministic for a given
// vault regardless of construction order.
type Index struct {
	exact   map[string]string   // name -> ID
	folded  map[string][]string // lowercased name -> candidate IDs
	aliases map[string][]string // lowercased alias -> candidate IDs
	paths   map[string]string   // ID -> path (for ambiguity tie-breaks)
}

// NewIndex builds an index from vault entries.
// Later entries never displace earlier ones for the exact-name map; names are
// unique per vault in practice since they are filename stems.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		exact:   make(map[string]string),
		folded:  make(map[string][]string),
		aliases: make(map[string][]string),
		paths:   make(map[string]string),
	}
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, exists := idx.exact[e.ID]; !exists {
			idx.exact[e.ID] = e.ID
		}
		idx.paths[e.ID] = e.Path
		key := strings.ToLower(e.ID)
		idx.folded[key] = append(idx.folded[key], e.ID)
		for _, alias := range e.Aliases {
			akey := strings.ToLower(alias)
			idx.aliases[akey] = append(idx.aliases[akey], e.ID)
		}
	}
	return idx
}

// Resolve implements Resolver.
func (idx *Index) Resolve(text, fromID string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if id, ok := idx.exact[text]; ok {
		return id, true
	}

	if ids := idx.folded[strings.ToLower(text)]; len(ids) > 0 {
		return idx.pick(ids), true
	}

	if ids := idx.aliases[strings.ToLower(text)]; len(ids) > 0 {
		return idx.pick(ids), true
	}

	return "", false
}

// pick breaks ambiguity deterministically: shortest path wins, then the
// lexicographically smallest ID.
func (idx *Index) pick(ids []string) string {
	best := ids[0]
	for _, id := range ids[1:] {
		bp, ip := idx.paths[best], idx.paths[id]
		switch {
		case len(ip) < len(bp):
			best = id
		case len(ip) == len(bp) && id < best:
			best = id
		}
	}
	return best
}

// Names returns all indexed note names in sorted order.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.exact))
	for name := range idx.exact {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Composite chains resolvers; the first hit wins.
type Composite struct {
	resolvers []Resolver
}

// NewComposite creates a composite over the given resolvers.
func NewComposite(resolvers ...Resolver) *Composite {
	return &Composite{resolvers}
}

// Resolve implements Resolver.
func (c *Composite) Resolve(text, fromID string) (string, bool) {
	for _, r := range c.resolvers {
		if id, ok := r.Resolve(text, fromID); ok {
			return id, true
		}
	}
	return "", false
}
