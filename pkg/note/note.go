// Package note provides the markdown note model and parsing for vault files.
package note

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Note is a parsed markdown note.
//
// Name is the filename stem and doubles as the note's graph identity.
// Fields holds the raw frontmatter mapping; a note without (or with
// malformed) frontmatter has nil Fields, which downstream code treats as "no
// declaration" rather than an error.
type Note struct {
	Name   string         // Filename stem, graph identity
	Path   string         // Vault-relative path
	Fields map[string]any // Raw frontmatter fields (nil when absent/malformed)
	Body   string         // Markdown content after frontmatter
	Links  []Link         // Outgoing wikilinks found in the body
}

// Link is a wikilink occurrence in a note body.
type Link struct {
	Target string // Reference text inside the brackets (before any alias)
	Alias  string // Display alias after "|", empty when none
}

// Parse builds a Note from a vault-relative path and raw file content.
// Frontmatter extraction is lenient: malformed YAML yields a note with nil
// Fields, never an error. Parse itself cannot fail; the signature leaves the
// name/path derivation as the only fixed part.
func Parse(path string, content []byte) *Note {
	fm := ExtractFrontmatter(string(content))

	n := &Note{
		Name:   Stem(path),
		Path:   path,
		Fields: fm.Fields,
		Body:   fm.Body,
	}
	n.Links = ScanLinks(fm.Body)
	return n
}

// Stem returns the filename without directory or extension.
// "go/Go Notes.md" becomes "Go Notes".
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Field returns the raw frontmatter value for key, or nil when the note has
// no frontmatter or the key is absent. The value keeps whatever type the YAML
// decoder produced; callers decide whether a non-string is acceptable.
func (n *Note) Field(key string) any {
	if n.Fields == nil {
		return nil
	}
	return n.Fields[key]
}

// Aliases returns the note's frontmatter aliases, if any.
// Only string entries of a sequence are kept; anything else is ignored.
func (n *Note) Aliases() []string {
	raw, ok := n.Field("aliases").([]any)
	if !ok {
		return nil
	}
	var aliases []string
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			aliases = append(aliases, s)
		}
	}
	return aliases
}

// wikilinkPattern matches [[Target]] and [[Target|Alias]] occurrences.
// Nested or empty brackets do not match.
var wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]*))?\]\]`)

// ScanLinks extracts all wikilinks from markdown content, in order of
// appearance. Targets are trimmed of surrounding whitespace; links with an
// empty target after trimming are dropped.
func ScanLinks(body string) []Link {
	var links []Link
	for _, m := range wikilinkPattern.FindAllStringSubmatch(body, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		links = append(links, Link{
			Target: target,
			Alias:  strings.TrimSpace(m[2]),
		})
	}
	return links
}
