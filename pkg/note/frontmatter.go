package note

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Fields  map[string]any // Decoded YAML mapping (nil when absent/malformed)
	Body    string         // Markdown content after the frontmatter block
	HasYAML bool           // Whether a frontmatter block was found
}

// frontmatterPattern matches a leading --- ... --- block.
// The opening delimiter must be the first line of the file.
var frontmatterPattern = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*(\n|\z)`)

// ExtractFrontmatter extracts YAML frontmatter from markdown content.
//
// Extraction is deliberately lenient: a missing block, a block that isn't
// valid YAML, or a block whose top level isn't a mapping all yield nil Fields
// with the content passed through. A note with a broken declaration is an
// expected, common case, not an error.
func ExtractFrontmatter(content string) FrontmatterResult {
	result := FrontmatterResult{Body: content}

	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return result
	}

	result.HasYAML = true
	result.Body = strings.TrimPrefix(content, matches[0])

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(matches[1]), &fields); err != nil {
		return result
	}
	result.Fields = fields
	return result
}
