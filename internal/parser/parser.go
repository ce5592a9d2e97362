// Package parser recognises paperless-ngx document tokens and embed
// references in Markdown text.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var (
	documentRe = regexp.MustCompile(`paperless-ngx\s+(\d+)`)
	embedRe    = regexp.MustCompile(`!\[\[(.*?)\]\]`)
	digitsRe   = regexp.MustCompile(`^\d+$`)
)

// Match is a document token found in a line. Start and End are byte
// offsets of the whole token; StartColumn and EndColumn are the same
// bounds counted in characters. ID holds the captured digits.
type Match struct {
	ID          string
	Start       int
	End         int
	StartColumn int
	EndColumn   int
}

// FindDocument returns the first "paperless-ngx <digits>" token in line.
func FindDocument(line string) (Match, bool) {
	loc := documentRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return Match{}, false
	}
	return Match{
		ID:          line[loc[2]:loc[3]],
		Start:       loc[0],
		End:         loc[1],
		StartColumn: utf8.RuneCountInString(line[:loc[0]]),
		EndColumn:   utf8.RuneCountInString(line[:loc[1]]),
	}, true
}

// IsDocumentID reports whether s is a non-empty run of decimal digits.
func IsDocumentID(s string) bool {
	return digitsRe.MatchString(s)
}

// EmbedRef formats the embed reference for a vault file name.
func EmbedRef(filename string) string {
	return "![[" + filename + "]]"
}

// Result holds the output of parsing a Markdown note.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Embeds      []string
}

// Parse extracts frontmatter, body and embed targets from raw Markdown bytes.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Embeds:      extractEmbeds(body),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// extractEmbeds returns deduplicated embed targets. Aliases ("|alt") and
// heading/block suffixes ("#section") are stripped.
func extractEmbeds(body string) []string {
	matches := embedRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.IndexAny(target, "|#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}
