// Package parser extracts frontmatter, headings, excerpt, wikilinks and tags
// from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DefaultPruneLength is the excerpt length used when none is given.
const DefaultPruneLength = 140

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	inlineRe   = regexp.MustCompile("[*_`~]+")
	mdLinkRe   = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
)

// Heading is one ATX heading of the body.
type Heading struct {
	Depth int    `json:"depth"`
	Value string `json:"value"`
}

// Document holds the output of parsing a Markdown file.
type Document struct {
	Frontmatter map[string]any
	Body        string
	Excerpt     string
	Headings    []Heading
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts the document parts from raw Markdown bytes. The excerpt is
// pruned to DefaultPruneLength runes.
func Parse(data []byte) (*Document, error) {
	return ParseWithPrune(data, DefaultPruneLength)
}

// ParseWithPrune is Parse with an explicit excerpt length. A prune length of
// zero or less keeps the whole first paragraph.
func ParseWithPrune(data []byte, prune int) (*Document, error) {
	fm, body := splitFrontmatter(data)
	headings := extractHeadings(body)

	return &Document{
		Frontmatter: fm,
		Body:        body,
		Excerpt:     excerpt(fm, body, prune),
		Headings:    headings,
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, headings),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Without frontmatter, or when it is not valid YAML,
// the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
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

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return normalizeYAML(fm).(map[string]any), body
}

// normalizeYAML turns yaml.v3 output into plain JSON-shaped values: map keys
// become strings and integers stay integers.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeYAML(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if s, ok := k.(string); ok {
				out[s] = normalizeYAML(e)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeYAML(e)
		}
		return out
	default:
		return v
	}
}

// extractHeadings returns ATX headings outside fenced code blocks.
func extractHeadings(body string) []Heading {
	var out []Heading
	fenced := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fenced = !fenced
			continue
		}
		if fenced {
			continue
		}
		m := headingRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		out = append(out, Heading{Depth: len(m[1]), Value: plainText(m[2])})
	}
	return out
}

// excerpt prefers a frontmatter "excerpt" or "description", then the first
// paragraph that is not a heading or code fence.
func excerpt(fm map[string]any, body string, prune int) string {
	for _, key := range []string{"excerpt", "description"} {
		if s, ok := fm[key].(string); ok && strings.TrimSpace(s) != "" {
			return pruneText(strings.TrimSpace(s), prune)
		}
	}

	var para []string
	fenced := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fenced = !fenced
			if len(para) > 0 {
				break
			}
			continue
		}
		if fenced {
			continue
		}
		if trimmed == "" || headingRe.MatchString(trimmed) {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, trimmed)
	}
	return pruneText(plainText(strings.Join(para, " ")), prune)
}

// plainText strips inline markup, keeping link labels.
func plainText(s string) string {
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = wikilinkRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[2 : len(m)-2]
		if i := strings.Index(inner, "|"); i >= 0 {
			return inner[i+1:]
		}
		return inner
	})
	s = inlineRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// pruneText cuts s to at most prune runes on a word boundary and marks the cut
// with an ellipsis.
func pruneText(s string, prune int) string {
	if prune <= 0 || utf8.RuneCountInString(s) <= prune {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:prune])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
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

// extractTags collects tags from the frontmatter "tags" field, then inline
// #tags from the body.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, headings []Heading) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, h := range headings {
		if h.Depth == 1 {
			return h.Value
		}
	}
	return ""
}
