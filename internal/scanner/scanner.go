// Package scanner finds image references in Markdown text. It supports
// inline images, reference-style images with a definition block, and
// Obsidian embeds, without building a full Markdown AST.
package scanner

import (
	"regexp"
	"sort"
	"strings"
)

// Style tags how an image reference is spelled in the document.
type Style int

const (
	// StyleInline is ![alt](url).
	StyleInline Style = iota
	// StyleReference is ![alt][label] resolved against a [label]: url line.
	StyleReference
	// StyleObsidian is ![[url]].
	StyleObsidian
)

func (s Style) String() string {
	switch s {
	case StyleInline:
		return "inline"
	case StyleReference:
		return "reference"
	case StyleObsidian:
		return "obsidian"
	}
	return "unknown"
}

// Ref is one discovered image mention.
type Ref struct {
	Original string // exact matched substring, for verbatim passthrough
	Alt      string // raw alt text, may carry a |WxH dimension suffix
	Source   string // URL or path as written (reference style: the defined target)
	Position int    // byte offset into the document
	Length   int    // length of Original in bytes
	Style    Style
	RefID    string // defining label, reference style only
}

var (
	// Obsidian embeds: non-greedy body, single line.
	obsidianRe = regexp.MustCompile(`!\[\[(.+?)\]\]`)
	// Inline images: alt and url must not cross a newline, so a link
	// wrapping an image does not swallow the rest of the paragraph.
	inlineRe = regexp.MustCompile(`!\[([^\]\n]*)\]\(([^)\n]*)\)`)
	// Reference-style images.
	refRe = regexp.MustCompile(`!\[([^\]\n]*)\]\[([^\]\n]+)\]`)
	// Reference definitions, one per line: [label]: target
	defRe = regexp.MustCompile(`(?m)^\[([^\]]+)\]:[ \t]*(\S+)`)
)

// IsEmbedded reports whether a source already denotes an inline data
// URL (plain or percent-encoded), which makes embedding a no-op.
func IsEmbedded(source string) bool {
	source = strings.TrimSpace(source)
	return strings.HasPrefix(source, "data:image/") ||
		strings.HasPrefix(source, "data:image%2F")
}

// Definitions returns the label → target map built from every
// reference definition line in the document.
func Definitions(doc string) map[string]string {
	defs := make(map[string]string)
	for _, m := range defRe.FindAllStringSubmatch(doc, -1) {
		defs[m[1]] = m[2]
	}
	return defs
}

// Scan returns every image reference in doc, sorted by position with
// overlapping matches removed (the earlier, longer match wins).
// References whose source is already a data URL are excluded.
func Scan(doc string) []Ref {
	defs := Definitions(doc)
	var refs []Ref

	for _, m := range obsidianRe.FindAllStringSubmatchIndex(doc, -1) {
		body := doc[m[2]:m[3]]
		if IsEmbedded(body) {
			continue
		}
		refs = append(refs, Ref{
			Original: doc[m[0]:m[1]],
			Source:   body,
			Position: m[0],
			Length:   m[1] - m[0],
			Style:    StyleObsidian,
		})
	}

	for _, m := range inlineRe.FindAllStringSubmatchIndex(doc, -1) {
		url := doc[m[4]:m[5]]
		if IsEmbedded(url) {
			continue
		}
		refs = append(refs, Ref{
			Original: doc[m[0]:m[1]],
			Alt:      doc[m[2]:m[3]],
			Source:   url,
			Position: m[0],
			Length:   m[1] - m[0],
			Style:    StyleInline,
		})
	}

	for _, m := range refRe.FindAllStringSubmatchIndex(doc, -1) {
		label := doc[m[4]:m[5]]
		target, ok := defs[label]
		if !ok || IsEmbedded(target) {
			continue
		}
		refs = append(refs, Ref{
			Original: doc[m[0]:m[1]],
			Alt:      doc[m[2]:m[3]],
			Source:   target,
			Position: m[0],
			Length:   m[1] - m[0],
			Style:    StyleReference,
			RefID:    label,
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Position != refs[j].Position {
			return refs[i].Position < refs[j].Position
		}
		return refs[i].Length > refs[j].Length
	})

	// Drop anything overlapping an earlier match so spans never
	// intersect during the rebuild.
	out := refs[:0]
	end := 0
	for _, r := range refs {
		if r.Position < end {
			continue
		}
		out = append(out, r)
		end = r.Position + r.Length
	}
	return out
}
