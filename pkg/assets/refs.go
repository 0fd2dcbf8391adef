package assets

import (
	"bytes"
	"path"
	"regexp"
	"slices"
	"strings"
)

// Reference is a span of an asset's content that names another asset.
type Reference struct {
	// Start and End are byte offsets of the reference text, quotes excluded.
	Start, End int

	// Raw is the reference text as written.
	Raw string

	// Path is Raw without its query string or fragment.
	Path string

	// Suffix is the query string and fragment, including the leading ? or #.
	Suffix string

	// Target is the logical name the reference resolved to.
	Target string
}

// quoted or bare value alternatives shared by the patterns below; exactly
// one group participates in a match.
const (
	dq = `"([^"\r\n]*)"`
	sq = `'([^'\r\n]*)'`
)

var (
	cssURL    = regexp.MustCompile(`(?i)\burl\(\s*(?:` + dq + `|` + sq + `|([^\s"'()]+))\s*\)`)
	cssImport = regexp.MustCompile(`(?i)@import\s+(?:` + dq + `|` + sq + `)`)

	jsImport  = regexp.MustCompile(`\bimport\s*(?:[\w$*{},\s]+?\bfrom\s*)?(?:` + dq + `|` + sq + `)`)
	jsExport  = regexp.MustCompile(`\bexport\s*[\w$*{},\s]*?\bfrom\s*(?:` + dq + `|` + sq + `)`)
	jsDynamic = regexp.MustCompile(`\bimport\s*\(\s*(?:` + dq + `|` + sq + `)\s*\)`)

	htmlTag  = regexp.MustCompile(`<([a-zA-Z][\w:-]*)((?:"[^"]*"|'[^']*'|[^"'<>])*)>`)
	htmlAttr = regexp.MustCompile(`(?i)[\s"'/](src|href|poster)\s*=\s*(?:` + dq + `|` + sq + "|([^\\s\"'=<>`]+))")
)

// hrefElements are the elements whose href loads an asset. Other hrefs,
// such as those of <a> and <base>, navigate and are not dependencies.
var hrefElements = map[string]bool{
	"link":  true,
	"use":   true,
	"image": true,
}

// ExtractReferences returns the internal references of content in byte
// order. External references (URLs with a scheme, protocol-relative URLs,
// fragments, template placeholders) and bare JavaScript module specifiers
// are not returned. Opaque and Sass content has no references.
func ExtractReferences(kind Kind, content []byte) []Reference {
	return extractReferences(kind, content, "")
}

// extractReferences is ExtractReferences, but references starting with the
// public prefix are internal even when the prefix is an absolute URL.
func extractReferences(kind Kind, content []byte, publicPrefix string) []Reference {
	var spans [][2]int
	switch kind {
	case KindCSS:
		spans = matchSpans(maskComments(content, false), cssURL, cssImport)
	case KindJS:
		spans = matchSpans(maskComments(content, true), jsImport, jsExport, jsDynamic)
	case KindHTML:
		spans = htmlSpans(maskHTMLComments(content))
	default:
		return nil
	}

	var refs []Reference
	for _, span := range spans {
		start, end := trimSpan(content, span[0], span[1])
		raw := string(content[start:end])
		prefixed := hasPublicPrefix(raw, publicPrefix)
		if IsExternal(raw) && !prefixed {
			continue
		}
		if kind == KindJS && !prefixed && !isRelativeSpecifier(raw) {
			continue
		}
		p, suffix := splitSuffix(raw)
		if !namesFile(p) {
			continue
		}
		refs = append(refs, Reference{Start: start, End: end, Raw: raw, Path: p, Suffix: suffix})
	}

	slices.SortFunc(refs, func(a, b Reference) int { return a.Start - b.Start })
	return slices.CompactFunc(refs, func(a, b Reference) bool { return a.Start == b.Start })
}

// matchSpans returns the value spans of every match of the patterns.
func matchSpans(masked []byte, patterns ...*regexp.Regexp) [][2]int {
	var spans [][2]int
	for _, re := range patterns {
		for _, m := range re.FindAllSubmatchIndex(masked, -1) {
			if start, end := valueSpan(m); start >= 0 {
				spans = append(spans, [2]int{start, end})
			}
		}
	}
	return spans
}

// htmlSpans returns the value spans of src and poster attributes, and of
// href attributes on elements that load assets.
func htmlSpans(masked []byte) [][2]int {
	var spans [][2]int
	for _, tag := range htmlTag.FindAllSubmatchIndex(masked, -1) {
		element := strings.ToLower(string(masked[tag[2]:tag[3]]))
		attrs := masked[tag[4]:tag[5]]
		for _, m := range htmlAttr.FindAllSubmatchIndex(attrs, -1) {
			name := strings.ToLower(string(attrs[m[2]:m[3]]))
			if name == "href" && !hrefElements[element] {
				continue
			}
			if start, end := valueSpan(m[2:]); start >= 0 {
				spans = append(spans, [2]int{tag[4] + start, tag[4] + end})
			}
		}
	}
	return spans
}

// namesFile reports whether a reference path can name an asset. Empty
// paths and directory paths such as "/" or "docs/" cannot.
func namesFile(p string) bool {
	if p == "" || strings.HasSuffix(p, "/") {
		return false
	}
	base := path.Base(p)
	return base != "." && base != ".."
}

// valueSpan returns the span of the first participating capture group.
func valueSpan(m []int) (int, int) {
	for i := 2; i+1 < len(m); i += 2 {
		if m[i] >= 0 {
			return m[i], m[i+1]
		}
	}
	return -1, -1
}

func trimSpan(content []byte, start, end int) (int, int) {
	for start < end && isSpace(content[start]) {
		start++
	}
	for end > start && isSpace(content[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// IsExternal reports whether a reference points outside the asset set.
func IsExternal(raw string) bool {
	switch {
	case raw == "", strings.HasPrefix(raw, "#"), strings.HasPrefix(raw, "//"):
		return true
	case strings.Contains(raw, "{{"), strings.Contains(raw, "{%"), strings.Contains(raw, "${"):
		return true
	}
	return hasScheme(raw)
}

// hasScheme reports whether raw starts with an RFC 3986 scheme followed by ':'.
func hasScheme(raw string) bool {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		case c == ':':
			return i > 0
		default:
			return false
		}
	}
	return false
}

func hasPublicPrefix(raw, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return prefix != "" && strings.HasPrefix(raw, prefix+"/")
}

func isRelativeSpecifier(raw string) bool {
	return strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") || strings.HasPrefix(raw, "/")
}

// splitSuffix separates a reference into its path and its query/fragment.
func splitSuffix(raw string) (string, string) {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i], raw[i:]
	}
	return raw, ""
}

// maskComments returns a copy of src with comment bytes replaced by spaces.
// String literals are skipped so comment markers inside them are kept.
// Offsets are preserved.
func maskComments(src []byte, lineComments bool) []byte {
	out := bytes.Clone(src)
	for i := 0; i < len(out); i++ {
		switch c := out[i]; {
		case c == '"' || c == '\'' || (lineComments && c == '`'):
			i = skipString(out, i)
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			end := bytes.Index(out[i+2:], []byte("*/"))
			stop := len(out)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			blank(out[i:stop])
			i = stop - 1
		case lineComments && c == '/' && i+1 < len(out) && out[i+1] == '/':
			stop := len(out)
			if nl := bytes.IndexByte(out[i:], '\n'); nl >= 0 {
				stop = i + nl
			}
			blank(out[i:stop])
			i = stop - 1
		}
	}
	return out
}

// skipString returns the index of the closing quote of the string opened at i.
func skipString(src []byte, i int) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(src)
}

func maskHTMLComments(src []byte) []byte {
	out := bytes.Clone(src)
	for i := 0; ; {
		start := bytes.Index(out[i:], []byte("<!--"))
		if start < 0 {
			return out
		}
		start += i
		stop := len(out)
		if end := bytes.Index(out[start+4:], []byte("-->")); end >= 0 {
			stop = start + 4 + end + 3
		}
		blank(out[start:stop])
		i = stop
	}
}

func blank(b []byte) {
	for i, c := range b {
		if c != '\n' {
			b[i] = ' '
		}
	}
}
