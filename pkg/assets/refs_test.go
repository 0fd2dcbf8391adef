package assets

import (
	"testing"
)

func rawRefs(refs []Reference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Raw
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		content string
		want    []string
	}{
		{
			name: "css urls and imports",
			kind: KindCSS,
			content: `/* url(commented.png) */
@import 'base.css';
body { background: url("../images/bg.png?v=2#x"); }
.a { background: url( icons/a.svg ); }
.b { background: url(https://example.com/x.png); }
.c { background: url(data:image/png;base64,AAAA); }
.d { filter: url(#frag); }
@import url("print.css") print;
`,
			want: []string{"base.css", "../images/bg.png?v=2#x", "icons/a.svg", "print.css"},
		},
		{
			name: "css comment markers inside strings",
			kind: KindCSS,
			content: `.a::before { content: "/*"; }
.b { background: url('b.png'); }
.c::after { content: "*/"; }`,
			want: []string{"b.png"},
		},
		{
			name: "js static, re-export and dynamic imports",
			kind: KindJS,
			content: `import a from "./a.js";
import { b, c } from '../lib/b.mjs';
import "./side.js";
export * from "./re.js";
import React from "react";
// import x from "./commented.js";
/* import y from "./block.js"; */
const url = "https://example.com"; // not a comment start inside the string
const m = import("./lazy.js");
import abs from "/js/abs.js";
`,
			want: []string{"./a.js", "../lib/b.mjs", "./side.js", "./re.js", "./lazy.js", "/js/abs.js"},
		},
		{
			name: "html attributes",
			kind: KindHTML,
			content: `<!-- <img src="commented.png"> -->
<link rel="stylesheet" href="css/style.css">
<script type="module" src="/js/app.js"></script>
<a href="https://example.com">x</a>
<a href="#top">top</a>
<a href="mailto:team@example.com">mail</a>
<a href="{{ url }}">tpl</a>
<video poster=img/poster.jpg></video>
<img data-src="lazy.png" src='img/a.png?w=1'>
`,
			want: []string{"css/style.css", "/js/app.js", "img/poster.jpg", "img/a.png?w=1"},
		},
		{
			name: "html navigation links are not dependencies",
			kind: KindHTML,
			content: `<base href="/app/">
<a href="/">Home</a> <a href="/docs/">Docs</a> <a href="about.html">About</a>
<area href="map.html">
<link rel="icon" href="/favicon.ico">
<svg><use href="icons.svg#logo"/></svg>
<img alt="a > b" src="img/b.png">
<img src="/">
`,
			want: []string{"/favicon.ico", "icons.svg#logo", "img/b.png"},
		},
		{
			name:    "css directory urls",
			kind:    KindCSS,
			content: `a { background: url(/); } b { background: url("img/"); } c { background: url(./c.png); }`,
			want:    []string{"./c.png"},
		},
		{
			name:    "opaque content",
			kind:    KindOpaque,
			content: `url(a.png)`,
			want:    nil,
		},
		{
			name:    "sass sources are not scanned",
			kind:    KindSass,
			content: `@import "partial";`,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := []byte(tt.content)
			refs := ExtractReferences(tt.kind, content)
			if got := rawRefs(refs); !equalStrings(got, tt.want) {
				t.Fatalf("ExtractReferences() = %q, want %q", got, tt.want)
			}
			for _, r := range refs {
				if span := string(content[r.Start:r.End]); span != r.Raw {
					t.Errorf("span [%d,%d) = %q, want %q", r.Start, r.End, span, r.Raw)
				}
				if r.Path+r.Suffix != r.Raw {
					t.Errorf("Path %q + Suffix %q != Raw %q", r.Path, r.Suffix, r.Raw)
				}
			}
		})
	}
}

func TestExtractReferences_Suffix(t *testing.T) {
	refs := ExtractReferences(KindCSS, []byte(`src: url("fonts/a.woff2?#iefix") format("woff2");`))
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if refs[0].Path != "fonts/a.woff2" || refs[0].Suffix != "?#iefix" {
		t.Errorf("got Path %q Suffix %q", refs[0].Path, refs[0].Suffix)
	}
}

func TestExtractReferences_PublicPrefix(t *testing.T) {
	content := []byte(`a { background: url(https://cdn.example.com/static/images/a.png); }
b { background: url(https://other.example.com/b.png); }`)

	refs := extractReferences(KindCSS, content, "https://cdn.example.com/static/")
	if got := rawRefs(refs); !equalStrings(got, []string{"https://cdn.example.com/static/images/a.png"}) {
		t.Errorf("prefixed references = %q", got)
	}
	if refs := ExtractReferences(KindCSS, content); len(refs) != 0 {
		t.Errorf("without a prefix every URL is external, got %q", rawRefs(refs))
	}
}

func TestIsExternal(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"", true},
		{"#top", true},
		{"//cdn.example.com/a.js", true},
		{"http://example.com/a.png", true},
		{"HTTPS://example.com/a.png", true},
		{"data:image/png;base64,AAAA", true},
		{"mailto:team@example.com", true},
		{"{{ static }}/a.png", true},
		{"${base}/a.png", true},
		{"images/logo.png", false},
		{"/images/logo.png", false},
		{"../a.css", false},
		{"a.png?x=http://y", false},
		{"c:/weird", true},
		{"1abc:foo", false},
	}

	for _, tt := range tests {
		if got := IsExternal(tt.raw); got != tt.want {
			t.Errorf("IsExternal(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestMaskComments_PreservesOffsets(t *testing.T) {
	src := []byte("a /* x\ny */ b // z\nc")
	masked := maskComments(src, true)
	if len(masked) != len(src) {
		t.Fatalf("masked length %d, want %d", len(masked), len(src))
	}
	if want := "a     \n     b     \nc"; string(masked) != want {
		t.Errorf("masked = %q, want %q", masked, want)
	}
}
