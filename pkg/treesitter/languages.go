package treesitter

import (
	"path"
	"strings"
)

var extensions = map[string]Language{
	".css":  CSS,
	".js":   JavaScript,
	".mjs":  JavaScript,
	".cjs":  JavaScript,
	".html": HTML,
	".htm":  HTML,
}

// LanguageFor returns the language of a file from its extension.
func LanguageFor(name string) (Language, bool) {
	lang, ok := extensions[strings.ToLower(path.Ext(name))]
	return lang, ok
}
