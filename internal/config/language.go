package config

import (
	"path/filepath"
	"strings"
)

// languageByExt maps file extensions to LSP language ids.
var languageByExt = map[string]string{
	".go":    "go",
	".rs":    "rust",
	".ts":    "typescript",
	".tsx":   "typescriptreact",
	".js":    "javascript",
	".jsx":   "javascriptreact",
	".py":    "python",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".java":  "java",
	".rb":    "ruby",
	".php":   "php",
	".lua":   "lua",
	".zig":   "zig",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".md":    "markdown",
	".sh":    "shellscript",
	".html":  "html",
	".css":   "css",
	".sql":   "sql",
	".proto": "proto",
}

// languageByName maps exact basenames that carry no useful extension.
var languageByName = map[string]string{
	"go.mod":     "gomod",
	"go.sum":     "gosum",
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
}

// LanguageID detects the LSP language id for a file path, or "" when the
// file type is unknown.
func LanguageID(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if lang, ok := languageByName[base]; ok {
		return lang
	}
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}
