// Package markdown reads post files from disk, renders them to HTML with
// goldmark and lints a posts directory for structural problems.
package markdown
