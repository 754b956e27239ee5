package interfaces

import "strings"

// DocumentExtension is the file extension of indexable posts.
const DocumentExtension = ".md"

// Document is one indexed markdown file. Filename is the stable identity that
// joins the filesystem and the store; ID is assigned by the store on insert.
type Document struct {
	ID       int64  `json:"id"`
	Filename string `json:"file"`
	Title    string `json:"title"`
	Date     string `json:"date"`
}

// Slug returns the public lookup key for the document.
func (d Document) Slug() string {
	return strings.TrimSuffix(d.Filename, DocumentExtension)
}

// Post is a document together with its rendered content.
type Post struct {
	Document
	HTML string `json:"html"`
}
