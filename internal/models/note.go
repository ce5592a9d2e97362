// Package models defines the domain types for paperlink.
package models

import "time"

// Configuration is the process-wide linker configuration.
// Both fields are non-empty once validated by the settings surface.
type Configuration struct {
	APIURL            string `json:"apiUrl" yaml:"api_url"`
	PlaceholderFolder string `json:"dummyFolder" yaml:"dummy_folder"`
}

// DocumentMetadata is the subset of the paperless-ngx metadata response
// the linker consumes.
type DocumentMetadata struct {
	MediaFilename string `json:"media_filename"`
}

// FileMeta describes a file in the vault.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Placeholder is a local file whose body is the preview URL of a remote document.
type Placeholder struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	PreviewURL string    `json:"preview_url"`
	Checksum   string    `json:"checksum"`
	Created    bool      `json:"created"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Embed is a directed edge from a note to the placeholder it embeds.
type Embed struct {
	Note     string `json:"note"`
	Filename string `json:"filename"`
}

// Position addresses a character in a text buffer. Line and Column are
// 0-based; Column counts characters (runes), not bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}
