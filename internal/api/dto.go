package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/noteservice"
	"github.com/starford/paperlink/internal/parser"
)

// RenderRequest is the request body for POST /commands/render.
type RenderRequest struct {
	Note string `json:"note" example:"journal/2024-05-01.md" validate:"required"`
	Line int    `json:"line" example:"3"`
}

// Validate implements validation.Validatable.
func (r RenderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Note, validation.Required),
		validation.Field(&r.Line, validation.Min(0)),
	)
}

// InsertRequest is the request body for POST /commands/insert.
type InsertRequest struct {
	Note   string `json:"note" example:"journal/2024-05-01.md" validate:"required"`
	Line   int    `json:"line" example:"3"`
	Column int    `json:"column" example:"0"`
	ID     string `json:"id" example:"42" validate:"required"`
}

// Validate implements validation.Validatable.
func (r InsertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Note, validation.Required),
		validation.Field(&r.Line, validation.Min(0)),
		validation.Field(&r.Column, validation.Min(0)),
		validation.Field(&r.ID, validation.Required, validation.By(documentID)),
	)
}

func documentID(value any) error {
	s, _ := value.(string)
	if !parser.IsDocumentID(s) {
		return validation.NewError("validation_document_id", "must be decimal digits")
	}
	return nil
}

// SettingsRequest is the request body for PATCH /settings. Empty fields
// are left unchanged.
type SettingsRequest struct {
	APIURL            string `json:"apiUrl" example:"http://paperless.local:8000/api"`
	PlaceholderFolder string `json:"dummyFolder" example:"attachments/paperless-ngx"`
}

// NoteEdit is the command response type (aliased from the domain layer).
type NoteEdit = noteservice.NoteEdit

// PlaceholderListResponse wraps the placeholder registry.
type PlaceholderListResponse struct {
	Placeholders []models.Placeholder `json:"placeholders" validate:"required"`
}

// EmbedListResponse wraps the notes embedding a placeholder.
type EmbedListResponse struct {
	Filename string         `json:"filename" example:"invoice.pdf" validate:"required"`
	Embeds   []models.Embed `json:"embeds" validate:"required"`
}
