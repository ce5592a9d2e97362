package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/noteservice"
	"github.com/starford/paperlink/internal/settings"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a path parameter, unescaping encoded characters.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decode reads a JSON body into v and validates it when v supports it.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// Render handles POST /api/commands/render.
//
//	@Summary		Replace a "paperless-ngx <id>" token in a note with an embed
//	@Tags			commands
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	true	"Note and line"
//	@Success		200		{object}	NoteEdit
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/commands/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !decode(w, r, &req) {
		return
	}
	edit, err := h.svc.Render(r.Context(), req.Note, req.Line)
	if err != nil {
		slog.Warn("render command failed", slog.String("note", req.Note), slog.Int("line", req.Line), slog.String("error", err.Error()))
		writeError(w, "render", err)
		return
	}
	writeJSON(w, http.StatusOK, edit)
}

// Insert handles POST /api/commands/insert.
//
//	@Summary		Insert an embed for a document id into a note
//	@Tags			commands
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InsertRequest	true	"Note, position and document id"
//	@Success		200		{object}	NoteEdit
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/commands/insert [post]
func (h *Handler) Insert(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if !decode(w, r, &req) {
		return
	}
	pos := models.Position{Line: req.Line, Column: req.Column}
	edit, err := h.svc.Insert(r.Context(), req.Note, pos, req.ID)
	if err != nil {
		slog.Warn("insert command failed", slog.String("note", req.Note), slog.String("id", req.ID), slog.String("error", err.Error()))
		writeError(w, "insert", err)
		return
	}
	writeJSON(w, http.StatusOK, edit)
}

// UpsertPlaceholder handles PUT /api/documents/{id}/placeholder.
//
//	@Summary		Create or refresh the placeholder file of a document
//	@Tags			placeholders
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	models.Placeholder
//	@Success		201	{object}	models.Placeholder
//	@Failure		400	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/placeholder [put]
func (h *Handler) UpsertPlaceholder(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	p, err := h.svc.UpsertPlaceholder(r.Context(), id)
	if err != nil {
		writeError(w, "upsert placeholder", err)
		return
	}
	status := http.StatusOK
	if p.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

// ListPlaceholders handles GET /api/placeholders.
//
//	@Summary		List registered placeholders
//	@Tags			placeholders
//	@Produce		json
//	@Success		200	{object}	PlaceholderListResponse
//	@Security		BearerAuth
//	@Router			/placeholders [get]
func (h *Handler) ListPlaceholders(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPlaceholders(r.Context())
	if err != nil {
		writeError(w, "list placeholders", err)
		return
	}
	writeJSON(w, http.StatusOK, PlaceholderListResponse{Placeholders: list})
}

// GetPlaceholder handles GET /api/placeholders/{filename}.
//
//	@Summary		Get a registered placeholder
//	@Tags			placeholders
//	@Produce		json
//	@Param			filename	path		string	true	"Placeholder filename"
//	@Success		200			{object}	models.Placeholder
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/placeholders/{filename} [get]
func (h *Handler) GetPlaceholder(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPlaceholder(r.Context(), urlParam(r, "filename"))
	if err != nil {
		writeError(w, "get placeholder", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Embeds handles GET /api/placeholders/{filename}/embeds.
//
//	@Summary		List notes that embed a placeholder
//	@Tags			placeholders
//	@Produce		json
//	@Param			filename	path		string	true	"Placeholder filename"
//	@Success		200			{object}	EmbedListResponse
//	@Security		BearerAuth
//	@Router			/placeholders/{filename}/embeds [get]
func (h *Handler) Embeds(w http.ResponseWriter, r *http.Request) {
	filename := urlParam(r, "filename")
	embeds, err := h.svc.Embeds(r.Context(), filename)
	if err != nil {
		writeError(w, "embeds", err)
		return
	}
	writeJSON(w, http.StatusOK, EmbedListResponse{Filename: filename, Embeds: embeds})
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get the linker settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.Configuration
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings())
}

// UpdateSettings handles PATCH /api/settings.
//
//	@Summary		Update the linker settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsRequest	true	"Fields to change"
//	@Success		200		{object}	models.Configuration
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [patch]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	cfg, err := h.svc.UpdateSettings(r.Context(), settings.Patch{
		APIURL:            req.APIURL,
		PlaceholderFolder: req.PlaceholderFolder,
	})
	if err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
