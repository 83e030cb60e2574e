package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"documate/internal/auth"
	"documate/internal/db"
	"documate/internal/helper"
	"documate/internal/llmservice"
	"documate/internal/models"
	"documate/internal/outline"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func principal(r *http.Request) db.Principal {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return db.Principal{}
	}
	return db.Principal{UserID: id.UserID, Role: id.Role, Claims: id.Claims}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), principal(r))
	if err != nil {
		s.respondStoreError(w, err, "Project", "Failed to list projects")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

type createProjectRequest struct {
	Title        string `json:"title"`
	DocumentType string `json:"document_type"`
	Topic        string `json:"topic"`
	PPTTemplate  string `json:"ppt_template"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Topic) == "" {
		s.respondError(w, http.StatusBadRequest, "title and topic are required")
		return
	}
	if !models.ValidDocumentType(req.DocumentType) {
		s.respondError(w, http.StatusBadRequest, "document_type must be word or powerpoint")
		return
	}

	project := &db.Project{
		Title:        req.Title,
		DocumentType: req.DocumentType,
		Topic:        req.Topic,
		PPTTemplate:  req.PPTTemplate,
	}
	if err := s.store.CreateProject(r.Context(), principal(r), project); err != nil {
		s.respondStoreError(w, err, "Project", "Failed to create project")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !helper.IsUUID(id) {
		s.respondError(w, http.StatusNotFound, "Project not found")
		return
	}
	p := principal(r)
	project, err := s.store.GetProject(r.Context(), p, id)
	if err != nil {
		s.respondStoreError(w, err, "Project", "Failed to load project")
		return
	}

	ids := make([]string, len(project.Sections))
	for i, sec := range project.Sections {
		ids[i] = sec.ID
	}
	feedback, err := s.store.ListFeedback(r.Context(), p, ids)
	if err != nil {
		s.respondStoreError(w, err, "Section", "Failed to load feedback")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"project": project, "feedback": feedback})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !helper.IsUUID(id) {
		s.respondError(w, http.StatusNotFound, "Project not found")
		return
	}
	if err := s.store.DeleteProject(r.Context(), principal(r), id); err != nil {
		s.respondStoreError(w, err, "Project", "Failed to delete project")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

type outlineRequest struct {
	Topic        string `json:"topic"`
	DocumentType string `json:"documentType"`
}

func (s *Server) handleGenerateOutline(w http.ResponseWriter, r *http.Request) {
	var req outlineRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" || req.DocumentType == "" {
		s.respondError(w, http.StatusBadRequest, "topic and documentType are required")
		return
	}

	raw, err := s.llm.GenerateOutline(r.Context(), req.Topic, req.DocumentType)
	if err != nil {
		s.respondLLMError(w, err, "AI generation failed")
		return
	}
	items := outline.Extract(raw, models.DefaultMaxOutline)
	s.respondJSON(w, http.StatusOK, map[string]any{"outline": items})
}

type contentRequest struct {
	SectionTitle string `json:"sectionTitle"`
	Topic        string `json:"topic"`
	DocumentType string `json:"documentType"`
}

func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SectionTitle) == "" || req.DocumentType == "" {
		s.respondError(w, http.StatusBadRequest, "sectionTitle and documentType are required")
		return
	}

	content, err := s.llm.GenerateSectionContent(r.Context(), req.SectionTitle, req.Topic, req.DocumentType)
	if err != nil {
		s.respondLLMError(w, err, "AI content generation failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"content": content})
}

type refineRequest struct {
	CurrentContent string `json:"currentContent"`
	Prompt         string `json:"prompt"`
	DocumentType   string `json:"documentType"`
}

func (s *Server) handleRefineContent(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	content, err := s.llm.RefineContent(r.Context(), req.CurrentContent, req.Prompt, req.DocumentType)
	if err != nil {
		s.respondLLMError(w, err, "Content refinement failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"content": content})
}

type addSectionsRequest struct {
	Sections []*db.Section `json:"sections"`
}

func (s *Server) handleAddSections(w http.ResponseWriter, r *http.Request) {
	var req addSectionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	for i, sec := range req.Sections {
		if sec == nil || sec.ProjectID == "" {
			s.respondError(w, http.StatusBadRequest, "sections["+strconv.Itoa(i)+"].project_id is required")
			return
		}
		if !helper.IsUUID(sec.ProjectID) {
			s.respondError(w, http.StatusBadRequest, "sections["+strconv.Itoa(i)+"].project_id must be a UUID")
			return
		}
		sec.ID = ""
	}

	if err := s.store.AddSections(r.Context(), principal(r), req.Sections); err != nil {
		s.respondStoreError(w, err, "Project", "Failed to add sections")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "success", "sections": req.Sections})
}

type updateSectionRequest struct {
	SectionID string  `json:"section_id"`
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	ImageURL  *string `json:"image_url"`
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	var req updateSectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SectionID == "" {
		s.respondError(w, http.StatusBadRequest, "section_id is required")
		return
	}
	if !s.checkSectionID(w, req.SectionID) {
		return
	}

	patch := db.SectionPatch{Title: req.Title, Content: req.Content, ImageURL: req.ImageURL}
	sec, err := s.store.UpdateSection(r.Context(), principal(r), req.SectionID, patch)
	if errors.Is(err, db.ErrEmptyUpdate) {
		s.respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if err != nil {
		s.respondStoreError(w, err, "Section", "Failed to update section")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"section": sec})
}

type feedbackRequest struct {
	SectionID string  `json:"section_id"`
	IsLiked   *bool   `json:"is_liked"`
	Comment   *string `json:"comment"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SectionID == "" {
		s.respondError(w, http.StatusBadRequest, "section_id is required")
		return
	}
	if !s.checkSectionID(w, req.SectionID) {
		return
	}

	fb := &db.Feedback{SectionID: req.SectionID, IsLiked: req.IsLiked, Comment: req.Comment}
	if err := s.store.CreateFeedback(r.Context(), principal(r), fb); err != nil {
		s.respondStoreError(w, err, "Section", "Failed to save feedback")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type refinementRequest struct {
	SectionID string `json:"section_id"`
	Prompt    string `json:"prompt"`
	Result    string `json:"result"`
}

func (s *Server) handleCreateRefinement(w http.ResponseWriter, r *http.Request) {
	var req refinementRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SectionID == "" || req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "section_id and prompt are required")
		return
	}
	if !s.checkSectionID(w, req.SectionID) {
		return
	}

	ref := &db.Refinement{SectionID: req.SectionID, Prompt: req.Prompt, Result: req.Result}
	if err := s.store.CreateRefinement(r.Context(), principal(r), ref); err != nil {
		s.respondStoreError(w, err, "Section", "Failed to save refinement")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ids := []string{models.DefaultTemplateID}
	if s.templates != nil {
		found, err := s.templates.List()
		if err != nil {
			log.Error().Err(err).Msg("Failed to list templates")
			s.respondError(w, http.StatusInternalServerError, "Failed to list templates")
			return
		}
		for _, id := range found {
			if id != models.DefaultTemplateID {
				ids = append(ids, id)
			}
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"templates": ids})
}

type exportRequest struct {
	ProjectID string `json:"projectId"`
}

func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ProjectID == "" {
		s.respondError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if !helper.IsUUID(req.ProjectID) {
		s.respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	project, err := s.store.GetProject(r.Context(), principal(r), req.ProjectID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Project not found")
		return
	case errors.Is(err, db.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "Unauthorized")
		return
	case err != nil:
		s.respondStoreError(w, err, "Project", "Failed to load project")
		return
	}

	sections := make([]models.SectionInput, len(project.Sections))
	for i, sec := range project.Sections {
		sections[i] = models.SectionInput{Title: sec.Title, Content: sec.Content}
		if sec.ImageURL != nil {
			sections[i].ImageURL = *sec.ImageURL
		}
	}

	doc, err := s.assembler.Assemble(r.Context(), project.DocumentType, project.Title, sections, project.PPTTemplate)
	if err != nil {
		log.Error().Err(err).Str("project", project.ID).Msg("Export failed")
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Document generation failed: %v", err))
		return
	}

	log.Info().Str("project", project.ID).Str("file", doc.Filename).Int("bytes", len(doc.Data)).Msg("Document exported")
	w.Header().Set("Content-Type", doc.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		log.Debug().Err(err).Msg("Client went away during export")
	}
}

// checkSectionID rejects ids the uuid columns could never hold, which would
// otherwise surface from the database as a 500.
func (s *Server) checkSectionID(w http.ResponseWriter, id string) bool {
	if helper.IsUUID(id) {
		return true
	}
	s.respondError(w, http.StatusBadRequest, "section_id must be a UUID")
	return false
}

// respondStoreError maps store sentinels to 404 and 403; anything else is
// logged and reported as msg.
func (s *Server) respondStoreError(w http.ResponseWriter, err error, entity, msg string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.respondError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, db.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "Unauthorized")
	default:
		log.Error().Err(err).Msg(msg)
		s.respondError(w, http.StatusInternalServerError, msg)
	}
}

func (s *Server) respondLLMError(w http.ResponseWriter, err error, fallback string) {
	var statusErr *llmservice.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.Message
		if msg == "" {
			msg = fallback
		}
		s.respondError(w, statusErr.Status, msg)
		return
	}
	log.Error().Err(err).Msg(fallback)
	s.respondError(w, http.StatusInternalServerError, fallback)
}
