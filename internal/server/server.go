// Package server provides the HTTP API for DocuMate.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"documate/internal/auth"
	"documate/internal/config"
	"documate/internal/db"
	"documate/internal/document"
	"documate/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Store is the persistence the handlers need. *db.Store implements it.
type Store interface {
	ListProjects(ctx context.Context, p db.Principal) ([]db.Project, error)
	CreateProject(ctx context.Context, p db.Principal, project *db.Project) error
	GetProject(ctx context.Context, p db.Principal, id string) (*db.Project, error)
	DeleteProject(ctx context.Context, p db.Principal, id string) error
	AddSections(ctx context.Context, p db.Principal, sections []*db.Section) error
	UpdateSection(ctx context.Context, p db.Principal, id string, patch db.SectionPatch) (*db.Section, error)
	ListFeedback(ctx context.Context, p db.Principal, sectionIDs []string) ([]db.Feedback, error)
	CreateFeedback(ctx context.Context, p db.Principal, fb *db.Feedback) error
	CreateRefinement(ctx context.Context, p db.Principal, r *db.Refinement) error
}

// Generator produces text with the language model. *llmservice.Service
// implements it.
type Generator interface {
	GenerateOutline(ctx context.Context, topic, documentType string) (string, error)
	GenerateSectionContent(ctx context.Context, sectionTitle, topic, documentType string) (string, error)
	RefineContent(ctx context.Context, currentContent, prompt, documentType string) (string, error)
}

type Assembler interface {
	Assemble(ctx context.Context, kind, title string, sections []models.SectionInput, templateID string) (*document.Document, error)
}

type TemplateLister interface {
	List() ([]string, error)
}

// Server is the HTTP server for the DocuMate API.
type Server struct {
	store     Store
	llm       Generator
	assembler Assembler
	templates TemplateLister
	verifier  *auth.Verifier
	config    *config.ServerConfig
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store Store,
	llm Generator,
	assembler Assembler,
	templates TemplateLister,
	verifier *auth.Verifier,
	cfg *config.ServerConfig,
) *Server {
	s := &Server{
		store:     store,
		llm:       llm,
		assembler: assembler,
		templates: templates,
		verifier:  verifier,
		config:    cfg,
	}
	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route tree with its middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.verifier.Middleware(s.respondError))

		r.Get("/projects", s.handleListProjects)
		r.Post("/projects/create", s.handleCreateProject)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Delete("/projects/{id}", s.handleDeleteProject)

		r.Post("/generate-outline", s.handleGenerateOutline)
		r.Post("/generate-content", s.handleGenerateContent)
		r.Post("/refine-content", s.handleRefineContent)

		r.Post("/sections/add", s.handleAddSections)
		r.Post("/sections/update", s.handleUpdateSection)
		r.Post("/feedback", s.handleFeedback)
		r.Post("/refinements/create", s.handleCreateRefinement)

		r.Get("/templates", s.handleListTemplates)
		r.Post("/export-document", s.handleExportDocument)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops. After Stop it
// returns nil without listening.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server. It is safe to call before Start.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			ev := log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("Request")
		}()
		next.ServeHTTP(ww, r)
	})
}
