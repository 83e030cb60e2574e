package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"documate/internal/helper"
	"documate/internal/models"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrEmptyUpdate = errors.New("nothing to update")
)

const defaultRole = "authenticated"

// Principal is the verified caller every query is scoped to.
type Principal struct {
	UserID string
	Role   string
	// Claims is the raw JWT payload, exposed to row-level-security policies
	// as request.jwt.claims.
	Claims json.RawMessage
}

// Store is the project/section repository. With rls enabled each call runs
// in a transaction that assumes the caller's role and claims, the way the
// Supabase REST layer does; queries also filter by owner explicitly.
type Store struct {
	db  *bun.DB
	rls bool
}

func NewStore(db *bun.DB, rls bool) *Store {
	return &Store{db: db, rls: rls}
}

func (s *Store) run(ctx context.Context, p Principal, fn func(ctx context.Context, idb bun.IDB) error) error {
	if !s.rls {
		return fn(ctx, s.db)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		claims, err := claimsJSON(p)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "SELECT set_config('request.jwt.claims', ?, true)", claims); err != nil {
			return fmt.Errorf("failed to set claims: %w", err)
		}
		if _, err := tx.ExecContext(ctx, roleStatement(p.Role)); err != nil {
			return fmt.Errorf("failed to set role: %w", err)
		}
		return fn(ctx, tx)
	})
}

func claimsJSON(p Principal) (string, error) {
	if len(p.Claims) > 0 {
		return string(p.Claims), nil
	}
	b, err := json.Marshal(map[string]string{"sub": p.UserID, "role": roleOrDefault(p.Role)})
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}
	return string(b), nil
}

func roleStatement(role string) string {
	return "SET LOCAL ROLE " + pq.QuoteIdentifier(roleOrDefault(role))
}

func roleOrDefault(role string) string {
	if role == "" {
		return defaultRole
	}
	return role
}

func (s *Store) ListProjects(ctx context.Context, p Principal) ([]Project, error) {
	projects := []Project{}
	err := s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		return selectProjects(idb, p.UserID, &projects).Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (s *Store) CreateProject(ctx context.Context, p Principal, project *Project) error {
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	project.ID = id
	project.UserID = p.UserID
	project.Status = models.ProjectStatusDraft
	if project.PPTTemplate == "" {
		project.PPTTemplate = models.DefaultTemplateID
	}
	project.CreatedAt, project.UpdatedAt = now, now

	err = s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		_, err := idb.NewInsert().Model(project).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	log.Debug().Str("project", project.ID).Str("user", p.UserID).Msg("Project created")
	return nil
}

// GetProject loads a project with its sections in order. A project owned by
// someone else is ErrForbidden.
func (s *Store) GetProject(ctx context.Context, p Principal, id string) (*Project, error) {
	if !helper.IsUUID(id) {
		return nil, ErrNotFound
	}
	project := new(Project)
	err := s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		return selectProject(idb, id, project).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project.UserID != p.UserID {
		return nil, ErrForbidden
	}
	if project.Sections == nil {
		project.Sections = []*Section{}
	}
	return project, nil
}

func (s *Store) DeleteProject(ctx context.Context, p Principal, id string) error {
	if !helper.IsUUID(id) {
		return ErrNotFound
	}
	var affected int64
	err := s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		res, err := deleteProject(idb, p.UserID, id).Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddSections inserts sections into projects the principal owns.
func (s *Store) AddSections(ctx context.Context, p Principal, sections []*Section) error {
	if len(sections) == 0 {
		return nil
	}

	projectIDs := make([]string, 0, len(sections))
	seen := make(map[string]bool)
	now := time.Now().UTC()
	for _, sec := range sections {
		if !seen[sec.ProjectID] {
			seen[sec.ProjectID] = true
			projectIDs = append(projectIDs, sec.ProjectID)
		}
		if sec.ID == "" {
			id, err := helper.GenerateUUID()
			if err != nil {
				return err
			}
			sec.ID = id
		}
		sec.CreatedAt, sec.UpdatedAt = now, now
	}

	return s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		owned, err := countOwnedProjects(idb, p.UserID, projectIDs).Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to check project ownership: %w", err)
		}
		if owned != len(projectIDs) {
			return ErrForbidden
		}
		if _, err := idb.NewInsert().Model(&sections).Exec(ctx); err != nil {
			return fmt.Errorf("failed to add sections: %w", err)
		}
		for _, id := range projectIDs {
			if _, err := touchProject(idb, id).Exec(ctx); err != nil {
				return fmt.Errorf("failed to touch project: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) UpdateSection(ctx context.Context, p Principal, id string, patch SectionPatch) (*Section, error) {
	sec := &Section{ID: id, UpdatedAt: time.Now().UTC()}
	columns := []string{"updated_at"}
	if patch.Title != nil {
		sec.Title = *patch.Title
		columns = append(columns, "title")
	}
	if patch.Content != nil {
		sec.Content = *patch.Content
		columns = append(columns, "content")
	}
	if patch.ImageURL != nil {
		if *patch.ImageURL != "" {
			sec.ImageURL = patch.ImageURL
		}
		columns = append(columns, "image_url")
	}
	if len(columns) == 1 {
		return nil, ErrEmptyUpdate
	}

	err := s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		projectID, err := s.checkSectionOwner(ctx, idb, p, id)
		if err != nil {
			return err
		}
		sec.ProjectID = projectID
		if _, err := updateSection(idb, sec, columns).Exec(ctx); err != nil {
			return fmt.Errorf("failed to update section: %w", err)
		}
		_, err = touchProject(idb, projectID).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// ListFeedback returns the feedback recorded for the principal's sections.
func (s *Store) ListFeedback(ctx context.Context, p Principal, sectionIDs []string) ([]Feedback, error) {
	feedback := []Feedback{}
	if len(sectionIDs) == 0 {
		return feedback, nil
	}
	err := s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		return selectFeedback(idb, p.UserID, sectionIDs, &feedback).Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return feedback, nil
}

func (s *Store) CreateFeedback(ctx context.Context, p Principal, fb *Feedback) error {
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	fb.ID = id
	fb.CreatedAt = time.Now().UTC()

	return s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		if _, err := s.checkSectionOwner(ctx, idb, p, fb.SectionID); err != nil {
			return err
		}
		if _, err := idb.NewInsert().Model(fb).Exec(ctx); err != nil {
			return fmt.Errorf("failed to save feedback: %w", err)
		}
		return nil
	})
}

func (s *Store) CreateRefinement(ctx context.Context, p Principal, r *Refinement) error {
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	r.ID = id
	r.CreatedAt = time.Now().UTC()

	return s.run(ctx, p, func(ctx context.Context, idb bun.IDB) error {
		if _, err := s.checkSectionOwner(ctx, idb, p, r.SectionID); err != nil {
			return err
		}
		if _, err := idb.NewInsert().Model(r).Exec(ctx); err != nil {
			return fmt.Errorf("failed to save refinement: %w", err)
		}
		return nil
	})
}

// checkSectionOwner returns the project of a section the principal owns.
func (s *Store) checkSectionOwner(ctx context.Context, idb bun.IDB, p Principal, sectionID string) (string, error) {
	var owner, projectID string
	err := selectSectionOwner(idb, sectionID).Scan(ctx, &owner, &projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up section: %w", err)
	}
	if owner != p.UserID {
		return "", ErrForbidden
	}
	return projectID, nil
}

func selectProjects(idb bun.IDB, userID string, dst *[]Project) *bun.SelectQuery {
	return idb.NewSelect().
		Model(dst).
		Where("p.user_id = ?", userID).
		OrderExpr("p.updated_at DESC")
}

func selectProject(idb bun.IDB, id string, dst *Project) *bun.SelectQuery {
	return idb.NewSelect().
		Model(dst).
		Relation("Sections", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("s.order_index ASC")
		}).
		Where("p.id = ?", id)
}

func deleteProject(idb bun.IDB, userID, id string) *bun.DeleteQuery {
	return idb.NewDelete().
		Model((*Project)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID)
}

func countOwnedProjects(idb bun.IDB, userID string, ids []string) *bun.SelectQuery {
	return idb.NewSelect().
		Model((*Project)(nil)).
		Where("p.id IN (?)", bun.In(ids)).
		Where("p.user_id = ?", userID)
}

func touchProject(idb bun.IDB, id string) *bun.UpdateQuery {
	return idb.NewUpdate().
		Model((*Project)(nil)).
		Set("updated_at = current_timestamp").
		Where("id = ?", id)
}

func updateSection(idb bun.IDB, sec *Section, columns []string) *bun.UpdateQuery {
	return idb.NewUpdate().
		Model(sec).
		Column(columns...).
		WherePK().
		Returning("*")
}

func selectSectionOwner(idb bun.IDB, sectionID string) *bun.SelectQuery {
	return idb.NewSelect().
		TableExpr("sections AS s").
		ColumnExpr("p.user_id, s.project_id").
		Join("JOIN projects AS p ON p.id = s.project_id").
		Where("s.id = ?", sectionID)
}

func selectFeedback(idb bun.IDB, userID string, sectionIDs []string, dst *[]Feedback) *bun.SelectQuery {
	return idb.NewSelect().
		Model(dst).
		Join("JOIN sections AS s ON s.id = f.section_id").
		Join("JOIN projects AS p ON p.id = s.project_id").
		Where("f.section_id IN (?)", bun.In(sectionIDs)).
		Where("p.user_id = ?", userID).
		OrderExpr("f.created_at ASC")
}
