package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// offlineDB formats queries without ever opening a connection.
func offlineDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN("postgres://u:p@localhost:5432/db?sslmode=disable")))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSelectProjects(t *testing.T) {
	db := offlineDB(t)
	var projects []Project

	q := selectProjects(db, "user-1", &projects).String()
	assert.Contains(t, q, `FROM "projects" AS "p"`)
	assert.Contains(t, q, `WHERE (p.user_id = 'user-1')`)
	assert.Contains(t, q, `ORDER BY p.updated_at DESC`)
}

func TestSelectProject(t *testing.T) {
	db := offlineDB(t)

	q := selectProject(db, "proj-1", new(Project)).String()
	assert.Contains(t, q, `FROM "projects" AS "p"`)
	assert.Contains(t, q, `p.id = 'proj-1'`)
	assert.NotContains(t, q, "user_id = ", "ownership is checked after loading")
}

func TestDeleteProject(t *testing.T) {
	db := offlineDB(t)

	q := deleteProject(db, "user-1", "proj-1").String()
	assert.Contains(t, q, `DELETE FROM "projects"`)
	assert.Contains(t, q, `(id = 'proj-1') AND (user_id = 'user-1')`)
}

func TestCountOwnedProjects(t *testing.T) {
	db := offlineDB(t)

	q := countOwnedProjects(db, "user-1", []string{"a", "b"}).String()
	assert.Contains(t, q, `p.id IN ('a', 'b')`)
	assert.Contains(t, q, `p.user_id = 'user-1'`)
}

func TestTouchProject(t *testing.T) {
	db := offlineDB(t)

	q := touchProject(db, "proj-1").String()
	assert.Contains(t, q, `UPDATE "projects"`)
	assert.Contains(t, q, `SET updated_at = current_timestamp`)
	assert.Contains(t, q, `id = 'proj-1'`)
}

func TestUpdateSection(t *testing.T) {
	db := offlineDB(t)
	sec := &Section{ID: "sec-1", Content: "new body"}

	q := updateSection(db, sec, []string{"updated_at", "content"}).String()
	assert.Contains(t, q, `UPDATE "sections"`)
	assert.Contains(t, q, `"content" = 'new body'`)
	assert.NotContains(t, q, `"title" =`)
	assert.Contains(t, q, `'sec-1'`)
	assert.Contains(t, q, `RETURNING *`)
}

func TestSelectSectionOwner(t *testing.T) {
	db := offlineDB(t)

	q := selectSectionOwner(db, "sec-1").String()
	assert.Contains(t, q, `SELECT p.user_id, s.project_id FROM sections AS s`)
	assert.Contains(t, q, `JOIN projects AS p ON p.id = s.project_id`)
	assert.Contains(t, q, `s.id = 'sec-1'`)
}

func TestSelectFeedback(t *testing.T) {
	db := offlineDB(t)
	var feedback []Feedback

	q := selectFeedback(db, "user-1", []string{"s1", "s2"}, &feedback).String()
	assert.Contains(t, q, `FROM "feedback" AS "f"`)
	assert.Contains(t, q, `JOIN sections AS s ON s.id = f.section_id`)
	assert.Contains(t, q, `f.section_id IN ('s1', 's2')`)
	assert.Contains(t, q, `p.user_id = 'user-1'`)
}

func TestRoleStatement(t *testing.T) {
	assert.Equal(t, `SET LOCAL ROLE "authenticated"`, roleStatement(""))
	assert.Equal(t, `SET LOCAL ROLE "service_role"`, roleStatement("service_role"))
	assert.Equal(t, `SET LOCAL ROLE "x"" ; drop table projects"`, roleStatement(`x" ; drop table projects`))
}

func TestClaimsJSON(t *testing.T) {
	raw := json.RawMessage(`{"sub":"u1","email":"a@b.c"}`)
	got, err := claimsJSON(Principal{UserID: "u1", Claims: raw})
	require.NoError(t, err)
	assert.Equal(t, string(raw), got)

	got, err = claimsJSON(Principal{UserID: "u2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sub":"u2","role":"authenticated"}`, got)
}

func TestStore_shortCircuits(t *testing.T) {
	s := NewStore(offlineDB(t), false)
	ctx := context.Background()
	p := Principal{UserID: "u1"}

	_, err := s.UpdateSection(ctx, p, "sec-1", SectionPatch{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	assert.NoError(t, s.AddSections(ctx, p, nil))

	feedback, err := s.ListFeedback(ctx, p, nil)
	require.NoError(t, err)
	assert.Empty(t, feedback)

	_, err = s.GetProject(ctx, p, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, p, "1"), ErrNotFound)
}
