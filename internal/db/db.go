package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// NewDB wraps sqldb in bun's postgres dialect. debug logs every query.
func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the Supabase postgres database. The connection is
// established lazily; callers ping to fail fast.
func ConnectDB(dsn, password string) *sql.DB {
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if password != "" {
		opts = append(opts, pgdriver.WithPassword(password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...))
}

// InitSchema creates the tables and indexes if they do not exist yet.
func InitSchema(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		model any
		fks   []string
	}{
		{(*Project)(nil), nil},
		{(*Section)(nil), []string{`("project_id") REFERENCES "projects" ("id") ON DELETE CASCADE`}},
		{(*Feedback)(nil), []string{`("section_id") REFERENCES "sections" ("id") ON DELETE CASCADE`}},
		{(*Refinement)(nil), []string{`("section_id") REFERENCES "sections" ("id") ON DELETE CASCADE`}},
	}
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.fks {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []struct {
		model        any
		name, column string
	}{
		{(*Project)(nil), "projects_user_id_idx", "user_id"},
		{(*Section)(nil), "sections_project_id_idx", "project_id"},
		{(*Feedback)(nil), "feedback_section_id_idx", "section_id"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.column).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema removes every table, children first.
func DropSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Refinement)(nil), (*Feedback)(nil), (*Section)(nil), (*Project)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}
