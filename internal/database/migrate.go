package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/auth.sql
var authSchemaSQL string

//go:embed migrations/posts.sql
var postsSchemaSQL string

//go:embed migrations/comments.sql
var commentsSchemaSQL string

// Schema is the set of tables one service owns in its own database.
type Schema struct {
	Name   string
	SQL    string
	Tables []string
}

var (
	AuthSchema    = Schema{Name: "auth", SQL: authSchemaSQL, Tables: []string{"users"}}
	PostSchema    = Schema{Name: "posts", SQL: postsSchemaSQL, Tables: []string{"posts"}}
	CommentSchema = Schema{Name: "comments", SQL: commentsSchemaSQL, Tables: []string{"comments"}}
)

func (db *DB) EnsureSchema(ctx context.Context, schema Schema) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasAllTables(ctx, schema.Tables)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if !exists {
		slog.Info("database schema missing tables; applying schema", "schema", schema.Name)
		if _, err := db.Pool.Exec(ctx, schema.SQL); err != nil {
			return fmt.Errorf("apply %s schema: %w", schema.Name, err)
		}

		exists, err = db.hasAllTables(ctx, schema.Tables)
		if err != nil {
			return fmt.Errorf("re-check tables after schema apply: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema %s incomplete: required tables are still missing", schema.Name)
		}
	}

	slog.Info("database schema ensured", "schema", schema.Name)
	return nil
}

func (db *DB) hasAllTables(ctx context.Context, tables []string) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, tables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(tables), nil
}
