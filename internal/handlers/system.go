package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MigrationsDir is where InstallDatabase looks for schema files
var MigrationsDir = "migrations"

// InstallDatabase applies the bundled schema to Postgres and, when configured, ClickHouse
// @Summary Install Database Schema
// @Description Executes the SQL migrations for PostgreSQL (schedule, box scores, model registry) and ClickHouse (prediction audit log)
// @Tags System
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]interface{}
// @Router /system/install [post]
func (h *Handler) InstallDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results := make(map[string]string)
	hasError := false

	pgSchemaPath := filepath.Join(MigrationsDir, "postgres", "001_initial_schema.sql")
	if err := h.executePostgresSQL(ctx, pgSchemaPath); err != nil {
		results["postgres"] = "failed: " + err.Error()
		hasError = true
	} else {
		results["postgres"] = "success"
	}

	if h.ch == nil {
		results["clickhouse"] = "skipped"
	} else {
		chSchemaPath := filepath.Join(MigrationsDir, "clickhouse", "001_initial_schema.sql")
		if err := h.executeClickHouseSQL(ctx, chSchemaPath); err != nil {
			results["clickhouse"] = "failed: " + err.Error()
			hasError = true
		} else {
			results["clickhouse"] = "success"
		}
	}

	statusCode := http.StatusOK
	if hasError {
		statusCode = http.StatusInternalServerError
	}

	h.jsonResponse(w, statusCode, map[string]interface{}{
		"status":  "completed",
		"results": results,
		"error":   hasError,
	})
}

// executePostgresSQL runs a schema file as one multi-statement script
func (h *Handler) executePostgresSQL(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		h.logger.Errorw("Failed to read schema file", "db", "PostgreSQL", "path", path, "error", err)
		return err
	}

	if _, err := h.pg.Exec(ctx, string(content)); err != nil {
		h.logger.Errorw("Failed to execute schema", "db", "PostgreSQL", "error", err)
		return err
	}

	h.logger.Infow("Installed schema", "db", "PostgreSQL")
	return nil
}

// executeClickHouseSQL runs a schema file one statement at a time
func (h *Handler) executeClickHouseSQL(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		h.logger.Errorw("Failed to read schema file", "db", "ClickHouse", "path", path, "error", err)
		return err
	}

	for _, stmt := range strings.Split(string(content), ";") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if err := h.ch.Exec(ctx, trimmed); err != nil {
			h.logger.Warnw("Statement failed", "db", "ClickHouse", "error", err, "statement", trimmed[:min(len(trimmed), 50)]+"...")
			return err
		}
	}

	h.logger.Infow("Installed schema", "db", "ClickHouse")
	return nil
}
