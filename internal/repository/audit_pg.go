package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medscan/scangate/internal/model"
)

type PostgresAuditRepo struct {
	db *sqlx.DB
}

func NewPostgresAuditRepo(db *sqlx.DB) *PostgresAuditRepo {
	repo := &PostgresAuditRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditEntry) error {
	if entry == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (actor_id, action, target_type, target_id, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ActorID, entry.Action, entry.TargetType, entry.TargetID, entry.Details, entry.CreatedAt)
	return err
}

func (r *PostgresAuditRepo) List(ctx context.Context, action string, actorID *int64, limit int, from, to *time.Time) ([]*model.AuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, actor_id, action, target_type, target_id, details, created_at FROM audit_logs`
	clauses := []string{}
	args := []interface{}{}
	idx := 1

	if action != "" {
		clauses = append(clauses, fmt.Sprintf("action = $%d", idx))
		args = append(args, action)
		idx++
	}
	if actorID != nil {
		clauses = append(clauses, fmt.Sprintf("actor_id = $%d", idx))
		args = append(args, *actorID)
		idx++
	}
	if from != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *from)
		idx++
	}
	if to != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *to)
		idx++
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.AuditEntry, 0, limit)
	for rows.Next() {
		var entry model.AuditEntry
		if err := rows.StructScan(&entry); err != nil {
			return nil, err
		}
		records = append(records, &entry)
	}
	return records, rows.Err()
}

func (r *PostgresAuditRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			actor_id BIGINT,
			action VARCHAR(64) NOT NULL,
			target_type VARCHAR(64),
			target_id BIGINT,
			details TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action, created_at DESC)`)
	return nil
}
