package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medscan/scangate/internal/model"
)

// ErrRecordNotFound is returned when a row lookup matches nothing.
var ErrRecordNotFound = errors.New("record not found")

type PostgresUsageRepo struct {
	db *sqlx.DB
}

func NewPostgresUsageRepo(db *sqlx.DB) *PostgresUsageRepo {
	repo := &PostgresUsageRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

const usageSelectColumns = `
	ur.id, ur.device_code, ur.user_id, ur.usage_type, ur.dept_at_use,
	ur.patient_id, ur.note, ur.start_time, ur.end_time, ur.registration_date,
	ur.bed_number, ur.id_number, ur.patient_name, ur.equipment_condition,
	ur.daily_maintenance, ur.terminal_disinfection, ur.photo_urls, ur.source,
	ur.created_at, ur.is_deleted,
	d.name AS device_name, u.real_name AS user_name`

const usageFromJoined = `
	FROM usage_records ur
	LEFT JOIN devices d ON d.device_code = ur.device_code
	LEFT JOIN users u ON u.id = ur.user_id`

// buildFilter renders the shared AND-combined predicate. List, Count and the
// export scan all go through here so their cardinalities always agree.
func buildFilter(f model.UsageFilter) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}
	idx := 1

	add := func(clause string, val interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, idx))
		args = append(args, val)
		idx++
	}

	if !f.IncludeDeleted {
		clauses = append(clauses, "ur.is_deleted = FALSE")
	}
	if f.UserID != nil {
		add("ur.user_id = $%d", *f.UserID)
	}
	if f.DeviceCode != "" {
		add("ur.device_code = $%d", f.DeviceCode)
	}
	if f.Dept != "" {
		add("d.dept = $%d", f.Dept)
	}
	if f.FromTime != nil {
		add("ur.start_time >= $%d", *f.FromTime)
	}
	if f.ToTime != nil {
		add("ur.start_time <= $%d", *f.ToTime)
	}
	if f.RegDateFrom != nil {
		add("ur.registration_date >= $%d", *f.RegDateFrom)
	}
	if f.RegDateTo != nil {
		add("ur.registration_date <= $%d", *f.RegDateTo)
	}
	if bed := strings.TrimSpace(f.BedNumber); bed != "" {
		add("ur.bed_number = $%d", bed)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PostgresUsageRepo) Insert(ctx context.Context, rec *model.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			device_code, user_id, usage_type, dept_at_use, patient_id, note,
			start_time, end_time, registration_date, bed_number, id_number,
			patient_name, equipment_condition, daily_maintenance,
			terminal_disinfection, photo_urls, source, created_at, is_deleted
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,$11,
			$12,$13,$14,
			$15,$16,$17,$18,FALSE
		)
		RETURNING id`
	return r.db.QueryRowxContext(ctx, query,
		rec.DeviceCode, rec.UserID, rec.UsageType, rec.DeptAtUse, rec.PatientID, rec.Note,
		rec.StartTime, rec.EndTime, rec.RegistrationDate, rec.BedNumber, rec.IDNumber,
		rec.PatientName, rec.EquipmentCondition, rec.DailyMaintenance,
		rec.TerminalDisinfection, rec.PhotoURLs, rec.Source, rec.CreatedAt,
	).Scan(&rec.ID)
}

func (r *PostgresUsageRepo) GetByID(ctx context.Context, id int64) (*model.UsageRecord, error) {
	var rec model.UsageRecord
	query := `SELECT` + usageSelectColumns + usageFromJoined + ` WHERE ur.id = $1 LIMIT 1`
	err := r.db.GetContext(ctx, &rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindRecentDuplicate returns the newest non-deleted record for the same
// (user, device) pair created at or after cutoff, or nil when there is none.
// Read-then-insert with no transactional guard: concurrent submissions can
// still slip through the window.
func (r *PostgresUsageRepo) FindRecentDuplicate(ctx context.Context, userID int64, deviceCode string, cutoff time.Time) (*model.UsageRecord, error) {
	var rec model.UsageRecord
	query := `SELECT` + usageSelectColumns + usageFromJoined + `
		WHERE ur.user_id = $1
		  AND ur.device_code = $2
		  AND ur.is_deleted = FALSE
		  AND ur.created_at >= $3
		ORDER BY ur.created_at DESC
		LIMIT 1`
	err := r.db.GetContext(ctx, &rec, query, userID, deviceCode, cutoff)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// MarkDeleted flips the soft-delete flag. The row is immutable afterwards.
func (r *PostgresUsageRepo) MarkDeleted(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE usage_records SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// List returns matching records newest-first by start_time, ties broken by id
// so pagination stays deterministic.
func (r *PostgresUsageRepo) List(ctx context.Context, f model.UsageFilter, limit, offset int) ([]*model.UsageRecord, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	where, args := buildFilter(f)
	query := `SELECT` + usageSelectColumns + usageFromJoined + where +
		fmt.Sprintf(" ORDER BY ur.start_time DESC, ur.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.UsageRecord, 0, limit)
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (r *PostgresUsageRepo) Count(ctx context.Context, f model.UsageFilter) (int64, error) {
	where, args := buildFilter(f)
	query := `SELECT COUNT(*)` + usageFromJoined + where
	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PostgresUsageRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS usage_records (
			id BIGSERIAL PRIMARY KEY,
			device_code VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			usage_type VARCHAR(32) NOT NULL,
			dept_at_use VARCHAR(128),
			patient_id VARCHAR(64),
			note TEXT,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			registration_date DATE,
			bed_number VARCHAR(32),
			id_number VARCHAR(64),
			patient_name VARCHAR(64),
			equipment_condition VARCHAR(16),
			daily_maintenance VARCHAR(16),
			terminal_disinfection TEXT,
			photo_urls TEXT,
			source VARCHAR(64),
			created_at TIMESTAMP NOT NULL DEFAULT now(),
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE
		)
	`)
	if err != nil {
		return err
	}
	// Maintenance-extension and soft-delete columns arrived after the first
	// deployments; tolerate older tables.
	for _, stmt := range []string{
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS registration_date DATE`,
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS bed_number VARCHAR(32)`,
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS id_number VARCHAR(64)`,
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS patient_name VARCHAR(64)`,
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS equipment_condition VARCHAR(16)`,
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS daily_maintenance VARCHAR(16)`,
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS terminal_disinfection TEXT`,
		`ALTER TABLE usage_records ADD COLUMN IF NOT EXISTS is_deleted BOOLEAN NOT NULL DEFAULT FALSE`,
		`CREATE INDEX IF NOT EXISTS ix_usage_user_start ON usage_records(user_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS ix_usage_device_start ON usage_records(device_code, start_time)`,
		`CREATE INDEX IF NOT EXISTS ix_usage_registration_date ON usage_records(registration_date)`,
		`CREATE INDEX IF NOT EXISTS ix_usage_bed_number ON usage_records(bed_number)`,
	} {
		_, _ = r.db.ExecContext(ctx, stmt)
	}
	return nil
}
