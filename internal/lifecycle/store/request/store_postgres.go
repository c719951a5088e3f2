package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lifeline/internal/lifecycle/models"
	"lifeline/internal/platform/postgres"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/platform/tx"
)

const requestColumns = `request_id, requester_id, name, phone, user_role, pin_code,
	blood_type_needed, status, created_at, updated_at`

// PostgresStore persists requests in PostgreSQL. The partial unique index
// blood_requests_one_pending_idx allows one PENDING row per requester.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfNoPending(ctx context.Context, r *models.Request) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO blood_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.RequestID, r.RequesterID, r.Name, r.Phone, string(r.UserRole), r.PinCode,
		r.BloodTypeNeeded, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID string) (*models.Request, error) {
	return scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM blood_requests WHERE request_id = $1`, requestID))
}

func (s *PostgresStore) List(ctx context.Context, pinCode string) ([]*models.Request, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM blood_requests
		WHERE ($1::text = '' OR pin_code = $1)
		ORDER BY created_at DESC, seq DESC`, pinCode)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Execute(ctx context.Context, requestID string, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {
	var out *models.Request
	err := tx.Run(ctx, s.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		r, err := scanRequest(sqlTx.QueryRowContext(ctx,
			`SELECT `+requestColumns+` FROM blood_requests WHERE request_id = $1 FOR UPDATE`, requestID))
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		if _, err := sqlTx.ExecContext(ctx,
			`UPDATE blood_requests SET status = $2, updated_at = $3 WHERE request_id = $1`,
			r.RequestID, string(r.Status), r.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.Request, error) {
	var (
		r      models.Request
		role   string
		status string
	)
	err := row.Scan(&r.RequestID, &r.RequesterID, &r.Name, &r.Phone, &role, &r.PinCode,
		&r.BloodTypeNeeded, &status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	r.UserRole = models.Role(role)
	r.Status = models.RequestStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}
