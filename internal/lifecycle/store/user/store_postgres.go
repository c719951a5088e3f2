package user

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

const userColumns = `user_id, phone, name, user_role, pin_code, blood_type, age, weight,
	gender, address, status, last_donation_time, blood_report_link,
	is_request_active, blood_type_needed, request_pin_code, created_at, updated_at`

// Constraint names from schema.sql.
const (
	phoneConstraint = "users_phone_key"
	idConstraint    = "users_pkey"
)

// PostgresStore persists users in PostgreSQL. The users_phone_key
// constraint and the primary key back the uniqueness rules.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) conn(ctx context.Context) queryer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) CreateIfPhoneAvailable(ctx context.Context, u *models.User) error {
	_, err := s.conn(ctx).ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		u.UserID, u.Phone, u.Name, string(u.UserRole), u.PinCode, u.BloodType, u.Age, u.Weight,
		u.Gender, u.Address, string(u.Status), u.LastDonationTime, u.BloodReportLink,
		u.IsRequestActive, u.BloodTypeNeeded, u.RequestPinCode, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			if constraint == idConstraint {
				return sentinel.ErrDuplicateID
			}
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.UserStatus) ([]*models.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users WHERE status = $1 ORDER BY created_at, user_id`, string(status))
}

func (s *PostgresStore) ListDonors(ctx context.Context, filter models.DonorFilter) ([]*models.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users
		WHERE user_role = $1 AND status = $2 AND pin_code = $3 AND ($4::text = '' OR blood_type = $4)
		ORDER BY created_at, user_id`,
		string(models.RoleDonor), string(models.UserStatusVerified), filter.PinCode, filter.BloodType)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, user_id`)
}

// Execute locks the row with SELECT ... FOR UPDATE for the duration of
// validate, mutate and the write.
func (s *PostgresStore) Execute(ctx context.Context, userID string, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	var out *models.User
	err := tx.Run(ctx, s.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		u, err := scanUser(sqlTx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		if err := validate(u); err != nil {
			return err
		}
		mutate(u)
		_, err = sqlTx.ExecContext(ctx, `UPDATE users SET
			name = $2, user_role = $3, pin_code = $4, blood_type = $5, age = $6, weight = $7,
			gender = $8, address = $9, status = $10, last_donation_time = $11, blood_report_link = $12,
			is_request_active = $13, blood_type_needed = $14, request_pin_code = $15, updated_at = $16
			WHERE user_id = $1`,
			u.UserID, u.Name, string(u.UserRole), u.PinCode, u.BloodType, u.Age, u.Weight,
			u.Gender, u.Address, string(u.Status), u.LastDonationTime, u.BloodReportLink,
			u.IsRequestActive, u.BloodTypeNeeded, u.RequestPinCode, u.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	return scanUser(s.conn(ctx).QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u      models.User
		role   string
		status string
	)
	err := row.Scan(
		&u.UserID, &u.Phone, &u.Name, &role, &u.PinCode, &u.BloodType, &u.Age, &u.Weight,
		&u.Gender, &u.Address, &status, &u.LastDonationTime, &u.BloodReportLink,
		&u.IsRequestActive, &u.BloodTypeNeeded, &u.RequestPinCode, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.UserRole = models.Role(role)
	u.Status = models.UserStatus(status)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
