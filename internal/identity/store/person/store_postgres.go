package person

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/identity/models"
	"heirloom/internal/platform/database"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// PostgresStore persists persons in the persons table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Person) error {
	const query = `
		INSERT INTO persons (id, email, account_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := txcontext.Use(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.Email, string(p.AccountStatus), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	const query = `
		SELECT id, email, account_status, created_at, updated_at
		FROM persons WHERE id = $1
	`
	return s.scanOne(txcontext.Use(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(personID)))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, address string) (*models.Person, error) {
	const query = `
		SELECT id, email, account_status, created_at, updated_at
		FROM persons WHERE LOWER(email) = $1
	`
	return s.scanOne(txcontext.Use(ctx, s.db).QueryRowContext(ctx, query, address))
}

// MarkDeceased is a conditional update: it only succeeds while the row is
// still active, so concurrent callers serialize on the row lock and exactly
// one sees RowsAffected == 1.
func (s *PostgresStore) MarkDeceased(ctx context.Context, personID id.PersonID, now time.Time) error {
	const query = `
		UPDATE persons SET account_status = 'deceased', updated_at = $2
		WHERE id = $1 AND account_status = 'active'
	`
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx, query, uuid.UUID(personID), now)
	if err != nil {
		return fmt.Errorf("mark person deceased: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark person deceased rows: %w", err)
	}
	if rows == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, personID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Person, error) {
	var (
		p      models.Person
		rawID  uuid.UUID
		status string
	)
	if err := row.Scan(&rawID, &p.Email, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan person: %w", err)
	}
	p.ID = id.PersonID(rawID)
	p.AccountStatus = models.AccountStatus(status)
	return &p, nil
}
