package confirmation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"heirloom/internal/confirmation/models"
	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/platform/database"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append relies on the unique index on target_person_id for at-most-once.
func (s *PostgresStore) Append(ctx context.Context, c *models.Confirmation) error {
	const query = `
		INSERT INTO deceased_confirmations (id, target_person_id, confirmed_by_person_id, confirmer_role,
			notes, verification_method, client_ip, user_agent, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := txcontext.Use(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.TargetPersonID), uuid.UUID(c.ConfirmedByPersonID), string(c.ConfirmerRole),
		nullString(c.Notes), string(c.VerificationMethod), nullString(c.ClientIP), nullString(c.UserAgent), c.ConfirmedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert confirmation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTarget(ctx context.Context, target id.PersonID) (*models.Confirmation, error) {
	const query = `
		SELECT id, target_person_id, confirmed_by_person_id, confirmer_role, notes,
			verification_method, client_ip, user_agent, confirmed_at
		FROM deceased_confirmations WHERE target_person_id = $1
	`
	var (
		c                models.Confirmation
		rawID, rawTarget uuid.UUID
		rawConfirmer     uuid.UUID
		role, method     string
		notes, ip, agent sql.NullString
	)
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(target)).Scan(
		&rawID, &rawTarget, &rawConfirmer, &role, &notes, &method, &ip, &agent, &c.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find confirmation: %w", err)
	}
	c.ID = id.ConfirmationID(rawID)
	c.TargetPersonID = id.PersonID(rawTarget)
	c.ConfirmedByPersonID = id.PersonID(rawConfirmer)
	c.ConfirmerRole = contactmodels.Role(role)
	c.Notes = notes.String
	c.VerificationMethod = models.VerificationMethod(method)
	c.ClientIP = ip.String
	c.UserAgent = agent.String
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
