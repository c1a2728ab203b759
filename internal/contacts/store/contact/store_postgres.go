package contact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/contacts/models"
	"heirloom/internal/platform/database"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// mergedContacts is the read view over both physical shapes. Legacy rows
// are hidden as soon as a current row with the same id exists.
const mergedContacts = `
	SELECT c.id, c.owner_person_id, c.target_email, c.full_name, c.phone,
		r.contact_type, r.role, r.is_primary, c.linked_person_id,
		r.invitation_status, c.created_at, c.updated_at, 'current' AS source
	FROM contacts c
	JOIN contact_relationships r ON r.contact_id = c.id
	UNION ALL
	SELECT l.id, l.owner_person_id, LOWER(TRIM(l.email)), l.name, l.phone,
		CASE WHEN l.is_trusted THEN 'trusted' ELSE 'regular' END,
		CASE WHEN l.is_trusted THEN l.trust_role END,
		l.is_trusted AND l.is_primary, l.linked_person_id,
		l.invite_status, l.created_at, l.created_at, 'legacy' AS source
	FROM legacy_contacts l
	WHERE NOT EXISTS (SELECT 1 FROM contacts c WHERE c.id = l.id)
`

const mergedColumns = `id, owner_person_id, target_email, full_name, phone, contact_type, role,
	is_primary, linked_person_id, invitation_status, created_at, updated_at, source`

// PostgresStore reads the merged view and writes the current shape.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Contact) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		const insertContact = `
			INSERT INTO contacts (id, owner_person_id, target_email, full_name, phone, linked_person_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		q := txcontext.Use(ctx, s.db)
		if _, err := q.ExecContext(ctx, insertContact,
			uuid.UUID(c.ID), uuid.UUID(c.OwnerPersonID), c.TargetEmail, c.FullName,
			nullString(c.Phone), nullPersonID(c.LinkedPersonID), c.CreatedAt, c.UpdatedAt,
		); err != nil {
			if database.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert contact: %w", err)
		}
		const insertRelationship = `
			INSERT INTO contact_relationships (contact_id, owner_person_id, contact_type, role, is_primary, invitation_status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := q.ExecContext(ctx, insertRelationship,
			uuid.UUID(c.ID), uuid.UUID(c.OwnerPersonID), string(c.ContactType),
			nullString(string(c.Role)), c.IsPrimary, string(c.InvitationStatus),
		); err != nil {
			return fmt.Errorf("insert contact relationship: %w", err)
		}
		return nil
	})
}

// Update upserts the current shape, which also writes a legacy-only record
// forward.
func (s *PostgresStore) Update(ctx context.Context, c *models.Contact) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		return s.upsertCurrent(ctx, c)
	})
}

func (s *PostgresStore) upsertCurrent(ctx context.Context, c *models.Contact) error {
	const upsertContact = `
		INSERT INTO contacts (id, owner_person_id, target_email, full_name, phone, linked_person_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			target_email = EXCLUDED.target_email,
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			linked_person_id = COALESCE(contacts.linked_person_id, EXCLUDED.linked_person_id),
			updated_at = EXCLUDED.updated_at
	`
	q := txcontext.Use(ctx, s.db)
	if _, err := q.ExecContext(ctx, upsertContact,
		uuid.UUID(c.ID), uuid.UUID(c.OwnerPersonID), c.TargetEmail, c.FullName,
		nullString(c.Phone), nullPersonID(c.LinkedPersonID), c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	const upsertRelationship = `
		INSERT INTO contact_relationships (contact_id, owner_person_id, contact_type, role, is_primary, invitation_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contact_id) DO UPDATE SET
			contact_type = EXCLUDED.contact_type,
			role = EXCLUDED.role,
			is_primary = EXCLUDED.is_primary,
			invitation_status = EXCLUDED.invitation_status
	`
	if _, err := q.ExecContext(ctx, upsertRelationship,
		uuid.UUID(c.ID), uuid.UUID(c.OwnerPersonID), string(c.ContactType),
		nullString(string(c.Role)), c.IsPrimary, string(c.InvitationStatus),
	); err != nil {
		return fmt.Errorf("upsert contact relationship: %w", err)
	}
	return nil
}

// Delete removes the record from both shapes. The relationship row goes with
// the contact row through ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, contactID id.ContactID) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		q := txcontext.Use(ctx, s.db)
		res, err := q.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, uuid.UUID(contactID))
		if err != nil {
			return fmt.Errorf("delete contact: %w", err)
		}
		current, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete contact rows: %w", err)
		}
		res, err = q.ExecContext(ctx, `DELETE FROM legacy_contacts WHERE id = $1`, uuid.UUID(contactID))
		if err != nil {
			return fmt.Errorf("delete legacy contact: %w", err)
		}
		legacy, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete legacy contact rows: %w", err)
		}
		if current+legacy == 0 {
			return sentinel.ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error) {
	query := `SELECT ` + mergedColumns + ` FROM (` + mergedContacts + `) m WHERE id = $1`
	records, err := s.query(ctx, query, uuid.UUID(contactID))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return records[0], nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.PersonID) ([]*models.Contact, error) {
	query := `SELECT ` + mergedColumns + ` FROM (` + mergedContacts + `) m WHERE owner_person_id = $1 ORDER BY id`
	return s.query(ctx, query, uuid.UUID(owner))
}

// ListTrustedByEmail expects a normalized address.
func (s *PostgresStore) ListTrustedByEmail(ctx context.Context, address string) ([]*models.Contact, error) {
	query := `SELECT ` + mergedColumns + ` FROM (` + mergedContacts + `) m
		WHERE target_email = $1 AND contact_type = 'trusted' ORDER BY id`
	return s.query(ctx, query, address)
}

// ListPage is keyset pagination over the merged view ordered by id.
func (s *PostgresStore) ListPage(ctx context.Context, owner *id.PersonID, after id.ContactID, limit int) ([]*models.Contact, error) {
	query := `SELECT ` + mergedColumns + ` FROM (` + mergedContacts + `) m
		WHERE ($1::uuid IS NULL OR owner_person_id = $1) AND id > $2
		ORDER BY id LIMIT $3`
	return s.query(ctx, query, nullPersonID(owner), uuid.UUID(after), limit)
}

// LinkIdentity only fills an empty link, so a concurrent Create or another
// job run cannot overwrite an existing one. A legacy-only record is written
// forward first.
func (s *PostgresStore) LinkIdentity(ctx context.Context, contactID id.ContactID, personID id.PersonID, now time.Time) (bool, error) {
	changed := false
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.FindByID(ctx, contactID)
		if err != nil {
			return err
		}
		if existing.Source == models.SourceLegacy {
			if err := s.upsertCurrent(ctx, existing); err != nil {
				return err
			}
		}

		q := txcontext.Use(ctx, s.db)
		const link = `
			UPDATE contacts SET linked_person_id = $2, updated_at = $3
			WHERE id = $1 AND linked_person_id IS NULL
		`
		res, err := q.ExecContext(ctx, link, uuid.UUID(contactID), uuid.UUID(personID), now)
		if err != nil {
			return fmt.Errorf("link contact: %w", err)
		}
		linked, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("link contact rows: %w", err)
		}

		const upgrade = `
			UPDATE contact_relationships SET invitation_status = 'registered'
			WHERE contact_id = $1 AND contact_type = 'trusted' AND invitation_status = 'pending'
			AND EXISTS (SELECT 1 FROM contacts WHERE id = $1 AND linked_person_id IS NOT NULL)
		`
		res, err = q.ExecContext(ctx, upgrade, uuid.UUID(contactID))
		if err != nil {
			return fmt.Errorf("upgrade invitation: %w", err)
		}
		upgraded, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("upgrade invitation rows: %w", err)
		}
		changed = linked > 0 || upgraded > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}

func scanContact(rows *sql.Rows) (*models.Contact, error) {
	var (
		c           models.Contact
		rawID       uuid.UUID
		rawOwner    uuid.UUID
		phone       sql.NullString
		contactType string
		role        sql.NullString
		linked      uuid.NullUUID
		status      string
		source      string
	)
	if err := rows.Scan(&rawID, &rawOwner, &c.TargetEmail, &c.FullName, &phone, &contactType, &role,
		&c.IsPrimary, &linked, &status, &c.CreatedAt, &c.UpdatedAt, &source); err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	c.ID = id.ContactID(rawID)
	c.OwnerPersonID = id.PersonID(rawOwner)
	c.Phone = phone.String
	c.ContactType = models.ContactType(contactType)
	c.Role = models.Role(role.String)
	if linked.Valid {
		personID := id.PersonID(linked.UUID)
		c.LinkedPersonID = &personID
	}
	c.Source = models.Source(source)
	if c.Source == models.SourceLegacy {
		c.InvitationStatus = legacyInvitationStatus(status)
	} else {
		c.InvitationStatus = models.InvitationStatus(status)
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullPersonID(p *id.PersonID) uuid.NullUUID {
	if p == nil || p.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*p), Valid: true}
}
