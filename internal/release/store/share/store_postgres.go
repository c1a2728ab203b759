package share

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

const shareColumns = `id, content_id, owner_person_id, recipient_identity, released_at, viewed_at, is_legacy_release`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfAbsent leans on uq_release_share_pair so concurrent or repeated
// release runs write each pair once.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, share *models.Share) (bool, error) {
	const query = `
		INSERT INTO release_shares (` + shareColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (content_id, recipient_identity) DO NOTHING
	`
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(share.ID), uuid.UUID(share.ContentID), uuid.UUID(share.OwnerPersonID),
		share.RecipientIdentity, share.ReleasedAt, nullTime(share.ViewedAt), share.IsLegacyRelease,
	)
	if err != nil {
		return false, fmt.Errorf("insert release share: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert release share: %w", err)
	}
	return rows == 1, nil
}

func (s *PostgresStore) ExistingPairs(ctx context.Context, contentIDs []id.ContentID) (map[models.Pair]struct{}, error) {
	out := make(map[models.Pair]struct{})
	if len(contentIDs) == 0 {
		return out, nil
	}
	raw := make([]string, len(contentIDs))
	for i, c := range contentIDs {
		raw[i] = c.String()
	}
	const query = `SELECT content_id, recipient_identity FROM release_shares WHERE content_id = ANY($1::uuid[])`
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("query release shares: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			contentID uuid.UUID
			recipient string
		)
		if err := rows.Scan(&contentID, &recipient); err != nil {
			return nil, fmt.Errorf("scan release share: %w", err)
		}
		out[models.Pair{ContentID: id.ContentID(contentID), Recipient: recipient}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate release shares: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, shareID id.ShareID) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM release_shares WHERE id = $1`
	share, err := scanShare(txcontext.Use(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(shareID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find release share: %w", err)
	}
	return share, nil
}

// MarkViewed only writes viewed_at while it is NULL; a second view returns
// the row with its original timestamp.
func (s *PostgresStore) MarkViewed(ctx context.Context, shareID id.ShareID, recipient string, now time.Time) (*models.Share, error) {
	query := `
		UPDATE release_shares SET viewed_at = COALESCE(viewed_at, $3)
		WHERE id = $1 AND recipient_identity = $2
		RETURNING ` + shareColumns
	share, err := scanShare(txcontext.Use(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(shareID), recipient, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("mark release share viewed: %w", err)
	}
	return share, nil
}

func (s *PostgresStore) ListForRecipient(ctx context.Context, recipient string) ([]*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM release_shares
		WHERE recipient_identity = $1 ORDER BY released_at DESC, id`
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, query, recipient)
	if err != nil {
		return nil, fmt.Errorf("list release shares: %w", err)
	}
	defer rows.Close()
	var out []*models.Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release share: %w", err)
		}
		out = append(out, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate release shares: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner) (*models.Share, error) {
	var (
		share                     models.Share
		rawID, rawContent, rawOwn uuid.UUID
		viewed                    sql.NullTime
	)
	if err := row.Scan(&rawID, &rawContent, &rawOwn, &share.RecipientIdentity,
		&share.ReleasedAt, &viewed, &share.IsLegacyRelease); err != nil {
		return nil, err
	}
	share.ID = id.ShareID(rawID)
	share.ContentID = id.ContentID(rawContent)
	share.OwnerPersonID = id.PersonID(rawOwn)
	if viewed.Valid {
		v := viewed.Time
		share.ViewedAt = &v
	}
	return &share, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
