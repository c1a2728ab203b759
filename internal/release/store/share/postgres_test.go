package share

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

var columns = []string{"id", "content_id", "owner_person_id", "recipient_identity", "released_at", "viewed_at", "is_legacy_release"}

func TestPostgresCreateIfAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)
	share := models.NewShare(models.Pair{ContentID: id.NewContentID(), Recipient: "lu@example.com"}, id.NewPersonID(), time.Now())

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (content_id, recipient_identity) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := store.CreateIfAbsent(context.Background(), share)
	require.NoError(t, err)
	require.True(t, created)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (content_id, recipient_identity) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = store.CreateIfAbsent(context.Background(), share)
	require.NoError(t, err)
	require.False(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExistingPairs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	contentID := id.NewContentID()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE content_id = ANY($1::uuid[])")).
		WillReturnRows(sqlmock.NewRows([]string{"content_id", "recipient_identity"}).
			AddRow(contentID.String(), "mo@example.com"))

	pairs, err := NewPostgres(db).ExistingPairs(context.Background(), []id.ContentID{contentID})
	require.NoError(t, err)
	require.Contains(t, pairs, models.Pair{ContentID: contentID, Recipient: "mo@example.com"})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkViewed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)
	shareID := id.NewShareID()
	now := time.Now()

	t.Run("returns the updated row", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SET viewed_at = COALESCE(viewed_at, $3)")).
			WithArgs(shareID.String(), "ny@example.com", now).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				shareID.String(), id.NewContentID().String(), id.NewPersonID().String(),
				"ny@example.com", now.Add(-time.Hour), now, true))
		got, err := store.MarkViewed(context.Background(), shareID, "ny@example.com", now)
		require.NoError(t, err)
		require.NotNil(t, got.ViewedAt)
	})

	t.Run("no row maps to not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SET viewed_at = COALESCE(viewed_at, $3)")).
			WillReturnError(sql.ErrNoRows)
		_, err := store.MarkViewed(context.Background(), shareID, "eve@example.com", now)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
