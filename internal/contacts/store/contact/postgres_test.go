package contact

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

var contactColumns = []string{
	"id", "owner_person_id", "target_email", "full_name", "phone", "contact_type", "role",
	"is_primary", "linked_person_id", "invitation_status", "created_at", "updated_at", "source",
}

func TestPostgresFindByIDMapsLegacyRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	contactID := id.NewContactID()
	owner := id.NewPersonID()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(contactID.String()).
		WillReturnRows(sqlmock.NewRows(contactColumns).AddRow(
			contactID.String(), owner.String(), "gil@example.com", "Gil", "+1555",
			"trusted", "guardian", true, nil, "accepted", now, now, "legacy",
		))

	got, err := store.FindByID(context.Background(), contactID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceLegacy, got.Source)
	assert.Equal(t, models.RoleGuardian, got.Role)
	assert.Equal(t, models.InvitationRegistered, got.InvitationStatus)
	assert.Nil(t, got.LinkedPersonID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(contactColumns))
	_, err = NewPostgres(db).FindByID(context.Background(), id.NewContactID())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresCreateWritesBothTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	c := &models.Contact{
		ID: id.NewContactID(), OwnerPersonID: id.NewPersonID(), TargetEmail: "hal@example.com",
		FullName: "Hal", ContactType: models.ContactTypeRegular,
		InvitationStatus: models.InvitationPending, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contacts")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contact_relationships")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgres(db).Create(context.Background(), c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	t.Run("legacy-only record", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contacts")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM legacy_contacts")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		require.NoError(t, store.Delete(context.Background(), id.NewContactID()))
	})

	t.Run("missing record rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contacts")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM legacy_contacts")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
		require.ErrorIs(t, store.Delete(context.Background(), id.NewContactID()), sentinel.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLinkIdentityCurrentRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	contactID := id.NewContactID()
	personID := id.NewPersonID()
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(contactColumns).AddRow(
			contactID.String(), id.NewPersonID().String(), "ida@example.com", "Ida", "+1555",
			"trusted", "executor", false, nil, "pending", now, now, "current",
		))
	mock.ExpectExec(regexp.QuoteMeta("linked_person_id IS NULL")).
		WithArgs(contactID.String(), personID.String(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET invitation_status = 'registered'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := NewPostgres(db).LinkIdentity(context.Background(), contactID, personID, now)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}
