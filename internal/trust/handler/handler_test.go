package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/contacts/store/contact"
	"heirloom/internal/platform/logger"
	"heirloom/internal/trust/service"
	"heirloom/internal/trust/store"
	id "heirloom/pkg/domain"
	"heirloom/pkg/testutil"
)

func TestHandleTrustors(t *testing.T) {
	contacts := contact.NewInMemory()
	index := service.New(contacts, store.NewInMemoryCache(time.Minute))
	router := chi.NewRouter()
	New(index, logger.Discard()).Register(router)

	me := id.NewPersonID()
	someoneElse := id.NewPersonID()
	owner := id.NewPersonID()
	seed := func(linked id.PersonID, role contactmodels.Role) {
		require.NoError(t, contacts.Create(t.Context(), &contactmodels.Contact{
			ID:               id.NewContactID(),
			OwnerPersonID:    owner,
			TargetEmail:      "eli@example.com",
			Phone:            "+1555",
			ContactType:      contactmodels.ContactTypeTrusted,
			Role:             role,
			LinkedPersonID:   &linked,
			InvitationStatus: contactmodels.InvitationRegistered,
		}))
	}
	seed(me, contactmodels.RoleExecutor)
	seed(someoneElse, contactmodels.RoleGuardian)

	t.Run("lists relationships linked to the requester", func(t *testing.T) {
		req := testutil.AsRequester(testutil.NewJSONRequest(t, http.MethodGet, "/trust/trustors", nil), me, "eli@example.com")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.DecodeJSON[TrustorsResponse](t, rr)
		require.Len(t, body.Trustors, 1)
		assert.Equal(t, "executor", body.Trustors[0].Role)
		assert.Equal(t, owner.String(), body.Trustors[0].OwnerPersonID)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/trust/trustors", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
