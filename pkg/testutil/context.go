package testutil

import (
	"net/http"

	id "heirloom/pkg/domain"
	"heirloom/pkg/requestcontext"
)

// AsRequester simulates what RequireAuth does for an authenticated request.
func AsRequester(req *http.Request, personID id.PersonID, email string) *http.Request {
	ctx := requestcontext.WithRequester(req.Context(), personID, email)
	return req.WithContext(ctx)
}
