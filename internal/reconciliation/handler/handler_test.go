package handler

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"heirloom/internal/platform/logger"
	"heirloom/internal/reconciliation"
	"heirloom/internal/reconciliation/handler/mocks"
	id "heirloom/pkg/domain"
	"heirloom/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ReconciliationHandlerSuite struct {
	suite.Suite
	router *chi.Mux
	svc    *mocks.MockService
}

func TestReconciliationHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationHandlerSuite))
}

func (s *ReconciliationHandlerSuite) SetupTest() {
	s.svc = mocks.NewMockService(gomock.NewController(s.T()))
	s.router = chi.NewRouter()
	New(s.svc, logger.Discard()).RegisterAdmin(s.router)
}

func (s *ReconciliationHandlerSuite) TestRun() {
	s.Run("empty body scans everything", func() {
		s.svc.EXPECT().Run(gomock.Any(), reconciliation.Scope{}).
			Return(reconciliation.Summary{Scanned: 4, Fixed: 1, AlreadyLinked: 2, NoMatch: 1}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/reconciliation", nil))
		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeJSON[reconciliation.Summary](s.T(), rr)
		s.Equal(4, body.Scanned)
		s.Equal(1, body.Fixed)
	})

	s.Run("owner scope", func() {
		owner := id.NewPersonID()
		s.svc.EXPECT().Run(gomock.Any(), reconciliation.Scope{OwnerPersonID: &owner}).
			Return(reconciliation.Summary{}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/reconciliation",
			RunRequest{OwnerPersonID: owner.String()}))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("invalid owner", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/reconciliation",
			RunRequest{OwnerPersonID: "nope"}))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}
