package borrow

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/ganjargaul/koperasiliterasi/model"
	borrowrepo "github.com/ganjargaul/koperasiliterasi/repository/borrow"
	borrowsvc "github.com/ganjargaul/koperasiliterasi/service/borrow"
)

// stubErr carries a borrow error code the way the service's own coded
// errors do, so Code(err) resolves it.
type stubErr struct {
	code borrowsvc.ErrCode
}

func (e stubErr) Error() string           { return string(e.code) }
func (e stubErr) Code() borrowsvc.ErrCode { return e.code }

type stubSvc struct {
	err error
}

func (s *stubSvc) Create(ctx context.Context, req borrowsvc.CreateReq) (*model.BorrowDetail, error) {
	return nil, s.err
}
func (s *stubSvc) Act(ctx context.Context, actorID int64, actorRole model.Role, borrowID int64, action borrowsvc.Action) (*model.BorrowDetail, error) {
	return nil, s.err
}
func (s *stubSvc) Detail(ctx context.Context, id int64) (*model.BorrowDetail, error) {
	return nil, s.err
}
func (s *stubSvc) List(ctx context.Context, f borrowrepo.ListFilter) ([]model.BorrowDetail, error) {
	return nil, s.err
}
func (s *stubSvc) LenderInbox(ctx context.Context, lender model.Party) ([]model.BorrowDetail, error) {
	return nil, s.err
}
func (s *stubSvc) PendingCount(ctx context.Context, lender model.Party) (int, error) {
	return 0, s.err
}

func callAct(t *testing.T, svcErr error) *httptest.ResponseRecorder {
	t.Helper()
	h := &Controller{
		Svc: &stubSvc{err: svcErr},
		V:   validator.New(),
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/v1/borrows/9/action", strings.NewReader(`{"action":"approve"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/borrows/:id/action")
	c.SetParamNames("id")
	c.SetParamValues("9")
	c.Set("user_id", int64(5))
	c.Set("role", "USER")

	require.NoError(t, h.Act(c))
	return rec
}

// Failed state preconditions and unfillable requests are client errors,
// not conflicts: the API answers 400 for all of them.
func TestAct_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code borrowsvc.ErrCode
		want int
	}{
		{borrowsvc.ErrNotPending, http.StatusBadRequest},
		{borrowsvc.ErrNotApproved, http.StatusBadRequest},
		{borrowsvc.ErrCopyUnavailable, http.StatusBadRequest},
		{borrowsvc.ErrInvalidAction, http.StatusBadRequest},
		{borrowsvc.ErrNotLender, http.StatusForbidden},
		{borrowsvc.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := callAct(t, stubErr{code: tc.code})
		require.Equal(t, tc.want, rec.Code, "code %s", tc.code)
	}
}

func TestCreate_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code borrowsvc.ErrCode
		want int
	}{
		{borrowsvc.ErrNoCopy, http.StatusBadRequest},
		{borrowsvc.ErrOwnCopy, http.StatusBadRequest},
		{borrowsvc.ErrTitleOnLoan, http.StatusBadRequest},
		{borrowsvc.ErrAlreadyQueued, http.StatusBadRequest},
		{borrowsvc.ErrDuplicateRequest, http.StatusBadRequest},
		{borrowsvc.ErrLocationMismatch, http.StatusBadRequest},
	}
	for _, tc := range cases {
		h := &Controller{
			Svc: &stubSvc{err: stubErr{code: tc.code}},
			V:   validator.New(),
			Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		}

		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/v1/borrows", strings.NewReader(`{"book_id":1}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("user_id", int64(5))
		c.Set("role", "USER")

		require.NoError(t, h.Create(c))
		require.Equal(t, tc.want, rec.Code, "code %s", tc.code)
	}
}
