package borrow

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ganjargaul/koperasiliterasi/app/echoServer/jwtx"
	"github.com/ganjargaul/koperasiliterasi/model"
	borrowrepo "github.com/ganjargaul/koperasiliterasi/repository/borrow"
	borrowsvc "github.com/ganjargaul/koperasiliterasi/service/borrow"
	"github.com/ganjargaul/koperasiliterasi/service/tracking"
)

type Controller struct {
	Svc borrowsvc.Service
	Trk tracking.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/borrows
func (h *Controller) Create(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	var req CreateBorrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  echo.Map{"book_id": "required"},
		})
	}

	out, err := h.Svc.Create(c.Request().Context(), borrowsvc.CreateReq{
		RequesterID: uid,
		BookID:      req.BookID,
		CopyID:      req.CopyID,
		OwnerID:     req.OwnerID,
		Location:    req.Location,
		WaitingList: req.WaitingList,
	})
	if err != nil {
		return h.mapError(c, "borrow create", err)
	}
	return c.JSON(http.StatusCreated, out)
}

// PUT /v1/borrows/:id/action
func (h *Controller) Act(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ActionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": echo.Map{"action": "approve, reject or return"}})
	}

	out, err := h.Svc.Act(c.Request().Context(), uid, jwtx.Role(c), id, borrowsvc.Action(req.Action))
	if err != nil {
		return h.mapError(c, "borrow action", err)
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/borrows — admins see everything, members their own requests.
func (h *Controller) List(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	var f borrowrepo.ListFilter
	if jwtx.IsAdmin(c) {
		if rid := c.QueryParam("requester_id"); rid != "" {
			id, err := strconv.ParseInt(rid, 10, 64)
			if err != nil || id <= 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid requester_id"})
			}
			f.RequesterID = &id
		}
	} else {
		f.RequesterID = &uid
	}
	if s := c.QueryParam("status"); s != "" {
		st := model.BorrowStatus(s)
		switch st {
		case model.BorrowPending, model.BorrowApproved, model.BorrowRejected, model.BorrowReturned:
			f.Status = &st
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid status"})
		}
	}

	rows, err := h.Svc.List(c.Request().Context(), f)
	if err != nil {
		h.Log.Error("borrow list error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrows/:id
func (h *Controller) Detail(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	out, err := h.Svc.Detail(c.Request().Context(), id)
	if err != nil {
		return h.mapError(c, "borrow detail", err)
	}
	// Only the two parties (and admins) may see a borrow.
	role := jwtx.Role(c)
	if out.RequesterID != uid && !out.Lender.CanAct(uid, role) && role != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/borrows/requests — the lender inbox: active requests against
// my copies. Admins get the shared stock's inbox with ?stock=true.
// ?count_only=true returns just the pending counter for badges.
func (h *Controller) Requests(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	lender := model.PeerParty(uid)
	if c.QueryParam("stock") == "true" {
		if !jwtx.IsAdmin(c) {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		}
		lender = model.AdminStockParty()
	}

	if c.QueryParam("count_only") == "true" {
		n, err := h.Svc.PendingCount(c.Request().Context(), lender)
		if err != nil {
			h.Log.Error("pending count error", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
		return c.JSON(http.StatusOK, echo.Map{"count": n})
	}

	rows, err := h.Svc.LenderInbox(c.Request().Context(), lender)
	if err != nil {
		h.Log.Error("lender inbox error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrows/tracking — overdue and due-soon report. Members see
// their own borrows; admins see everyone's or one requester's.
func (h *Controller) Tracking(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	var requesterID *int64
	if jwtx.IsAdmin(c) {
		if rid := c.QueryParam("requester_id"); rid != "" {
			id, err := strconv.ParseInt(rid, 10, 64)
			if err != nil || id <= 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid requester_id"})
			}
			requesterID = &id
		}
	} else {
		requesterID = &uid
	}

	report, err := h.Trk.Report(c.Request().Context(), requesterID)
	if err != nil {
		h.Log.Error("tracking error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Controller) mapError(c echo.Context, op string, err error) error {
	msg := borrowsvc.Message(err)
	switch borrowsvc.Code(err) {
	case borrowsvc.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": "borrow not found"})
	case borrowsvc.ErrNoCopy:
		if msg == "" {
			msg = "no copy available"
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msg})
	case borrowsvc.ErrOwnCopy:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "cannot borrow your own copy"})
	case borrowsvc.ErrInvalidAction:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid action"})
	case borrowsvc.ErrNotLender:
		return c.JSON(http.StatusForbidden, echo.Map{"message": "only the lender may do that"})
	case borrowsvc.ErrOwnerMismatch, borrowsvc.ErrLocationMismatch,
		borrowsvc.ErrCopyUnavailable, borrowsvc.ErrDuplicateRequest,
		borrowsvc.ErrTitleOnLoan, borrowsvc.ErrAlreadyQueued,
		borrowsvc.ErrNotPending, borrowsvc.ErrNotApproved:
		if msg == "" {
			msg = "request cannot be fulfilled"
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msg})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
