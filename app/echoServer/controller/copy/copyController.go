package copy

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ganjargaul/koperasiliterasi/app/echoServer/jwtx"
	copysvc "github.com/ganjargaul/koperasiliterasi/service/copy"
)

type Controller struct {
	Svc copysvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/copies
func (h *Controller) Create(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	var req AddCopyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  echo.Map{"book_id": "required", "location": "required"},
		})
	}

	cp, err := h.Svc.Add(c.Request().Context(), uid, copysvc.AddCopyReq{
		BookID:    req.BookID,
		Location:  req.Location,
		Condition: req.Condition,
		Notes:     req.Notes,
	})
	if err != nil {
		switch copysvc.Code(err) {
		case copysvc.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		case copysvc.ErrAlreadyOwned:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "book already in collection"})
		case copysvc.ErrBadInput:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad input"})
		default:
			h.Log.Error("copy create error", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, cp)
}

// GET /v1/copies — the caller's own collection.
func (h *Controller) List(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	availableOnly := c.QueryParam("available_only") == "true"

	rows, err := h.Svc.ListByOwner(c.Request().Context(), uid, availableOnly)
	if err != nil {
		h.Log.Error("copy list error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// PUT /v1/copies/:id
func (h *Controller) Update(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req UpdateCopyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}

	cp, err := h.Svc.Update(c.Request().Context(), uid, jwtx.Role(c), id, copysvc.CopyPatch{
		Location:    req.Location,
		Condition:   req.Condition,
		Notes:       req.Notes,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		switch copysvc.Code(err) {
		case copysvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "copy not found"})
		case copysvc.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case copysvc.ErrActiveBorrow:
			return c.JSON(http.StatusConflict, echo.Map{"message": "copy has an active borrow"})
		case copysvc.ErrBadInput:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad input"})
		default:
			h.Log.Error("copy update error", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, cp)
}

// DELETE /v1/copies/:id
func (h *Controller) Delete(c echo.Context) error {
	uid, err := jwtx.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	if err := h.Svc.Delete(c.Request().Context(), uid, jwtx.Role(c), id); err != nil {
		switch copysvc.Code(err) {
		case copysvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "copy not found"})
		case copysvc.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case copysvc.ErrActiveBorrow:
			return c.JSON(http.StatusConflict, echo.Map{"message": "copy has an active borrow"})
		default:
			h.Log.Error("copy delete error", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
