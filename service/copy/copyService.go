package copysvc

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ganjargaul/koperasiliterasi/model"
	bookrepo "github.com/ganjargaul/koperasiliterasi/repository/book"
	copyrepo "github.com/ganjargaul/koperasiliterasi/repository/copy"
)

type ErrCode string

const (
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrBookNotFound ErrCode = "BOOK_NOT_FOUND"
	ErrNotOwner     ErrCode = "NOT_OWNER"
	ErrBadInput     ErrCode = "BAD_INPUT"
	ErrAlreadyOwned ErrCode = "ALREADY_OWNED"
	ErrActiveBorrow ErrCode = "ACTIVE_BORROW"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

type AddCopyReq struct {
	BookID    int64
	Location  string
	Condition *string
	Notes     *string
}

// CopyPatch carries fields to change; nil means keep.
type CopyPatch struct {
	Location    *string
	Condition   *string
	Notes       *string
	IsAvailable *bool
}

type CopyWithBook = copyrepo.CopyWithBook

type Service interface {
	Add(ctx context.Context, ownerID int64, req AddCopyReq) (*model.Copy, error)
	ListByOwner(ctx context.Context, ownerID int64, availableOnly bool) ([]CopyWithBook, error)
	Update(ctx context.Context, actorID int64, actorRole model.Role, copyID int64, patch CopyPatch) (*model.Copy, error)
	Delete(ctx context.Context, actorID int64, actorRole model.Role, copyID int64) error
}

type service struct {
	r  copyrepo.Repo
	br bookrepo.Repo
}

func New(r copyrepo.Repo, br bookrepo.Repo) Service { return &service{r: r, br: br} }

func (s *service) Add(ctx context.Context, ownerID int64, req AddCopyReq) (*model.Copy, error) {
	if req.BookID <= 0 || strings.TrimSpace(req.Location) == "" {
		return nil, makeErr(ErrBadInput)
	}
	ok, err := s.br.Exists(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, makeErr(ErrBookNotFound)
	}

	c := &model.Copy{
		BookID:      req.BookID,
		Owner:       model.PeerParty(ownerID),
		Location:    strings.TrimSpace(req.Location),
		Condition:   req.Condition,
		Notes:       req.Notes,
		IsAvailable: true,
	}
	if err := s.r.Insert(ctx, c); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, makeErr(ErrAlreadyOwned)
		}
		return nil, err
	}
	return c, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID int64, availableOnly bool) ([]CopyWithBook, error) {
	return s.r.ListByOwner(ctx, ownerID, availableOnly)
}

func (s *service) Update(ctx context.Context, actorID int64, actorRole model.Role, copyID int64, patch CopyPatch) (*model.Copy, error) {
	c, err := s.owned(ctx, actorID, actorRole, copyID)
	if err != nil {
		return nil, err
	}

	if patch.Location != nil {
		if strings.TrimSpace(*patch.Location) == "" {
			return nil, makeErr(ErrBadInput)
		}
		c.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Condition != nil {
		c.Condition = patch.Condition
	}
	if patch.Notes != nil {
		c.Notes = patch.Notes
	}
	if patch.IsAvailable != nil {
		// Owners may only pull a copy off the shelf by hand, never force
		// one back while it is out on loan.
		if *patch.IsAvailable && !c.IsAvailable {
			busy, err := s.r.HasActiveBorrow(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			if busy {
				return nil, makeErr(ErrActiveBorrow)
			}
		}
		c.IsAvailable = *patch.IsAvailable
	}

	if err := s.r.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) Delete(ctx context.Context, actorID int64, actorRole model.Role, copyID int64) error {
	c, err := s.owned(ctx, actorID, actorRole, copyID)
	if err != nil {
		return err
	}
	busy, err := s.r.HasActiveBorrow(ctx, c.ID)
	if err != nil {
		return err
	}
	if busy {
		return makeErr(ErrActiveBorrow)
	}
	return s.r.Delete(ctx, c.ID)
}

func (s *service) owned(ctx context.Context, actorID int64, actorRole model.Role, copyID int64) (*model.Copy, error) {
	c, err := s.r.ByID(ctx, copyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if !c.Owner.CanAct(actorID, actorRole) {
		return nil, makeErr(ErrNotOwner)
	}
	return c, nil
}
