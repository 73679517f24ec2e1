package borrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganjargaul/koperasiliterasi/model"
	borrowrepo "github.com/ganjargaul/koperasiliterasi/repository/borrow"
)

// errors used by controllers

type ErrCode string

const (
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrNoCopy           ErrCode = "NO_COPY"
	ErrOwnCopy          ErrCode = "OWN_COPY"
	ErrOwnerMismatch    ErrCode = "OWNER_MISMATCH"
	ErrLocationMismatch ErrCode = "LOCATION_MISMATCH"
	ErrCopyUnavailable  ErrCode = "COPY_UNAVAILABLE"
	ErrDuplicateRequest ErrCode = "DUPLICATE_REQUEST"
	ErrTitleOnLoan      ErrCode = "TITLE_ON_LOAN"
	ErrAlreadyQueued    ErrCode = "ALREADY_QUEUED"
	ErrNotPending       ErrCode = "NOT_PENDING"
	ErrNotApproved      ErrCode = "NOT_APPROVED"
	ErrNotLender        ErrCode = "NOT_LENDER"
	ErrInvalidAction    ErrCode = "INVALID_ACTION"
)

type codedError struct {
	code ErrCode
	msg  string
}

func (e codedError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return string(e.code)
}
func (e codedError) Code() ErrCode { return e.code }

func makeErr(c ErrCode) error { return codedError{code: c} }

func makeErrf(c ErrCode, format string, args ...any) error {
	return codedError{code: c, msg: fmt.Sprintf(format, args...)}
}

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Message returns the human-readable text attached to a coded error.
func Message(err error) string {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return ""
}

// loanDays is how long an approved borrow runs before it is due.
const loanDays = 7

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReturn  Action = "return"
)

// CreateReq is an intake request. CopyID+OwnerID pin an explicit copy;
// otherwise a copy is resolved from the book's candidates. WaitingList
// queues against a copy that is currently out.
type CreateReq struct {
	RequesterID int64
	BookID      int64
	CopyID      *int64
	OwnerID     *int64
	Location    *string
	WaitingList bool
}

type Service interface {
	Create(ctx context.Context, req CreateReq) (*model.BorrowDetail, error)
	Act(ctx context.Context, actorID int64, actorRole model.Role, borrowID int64, action Action) (*model.BorrowDetail, error)
	Detail(ctx context.Context, id int64) (*model.BorrowDetail, error)
	List(ctx context.Context, f borrowrepo.ListFilter) ([]model.BorrowDetail, error)
	LenderInbox(ctx context.Context, lender model.Party) ([]model.BorrowDetail, error)
	PendingCount(ctx context.Context, lender model.Party) (int, error)
}

type service struct {
	r   borrowrepo.Repo
	now func() time.Time
}

func New(r borrowrepo.Repo) Service {
	return &service{r: r, now: time.Now}
}

// Create validates and records a new PENDING borrow. The whole
// resolve-check-insert sequence runs in one transaction with the copy
// row locked, so two racing requests serialize.
func (s *service) Create(ctx context.Context, req CreateReq) (*model.BorrowDetail, error) {
	if req.RequesterID <= 0 || req.BookID <= 0 {
		return nil, makeErr(ErrNoCopy)
	}

	var borrowID int64
	err := s.r.RunTx(ctx, func(tx *sql.Tx) error {
		target, err := s.resolveCopy(ctx, tx, req)
		if err != nil {
			return err
		}

		if !target.Owner.IsAdminStock() && target.Owner.UserID == req.RequesterID {
			return makeErr(ErrOwnCopy)
		}

		if req.WaitingList {
			queued, err := s.r.HasPendingForCopy(ctx, tx, req.RequesterID, target.ID)
			if err != nil {
				return err
			}
			if queued {
				return makeErr(ErrAlreadyQueued)
			}
		} else {
			dup, err := s.r.HasActiveForCopy(ctx, tx, req.RequesterID, target.ID)
			if err != nil {
				return err
			}
			if dup {
				return makeErr(ErrDuplicateRequest)
			}
			// One active loan per title, across all copies.
			sameTitle, err := s.r.HasActiveForBook(ctx, tx, req.RequesterID, req.BookID)
			if err != nil {
				return err
			}
			if sameTitle {
				return makeErr(ErrTitleOnLoan)
			}
		}

		b := &model.Borrow{
			RequesterID: req.RequesterID,
			BookID:      req.BookID,
			CopyID:      &target.ID,
			Lender:      target.Owner,
			Status:      model.BorrowPending,
		}
		if err := s.r.Insert(ctx, tx, b); err != nil {
			return err
		}
		borrowID = b.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.r.Detail(ctx, borrowID)
}

func (s *service) resolveCopy(ctx context.Context, tx *sql.Tx, req CreateReq) (*model.Copy, error) {
	if req.CopyID != nil && req.OwnerID != nil {
		c, err := s.r.LockCopy(ctx, tx, *req.CopyID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, makeErr(ErrNotFound)
			}
			return nil, err
		}
		if err := checkExplicitCopy(c, *req.OwnerID, req.Location, req.WaitingList); err != nil {
			return nil, err
		}
		return c, nil
	}

	candidates, err := s.r.LockCandidates(ctx, tx, req.BookID, req.RequesterID, req.Location, !req.WaitingList)
	if err != nil {
		return nil, err
	}
	return pickCandidate(candidates, req.OwnerID, req.Location, req.WaitingList)
}

// checkExplicitCopy verifies a directly-addressed copy: stated owner,
// optional location, and an availability state matching the request
// mode (available for normal, out on loan for waiting list).
func checkExplicitCopy(c *model.Copy, ownerID int64, location *string, waitingList bool) error {
	if c.Owner.IsAdminStock() || c.Owner.UserID != ownerID {
		return makeErr(ErrOwnerMismatch)
	}
	if location != nil && c.Location != *location {
		return makeErr(ErrLocationMismatch)
	}
	if waitingList == c.IsAvailable {
		if waitingList {
			return makeErrf(ErrCopyUnavailable, "copy is not out on loan, request it normally instead")
		}
		return makeErrf(ErrCopyUnavailable, "copy is not available to borrow")
	}
	return nil
}

// pickCandidate selects a copy from the candidate set: the preferred
// owner's copy when asked for, otherwise the first one.
func pickCandidate(candidates []model.Copy, ownerPref *int64, location *string, waitingList bool) (*model.Copy, error) {
	if len(candidates) == 0 {
		return nil, noCandidateErr(location, waitingList)
	}
	if ownerPref != nil {
		for i := range candidates {
			c := &candidates[i]
			if !c.Owner.IsAdminStock() && c.Owner.UserID == *ownerPref {
				return c, nil
			}
		}
		if waitingList {
			return nil, makeErrf(ErrNoCopy, "the selected owner's copy is not out on loan")
		}
		return nil, makeErrf(ErrNoCopy, "the selected owner's copy is not available")
	}
	return &candidates[0], nil
}

func noCandidateErr(location *string, waitingList bool) error {
	switch {
	case waitingList && location != nil:
		return makeErrf(ErrNoCopy, "no copy on loan in %s to queue for", *location)
	case waitingList:
		return makeErrf(ErrNoCopy, "no copy on loan to queue for")
	case location != nil:
		return makeErrf(ErrNoCopy, "no copy available to borrow in %s", *location)
	default:
		return makeErrf(ErrNoCopy, "no copy available to borrow")
	}
}

// Act applies a lender transition. One transaction covers the whole
// read-check-write sequence, including waiting-list promotion on
// return; the borrow and copy rows stay locked throughout.
func (s *service) Act(ctx context.Context, actorID int64, actorRole model.Role, borrowID int64, action Action) (*model.BorrowDetail, error) {
	switch action {
	case ActionApprove, ActionReject, ActionReturn:
	default:
		return nil, makeErr(ErrInvalidAction)
	}

	err := s.r.RunTx(ctx, func(tx *sql.Tx) error {
		b, err := s.r.GetForUpdate(ctx, tx, borrowID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return makeErr(ErrNotFound)
			}
			return err
		}
		if !b.Lender.CanAct(actorID, actorRole) {
			return makeErr(ErrNotLender)
		}

		switch action {
		case ActionApprove:
			return s.approve(ctx, tx, b)
		case ActionReject:
			return s.reject(ctx, tx, b)
		default:
			return s.returnAndPromote(ctx, tx, b)
		}
	})
	if err != nil {
		return nil, err
	}
	return s.r.Detail(ctx, borrowID)
}

func (s *service) approve(ctx context.Context, tx *sql.Tx, b *model.Borrow) error {
	if err := guardApprove(b); err != nil {
		return err
	}
	c, err := s.r.LockCopy(ctx, tx, *b.CopyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return makeErrf(ErrCopyUnavailable, "copy no longer exists")
		}
		return err
	}
	if !c.IsAvailable {
		return makeErrf(ErrCopyUnavailable, "copy is no longer available")
	}

	now := s.now()
	if err := s.r.SetCopyAvailability(ctx, tx, c.ID, false); err != nil {
		return err
	}
	return s.r.MarkApproved(ctx, tx, b.ID, now, dueAt(now))
}

func (s *service) reject(ctx context.Context, tx *sql.Tx, b *model.Borrow) error {
	if err := guardReject(b); err != nil {
		return err
	}
	// A rejection never touches the copy.
	return s.r.MarkRejected(ctx, tx, b.ID)
}

func (s *service) returnAndPromote(ctx context.Context, tx *sql.Tx, b *model.Borrow) error {
	if err := guardReturn(b); err != nil {
		return err
	}
	if _, err := s.r.LockCopy(ctx, tx, *b.CopyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return makeErrf(ErrCopyUnavailable, "copy no longer exists")
		}
		return err
	}

	now := s.now()
	if err := s.r.MarkReturned(ctx, tx, b.ID, now); err != nil {
		return err
	}
	if err := s.r.SetCopyAvailability(ctx, tx, *b.CopyID, true); err != nil {
		return err
	}

	// Promote the head of the waiting list, if any. Promotion is
	// unconditional: waiting-list entries skip the per-title rule.
	next, err := s.r.OldestPendingForCopy(ctx, tx, *b.CopyID)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	if err := s.r.MarkApproved(ctx, tx, next.ID, now, dueAt(now)); err != nil {
		return err
	}
	return s.r.SetCopyAvailability(ctx, tx, *b.CopyID, false)
}

func guardApprove(b *model.Borrow) error {
	if b.Status != model.BorrowPending {
		return makeErrf(ErrNotPending, "only pending requests can be approved")
	}
	if b.CopyID == nil {
		return makeErrf(ErrCopyUnavailable, "no copy recorded on this borrow")
	}
	return nil
}

func guardReject(b *model.Borrow) error {
	if b.Status != model.BorrowPending {
		return makeErrf(ErrNotPending, "only pending requests can be rejected")
	}
	return nil
}

func guardReturn(b *model.Borrow) error {
	if b.Status != model.BorrowApproved {
		return makeErrf(ErrNotApproved, "only approved borrows can be returned")
	}
	if b.CopyID == nil {
		return makeErrf(ErrCopyUnavailable, "no copy recorded on this borrow")
	}
	return nil
}

func dueAt(now time.Time) time.Time { return now.AddDate(0, 0, loanDays) }

func (s *service) Detail(ctx context.Context, id int64) (*model.BorrowDetail, error) {
	d, err := s.r.Detail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (s *service) List(ctx context.Context, f borrowrepo.ListFilter) ([]model.BorrowDetail, error) {
	return s.r.List(ctx, f)
}

// LenderInbox lists active requests against the lender's copies.
func (s *service) LenderInbox(ctx context.Context, lender model.Party) ([]model.BorrowDetail, error) {
	return s.r.List(ctx, borrowrepo.ListFilter{Lender: &lender, ActiveOnly: true})
}

func (s *service) PendingCount(ctx context.Context, lender model.Party) (int, error) {
	return s.r.CountPendingForLender(ctx, lender)
}
