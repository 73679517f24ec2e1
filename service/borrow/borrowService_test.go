package borrow

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganjargaul/koperasiliterasi/model"
	borrowrepo "github.com/ganjargaul/koperasiliterasi/repository/borrow"
)

// fakeRepo keeps copies and borrows in memory. RunTx just invokes fn
// with a nil tx; the service never touches the tx itself.
type fakeRepo struct {
	copies  map[int64]*model.Copy
	borrows map[int64]*model.Borrow
	nextID  int64
	seq     time.Time
}

var _ borrowrepo.Repo = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		copies:  map[int64]*model.Copy{},
		borrows: map[int64]*model.Borrow{},
		nextID:  1,
		seq:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) addCopy(id, bookID int64, owner model.Party, location string, available bool) {
	f.copies[id] = &model.Copy{
		ID: id, BookID: bookID, Owner: owner, Location: location, IsAvailable: available,
	}
}

func (f *fakeRepo) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (f *fakeRepo) LockCopy(ctx context.Context, tx *sql.Tx, copyID int64) (*model.Copy, error) {
	c, ok := f.copies[copyID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepo) LockCandidates(ctx context.Context, tx *sql.Tx, bookID, requesterID int64, location *string, available bool) ([]model.Copy, error) {
	var ids []int64
	for id := range f.copies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []model.Copy
	for _, id := range ids {
		c := f.copies[id]
		if c.BookID != bookID || c.IsAvailable != available {
			continue
		}
		if !c.Owner.IsAdminStock() && c.Owner.UserID == requesterID {
			continue
		}
		if location != nil && c.Location != *location {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRepo) SetCopyAvailability(ctx context.Context, tx *sql.Tx, copyID int64, available bool) error {
	f.copies[copyID].IsAvailable = available
	return nil
}

func (f *fakeRepo) HasActiveForCopy(ctx context.Context, tx *sql.Tx, userID, copyID int64) (bool, error) {
	for _, b := range f.borrows {
		if b.RequesterID == userID && b.CopyID != nil && *b.CopyID == copyID &&
			(b.Status == model.BorrowPending || b.Status == model.BorrowApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) HasActiveForBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error) {
	for _, b := range f.borrows {
		if b.RequesterID == userID && b.BookID == bookID &&
			(b.Status == model.BorrowPending || b.Status == model.BorrowApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) HasPendingForCopy(ctx context.Context, tx *sql.Tx, userID, copyID int64) (bool, error) {
	for _, b := range f.borrows {
		if b.RequesterID == userID && b.CopyID != nil && *b.CopyID == copyID && b.Status == model.BorrowPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Insert(ctx context.Context, tx *sql.Tx, b *model.Borrow) error {
	b.ID = f.nextID
	f.nextID++
	f.seq = f.seq.Add(time.Minute)
	b.RequestedAt = f.seq
	cp := *b
	f.borrows[b.ID] = &cp
	return nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Borrow, error) {
	b, ok := f.borrows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) OldestPendingForCopy(ctx context.Context, tx *sql.Tx, copyID int64) (*model.Borrow, error) {
	var oldest *model.Borrow
	for _, b := range f.borrows {
		if b.CopyID == nil || *b.CopyID != copyID || b.Status != model.BorrowPending {
			continue
		}
		if oldest == nil || b.RequestedAt.Before(oldest.RequestedAt) ||
			(b.RequestedAt.Equal(oldest.RequestedAt) && b.ID < oldest.ID) {
			oldest = b
		}
	}
	if oldest == nil {
		return nil, nil
	}
	cp := *oldest
	return &cp, nil
}

func (f *fakeRepo) MarkApproved(ctx context.Context, tx *sql.Tx, id int64, borrowedAt, dueAt time.Time) error {
	b := f.borrows[id]
	b.Status = model.BorrowApproved
	b.BorrowedAt = &borrowedAt
	b.DueAt = &dueAt
	return nil
}

func (f *fakeRepo) MarkRejected(ctx context.Context, tx *sql.Tx, id int64) error {
	f.borrows[id].Status = model.BorrowRejected
	return nil
}

func (f *fakeRepo) MarkReturned(ctx context.Context, tx *sql.Tx, id int64, returnedAt time.Time) error {
	b := f.borrows[id]
	b.Status = model.BorrowReturned
	b.ReturnedAt = &returnedAt
	return nil
}

func (f *fakeRepo) Detail(ctx context.Context, id int64) (*model.BorrowDetail, error) {
	b, ok := f.borrows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &model.BorrowDetail{Borrow: *b}, nil
}

func (f *fakeRepo) List(ctx context.Context, fl borrowrepo.ListFilter) ([]model.BorrowDetail, error) {
	var out []model.BorrowDetail
	for _, b := range f.borrows {
		if fl.RequesterID != nil && b.RequesterID != *fl.RequesterID {
			continue
		}
		if fl.Status != nil && b.Status != *fl.Status {
			continue
		}
		if fl.ActiveOnly && b.Status != model.BorrowPending && b.Status != model.BorrowApproved {
			continue
		}
		if fl.Lender != nil && *fl.Lender != b.Lender {
			continue
		}
		out = append(out, model.BorrowDetail{Borrow: *b})
	}
	return out, nil
}

func (f *fakeRepo) CountPendingForLender(ctx context.Context, lender model.Party) (int, error) {
	n := 0
	for _, b := range f.borrows {
		if b.Lender == lender && b.Status == model.BorrowPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ListForTracking(ctx context.Context, requesterID *int64) ([]model.BorrowDetail, error) {
	return f.List(ctx, borrowrepo.ListFilter{RequesterID: requesterID})
}

func newService(f *fakeRepo, now time.Time) *service {
	return &service{r: f, now: func() time.Time { return now }}
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

// --- intake ---

func TestCreate_ResolvesFirstAvailableCopy(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	f.addCopy(11, 1, model.PeerParty(3), "Bandung", true)
	s := newService(f, time.Now())

	d, err := s.Create(context.Background(), CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)
	require.Equal(t, model.BorrowPending, d.Status)
	require.Equal(t, int64(10), *d.CopyID)
	require.Equal(t, model.PeerParty(2), d.Lender)
	require.Nil(t, d.BorrowedAt)
	require.Nil(t, d.DueAt)
	// a pending request never touches the copy
	require.True(t, f.copies[10].IsAvailable)
}

func TestCreate_LocationFilterAndMessage(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	s := newService(f, time.Now())

	d, err := s.Create(context.Background(), CreateReq{RequesterID: 5, BookID: 1, Location: strPtr("Jakarta")})
	require.NoError(t, err)
	require.Equal(t, int64(10), *d.CopyID)

	_, err = s.Create(context.Background(), CreateReq{RequesterID: 6, BookID: 1, Location: strPtr("Surabaya")})
	require.Equal(t, ErrNoCopy, Code(err))
	require.Contains(t, Message(err), "Surabaya")
}

func TestCreate_OwnerPreference(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	f.addCopy(11, 1, model.PeerParty(3), "Jakarta", true)
	s := newService(f, time.Now())

	d, err := s.Create(context.Background(), CreateReq{RequesterID: 5, BookID: 1, OwnerID: i64Ptr(3)})
	require.NoError(t, err)
	require.Equal(t, int64(11), *d.CopyID)

	_, err = s.Create(context.Background(), CreateReq{RequesterID: 6, BookID: 1, OwnerID: i64Ptr(99)})
	require.Equal(t, ErrNoCopy, Code(err))
}

func TestCreate_NoSelfBorrow(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(5), "Jakarta", true)
	s := newService(f, time.Now())

	// the requester's own copy is excluded from the candidate search
	_, err := s.Create(context.Background(), CreateReq{RequesterID: 5, BookID: 1})
	require.Equal(t, ErrNoCopy, Code(err))

	// and pinning it explicitly fails too
	_, err = s.Create(context.Background(), CreateReq{
		RequesterID: 5, BookID: 1, CopyID: i64Ptr(10), OwnerID: i64Ptr(5),
	})
	require.Equal(t, ErrOwnCopy, Code(err))
}

func TestCreate_ExplicitCopyChecks(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	s := newService(f, time.Now())
	ctx := context.Background()

	_, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1, CopyID: i64Ptr(99), OwnerID: i64Ptr(2)})
	require.Equal(t, ErrNotFound, Code(err))

	_, err = s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1, CopyID: i64Ptr(10), OwnerID: i64Ptr(3)})
	require.Equal(t, ErrOwnerMismatch, Code(err))

	_, err = s.Create(ctx, CreateReq{
		RequesterID: 5, BookID: 1, CopyID: i64Ptr(10), OwnerID: i64Ptr(2), Location: strPtr("Bandung"),
	})
	require.Equal(t, ErrLocationMismatch, Code(err))

	// waiting list against an available copy makes no sense
	_, err = s.Create(ctx, CreateReq{
		RequesterID: 5, BookID: 1, CopyID: i64Ptr(10), OwnerID: i64Ptr(2), WaitingList: true,
	})
	require.Equal(t, ErrCopyUnavailable, Code(err))
}

func TestCreate_OneActiveLoanPerTitle(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	f.addCopy(11, 1, model.PeerParty(3), "Jakarta", true)
	s := newService(f, time.Now())
	ctx := context.Background()

	_, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)

	// second request for the same title, even pinned to another copy
	_, err = s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1, CopyID: i64Ptr(11), OwnerID: i64Ptr(3)})
	require.Equal(t, ErrTitleOnLoan, Code(err))
}

func TestCreate_WaitingList(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", false)
	s := newService(f, time.Now())
	ctx := context.Background()

	d, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1, WaitingList: true})
	require.NoError(t, err)
	require.Equal(t, model.BorrowPending, d.Status)
	require.False(t, f.copies[10].IsAvailable)

	// duplicate queue entry for the same user is rejected
	_, err = s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1, WaitingList: true})
	require.Equal(t, ErrAlreadyQueued, Code(err))

	// but another user may queue alongside
	_, err = s.Create(ctx, CreateReq{RequesterID: 6, BookID: 1, WaitingList: true})
	require.NoError(t, err)
}

// --- transitions ---

func TestApprove(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newService(f, now)
	ctx := context.Background()

	d, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)

	got, err := s.Act(ctx, 2, model.RoleUser, d.ID, ActionApprove)
	require.NoError(t, err)
	require.Equal(t, model.BorrowApproved, got.Status)
	require.Equal(t, now, *got.BorrowedAt)
	require.Equal(t, now.AddDate(0, 0, 7), *got.DueAt)
	require.False(t, f.copies[10].IsAvailable)

	// approving twice fails the status precondition
	_, err = s.Act(ctx, 2, model.RoleUser, d.ID, ActionApprove)
	require.Equal(t, ErrNotPending, Code(err))
}

func TestApprove_CopyTakenByOtherBorrow(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	s := newService(f, time.Now())
	ctx := context.Background()

	first, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)
	second, err := s.Create(ctx, CreateReq{RequesterID: 6, BookID: 1})
	require.NoError(t, err)

	_, err = s.Act(ctx, 2, model.RoleUser, first.ID, ActionApprove)
	require.NoError(t, err)

	// the copy is out now, so the second pending request cannot be
	// approved; exactly one of two racing approves wins
	_, err = s.Act(ctx, 2, model.RoleUser, second.ID, ActionApprove)
	require.Equal(t, ErrCopyUnavailable, Code(err))
}

func TestReject_NeverTouchesCopy(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	s := newService(f, time.Now())
	ctx := context.Background()

	d, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)

	got, err := s.Act(ctx, 2, model.RoleUser, d.ID, ActionReject)
	require.NoError(t, err)
	require.Equal(t, model.BorrowRejected, got.Status)
	require.True(t, f.copies[10].IsAvailable)
}

func TestReturn_PromotesOldestWaiter(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newService(f, now)
	ctx := context.Background()

	// A borrows and is approved
	a, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)
	_, err = s.Act(ctx, 2, model.RoleUser, a.ID, ActionApprove)
	require.NoError(t, err)

	// B then C queue on the waiting list
	b, err := s.Create(ctx, CreateReq{RequesterID: 6, BookID: 1, WaitingList: true})
	require.NoError(t, err)
	c, err := s.Create(ctx, CreateReq{RequesterID: 7, BookID: 1, WaitingList: true})
	require.NoError(t, err)

	// O returns A's borrow: B is promoted, C keeps waiting
	got, err := s.Act(ctx, 2, model.RoleUser, a.ID, ActionReturn)
	require.NoError(t, err)
	require.Equal(t, model.BorrowReturned, got.Status)
	require.Equal(t, now, *got.ReturnedAt)

	require.Equal(t, model.BorrowApproved, f.borrows[b.ID].Status)
	require.Equal(t, now.AddDate(0, 0, 7), *f.borrows[b.ID].DueAt)
	require.Equal(t, model.BorrowPending, f.borrows[c.ID].Status)
	require.False(t, f.copies[10].IsAvailable)
}

func TestReturn_NoWaiterFreesCopy(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	s := newService(f, time.Now())
	ctx := context.Background()

	a, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)
	_, err = s.Act(ctx, 2, model.RoleUser, a.ID, ActionApprove)
	require.NoError(t, err)

	_, err = s.Act(ctx, 2, model.RoleUser, a.ID, ActionReturn)
	require.NoError(t, err)
	require.True(t, f.copies[10].IsAvailable)

	_, err = s.Act(ctx, 2, model.RoleUser, a.ID, ActionReturn)
	require.Equal(t, ErrNotApproved, Code(err))
}

func TestAct_Authorization(t *testing.T) {
	f := newFakeRepo()
	f.addCopy(10, 1, model.PeerParty(2), "Jakarta", true)
	f.addCopy(20, 2, model.AdminStockParty(), "Perpustakaan Pusat", true)
	s := newService(f, time.Now())
	ctx := context.Background()

	peer, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 1})
	require.NoError(t, err)
	stock, err := s.Create(ctx, CreateReq{RequesterID: 5, BookID: 2})
	require.NoError(t, err)

	// a stranger cannot act on a peer-owned copy, an admin cannot either
	_, err = s.Act(ctx, 9, model.RoleUser, peer.ID, ActionApprove)
	require.Equal(t, ErrNotLender, Code(err))
	_, err = s.Act(ctx, 9, model.RoleAdmin, peer.ID, ActionApprove)
	require.Equal(t, ErrNotLender, Code(err))

	// admin-stock copies take any admin, but no regular user
	_, err = s.Act(ctx, 9, model.RoleUser, stock.ID, ActionApprove)
	require.Equal(t, ErrNotLender, Code(err))
	_, err = s.Act(ctx, 9, model.RoleAdmin, stock.ID, ActionApprove)
	require.NoError(t, err)
}

func TestAct_NotFoundAndInvalidAction(t *testing.T) {
	f := newFakeRepo()
	s := newService(f, time.Now())
	ctx := context.Background()

	_, err := s.Act(ctx, 2, model.RoleUser, 123, ActionApprove)
	require.Equal(t, ErrNotFound, Code(err))

	_, err = s.Act(ctx, 2, model.RoleUser, 123, Action("destroy"))
	require.Equal(t, ErrInvalidAction, Code(err))
}
