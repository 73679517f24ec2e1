package borrowrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/ganjargaul/koperasiliterasi/model"
)

// ListFilter narrows borrow list queries. Nil fields are ignored.
type ListFilter struct {
	RequesterID *int64
	Lender      *model.Party
	Status      *model.BorrowStatus
	ActiveOnly  bool
}

type Repo interface {
	// RunTx runs fn inside one transaction; every transition holds the
	// copy row lock for its full read-check-write sequence.
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error

	LockCopy(ctx context.Context, tx *sql.Tx, copyID int64) (*model.Copy, error)
	LockCandidates(ctx context.Context, tx *sql.Tx, bookID, requesterID int64, location *string, available bool) ([]model.Copy, error)
	SetCopyAvailability(ctx context.Context, tx *sql.Tx, copyID int64, available bool) error

	HasActiveForCopy(ctx context.Context, tx *sql.Tx, userID, copyID int64) (bool, error)
	HasActiveForBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error)
	HasPendingForCopy(ctx context.Context, tx *sql.Tx, userID, copyID int64) (bool, error)

	Insert(ctx context.Context, tx *sql.Tx, b *model.Borrow) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Borrow, error)
	OldestPendingForCopy(ctx context.Context, tx *sql.Tx, copyID int64) (*model.Borrow, error)
	MarkApproved(ctx context.Context, tx *sql.Tx, id int64, borrowedAt, dueAt time.Time) error
	MarkRejected(ctx context.Context, tx *sql.Tx, id int64) error
	MarkReturned(ctx context.Context, tx *sql.Tx, id int64, returnedAt time.Time) error

	Detail(ctx context.Context, id int64) (*model.BorrowDetail, error)
	List(ctx context.Context, f ListFilter) ([]model.BorrowDetail, error)
	CountPendingForLender(ctx context.Context, lender model.Party) (int, error)
	ListForTracking(ctx context.Context, requesterID *int64) ([]model.BorrowDetail, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

func (r *repo) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func scanCopy(row *sql.Row) (*model.Copy, error) {
	c := &model.Copy{}
	var ownerID sql.NullInt64
	err := row.Scan(&c.ID, &c.BookID, &ownerID, &c.Location, &c.Condition, &c.Notes, &c.IsAvailable, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ownerID.Valid {
		c.Owner = model.PeerParty(ownerID.Int64)
	} else {
		c.Owner = model.AdminStockParty()
	}
	return c, nil
}

func (r *repo) LockCopy(ctx context.Context, tx *sql.Tx, copyID int64) (*model.Copy, error) {
	const q = `
		SELECT id, book_id, owner_id, location, condition, notes, is_available, created_at
		FROM copies
		WHERE id = $1
		FOR UPDATE`
	return scanCopy(tx.QueryRowContext(ctx, q, copyID))
}

// LockCandidates locks every copy of the book that could serve the
// request: not owned by the requester, matching the availability mode
// and the optional location filter.
func (r *repo) LockCandidates(ctx context.Context, tx *sql.Tx, bookID, requesterID int64, location *string, available bool) ([]model.Copy, error) {
	const q = `
		SELECT id, book_id, owner_id, location, condition, notes, is_available, created_at
		FROM copies
		WHERE book_id = $1
		  AND (owner_id IS NULL OR owner_id <> $2)
		  AND is_available = $3
		  AND ($4::text IS NULL OR location = $4)
		ORDER BY id
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, bookID, requesterID, available, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Copy
	for rows.Next() {
		var c model.Copy
		var ownerID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.BookID, &ownerID, &c.Location, &c.Condition, &c.Notes, &c.IsAvailable, &c.CreatedAt); err != nil {
			return nil, err
		}
		if ownerID.Valid {
			c.Owner = model.PeerParty(ownerID.Int64)
		} else {
			c.Owner = model.AdminStockParty()
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repo) SetCopyAvailability(ctx context.Context, tx *sql.Tx, copyID int64, available bool) error {
	_, err := tx.ExecContext(ctx, `UPDATE copies SET is_available = $2 WHERE id = $1`, copyID, available)
	return err
}

func (r *repo) HasActiveForCopy(ctx context.Context, tx *sql.Tx, userID, copyID int64) (bool, error) {
	var ok bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM borrows
			WHERE requester_id = $1 AND copy_id = $2 AND status IN ('PENDING','APPROVED')
		)`, userID, copyID).Scan(&ok)
	return ok, err
}

func (r *repo) HasActiveForBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error) {
	var ok bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM borrows
			WHERE requester_id = $1 AND book_id = $2 AND status IN ('PENDING','APPROVED')
		)`, userID, bookID).Scan(&ok)
	return ok, err
}

func (r *repo) HasPendingForCopy(ctx context.Context, tx *sql.Tx, userID, copyID int64) (bool, error) {
	var ok bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM borrows
			WHERE requester_id = $1 AND copy_id = $2 AND status = 'PENDING'
		)`, userID, copyID).Scan(&ok)
	return ok, err
}

func lenderParam(p model.Party) sql.NullInt64 {
	if p.IsAdminStock() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: p.UserID, Valid: true}
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, b *model.Borrow) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO borrows (requester_id, book_id, copy_id, lender_id, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`,
		b.RequesterID, b.BookID, b.CopyID, lenderParam(b.Lender), b.Status,
	).Scan(&b.ID, &b.RequestedAt)
}

func scanBorrow(scan func(dest ...any) error) (*model.Borrow, error) {
	b := &model.Borrow{}
	var copyID, lenderID sql.NullInt64
	err := scan(&b.ID, &b.RequesterID, &b.BookID, &copyID, &lenderID,
		&b.Status, &b.LatePenalty, &b.RequestedAt, &b.BorrowedAt, &b.DueAt, &b.ReturnedAt)
	if err != nil {
		return nil, err
	}
	if copyID.Valid {
		b.CopyID = &copyID.Int64
	}
	if lenderID.Valid {
		b.Lender = model.PeerParty(lenderID.Int64)
	} else {
		b.Lender = model.AdminStockParty()
	}
	return b, nil
}

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Borrow, error) {
	const q = `
		SELECT id, requester_id, book_id, copy_id, lender_id,
		       status, late_penalty, created_at, borrowed_at, due_at, returned_at
		FROM borrows
		WHERE id = $1
		FOR UPDATE`
	return scanBorrow(tx.QueryRowContext(ctx, q, id).Scan)
}

// OldestPendingForCopy picks the head of the waiting list, first come
// first served.
func (r *repo) OldestPendingForCopy(ctx context.Context, tx *sql.Tx, copyID int64) (*model.Borrow, error) {
	const q = `
		SELECT id, requester_id, book_id, copy_id, lender_id,
		       status, late_penalty, created_at, borrowed_at, due_at, returned_at
		FROM borrows
		WHERE copy_id = $1 AND status = 'PENDING'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE`
	b, err := scanBorrow(tx.QueryRowContext(ctx, q, copyID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *repo) MarkApproved(ctx context.Context, tx *sql.Tx, id int64, borrowedAt, dueAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE borrows
		SET status = 'APPROVED', borrowed_at = $2, due_at = $3
		WHERE id = $1`,
		id, borrowedAt, dueAt)
	return err
}

func (r *repo) MarkRejected(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE borrows SET status = 'REJECTED' WHERE id = $1`, id)
	return err
}

func (r *repo) MarkReturned(ctx context.Context, tx *sql.Tx, id int64, returnedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE borrows
		SET status = 'RETURNED', returned_at = $2
		WHERE id = $1`,
		id, returnedAt)
	return err
}

const detailColumns = `
	b.id, b.requester_id, b.book_id, b.copy_id, b.lender_id,
	b.status, b.late_penalty, b.created_at, b.borrowed_at, b.due_at, b.returned_at,
	ru.name, ru.email,
	lu.name, lu.email,
	bk.title, bk.author, bk.isbn,
	c.location`

const detailJoins = `
	FROM borrows b
	JOIN users ru ON ru.id = b.requester_id
	LEFT JOIN users lu ON lu.id = b.lender_id
	JOIN books bk ON bk.id = b.book_id
	LEFT JOIN copies c ON c.id = b.copy_id`

func scanDetail(scan func(dest ...any) error) (*model.BorrowDetail, error) {
	d := &model.BorrowDetail{}
	var copyID, lenderID sql.NullInt64
	var lenderName, lenderEmail, copyLocation sql.NullString
	err := scan(
		&d.ID, &d.RequesterID, &d.BookID, &copyID, &lenderID,
		&d.Status, &d.LatePenalty, &d.RequestedAt, &d.BorrowedAt, &d.DueAt, &d.ReturnedAt,
		&d.Requester.Name, &d.Requester.Email,
		&lenderName, &lenderEmail,
		&d.Book.Title, &d.Book.Author, &d.Book.ISBN,
		&copyLocation,
	)
	if err != nil {
		return nil, err
	}
	d.Requester.ID = d.RequesterID
	d.Book.ID = d.BookID
	if copyID.Valid {
		d.CopyID = &copyID.Int64
		loc := ""
		if copyLocation.Valid {
			loc = copyLocation.String
		}
		d.Copy = &model.CopySummary{ID: copyID.Int64, Location: loc}
	}
	if lenderID.Valid {
		d.Lender = model.PeerParty(lenderID.Int64)
		d.LenderUser = &model.UserSummary{ID: lenderID.Int64, Name: lenderName.String, Email: lenderEmail.String}
	} else {
		d.Lender = model.AdminStockParty()
	}
	return d, nil
}

func (r *repo) Detail(ctx context.Context, id int64) (*model.BorrowDetail, error) {
	q := `SELECT` + detailColumns + detailJoins + ` WHERE b.id = $1`
	return scanDetail(r.db.QueryRowContext(ctx, q, id).Scan)
}

func (r *repo) List(ctx context.Context, f ListFilter) ([]model.BorrowDetail, error) {
	q := `SELECT` + detailColumns + detailJoins + `
	WHERE ($1::bigint IS NULL OR b.requester_id = $1)
	  AND ($2::text IS NULL OR b.status = $2)
	  AND ($3 = FALSE OR b.status IN ('PENDING','APPROVED'))`

	var requester sql.NullInt64
	if f.RequesterID != nil {
		requester = sql.NullInt64{Int64: *f.RequesterID, Valid: true}
	}
	var status sql.NullString
	if f.Status != nil {
		status = sql.NullString{String: string(*f.Status), Valid: true}
	}
	args := []any{requester, status, f.ActiveOnly}

	if f.Lender != nil {
		if f.Lender.IsAdminStock() {
			q += ` AND b.lender_id IS NULL`
		} else {
			q += ` AND b.lender_id = $4`
			args = append(args, f.Lender.UserID)
		}
	}
	q += ` ORDER BY b.created_at DESC, b.id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BorrowDetail
	for rows.Next() {
		d, err := scanDetail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *repo) CountPendingForLender(ctx context.Context, lender model.Party) (int, error) {
	var q string
	var args []any
	if lender.IsAdminStock() {
		q = `SELECT COUNT(*) FROM borrows WHERE lender_id IS NULL AND status = 'PENDING'`
	} else {
		q = `SELECT COUNT(*) FROM borrows WHERE lender_id = $1 AND status = 'PENDING'`
		args = append(args, lender.UserID)
	}
	var n int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

func (r *repo) ListForTracking(ctx context.Context, requesterID *int64) ([]model.BorrowDetail, error) {
	var f ListFilter
	f.RequesterID = requesterID
	return r.List(ctx, f)
}
