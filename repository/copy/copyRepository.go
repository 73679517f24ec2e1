package copyrepo

import (
	"context"
	"database/sql"

	"github.com/ganjargaul/koperasiliterasi/model"
)

// CopyWithBook is a collection entry joined with its book metadata.
type CopyWithBook struct {
	model.Copy
	Book model.BookSummary `json:"book"`
}

type Repo interface {
	Insert(ctx context.Context, c *model.Copy) error
	ByID(ctx context.Context, id int64) (*model.Copy, error)
	ListByOwner(ctx context.Context, ownerID int64, availableOnly bool) ([]CopyWithBook, error)
	Update(ctx context.Context, c *model.Copy) error
	Delete(ctx context.Context, id int64) error
	HasActiveBorrow(ctx context.Context, copyID int64) (bool, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

func ownerParam(p model.Party) sql.NullInt64 {
	if p.IsAdminStock() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: p.UserID, Valid: true}
}

func (r *repo) Insert(ctx context.Context, c *model.Copy) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO copies (book_id, owner_id, location, condition, notes, is_available)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		c.BookID, ownerParam(c.Owner), c.Location, c.Condition, c.Notes, c.IsAvailable,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Copy, error) {
	c := &model.Copy{}
	var ownerID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, book_id, owner_id, location, condition, notes, is_available, created_at
		FROM copies
		WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.BookID, &ownerID, &c.Location, &c.Condition, &c.Notes, &c.IsAvailable, &c.CreatedAt)
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

func (r *repo) ListByOwner(ctx context.Context, ownerID int64, availableOnly bool) ([]CopyWithBook, error) {
	const q = `
		SELECT c.id, c.book_id, c.owner_id, c.location, c.condition, c.notes, c.is_available, c.created_at,
		       b.id, b.title, b.author, b.isbn
		FROM copies c
		JOIN books b ON b.id = c.book_id
		WHERE c.owner_id = $1
		  AND ($2 = FALSE OR c.is_available)
		ORDER BY c.created_at DESC, c.id DESC`
	rows, err := r.db.QueryContext(ctx, q, ownerID, availableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CopyWithBook
	for rows.Next() {
		var cw CopyWithBook
		var owner sql.NullInt64
		if err := rows.Scan(
			&cw.ID, &cw.BookID, &owner, &cw.Location, &cw.Condition, &cw.Notes, &cw.IsAvailable, &cw.CreatedAt,
			&cw.Book.ID, &cw.Book.Title, &cw.Book.Author, &cw.Book.ISBN,
		); err != nil {
			return nil, err
		}
		if owner.Valid {
			cw.Owner = model.PeerParty(owner.Int64)
		} else {
			cw.Owner = model.AdminStockParty()
		}
		out = append(out, cw)
	}
	return out, rows.Err()
}

func (r *repo) Update(ctx context.Context, c *model.Copy) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE copies
		SET location = $2, condition = $3, notes = $4, is_available = $5
		WHERE id = $1`,
		c.ID, c.Location, c.Condition, c.Notes, c.IsAvailable)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM copies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) HasActiveBorrow(ctx context.Context, copyID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM borrows
			WHERE copy_id = $1 AND status IN ('PENDING','APPROVED')
		)`, copyID).Scan(&ok)
	return ok, err
}
