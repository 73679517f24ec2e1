package bookrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ganjargaul/koperasiliterasi/model"
)

// AdminStockLocation is where copies added straight to admin stock live.
const AdminStockLocation = "Perpustakaan Pusat"

// AvailableCopyRow is one available copy joined with its owner, fed into
// the catalog aggregation.
type AvailableCopyRow struct {
	BookID    int64
	CopyID    int64
	OwnerID   *int64
	OwnerName *string
	Location  string
}

type Repo interface {
	Create(ctx context.Context, b *model.Book, stock int) error
	Detail(ctx context.Context, id int64) (*model.Book, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]model.Book, error)
	ListAvailableCopies(ctx context.Context, location *string) ([]AvailableCopyRow, error)
	AddStock(ctx context.Context, bookID int64, n int) (int64, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

// Create inserts the book and, when stock > 0, seeds that many
// admin-stock copies in the same transaction.
func (r *repo) Create(ctx context.Context, b *model.Book, stock int) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO books (title, author, isbn, description, cover_image)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`,
		b.Title, b.Author, b.ISBN, b.Description, b.CoverImage,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return err
	}

	const ins = `INSERT INTO copies (book_id, owner_id, location) VALUES ($1, NULL, $2)`
	for i := 0; i < stock; i++ {
		if _, err = tx.ExecContext(ctx, ins, b.ID, AdminStockLocation); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *repo) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b := &model.Book{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, author, isbn, description, cover_image, created_at
		FROM books
		WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Description, &b.CoverImage, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (r *repo) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, author, isbn, description, cover_image, created_at
		FROM books
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Description, &b.CoverImage, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repo) ListAvailableCopies(ctx context.Context, location *string) ([]AvailableCopyRow, error) {
	const q = `
		SELECT c.book_id, c.id, c.owner_id, u.name, c.location
		FROM copies c
		LEFT JOIN users u ON u.id = c.owner_id
		WHERE c.is_available
		  AND ($1::text IS NULL OR c.location = $1)
		ORDER BY c.book_id, c.id`
	rows, err := r.db.QueryContext(ctx, q, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailableCopyRow
	for rows.Next() {
		var row AvailableCopyRow
		var ownerID sql.NullInt64
		var ownerName sql.NullString
		if err := rows.Scan(&row.BookID, &row.CopyID, &ownerID, &ownerName, &row.Location); err != nil {
			return nil, err
		}
		if ownerID.Valid {
			row.OwnerID = &ownerID.Int64
		}
		if ownerName.Valid {
			row.OwnerName = &ownerName.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repo) AddStock(ctx context.Context, bookID int64, n int) (int64, error) {
	if n <= 0 {
		return 0, errors.New("n must be > 0")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	const ins = `INSERT INTO copies (book_id, owner_id, location) VALUES ($1, NULL, $2)`
	for i := 0; i < n; i++ {
		if _, err = tx.ExecContext(ctx, ins, bookID, AdminStockLocation); err != nil {
			return 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return int64(n), nil
}
