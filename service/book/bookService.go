package booksvc

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"

	"github.com/ganjargaul/koperasiliterasi/model"
	bookrepo "github.com/ganjargaul/koperasiliterasi/repository/book"
	"github.com/ganjargaul/koperasiliterasi/repository/openlibrary"
)

type ErrCode string

const (
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrBadInput ErrCode = "BAD_INPUT"
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

type CreateBookReq struct {
	Title       string
	Author      string
	ISBN        *string
	Description *string
	CoverImage  *string
	Stock       int
}

type Service interface {
	Create(ctx context.Context, req CreateBookReq) (*model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)
	Catalog(ctx context.Context, location *string) ([]model.CatalogBook, error)
	AddStock(ctx context.Context, bookID int64, n int) (int64, error)
	LookupISBN(ctx context.Context, isbn string) (*model.BookMeta, error)
}

type service struct {
	r   bookrepo.Repo
	isb openlibrary.Repo
}

func New(r bookrepo.Repo, isb openlibrary.Repo) Service { return &service{r: r, isb: isb} }

func (s *service) Create(ctx context.Context, req CreateBookReq) (*model.Book, error) {
	if req.Title == "" || req.Author == "" || req.Stock < 0 {
		return nil, makeErr(ErrBadInput)
	}
	b := &model.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Description: req.Description,
		CoverImage:  req.CoverImage,
	}
	if err := s.r.Create(ctx, b, req.Stock); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.Detail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

// Catalog merges every book with the locations its available copies can
// be borrowed from.
func (s *service) Catalog(ctx context.Context, location *string) ([]model.CatalogBook, error) {
	books, err := s.r.List(ctx)
	if err != nil {
		return nil, err
	}
	copies, err := s.r.ListAvailableCopies(ctx, location)
	if err != nil {
		return nil, err
	}
	return BuildCatalog(books, copies), nil
}

// BuildCatalog groups available copies by book and location.
func BuildCatalog(books []model.Book, copies []bookrepo.AvailableCopyRow) []model.CatalogBook {
	byBook := make(map[int64][]bookrepo.AvailableCopyRow, len(books))
	for _, c := range copies {
		byBook[c.BookID] = append(byBook[c.BookID], c)
	}

	out := make([]model.CatalogBook, 0, len(books))
	for _, b := range books {
		entry := model.CatalogBook{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			ISBN:        b.ISBN,
			Description: b.Description,
			CoverImage:  b.CoverImage,
			Locations:   []model.CatalogLocation{},
		}

		byLocation := map[string]*model.CatalogLocation{}
		for _, c := range byBook[b.ID] {
			loc, ok := byLocation[c.Location]
			if !ok {
				loc = &model.CatalogLocation{Location: c.Location}
				byLocation[c.Location] = loc
			}
			owner := model.CatalogOwner{CopyID: c.CopyID, UserID: c.OwnerID}
			if c.OwnerName != nil {
				owner.Name = *c.OwnerName
			}
			loc.Count++
			loc.Owners = append(loc.Owners, owner)
			entry.TotalAvailable++
		}

		for _, loc := range byLocation {
			entry.Locations = append(entry.Locations, *loc)
		}
		sort.Slice(entry.Locations, func(i, j int) bool {
			return entry.Locations[i].Location < entry.Locations[j].Location
		})
		out = append(out, entry)
	}
	return out
}

func (s *service) AddStock(ctx context.Context, bookID int64, n int) (int64, error) {
	if n <= 0 {
		return 0, makeErr(ErrBadInput)
	}
	ok, err := s.r.Exists(ctx, bookID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, makeErr(ErrNotFound)
	}
	return s.r.AddStock(ctx, bookID, n)
}

var isbnJunk = regexp.MustCompile(`[-\s]`)

// CleanISBN strips dashes and whitespace.
func CleanISBN(isbn string) string { return isbnJunk.ReplaceAllString(isbn, "") }

func (s *service) LookupISBN(ctx context.Context, isbn string) (*model.BookMeta, error) {
	clean := CleanISBN(isbn)
	if clean == "" {
		return nil, makeErr(ErrBadInput)
	}
	meta, err := s.isb.LookupISBN(ctx, clean)
	if err != nil {
		if errors.Is(err, openlibrary.ErrNotFound) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return meta, nil
}
