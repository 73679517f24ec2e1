// service/book/book_service_test.go
package booksvc_test

import (
	"context"
	"testing"

	"github.com/ganjargaul/koperasiliterasi/model"
	bookrepo "github.com/ganjargaul/koperasiliterasi/repository/book"
	booksvc "github.com/ganjargaul/koperasiliterasi/service/book"
)

type repoMock struct {
	createFn   func(ctx context.Context, b *model.Book, stock int) error
	existsFn   func(ctx context.Context, id int64) (bool, error)
	addStockFn func(ctx context.Context, bookID int64, n int) (int64, error)
}

func (m *repoMock) Create(ctx context.Context, b *model.Book, stock int) error {
	return m.createFn(ctx, b, stock)
}
func (m *repoMock) Detail(ctx context.Context, id int64) (*model.Book, error) {
	return &model.Book{ID: id}, nil
}
func (m *repoMock) Exists(ctx context.Context, id int64) (bool, error) {
	if m.existsFn == nil {
		return true, nil
	}
	return m.existsFn(ctx, id)
}
func (m *repoMock) List(ctx context.Context) ([]model.Book, error) { return nil, nil }
func (m *repoMock) ListAvailableCopies(ctx context.Context, location *string) ([]bookrepo.AvailableCopyRow, error) {
	return nil, nil
}
func (m *repoMock) AddStock(ctx context.Context, bookID int64, n int) (int64, error) {
	return m.addStockFn(ctx, bookID, n)
}

func TestCreate_Validation(t *testing.T) {
	s := booksvc.New(&repoMock{}, nil)
	if _, err := s.Create(context.Background(), booksvc.CreateBookReq{Title: "", Author: "a"}); err == nil {
		t.Fatal("expected error for empty title")
	}
	if _, err := s.Create(context.Background(), booksvc.CreateBookReq{Title: "t", Author: ""}); err == nil {
		t.Fatal("expected error for empty author")
	}
	if _, err := s.Create(context.Background(), booksvc.CreateBookReq{Title: "t", Author: "a", Stock: -1}); err == nil {
		t.Fatal("expected error for negative stock")
	}
}

func TestCreate_SeedsStock(t *testing.T) {
	var gotStock int
	m := &repoMock{
		createFn: func(ctx context.Context, b *model.Book, stock int) error {
			b.ID = 42
			gotStock = stock
			return nil
		},
	}
	s := booksvc.New(m, nil)
	b, err := s.Create(context.Background(), booksvc.CreateBookReq{Title: "Laskar Pelangi", Author: "Andrea Hirata", Stock: 3})
	if err != nil || b.ID != 42 {
		t.Fatalf("got id=%v err=%v; want 42 nil", b, err)
	}
	if gotStock != 3 {
		t.Fatalf("stock = %d; want 3", gotStock)
	}
}

func TestAddStock_UnknownBook(t *testing.T) {
	m := &repoMock{
		existsFn: func(ctx context.Context, id int64) (bool, error) { return false, nil },
	}
	s := booksvc.New(m, nil)
	_, err := s.AddStock(context.Background(), 99, 2)
	if booksvc.Code(err) != booksvc.ErrNotFound {
		t.Fatalf("code = %q; want NOT_FOUND", booksvc.Code(err))
	}
}

func TestCleanISBN(t *testing.T) {
	if got := booksvc.CleanISBN("978-0-13-468599-1"); got != "9780134685991" {
		t.Fatalf("CleanISBN = %q", got)
	}
	if got := booksvc.CleanISBN(" 978 0134685991 "); got != "9780134685991" {
		t.Fatalf("CleanISBN = %q", got)
	}
}

func TestBuildCatalog(t *testing.T) {
	name := "Budi"
	owner := int64(2)
	books := []model.Book{
		{ID: 1, Title: "Bumi Manusia", Author: "Pramoedya"},
		{ID: 2, Title: "Cantik Itu Luka", Author: "Eka Kurniawan"},
	}
	copies := []bookrepo.AvailableCopyRow{
		{BookID: 1, CopyID: 10, OwnerID: &owner, OwnerName: &name, Location: "Jakarta"},
		{BookID: 1, CopyID: 11, Location: "Perpustakaan Pusat"}, // admin stock
		{BookID: 1, CopyID: 12, OwnerID: &owner, OwnerName: &name, Location: "Jakarta"},
	}

	out := booksvc.BuildCatalog(books, copies)
	if len(out) != 2 {
		t.Fatalf("len = %d; want 2", len(out))
	}

	first := out[0]
	if first.TotalAvailable != 3 {
		t.Fatalf("total = %d; want 3", first.TotalAvailable)
	}
	if len(first.Locations) != 2 {
		t.Fatalf("locations = %d; want 2", len(first.Locations))
	}
	// sorted by location name
	if first.Locations[0].Location != "Jakarta" || first.Locations[0].Count != 2 {
		t.Fatalf("unexpected first location: %+v", first.Locations[0])
	}
	if first.Locations[1].Location != "Perpustakaan Pusat" || first.Locations[1].Count != 1 {
		t.Fatalf("unexpected second location: %+v", first.Locations[1])
	}
	if first.Locations[0].Owners[0].Name != "Budi" {
		t.Fatalf("owner name = %q", first.Locations[0].Owners[0].Name)
	}

	// book without copies still shows up, just empty
	second := out[1]
	if second.TotalAvailable != 0 || len(second.Locations) != 0 {
		t.Fatalf("unexpected second entry: %+v", second)
	}
}
