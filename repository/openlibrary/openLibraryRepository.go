package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ganjargaul/koperasiliterasi/model"
	"github.com/ganjargaul/koperasiliterasi/util/httpx"
)

// ErrNotFound means neither catalog knew the ISBN.
var ErrNotFound = errors.New("book not found in external catalogs")

type Repo interface {
	LookupISBN(ctx context.Context, isbn string) (*model.BookMeta, error)
}

type httpRepo struct {
	client *http.Client

	// overridable for tests
	openLibraryURL string
	googleBooksURL string
}

func NewHTTP() Repo {
	return &httpRepo{
		client:         httpx.Client(),
		openLibraryURL: "https://openlibrary.org/api/books",
		googleBooksURL: "https://www.googleapis.com/books/v1/volumes",
	}
}

// LookupISBN tries Open Library first, then falls back to Google Books.
func (r *httpRepo) LookupISBN(ctx context.Context, isbn string) (*model.BookMeta, error) {
	if meta, err := r.fromOpenLibrary(ctx, isbn); err == nil {
		return meta, nil
	}
	if meta, err := r.fromGoogleBooks(ctx, isbn); err == nil {
		return meta, nil
	}
	return nil, ErrNotFound
}

func (r *httpRepo) fromOpenLibrary(ctx context.Context, isbn string) (*model.BookMeta, error) {
	url := fmt.Sprintf("%s?bibkeys=ISBN:%s&format=json&jscmd=data", r.openLibraryURL, isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open library: %s", resp.Status)
	}

	var payload map[string]struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
		Authors  []struct {
			Name string `json:"name"`
		} `json:"authors"`
		Cover struct {
			Large  string `json:"large"`
			Medium string `json:"medium"`
			Small  string `json:"small"`
		} `json:"cover"`
		Publishers []struct {
			Name string `json:"name"`
		} `json:"publishers"`
		PublishDate string `json:"publish_date"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	data, ok := payload["ISBN:"+isbn]
	if !ok {
		return nil, ErrNotFound
	}

	meta := &model.BookMeta{
		Title:       data.Title,
		Author:      "Unknown",
		ISBN:        isbn,
		Description: data.Subtitle,
	}
	if len(data.Authors) > 0 && data.Authors[0].Name != "" {
		meta.Author = data.Authors[0].Name
	}
	if cover := firstNonEmpty(data.Cover.Large, data.Cover.Medium, data.Cover.Small); cover != "" {
		meta.CoverImage = &cover
	}
	if len(data.Publishers) > 0 && data.Publishers[0].Name != "" {
		meta.Publisher = &data.Publishers[0].Name
	}
	if data.PublishDate != "" {
		meta.PublishDate = &data.PublishDate
	}
	return meta, nil
}

func (r *httpRepo) fromGoogleBooks(ctx context.Context, isbn string) (*model.BookMeta, error) {
	url := fmt.Sprintf("%s?q=isbn:%s", r.googleBooksURL, isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books: %s", resp.Status)
	}

	var payload struct {
		Items []struct {
			VolumeInfo struct {
				Title         string   `json:"title"`
				Authors       []string `json:"authors"`
				Description   string   `json:"description"`
				Publisher     string   `json:"publisher"`
				PublishedDate string   `json:"publishedDate"`
				ImageLinks    struct {
					Thumbnail      string `json:"thumbnail"`
					SmallThumbnail string `json:"smallThumbnail"`
				} `json:"imageLinks"`
			} `json:"volumeInfo"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, ErrNotFound
	}
	vol := payload.Items[0].VolumeInfo

	meta := &model.BookMeta{
		Title:       vol.Title,
		Author:      "Unknown",
		ISBN:        isbn,
		Description: vol.Description,
	}
	if len(vol.Authors) > 0 {
		meta.Author = vol.Authors[0]
	}
	if cover := firstNonEmpty(vol.ImageLinks.Thumbnail, vol.ImageLinks.SmallThumbnail); cover != "" {
		meta.CoverImage = &cover
	}
	if vol.Publisher != "" {
		meta.Publisher = &vol.Publisher
	}
	if vol.PublishedDate != "" {
		meta.PublishDate = &vol.PublishedDate
	}
	return meta, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
