package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// CatalogFile describes the contexts of a Directory. It is optional.
const CatalogFile = "catalog.json"

// LocalContextID names the single context of a Directory without a catalog.
const LocalContextID = "local"

// ErrInvalidBookID is returned for book IDs that cannot name a file.
var ErrInvalidBookID = errors.New("invalid book id")

// Directory serves books stored as <bookID>.json files under Root.
// Contexts come from Root/catalog.json when present; otherwise every book
// belongs to one context named "local".
type Directory struct {
	Root string
}

// NewDirectory returns a Directory rooted at dir.
func NewDirectory(dir string) *Directory {
	return &Directory{Root: dir}
}

// ListContexts reads the catalog, or synthesises the local context.
func (d *Directory) ListContexts(ctx context.Context) ([]domain.Context, error) {
	contexts, err := d.readCatalog()
	if err == nil {
		return contexts, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	books, err := d.scanBooks()
	if err != nil {
		return nil, err
	}
	return []domain.Context{{
		ID:           LocalContextID,
		Title:        "Local account books",
		Contributors: []string{},
		Books:        books,
	}}, nil
}

// ListBooks returns the books of a context in catalog order.
func (d *Directory) ListBooks(ctx context.Context, contextID string) ([]domain.Book, error) {
	contexts, err := d.ListContexts(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range contexts {
		if c.ID == contextID {
			return c.Books, nil
		}
	}
	return []domain.Book{}, nil
}

// FetchTransfers decodes Root/<bookID>.json.
func (d *Directory) FetchTransfers(ctx context.Context, bookID string) ([]domain.RawTransfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.BookPath(bookID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open book %s: %w", bookID, err)
	}
	defer f.Close()

	records, err := domain.DecodeRawTransfers(f)
	if err != nil {
		return nil, fmt.Errorf("read book %s: %w", bookID, err)
	}
	return records, nil
}

// BookPath is the file holding a book's records.
func (d *Directory) BookPath(bookID string) (string, error) {
	if bookID == "" || bookID == "." || bookID == ".." || strings.ContainsAny(bookID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBookID, bookID)
	}
	return filepath.Join(d.Root, bookID+".json"), nil
}

func (d *Directory) readCatalog() ([]domain.Context, error) {
	data, err := os.ReadFile(filepath.Join(d.Root, CatalogFile))
	if err != nil {
		return nil, err
	}
	var contexts []domain.Context
	if err := json.Unmarshal(data, &contexts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", CatalogFile, err)
	}
	for i := range contexts {
		if contexts[i].Contributors == nil {
			contexts[i].Contributors = []string{}
		}
		if contexts[i].Books == nil {
			contexts[i].Books = []domain.Book{}
		}
	}
	return contexts, nil
}

func (d *Directory) scanBooks() ([]domain.Book, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", d.Root, err)
	}
	books := []domain.Book{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == CatalogFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		books = append(books, domain.Book{ID: strings.TrimSuffix(name, ".json")})
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// WriteCatalog stores contexts as Root/catalog.json.
func (d *Directory) WriteCatalog(contexts []domain.Context) error {
	data, err := json.MarshalIndent(contexts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.Root, err)
	}
	return os.WriteFile(filepath.Join(d.Root, CatalogFile), data, 0o644)
}

// WriteBook stores a book's raw records as Root/<bookID>.json.
func (d *Directory) WriteBook(bookID string, records []domain.RawTransfer) error {
	path, err := d.BookPath(bookID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.Root, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode book %s: %w", bookID, err)
	}
	return nil
}
