package generator

import (
	"fmt"

	"github.com/chpollin/depcha-dashboard/internal/archive"
	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// WriteDataset stores the dataset under dir in the layout read by
// archive.Directory: a catalog.json plus one <bookID>.json per book.
func WriteDataset(dataset Dataset, dir string) error {
	target := archive.NewDirectory(dir)
	if err := target.WriteCatalog([]domain.Context{dataset.Context}); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	for _, book := range dataset.Books {
		if err := target.WriteBook(book.Book.ID, book.Records); err != nil {
			return fmt.Errorf("write book %s: %w", book.Book.ID, err)
		}
	}
	return nil
}
