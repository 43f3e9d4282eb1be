package archive

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// sparqlResults mirrors the archive's SPARQL XML tuple format. Element names
// are matched by local name so the result namespace does not matter.
type sparqlResults struct {
	Rows []sparqlRow `xml:"results>result"`
}

type sparqlRow struct {
	PID struct {
		URI string `xml:"uri,attr"`
	} `xml:"pid"`
	Identifier  string `xml:"identifier"`
	Title       string `xml:"title"`
	Date        string `xml:"date"`
	Coverage    string `xml:"coverage"`
	Description string `xml:"description"`
	Contributor string `xml:"contributor"`
}

func decodeRows(r io.Reader) ([]sparqlRow, error) {
	var res sparqlResults
	if err := xml.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}
	return res.Rows, nil
}

// ContextIDFromPID returns the segment after the first "/" of a pid URI,
// e.g. "info:fedora/context:depcha.wheaton" yields "context:depcha.wheaton".
func ContextIDFromPID(pid string) string {
	parts := strings.Split(pid, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ParseContexts folds SPARQL rows into contexts. The query yields one row per
// contributor, so rows sharing a context are merged and contributors deduplicated.
func ParseContexts(r io.Reader) ([]domain.Context, error) {
	rows, err := decodeRows(r)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	contexts := []domain.Context{}
	for _, row := range rows {
		id := ContextIDFromPID(strings.TrimSpace(row.PID.URI))
		if id == "" {
			continue
		}
		pos, ok := index[id]
		if !ok {
			pos = len(contexts)
			index[id] = pos
			contexts = append(contexts, domain.Context{
				ID:           id,
				Title:        strings.TrimSpace(row.Title),
				Date:         strings.TrimSpace(row.Date),
				Coverage:     strings.TrimSpace(row.Coverage),
				Description:  strings.TrimSpace(row.Description),
				Contributors: []string{},
				Books:        []domain.Book{},
			})
		}
		contributor := strings.TrimSpace(row.Contributor)
		if contributor == "" || slices.Contains(contexts[pos].Contributors, contributor) {
			continue
		}
		contexts[pos].Contributors = append(contexts[pos].Contributors, contributor)
	}
	return contexts, nil
}

// ParseBooks reads the books of a context. Rows without an identifier are skipped.
func ParseBooks(r io.Reader) ([]domain.Book, error) {
	rows, err := decodeRows(r)
	if err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.Identifier)
		if id == "" {
			continue
		}
		books = append(books, domain.Book{
			ID:          id,
			Title:       strings.TrimSpace(row.Title),
			Date:        strings.TrimSpace(row.Date),
			Description: strings.TrimSpace(row.Description),
		})
	}
	return books, nil
}
