package domain

import "time"

// Context is an archive collection grouping one or more account books.
type Context struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Date         string   `json:"date,omitempty"`
	Coverage     string   `json:"coverage,omitempty"`
	Description  string   `json:"description,omitempty"`
	Contributors []string `json:"contributors"`
	Books        []Book   `json:"books"`
}

// Book is a source document inside a context.
type Book struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
}

// BookLoadStatus records the outcome of fetching one book.
type BookLoadStatus struct {
	BookID  string `json:"bookId"`
	Success bool   `json:"success"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// LoadStatus summarises the book fetches of a context load.
type LoadStatus struct {
	Total      int              `json:"total"`
	Loaded     int              `json:"loaded"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Complete   bool             `json:"isComplete"`
	Books      []BookLoadStatus `json:"books"`
	LoadedAt   time.Time        `json:"loadedAt"`
}
