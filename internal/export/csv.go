// Package export renders analysis results as CSV files and XLSX workbooks.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

const listSeparator = "; "

var (
	TransactionHeaders = []string{"Date", "From", "To", "Type", "Details", "Value", "Commodities"}
	TraderHeaders      = []string{"Rank", "ID", "Name", "Transactions", "Transfers", "Value", "Books"}
	TimeSeriesHeaders  = []string{"Period", "Transactions", "Transfers", "Value", "Commodities"}
	BookHeaders        = []string{"Book", "Transactions", "Transfers", "Traders", "Commodities", "Value", "First", "Last"}
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	// BOMPrefix adds a UTF-8 byte order mark so spreadsheet tools detect the encoding.
	BOMPrefix bool
}

// WriteCSV writes headers followed by records.
func WriteCSV(w io.Writer, headers []string, records [][]string, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTransactionsCSV writes one row per transaction.
func WriteTransactionsCSV(w io.Writer, transactions []*domain.Transaction, opts CSVOptions) error {
	return WriteCSV(w, TransactionHeaders, TransactionRecords(transactions), opts)
}

// WriteTradersCSV writes one row per ranked trader.
func WriteTradersCSV(w io.Writer, traders []domain.TraderRank, opts CSVOptions) error {
	return WriteCSV(w, TraderHeaders, TraderRecords(traders), opts)
}

// WriteTimeSeriesCSV writes one row per time bucket.
func WriteTimeSeriesCSV(w io.Writer, series []domain.TimeBucket, opts CSVOptions) error {
	return WriteCSV(w, TimeSeriesHeaders, TimeSeriesRecords(series), opts)
}

// TransactionRecords formats transactions as CSV rows. Multi-valued cells
// are joined with "; " and a zero total value is left blank.
func TransactionRecords(transactions []*domain.Transaction) [][]string {
	records := make([][]string, 0, len(transactions))
	for _, tx := range transactions {
		types := make([]string, 0, len(tx.Types))
		for _, rt := range tx.Types {
			types = append(types, string(rt))
		}
		details := make([]string, 0, len(tx.Transfers))
		for _, tr := range tx.Transfers {
			details = append(details, tr.Details)
		}
		commodities := make([]string, 0, len(tx.Commodities))
		for _, c := range tx.Commodities {
			commodities = append(commodities, fmt.Sprintf("%s (%s)", c.Name, c.Measure))
		}
		value := ""
		if tx.TotalValue != 0 {
			value = formatFloat(tx.TotalValue)
		}
		records = append(records, []string{
			tx.Date.Format("2006-01-02"),
			agentNames(tx.Agents.From),
			agentNames(tx.Agents.To),
			strings.Join(types, listSeparator),
			strings.Join(details, listSeparator),
			value,
			strings.Join(commodities, listSeparator),
		})
	}
	return records
}

// TraderRecords formats a ranking as CSV rows, rank starting at 1.
func TraderRecords(traders []domain.TraderRank) [][]string {
	records := make([][]string, 0, len(traders))
	for i, r := range traders {
		records = append(records, []string{
			strconv.Itoa(i + 1),
			r.ID,
			r.Name,
			strconv.Itoa(r.Count),
			strconv.Itoa(r.Transfers),
			formatFloat(r.Value),
			strings.Join(r.Books, listSeparator),
		})
	}
	return records
}

// TimeSeriesRecords formats buckets as CSV rows.
func TimeSeriesRecords(series []domain.TimeBucket) [][]string {
	records := make([][]string, 0, len(series))
	for _, b := range series {
		records = append(records, []string{
			b.Date,
			strconv.Itoa(b.Count),
			strconv.Itoa(b.Transfers),
			formatFloat(b.TotalValue),
			strings.Join(b.Commodities, listSeparator),
		})
	}
	return records
}

// BookRecords formats per-book statistics as CSV rows.
func BookRecords(books []domain.BookStatistics) [][]string {
	records := make([][]string, 0, len(books))
	for _, b := range books {
		first, last := "", ""
		if b.DateRange.Start != nil {
			first = b.DateRange.Start.Format("2006-01-02")
		}
		if b.DateRange.End != nil {
			last = b.DateRange.End.Format("2006-01-02")
		}
		records = append(records, []string{
			b.BookID,
			strconv.Itoa(b.TotalTransactions),
			strconv.Itoa(b.TotalTransfers),
			strconv.Itoa(b.UniqueTraders),
			strconv.Itoa(b.UniqueCommodities),
			formatFloat(b.TotalValue),
			first,
			last,
		})
	}
	return records
}

func agentNames(agents []domain.AgentRef) string {
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
	}
	return strings.Join(names, listSeparator)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
