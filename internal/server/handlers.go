package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/export"
	"github.com/chpollin/depcha-dashboard/internal/pipeline"
	"github.com/chpollin/depcha-dashboard/internal/repository"
	"github.com/chpollin/depcha-dashboard/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// PartnerLookup resolves trading partners from the graph store.
type PartnerLookup interface {
	TradingPartners(ctx context.Context, agentID, contextID string) ([]repository.TradingPartner, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger   *slog.Logger
	service  *service.ContextService
	partners PartnerLookup
	validate *validator.Validate
}

// NewAPIHandlers constructs an APIHandlers instance. partners may be nil when
// no graph database is configured.
func NewAPIHandlers(logger *slog.Logger, svc *service.ContextService, partners PartnerLookup) *APIHandlers {
	return &APIHandlers{
		logger:   logger.With("component", "api"),
		service:  svc,
		partners: partners,
		validate: validator.New(),
	}
}

// Routes registers the API endpoints on r.
func (h *APIHandlers) Routes(r chi.Router) {
	r.Get("/contexts", h.listContexts)
	r.Route("/contexts/{contextID}", func(r chi.Router) {
		r.Get("/", h.getContext)
		r.Get("/books", h.listBooks)
		r.Post("/load", h.loadContext)
		r.Get("/status", h.loadStatus)
		r.Get("/analysis", h.analysis)
		r.Get("/transactions", h.listTransactions)
		r.Get("/timeseries", h.timeSeries)
		r.Get("/network", h.network)
		r.Get("/traders", h.traders)
		r.Get("/statistics", h.statistics)
		r.Get("/books-stats", h.bookStatistics)
		r.Get("/filters", h.filterOptions)
		r.Get("/export", h.export)
		r.Post("/graph", h.exportGraph)
	})
	r.Get("/agents/{agentID}/partners", h.tradingPartners)
}

// analysisQuery carries the dashboard filter and view parameters.
type analysisQuery struct {
	DateRange       string `validate:"omitempty,max=16"`
	TransactionType string `validate:"omitempty,max=64"`
	Commodity       string `validate:"omitempty,max=256"`
	View            string `validate:"omitempty,oneof=monthly quarterly yearly"`
	Limit           int    `validate:"min=0,max=1000"`
	Offset          int    `validate:"min=0"`
	Recent          int    `validate:"min=0,max=1000"`
}

func (q analysisQuery) filter() pipeline.Filter {
	return pipeline.Filter{
		DateRange:       q.DateRange,
		TransactionType: q.TransactionType,
		Commodity:       q.Commodity,
	}
}

func (h *APIHandlers) parseQuery(r *http.Request) (analysisQuery, error) {
	values := r.URL.Query()
	q := analysisQuery{
		DateRange:       strings.TrimSpace(values.Get("dateRange")),
		TransactionType: strings.TrimSpace(values.Get("transactionType")),
		Commodity:       values.Get("commodity"),
		View:            strings.ToLower(strings.TrimSpace(values.Get("view"))),
	}
	var err error
	if q.Limit, err = parseInt(values.Get("limit"), 0); err != nil {
		return q, fmt.Errorf("limit: %w", err)
	}
	if q.Offset, err = parseInt(values.Get("offset"), 0); err != nil {
		return q, fmt.Errorf("offset: %w", err)
	}
	if q.Recent, err = parseInt(values.Get("recent"), 0); err != nil {
		return q, fmt.Errorf("recent: %w", err)
	}
	if err := h.validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// analyze runs the filtered analysis for a request. limit ranks traders only
// when ranked is set; elsewhere it is a page size and must not change the ranking.
func (h *APIHandlers) analyze(w http.ResponseWriter, r *http.Request, ranked bool) (pipeline.Analysis, analysisQuery, bool) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid query: "+err.Error())
		return pipeline.Analysis{}, q, false
	}
	view, err := pipeline.ParseGranularity(q.View)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return pipeline.Analysis{}, q, false
	}

	opts := pipeline.Options{View: view, RecentLimit: q.Recent}
	if ranked {
		opts.TraderLimit = q.Limit
	}
	contextID := chi.URLParam(r, "contextID")
	analysis, err := h.service.Analyze(r.Context(), contextID, q.filter(), opts)
	if err != nil {
		h.fail(w, r, err, "failed to analyse context", "context", contextID)
		return pipeline.Analysis{}, q, false
	}
	return analysis, q, true
}

func (h *APIHandlers) listContexts(w http.ResponseWriter, r *http.Request) {
	contexts, err := h.service.Contexts(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list contexts")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"data": contexts,
	})
}

func (h *APIHandlers) getContext(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	c, err := h.service.Context(r.Context(), contextID)
	if err != nil {
		h.fail(w, r, err, "failed to fetch context", "context", contextID)
		return
	}
	respondJSON(w, r, http.StatusOK, c)
}

func (h *APIHandlers) listBooks(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	books, err := h.service.Books(r.Context(), contextID)
	if err != nil {
		h.fail(w, r, err, "failed to list books", "context", contextID)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"contextId": contextID,
		"data":      books,
	})
}

func (h *APIHandlers) loadContext(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	snap, err := h.service.Load(r.Context(), contextID)
	if err != nil {
		h.fail(w, r, err, "failed to load context", "context", contextID)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

func (h *APIHandlers) loadStatus(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	status, err := h.service.LoadStatus(contextID)
	if err != nil {
		h.fail(w, r, err, "failed to fetch load status", "context", contextID)
		return
	}
	respondJSON(w, r, http.StatusOK, status)
}

func (h *APIHandlers) analysis(w http.ResponseWriter, r *http.Request) {
	analysis, _, ok := h.analyze(w, r, true)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, analysis)
}

type transactionPage struct {
	Data       []*domain.Transaction `json:"data"`
	Pagination paginationMeta        `json:"pagination"`
}

type paginationMeta struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

func (h *APIHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	analysis, q, ok := h.analyze(w, r, false)
	if !ok {
		return
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	total := len(analysis.Transactions)
	start := min(q.Offset, total)
	end := min(start+limit, total)
	respondJSON(w, r, http.StatusOK, transactionPage{
		Data: analysis.Transactions[start:end],
		Pagination: paginationMeta{
			Total:   total,
			Offset:  start,
			Limit:   limit,
			HasMore: end < total,
		},
	})
}

func (h *APIHandlers) timeSeries(w http.ResponseWriter, r *http.Request) {
	analysis, _, ok := h.analyze(w, r, false)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"view": analysis.View,
		"data": analysis.TimeSeries,
	})
}

func (h *APIHandlers) network(w http.ResponseWriter, r *http.Request) {
	analysis, _, ok := h.analyze(w, r, false)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, analysis.Network)
}

func (h *APIHandlers) traders(w http.ResponseWriter, r *http.Request) {
	analysis, _, ok := h.analyze(w, r, true)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"data": analysis.TopTraders,
	})
}

func (h *APIHandlers) statistics(w http.ResponseWriter, r *http.Request) {
	analysis, _, ok := h.analyze(w, r, false)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"statistics":   analysis.Statistics,
		"distribution": analysis.Distribution,
		"seasonal":     analysis.Seasonal,
	})
}

func (h *APIHandlers) bookStatistics(w http.ResponseWriter, r *http.Request) {
	analysis, _, ok := h.analyze(w, r, false)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"data": analysis.BookStatistics,
	})
}

func (h *APIHandlers) filterOptions(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	opts, err := h.service.FilterOptions(r.Context(), contextID)
	if err != nil {
		h.fail(w, r, err, "failed to fetch filter options", "context", contextID)
		return
	}
	respondJSON(w, r, http.StatusOK, opts)
}

func (h *APIHandlers) export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	table := strings.ToLower(r.URL.Query().Get("table"))
	if table == "" {
		table = "transactions"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, r, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	if format == "csv" && table != "transactions" && table != "traders" && table != "timeseries" && table != "books" {
		writeError(w, r, http.StatusBadRequest, "table must be transactions, traders, timeseries or books")
		return
	}

	analysis, _, ok := h.analyze(w, r, true)
	if !ok {
		return
	}
	contextID := chi.URLParam(r, "contextID")
	stamp := time.Now().UTC().Format("20060102")

	if format == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", attachment(contextID, "analysis", stamp, "xlsx"))
		if err := export.WriteWorkbook(w, analysis); err != nil {
			h.logger.Error("failed to write workbook", "error", err, "context", contextID)
		}
		return
	}

	var (
		headers []string
		records [][]string
	)
	switch table {
	case "traders":
		headers, records = export.TraderHeaders, export.TraderRecords(analysis.TopTraders)
	case "timeseries":
		headers, records = export.TimeSeriesHeaders, export.TimeSeriesRecords(analysis.TimeSeries)
	case "books":
		headers, records = export.BookHeaders, export.BookRecords(analysis.BookStatistics)
	default:
		headers, records = export.TransactionHeaders, export.TransactionRecords(analysis.Transactions)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(contextID, table, stamp, "csv"))
	if err := export.WriteCSV(w, headers, records, export.CSVOptions{BOMPrefix: true}); err != nil {
		h.logger.Error("failed to write csv", "error", err, "context", contextID, "table", table)
	}
}

func attachment(contextID, table, stamp, ext string) string {
	name := strings.NewReplacer("/", "_", ":", "_", "\"", "").Replace(contextID)
	return fmt.Sprintf("attachment; filename=\"%s-%s-%s.%s\"", name, table, stamp, ext)
}

func (h *APIHandlers) exportGraph(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	contextID := chi.URLParam(r, "contextID")
	network, err := h.service.ExportGraph(r.Context(), contextID, q.filter())
	if err != nil {
		h.fail(w, r, err, "failed to export network", "context", contextID)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"contextId": contextID,
		"nodes":     len(network.Nodes),
		"links":     len(network.Links),
	})
}

func (h *APIHandlers) tradingPartners(w http.ResponseWriter, r *http.Request) {
	if h.partners == nil {
		writeError(w, r, http.StatusServiceUnavailable, service.ErrGraphUnavailable.Error())
		return
	}
	agentID := chi.URLParam(r, "agentID")
	contextID := strings.TrimSpace(r.URL.Query().Get("context"))

	partners, err := h.partners.TradingPartners(r.Context(), agentID, contextID)
	if err != nil {
		h.fail(w, r, err, "failed to fetch trading partners", "agent", agentID, "context", contextID)
		return
	}
	if partners == nil {
		partners = []repository.TradingPartner{}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"agentId":   agentID,
		"contextId": contextID,
		"data":      partners,
	})
}

// fail maps service errors to status codes. Unexpected errors are logged and
// reported with msg only.
func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, service.ErrContextNotFound), errors.Is(err, service.ErrNotLoaded):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrInvalidFilter):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGraphUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "request cancelled before the context finished loading")
	default:
		h.logger.Error(msg, append(attrs, "error", err)...)
		writeError(w, r, http.StatusInternalServerError, msg)
	}
}

func parseInt(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
