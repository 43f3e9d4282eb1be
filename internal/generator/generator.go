package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

const baseURI = "https://gams.uni-graz.at/"

// Dataset is a generated context with the raw records of each of its books.
type Dataset struct {
	Context domain.Context `json:"context"`
	Books   []BookRecords  `json:"books"`
}

// BookRecords holds the raw transfers of one generated book.
type BookRecords struct {
	Book    domain.Book          `json:"book"`
	Records []domain.RawTransfer `json:"records"`
}

// Records returns every raw transfer in book order.
func (d Dataset) Records() []domain.RawTransfer {
	var out []domain.RawTransfer
	for _, b := range d.Books {
		out = append(out, b.Records...)
	}
	return out
}

// Generator produces synthetic account book records in the archive's raw format.
type Generator struct {
	cfg       Config
	rand      *rand.Rand
	fragments nameFragments
	shared    []agent
}

type agent struct {
	id   string
	name string
	book string
}

type commodity struct {
	name  string
	unit  string
	price float64
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.ContextID == "" {
		cfg.ContextID = def.ContextID
	}
	if cfg.NumBooks <= 0 {
		cfg.NumBooks = def.NumBooks
	}
	if cfg.TransactionsPerBook <= 0 {
		cfg.TransactionsPerBook = def.TransactionsPerBook
	}
	if cfg.NumAgents < 2 {
		cfg.NumAgents = def.NumAgents
	}
	if cfg.MaxTransfers <= 0 {
		cfg.MaxTransfers = def.MaxTransfers
	}
	if cfg.StartYear <= 0 {
		cfg.StartYear = def.StartYear
	}
	if cfg.Years <= 0 {
		cfg.Years = def.Years
	}
	if cfg.AgentShareChance < 0 {
		cfg.AgentShareChance = 0
	}
	if cfg.UndatedChance < 0 {
		cfg.UndatedChance = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		fragments: defaultNameFragments(),
	}
}

// Generate synthesises the books of one context. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	slug := strings.TrimPrefix(g.cfg.ContextID, "context:")
	ds := Dataset{
		Context: domain.Context{
			ID:           g.cfg.ContextID,
			Title:        "Synthetic ledgers",
			Date:         fmt.Sprintf("%d-%d", g.cfg.StartYear, g.cfg.StartYear+g.cfg.Years-1),
			Description:  "Generated account books for local development.",
			Contributors: []string{"depcha-datagen"},
		},
		Books: make([]BookRecords, 0, g.cfg.NumBooks),
	}

	agentsPerBook := max(2, g.cfg.NumAgents/g.cfg.NumBooks)
	for b := 0; b < g.cfg.NumBooks; b++ {
		bookID := fmt.Sprintf("o:%s.%d", slug, b+1)
		book := domain.Book{
			ID:    bookID,
			Title: fmt.Sprintf("Ledger %d", b+1),
			Date:  fmt.Sprintf("%d", g.cfg.StartYear),
		}
		ds.Context.Books = append(ds.Context.Books, book)

		local := make([]agent, agentsPerBook)
		for i := range local {
			local[i] = agent{
				id:   fmt.Sprintf("P%d-%d", b+1, i+1),
				name: g.randomName(),
				book: bookID,
			}
		}

		records := make([]domain.RawTransfer, 0, g.cfg.TransactionsPerBook*g.cfg.MaxTransfers)
		for i := 0; i < g.cfg.TransactionsPerBook; i++ {
			if err := ctx.Err(); err != nil {
				return Dataset{}, err
			}
			records = append(records, g.transaction(bookID, fmt.Sprintf("B%dT%d", b+1, i+1), local)...)
		}
		g.shared = append(g.shared, local...)
		ds.Books = append(ds.Books, BookRecords{Book: book, Records: records})
	}

	return ds, nil
}

// transaction emits the transfers of one entry. Transaction IDs carry the
// book number because fragments are not scoped to their book when grouped.
func (g *Generator) transaction(bookID, txID string, local []agent) []domain.RawTransfer {
	when := g.randomWhen()
	from := g.pickAgent(local)
	count := 1 + g.rand.Intn(g.cfg.MaxTransfers)

	records := make([]domain.RawTransfer, 0, count)
	for i := 0; i < count; i++ {
		to := g.pickAgent(local)
		if to.id == from.id && to.book == from.book {
			to = local[(g.indexOf(local, from)+1)%len(local)]
		}
		// Roughly one in four entries is a payment back to the sender.
		sender, receiver := from, to
		if i > 0 && g.rand.Float64() < 0.25 {
			sender, receiver = to, from
		}

		rec := domain.RawTransfer{
			When:           when,
			TransactionURI: baseURI + bookID + "#" + txID,
			TransferURI:    fmt.Sprintf("%s%s#%sT%d", baseURI, bookID, txID, i+1),
			FromURI:        baseURI + sender.book + "#" + sender.id,
			FromName:       sender.name,
			ToURI:          baseURI + receiver.book + "#" + receiver.id,
			ToName:         receiver.name,
		}
		g.fillResource(&rec, bookID)
		records = append(records, rec)
	}
	return records
}

func (g *Generator) fillResource(rec *domain.RawTransfer, bookID string) {
	switch roll := g.rand.Float64(); {
	case roll < 0.55:
		c := g.fragments.commodities[g.rand.Intn(len(g.fragments.commodities))]
		qty := 1 + g.rand.Intn(20)
		rec.ResourceLabel = "Commodity"
		rec.CommodityLabel = c.name
		rec.CommodityURI = baseURI + bookID + "#C-" + strings.ReplaceAll(c.name, " ", "-")
		rec.Measure = fmt.Sprintf("%d %s", qty, c.unit)
		rec.Entry = fmt.Sprintf("To %d %s %s @ %.2f %.2f", qty, c.unit, c.name, c.price, float64(qty)*c.price)
	case roll < 0.8:
		rec.ResourceLabel = "Monetary Value"
		rec.Entry = fmt.Sprintf("By cash %.2f", float64(g.rand.Intn(5000))/100+0.25)
	default:
		s := g.fragments.services[g.rand.Intn(len(g.fragments.services))]
		rec.ResourceLabel = "Service"
		rec.Entry = fmt.Sprintf("%s %d days %.2f", s, 1+g.rand.Intn(6), float64(g.rand.Intn(800))/100+0.5)
	}
}

func (g *Generator) pickAgent(local []agent) agent {
	if len(g.shared) > 0 && g.rand.Float64() < g.cfg.AgentShareChance {
		return g.shared[g.rand.Intn(len(g.shared))]
	}
	return local[g.rand.Intn(len(local))]
}

func (g *Generator) indexOf(local []agent, a agent) int {
	for i, l := range local {
		if l.id == a.id && l.book == a.book {
			return i
		}
	}
	return 0
}

// randomWhen mixes year, year-month and full dates the way ledgers record them.
func (g *Generator) randomWhen() string {
	if g.rand.Float64() < g.cfg.UndatedChance {
		return g.fragments.undated[g.rand.Intn(len(g.fragments.undated))]
	}
	year := g.cfg.StartYear + g.rand.Intn(g.cfg.Years)
	month := 1 + g.rand.Intn(12)
	switch roll := g.rand.Float64(); {
	case roll < 0.05:
		return fmt.Sprintf("%04d", year)
	case roll < 0.2:
		return fmt.Sprintf("%04d-%02d", year, month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", year, month, 1+g.rand.Intn(28))
	}
}

func (g *Generator) randomName() string {
	return fmt.Sprintf("%s %s", g.fragments.first[g.rand.Intn(len(g.fragments.first))],
		g.fragments.last[g.rand.Intn(len(g.fragments.last))])
}

type nameFragments struct {
	first       []string
	last        []string
	services    []string
	undated     []string
	commodities []commodity
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:    []string{"Laban", "Mary", "Elias", "Hannah", "Josiah", "Abigail", "Nathan", "Sarah", "Silas", "Lydia", "Eben", "Ruth"},
		last:     []string{"Wheaton", "Morse", "Fuller", "Hodges", "Bassett", "Leonard", "Cobb", "Tisdale", "Pratt", "Shepard"},
		services: []string{"hauling", "weaving", "carting", "mowing", "blacksmith work", "board"},
		undated:  []string{"", "sometime in spring", "18--", "illegible"},
		commodities: []commodity{
			{name: "corn", unit: "bushels", price: 0.75},
			{name: "rye", unit: "bushels", price: 0.67},
			{name: "sugar", unit: "lb", price: 0.12},
			{name: "molasses", unit: "gallons", price: 0.4},
			{name: "cloth", unit: "yards", price: 0.3},
			{name: "nails", unit: "lb", price: 0.08},
			{name: "tea", unit: "lb", price: 0.6},
		},
	}
}
