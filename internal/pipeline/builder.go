package pipeline

import "github.com/chpollin/depcha-dashboard/internal/domain"

// BuildTransfer converts one raw record into a Transfer. Records without a
// parseable date are rejected since nothing else about them can be placed in time.
func BuildTransfer(raw domain.RawTransfer) (domain.Transfer, bool) {
	date, ok := ParseDate(raw.When)
	if !ok {
		return domain.Transfer{}, false
	}

	transfer := domain.Transfer{
		ID:            ExtractID(raw.TransferURI),
		TransactionID: ExtractID(raw.TransactionURI),
		BookID:        BookIDFromURI(raw.TransactionURI),
		Date:          date,
		ResourceType:  ClassifyResource(raw.ResourceLabel),
		From:          agentRef(raw.FromURI, raw.FromName),
		To:            agentRef(raw.ToURI, raw.ToName),
		Details:       raw.Entry,
		Value:         ExtractValue(raw.Entry),
		Raw:           raw,
	}
	if raw.CommodityLabel != "" {
		transfer.Commodity = &domain.CommodityRef{
			ID:      ExtractID(raw.CommodityURI),
			Name:    raw.CommodityLabel,
			Measure: raw.Measure,
		}
	}
	return transfer, true
}

// BuildTransfers converts raw records in order, silently dropping unparseable ones.
func BuildTransfers(raws []domain.RawTransfer) []domain.Transfer {
	transfers := make([]domain.Transfer, 0, len(raws))
	for _, raw := range raws {
		if t, ok := BuildTransfer(raw); ok {
			transfers = append(transfers, t)
		}
	}
	return transfers
}

func agentRef(uri, name string) domain.AgentRef {
	return domain.AgentRef{
		ID:   ExtractID(uri),
		Name: name,
		URI:  uri,
		Type: domain.AgentTypeEconomicAgent,
	}
}
