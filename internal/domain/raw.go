package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrMalformedInput indicates a transfer payload whose top-level value is not a JSON array.
var ErrMalformedInput = errors.New("malformed transfer payload: expected JSON array")

// RawTransfer is one record as returned by the archive's transaction query.
// Field names follow the query bindings; unknown bindings are kept in Extra.
type RawTransfer struct {
	When           string // w
	TransactionURI string // t
	TransferURI    string // tr
	FromURI        string // f
	FromName       string // fn
	ToURI          string // to
	ToName         string // tn
	Entry          string // e
	ResourceLabel  string // ml
	CommodityURI   string // c
	CommodityLabel string // cl
	Measure        string // measure
	Extra          map[string]json.RawMessage
}

var rawTransferKeys = []string{"w", "t", "tr", "f", "fn", "to", "tn", "e", "ml", "c", "cl", "measure"}

func (r *RawTransfer) field(key string) *string {
	switch key {
	case "w":
		return &r.When
	case "t":
		return &r.TransactionURI
	case "tr":
		return &r.TransferURI
	case "f":
		return &r.FromURI
	case "fn":
		return &r.FromName
	case "to":
		return &r.ToURI
	case "tn":
		return &r.ToName
	case "e":
		return &r.Entry
	case "ml":
		return &r.ResourceLabel
	case "c":
		return &r.CommodityURI
	case "cl":
		return &r.CommodityLabel
	case "measure":
		return &r.Measure
	}
	return nil
}

// UnmarshalJSON decodes a raw record. Known bindings that arrive as non-string
// scalars keep their literal text; null leaves the field empty.
func (r *RawTransfer) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode raw transfer: %w", err)
	}
	*r = RawTransfer{}
	for key, value := range fields {
		dst := r.field(key)
		if dst == nil {
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = value
			continue
		}
		*dst = scalarText(value)
	}
	return nil
}

// MarshalJSON writes the known bindings that are set followed by Extra.
func (r RawTransfer) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(rawTransferKeys)+len(r.Extra))
	for key, value := range r.Extra {
		out[key] = value
	}
	for _, key := range rawTransferKeys {
		if v := *r.field(key); v != "" {
			out[key] = v
		}
	}
	return json.Marshal(out)
}

// ExtraKeys returns the names of the preserved unknown fields in sorted order.
func (r RawTransfer) ExtraKeys() []string {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scalarText(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return strings.TrimSpace(string(trimmed))
}

// DecodeRawTransfers reads a transfer payload. The payload must be a JSON array;
// anything else is reported as ErrMalformedInput.
func DecodeRawTransfers(r io.Reader) ([]RawTransfer, error) {
	var payload json.RawMessage
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformedInput
	}
	var records []RawTransfer
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode transfers: %w", err)
	}
	if records == nil {
		records = []RawTransfer{}
	}
	return records, nil
}
