package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTransfer_UnmarshalKeepsUnknownFields(t *testing.T) {
	input := `{"w":"1829-04-21","t":"https://x/o:b.1#T1","e":"cash 4","folio":"12r","hand":{"id":"h1"}}`

	var r RawTransfer
	require.NoError(t, json.Unmarshal([]byte(input), &r))
	assert.Equal(t, "1829-04-21", r.When)
	assert.Equal(t, "https://x/o:b.1#T1", r.TransactionURI)
	assert.Equal(t, "cash 4", r.Entry)
	assert.Equal(t, []string{"folio", "hand"}, r.ExtraKeys())

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}

func TestRawTransfer_NonStringScalars(t *testing.T) {
	var r RawTransfer
	require.NoError(t, json.Unmarshal([]byte(`{"w":1829,"e":12.5,"fn":null,"ml":true}`), &r))
	assert.Equal(t, "1829", r.When)
	assert.Equal(t, "12.5", r.Entry)
	assert.Equal(t, "", r.FromName)
	assert.Equal(t, "true", r.ResourceLabel)
	assert.Empty(t, r.ExtraKeys())
}

func TestRawTransfer_UnmarshalRejectsNonObject(t *testing.T) {
	var r RawTransfer
	assert.Error(t, json.Unmarshal([]byte(`["w"]`), &r))
}

func TestDecodeRawTransfers(t *testing.T) {
	records, err := DecodeRawTransfers(strings.NewReader(` [{"w":"1829"},{"w":"1830","x":1}]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1830", records[1].When)
	assert.Equal(t, []string{"x"}, records[1].ExtraKeys())

	records, err = DecodeRawTransfers(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestDecodeRawTransfers_Malformed(t *testing.T) {
	for _, input := range []string{`{"w":"1829"}`, `null`, `"text"`, ``, `[{`} {
		_, err := DecodeRawTransfers(strings.NewReader(input))
		assert.ErrorIs(t, err, ErrMalformedInput, input)
	}
}
