package decoder

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBlock(t *testing.T) {
	raw := buildBlock(t, sampleLegacyTx(), sampleWitnessTx())

	block, err := DecodeBlock(context.Background(), NewBytesSource(raw))
	require.NoError(t, err)
	require.NotNil(t, block.Header)
	require.Nil(t, block.Coinbase)
	require.Len(t, block.Transactions, 2)
	requireMatchesWire(t, sampleWitnessTx(), block.Transactions[1])
}

func TestTransactionJSON(t *testing.T) {
	tests := []struct {
		name        string
		raw         []byte
		wantWitness bool
	}{
		{name: "legacy inputs omit witness", raw: serializeTx(t, sampleLegacyTx())},
		{name: "witness inputs carry witness", raw: serializeTx(t, sampleWitnessTx()), wantWitness: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := DecodeTransactionHex(context.Background(), hex.EncodeToString(tt.raw))
			require.NoError(t, err)

			data, err := json.Marshal(tx)
			require.NoError(t, err)

			var got struct {
				Type    string           `json:"type"`
				Inputs  []map[string]any `json:"inputs"`
				Outputs []map[string]any `json:"outputs"`
			}
			require.NoError(t, json.Unmarshal(data, &got))
			require.Equal(t, "TX", got.Type)
			require.Len(t, got.Inputs, len(tx.Inputs))
			for _, in := range got.Inputs {
				witness, ok := in["witness"]
				require.Equal(t, tt.wantWitness, ok, "input %v", in)
				if ok {
					require.NotNil(t, witness)
				}
			}
			for i, out := range got.Outputs {
				require.Equal(t, tx.Outputs[i].Value.String(), out["value"])
			}
		})
	}
}

func TestTransactionJSONEmptyWitness(t *testing.T) {
	tx, err := DecodeTransactionHex(context.Background(), hex.EncodeToString(serializeTx(t, sampleWitnessTx())))
	require.NoError(t, err)
	require.Equal(t, []string{}, tx.Inputs[1].Witness)

	data, err := json.Marshal(tx)
	require.NoError(t, err)
	require.Contains(t, string(data), `"witness":[]`)
}

func TestAmountText(t *testing.T) {
	tests := []struct {
		value Amount
		want  string
	}{
		{value: 0, want: "0x0"},
		{value: 255, want: "0xff"},
		{value: 5_000_000_000, want: "0x12a05f200"},
	}
	for _, tt := range tests {
		text, err := tt.value.MarshalText()
		require.NoError(t, err)
		require.Equal(t, tt.want, string(text))

		var back Amount
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, tt.value, back)
	}

	var bad Amount
	require.Error(t, bad.UnmarshalText([]byte("ff")))
}

func TestRecordJSONMatchesStandardLibrary(t *testing.T) {
	var records []Record
	for rec, err := range NewParser(NewBytesSource(genesisBlock(t))).Records(context.Background()) {
		require.NoError(t, err)
		records = append(records, rec)
	}
	witness, err := DecodeTransactionHex(context.Background(), publishedWitnessTxHex)
	require.NoError(t, err)
	records = append(records, witness)
	require.Len(t, records, 4)

	for _, rec := range records {
		t.Run(string(rec.Type()), func(t *testing.T) {
			got, err := jsonAPI.Marshal(rec)
			require.NoError(t, err)
			want, err := json.Marshal(rec)
			require.NoError(t, err)
			require.JSONEq(t, string(want), string(got))
			require.Contains(t, string(got), `"type":"`+string(rec.Type())+`"`)
		})
	}
}
