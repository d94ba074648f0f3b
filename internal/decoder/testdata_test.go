package decoder

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// genesisBlock returns the serialized main network genesis block.
func genesisBlock(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, chaincfg.MainNetParams.GenesisBlock.Serialize(&buf))
	return buf.Bytes()
}

func serializeTx(t *testing.T, tx *wire.MsgTx) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return buf.Bytes()
}

// Published P2WPKH spend from segnet block 23157, with its txid and wtxid.
const (
	publishedWitnessTxHex = "01000000000101a53352d5135766f03076597418263da2d9c958315968fea823529467481ff9cd" +
		"1300000000ffffffff010b070600000000001600149ddac6f39d51e0398e532a22c41ba189406a8523" +
		"02463043021f4d2381dc97f182abd8185f51753018523212f5ddc07cc4e63a8dc03658da190220608b" +
		"5c4d92b86b6de7d78ef23a2fa735bcb59b914a48b0e187c5e7569a18197001210307ead084807eb763" +
		"46df6977000c89392f45c76425b26181f521d7f370066a8f00000000"
	publishedWitnessTxID  = "0f167d1385a84d1518cfee208b653fc9163b605ccf1b75347e2850b3e2eb19f3"
	publishedWitnessWTxID = "0858eab78e77b6b033da30f46699996396cf48fcf625a783c85a51403e175e74"
)

// sampleWitnessTx spends two outputs, the second with an empty witness.
func sampleWitnessTx() *wire.MsgTx {
	prev, _ := chainhash.NewHashFromStr("9f96ade4b41d5433f4eda31e1738ec2b36f6e7d1420d94a6af99801a88f7f7ff")

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prev, 0), nil, wire.TxWitness{
		bytes.Repeat([]byte{0x30}, 71),
		bytes.Repeat([]byte{0x02}, 33),
	}))
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prev, 1), []byte{0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(112_340_000, append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0xab}, 20)...)))
	tx.AddTxOut(wire.NewTxOut(223_450_000, []byte{0x6a}))
	tx.LockTime = 800_000
	return tx
}

// sampleLegacyTx has no witness data.
func sampleLegacyTx() *wire.MsgTx {
	prev, _ := chainhash.NewHashFromStr("0437cd7f8525ceed2324359c2d0ba26006d92d856a9c20fa0241106ee5a597c9")

	tx := wire.NewMsgTx(1)
	txIn := wire.NewTxIn(wire.NewOutPoint(prev, 0), bytes.Repeat([]byte{0x47}, 72), nil)
	txIn.Sequence = 0xfffffffe
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(1_000_000_000, bytes.Repeat([]byte{0x41}, 67)))
	return tx
}
