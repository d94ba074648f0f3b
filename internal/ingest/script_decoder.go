package ingest

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

type decodedScript struct {
	Type      string
	Asm       string
	Addresses []string
}

// scriptDecoder classifies output scripts and extracts their addresses using
// the params of one network.
type scriptDecoder struct {
	params *chaincfg.Params
}

func (d *scriptDecoder) decodePkScript(scriptHex string) (decodedScript, error) {
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return decodedScript{}, fmt.Errorf("decode script hex: %w", err)
	}

	class, addrs, _, err := txscript.ExtractPkScriptAddrs(script, d.params)
	if err != nil {
		return decodedScript{}, fmt.Errorf("extract addresses: %w", err)
	}

	var addresses []string
	if len(addrs) > 0 {
		addresses = make([]string, 0, len(addrs))
		for _, addr := range addrs {
			addresses = append(addresses, addr.EncodeAddress())
		}
	}

	return decodedScript{
		Type:      class.String(),
		Asm:       disasm(script),
		Addresses: addresses,
	}, nil
}

// disasm renders script as far as it parses; a malformed tail is marked
// with "[error]".
func disasm(script []byte) string {
	asm, _ := txscript.DisasmString(script)
	return asm
}
