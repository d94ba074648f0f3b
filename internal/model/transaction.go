package model

import "time"

// Transaction is a decoded transaction with its accounting.
type Transaction struct {
	Coin        Coin
	Network     Network
	TxID        string
	BlockHeight uint64
	BlockHash   string
	// Position is the index of the transaction inside its block.
	Position    uint32
	Timestamp   time.Time
	Size        uint32
	VSize       uint32
	Weight      uint32
	Version     uint32
	LockTime    uint32
	InputCount  uint32
	OutputCount uint32
	HasWitness  bool
	IsCoinbase  bool
}

// TransactionInput is a reference to a previous transaction output.
type TransactionInput struct {
	Coin         Coin
	Network      Network
	BlockHeight  uint64
	TxID         string
	Index        uint32
	PrevTxID     string
	PrevVout     uint32
	Sequence     uint32
	IsCoinbase   bool
	ScriptSigHex string
	ScriptSigAsm string
	Witness      []string
}

// TransactionOutput is an output produced by a transaction.
type TransactionOutput struct {
	Coin        Coin
	Network     Network
	BlockHeight uint64
	TxID        string
	Index       uint32
	Value       uint64
	ScriptType  string
	ScriptHex   string
	ScriptAsm   string
	Addresses   []string
}
