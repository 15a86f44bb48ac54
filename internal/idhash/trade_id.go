package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(connector|symbol|side|opened_at_ms)
// Returns hex-encoded hash (64 characters).
//
// One position slot can only open one trade at a given millisecond, so the
// tuple is unique for the lifetime of the ledger.
func ComputeTradeID(connector, symbol, side string, openedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", connector, symbol, side, openedAtMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
