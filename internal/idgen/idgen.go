// Package idgen provides deterministic identifiers for sessions, orders and
// trades. Uniqueness never depends on wall-clock entropy: session and trade
// ids are content hashes, run-scoped ids come from a monotonic sequence.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ComputeSessionID computes a deterministic session id using SHA256.
// Formula: SHA256(user_id|symbol|start|end|created_at)
// Returns hex-encoded hash (64 characters).
func ComputeSessionID(userID, symbol string, start, end, createdAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d",
		userID,
		symbol,
		start.UnixMilli(),
		end.UnixMilli(),
		createdAt.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic trade id using SHA256.
// Formula: SHA256(session_id|position_id|closed_at)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(sessionID, positionID string, closedAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%d", sessionID, positionID, closedAt.UnixMilli())

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NewRunID returns a random id for API-created handles where no
// deterministic content is available yet.
func NewRunID() string {
	return uuid.NewString()
}
