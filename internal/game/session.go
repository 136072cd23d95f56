package game

import (
	"crypto/rand"
	"encoding/hex"
)

// generateSessionID creates a cryptographically random session id, the
// opaque token a client presents on reconnect.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the system entropy source is broken;
		// fall back to a fixed, clearly-invalid token rather than panic,
		// so the caller still gets a string it can reject downstream.
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}
