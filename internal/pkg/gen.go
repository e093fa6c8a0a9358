package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateLobbyCode - generates a 4-digit code players can type to join.
// Uniqueness is the caller's problem; codes are recycled once a lobby dies.
func GenerateLobbyCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}

// GeneratePlayerID - generates a unique identifier for a player.
func GeneratePlayerID() string {
	return uuid.NewString()
}

// GenerateTemplateID - generates a unique identifier for a game template.
func GenerateTemplateID() string {
	return uuid.NewString()
}
