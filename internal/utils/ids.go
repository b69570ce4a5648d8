package utils

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateNanoIDWithPrefix returns identifiers like "acct_k3x09..." used for
// accounts that come without an explicit ID.
func GenerateNanoIDWithPrefix(prefix string, length int) string {
	id := gonanoid.MustGenerate(idAlphabet, length)
	if prefix == "" {
		return id
	}
	return strings.Join([]string{prefix, id}, "_")
}
