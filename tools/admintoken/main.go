// Command admintoken prints the ADMIN_TOKEN_HASH value for an admin token.
// Without an argument it generates a fresh token first.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
)

func hashToken(token string) string {
	h := sha256.New()
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

func main() {
	var token string
	switch len(os.Args) {
	case 1:
		token = uuid.NewString()
		fmt.Println("Token:", token)
	case 2:
		token = os.Args[1]
	default:
		fmt.Fprintln(os.Stderr, "usage: admintoken [token]")
		os.Exit(2)
	}
	fmt.Printf("ADMIN_TOKEN_HASH=%s\n", hashToken(token))
}
