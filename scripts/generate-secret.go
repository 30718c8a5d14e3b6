// Package main is a development utility for generating a test app secret with
// its bcrypt hash and display prefix pre-computed. It prints the raw secret,
// hash, prefix, and a ready-to-run SQL UPDATE statement so developers can
// quickly seed a usable app secret in a local database without running the
// full rotation flow. Do not use generated secrets in production — use the
// rotate endpoint so the hash and prefix stay consistent.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Generate random bytes
	randomBytes := make([]byte, 32)
	_, err := rand.Read(randomBytes)
	if err != nil {
		log.Fatal(err)
	}

	// Encode to base64
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)

	// Create full secret
	prefix := "nxn"
	fullSecret := fmt.Sprintf("%s_%s", prefix, randomPart)

	// Hash with bcrypt
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullSecret), 10)
	if err != nil {
		log.Fatal(err)
	}

	// Display prefix
	displayPrefix := fullSecret[:10]

	fmt.Println("==========================================================")
	fmt.Println("App Secret Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nFull Secret: %s\n", fullSecret)
	fmt.Printf("\nHash: %s\n", string(hashBytes))
	fmt.Printf("\nDisplay Prefix: %s\n", displayPrefix)
	fmt.Println("\n==========================================================")
	fmt.Println("SQL Update:")
	fmt.Println("==========================================================")
	fmt.Printf(`
UPDATE apps
SET secret_hash = '%s',
    secret_prefix = '%s'
WHERE app_name = 'dev-app';
`, string(hashBytes), displayPrefix)
	fmt.Println("\n==========================================================")
}
