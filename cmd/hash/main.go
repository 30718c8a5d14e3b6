// Package main is a utility for generating bcrypt hashes of passwords. The
// backend stores only bcrypt hashes of user passwords — never the raw values —
// so this tool is used when manually seeding or verifying user records in the
// database without running the full server. Running it locally produces a hash
// that can be inserted directly into the users table.
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	password := "dev-password-123"
	if len(os.Args) > 1 {
		password = os.Args[1]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(hash))
}
