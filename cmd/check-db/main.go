// Package main is a diagnostic tool for testing database connectivity and
// inspecting live account data. It connects to the database, queries the
// users and apps tables, and prints a summary to stdout. The binary exits
// with a non-zero code on any failure so it can be embedded in health checks
// or CI/CD pipeline steps to gate deployments on a reachable, populated
// database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "nexin"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=nexin password=%s dbname=nexin sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	// Check users
	fmt.Println("=== USERS ===")
	rows, err := db.Query("SELECT id, username, email FROM users")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, username, email string
		if err := rows.Scan(&id, &username, &email); err != nil {
			log.Printf("Warning: failed to scan user row: %v", err)
			continue
		}
		fmt.Printf("User: %s <%s> (ID: %s)\n", username, email, id)
	}

	// Check apps
	fmt.Println("\n=== APPS ===")
	rows2, err := db.Query("SELECT id, app_name, secret_prefix, created_by FROM apps")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows2.Close()

	count := 0
	for rows2.Next() {
		var id, name, createdBy string
		var secretPrefix *string
		if err := rows2.Scan(&id, &name, &secretPrefix, &createdBy); err != nil {
			log.Printf("Warning: failed to scan app row: %v", err)
			continue
		}
		hasSecret := "NO"
		if secretPrefix != nil && *secretPrefix != "" {
			hasSecret = fmt.Sprintf("YES (%s...)", *secretPrefix)
		}
		fmt.Printf("App: %s (ID: %s, Owner: %s) - Secret: %s\n", name, id, createdBy, hasSecret)
		count++
	}

	if count == 0 {
		fmt.Println("No apps found!")
	}
}
