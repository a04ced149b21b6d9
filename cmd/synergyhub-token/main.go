package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/auth"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	secret := flag.String("secret", getEnv("SYNERGY_JWT_SECRET", ""), "HMAC signing secret (at least 32 bytes)")
	issuer := flag.String("issuer", getEnv("SYNERGY_JWT_ISSUER", "synergyhub"), "Token issuer")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	userID := flag.String("user", "", "User ID to issue the token for")
	email := flag.String("email", "", "User email, required to accept invitations")
	name := flag.String("name", "", "Display name")
	verbose := flag.Bool("v", false, "Print the expiry to stderr")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: synergyhub-token -user <id> [-email <addr>] [-name <name>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	tokens, err := auth.NewTokenManager(*secret, *issuer, *ttl)
	if err != nil {
		log.Fatalf("Failed to create token manager: %v", err)
	}

	token, expiresAt, err := tokens.IssueToken(*userID, *email, *name)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	if *verbose {
		log.Printf("Token for %s expires at %s", *userID, expiresAt.Format(time.RFC3339))
	}
	fmt.Println(token)
}
