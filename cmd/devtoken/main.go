// Command devtoken mints an access token signed with JWT_SECRET so the API
// can be exercised locally without the auth service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/venue-reservation/internal/utils"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "user id placed in the sub claim (required)")
	role := flag.String("role", "customer", "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	tok, err := utils.NewAccessToken(secret, *user, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
