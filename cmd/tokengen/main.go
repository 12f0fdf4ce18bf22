// Command tokengen mints an API token for one user.
//
//	JWT_SECRET=... tokengen -user 123456789 -ttl 720h
//
// The token is printed on stdout. The secret is read from JWT_SECRET (a .env
// file in the working directory is honoured) unless -secret is given.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sakif/dealwatch/internal/auth"
)

func main() {
	userArg := flag.Int64("user", 0, "user id to put in the token subject (required)")
	ttlArg := flag.Duration("ttl", auth.DefaultTTL, "token lifetime")
	secretArg := flag.String("secret", "", "signing secret; defaults to $JWT_SECRET")

	flag.Parse()

	secret := *secretArg
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}

	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		log.Fatal(err)
	}

	token, err := tokens.Generate(*userArg, *ttlArg)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	fmt.Println(token)
}
