// Command tokengen issues a service token for calling the payment endpoints.
//
//	AUTH_TOKEN_SECRET=... go run ./cmd/tokengen -sub shop-1 -scopes payments:create,payments:read
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"posbridge/internal/auth"
)

type config struct {
	Secret string        `env:"AUTH_TOKEN_SECRET,required"`
	Iss    string        `env:"AUTH_TOKEN_ISS" envDefault:"posbridge"`
	Exp    time.Duration `env:"AUTH_TOKEN_EXP" envDefault:"72h"`
}

func main() {
	sub := flag.String("sub", "", "token subject, e.g. the merchant or service name")
	scopes := flag.String("scopes", "", `comma separated scopes, e.g. payments:create,payments:read; "*" grants every scope`)
	ttl := flag.Duration("ttl", 0, "token lifetime, overrides AUTH_TOKEN_EXP")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}
	if *sub == "" {
		log.Fatal("-sub is required")
	}
	granted := splitScopes(*scopes)
	if len(granted) == 0 {
		log.Fatal(`-scopes is required, pass "*" for every scope`)
	}
	if *ttl > 0 {
		cfg.Exp = *ttl
	}

	authenticator := auth.NewJWTAuthenticator(cfg.Secret, cfg.Iss, cfg.Iss, cfg.Exp)
	token, err := authenticator.GenerateToken(*sub, granted)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}

func splitScopes(s string) []string {
	var out []string
	for _, scope := range strings.Split(s, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			out = append(out, scope)
		}
	}
	return out
}
