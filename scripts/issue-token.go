package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/minutely/consult-server/internal/middleware"
	"github.com/minutely/consult-server/internal/model"
)

func main() {
	role := flag.String("role", string(model.RoleCustomer), "customer, provider or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: JWT_SECRET=... go run scripts/issue-token.go [-role admin] [-ttl 1h] <actor-id>\n")
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: JWT_SECRET is not set\n")
		os.Exit(1)
	}

	actor := model.Actor{ID: flag.Arg(0), Role: model.Role(*role)}
	if !actor.Role.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", *role)
		os.Exit(1)
	}

	token, err := middleware.IssueToken(secret, actor, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
