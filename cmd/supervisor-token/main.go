// Command supervisor-token mints a short-lived supervisor token for staff
// without a login flow, e.g. a volunteer coordinator on a paper roster.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"shepherd/internal/platform/config"
	"shepherd/internal/platform/middleware"
	id "shepherd/pkg/domain"
)

func main() {
	var (
		person = flag.String("person", "", "supervisor person id")
		ttl    = flag.Duration("ttl", 4*time.Hour, "token lifetime")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.SupervisorSigningKey == "" {
		fmt.Fprintln(os.Stderr, "SUPERVISOR_JWT_SIGNING_KEY is required")
		os.Exit(2)
	}

	supervisorID, err := id.ParsePersonID(*person)
	if err != nil {
		fmt.Fprintf(os.Stderr, "-person: %v\n", err)
		os.Exit(2)
	}

	token, err := middleware.NewHS256Supervisors(cfg.Auth.SupervisorSigningKey, cfg.Auth.SupervisorIssuer).Issue(supervisorID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
