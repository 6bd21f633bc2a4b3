package main

import (
	"context"
	"fmt"
	"time"
)

// ---- Session Commands ----

func (a *app) sessionCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: authgate session <status|logout>")
	}

	ctx := context.Background()
	switch args[0] {
	case "status":
		sess, ok := a.gate.Sessions().Current(ctx)
		if !ok {
			fmt.Println("No active session")
			return nil
		}
		fmt.Printf("Identity: %s\n", sess.Identity)
		fmt.Printf("State:    %s\n", a.gate.State(ctx))
		fmt.Printf("Issued:   %s\n", sess.IssuedAt.Format(time.RFC3339))
		fmt.Printf("Expires:  %s\n", sess.ExpiresAt.Format(time.RFC3339))
		return nil
	case "logout":
		a.gate.Logout(ctx)
		fmt.Println("Logged out")
		return nil
	default:
		return fmt.Errorf("unknown session subcommand: %s", args[0])
	}
}
