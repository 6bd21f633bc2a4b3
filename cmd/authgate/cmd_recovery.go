package main

import (
	"context"
	"fmt"
)

// ---- Recovery Command ----

func (a *app) recoveryCommand(args []string) error {
	opts := parseArgs(args)
	identity := opts["identity"]
	if identity == "" {
		return fmt.Errorf("usage: authgate recovery --identity=EMAIL")
	}

	codes, err := a.gate.IssueRecoveryCodes(context.Background(), identity)
	if err != nil {
		return err
	}

	fmt.Println("Recovery codes (shown once, store them safely):")
	for _, code := range codes {
		fmt.Printf("  %s\n", code)
	}
	return nil
}
