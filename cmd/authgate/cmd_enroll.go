package main

import (
	"context"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// ---- Enroll Command ----

func (a *app) enrollCommand(args []string) error {
	opts := parseArgs(args)
	identity, ok := opts["identity"]
	if !ok {
		return fmt.Errorf("usage: authgate enroll --identity=EMAIL [--qr=PATH]")
	}

	enrollment, err := a.gate.Enroll(context.Background(), identity)
	if err != nil {
		return err
	}

	fmt.Printf("Secret: %s\n", enrollment.Secret)
	fmt.Printf("URI:    %s\n", enrollment.URI)

	if path, ok := opts["qr"]; ok {
		if err := qrcode.WriteFile(enrollment.URI, qrcode.Medium, 256, path); err != nil {
			return fmt.Errorf("write QR code: %w", err)
		}
		fmt.Printf("QR:     %s\n", path)
	}
	return nil
}
