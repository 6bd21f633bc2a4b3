package main

import (
	"fmt"
	"os"
)

// Version is set at build time
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "enroll":
		err = withApp(func(a *app) error { return a.enrollCommand(args) })
	case "verify":
		err = withApp(func(a *app) error { return a.verifyCommand(args) })
	case "recovery":
		err = withApp(func(a *app) error { return a.recoveryCommand(args) })
	case "session", "sessions":
		err = withApp(func(a *app) error { return a.sessionCommand(args) })
	case "audit":
		err = withApp(func(a *app) error { return a.auditCommand(args) })
	case "code":
		err = codeCommand(args)
	case "version":
		fmt.Printf("authgate %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`authgate - TickerSense admin authentication tool

Usage:
  authgate <command> [options]

Environment Variables:
  STORE_TYPE   Blob store provider: sqlite, postgres, mysql, file, memory (default: sqlite)
  STORE_DSN    Store DSN or file path (default: authgate.db)
  SEAL_KEY     Hex-encoded 32-byte key sealing the file store
  AUDIT_STORE  Audit store: sqlite, postgres, mysql, memory (default: sqlite)
  AUDIT_DSN    Audit store DSN (default: authgate.db)
  REDIS_ADDR   Redis address; set it to share the rate-limit budget across processes
  ISSUER       Provisioning URI issuer (default: TickerSense Admin)

Commands:
  enroll    --identity=EMAIL [--qr=PATH]
            Enroll an identity; prints the secret and provisioning URI,
            optionally writing a scannable QR PNG.

  code      --secret=BASE32
            Print the current code for a secret and its remaining validity.

  verify    --identity=EMAIL --code=CODE [--recovery]
            Check a code (or a one-time recovery code) and upgrade the
            session to fully authenticated.

  recovery  --identity=EMAIL
            Mint a fresh set of one-time recovery codes.

  session   status|logout
            Inspect or end the persisted admin session.

  audit     [--limit=N] [--identity=EMAIL] [--type=T1,T2]
            Query the security event trail, newest first.

  version   Print version
`)
}
