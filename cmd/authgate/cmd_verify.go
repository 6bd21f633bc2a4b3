package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tickersense/authgate"
	"github.com/tickersense/authgate/ratelimit"
)

// ---- Verify Command ----

func (a *app) verifyCommand(args []string) error {
	opts := parseArgs(args)
	identity, code := opts["identity"], opts["code"]
	if identity == "" || code == "" {
		return fmt.Errorf("usage: authgate verify --identity=EMAIL --code=CODE [--recovery]")
	}

	ctx := context.Background()

	// Resume the persisted session if it belongs to this identity,
	// otherwise start a fresh one to verify against.
	if sess, ok := a.gate.Sessions().Current(ctx); !ok || sess.Identity != identity {
		if _, err := a.gate.Begin(ctx, identity, nil); err != nil {
			return err
		}
	}

	var err error
	if _, recovery := opts["recovery"]; recovery {
		err = a.gate.VerifyRecoveryCode(ctx, identity, code)
	} else {
		err = a.gate.VerifyCode(ctx, identity, code)
	}

	if limitErr, ok := ratelimit.AsLimitError(err); ok {
		return fmt.Errorf("too many attempts, retry after %v", limitErr.RetryAfter)
	}
	if errors.Is(err, authgate.ErrCodeInvalid) {
		return fmt.Errorf("invalid code, try again")
	}
	if err != nil {
		return err
	}

	fmt.Printf("Verified. Session state: %s\n", a.gate.State(ctx))
	return nil
}
