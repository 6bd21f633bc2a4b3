package main

import (
	"fmt"
	"time"

	"github.com/tickersense/authgate/config"
	"github.com/tickersense/authgate/totp"
)

// ---- Code Command ----

// codeCommand prints the code an authenticator app would currently show.
// It needs no stores, only the TOTP parameters from the environment.
func codeCommand(args []string) error {
	opts := parseArgs(args)
	secret, ok := opts["secret"]
	if !ok {
		return fmt.Errorf("usage: authgate code --secret=BASE32")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	key, err := totp.Decode(secret)
	if err != nil {
		return err
	}

	gen := totp.Generator{
		Digits: cfg.TOTPDigits,
		Period: cfg.TOTPPeriod,
		Skew:   cfg.TOTPSkew,
	}
	period := cfg.TOTPPeriod
	if period <= 0 {
		period = 30
	}

	now := time.Now()
	remaining := int64(period) - now.Unix()%int64(period)
	fmt.Printf("%s (valid for %ds)\n", gen.At(key, now), remaining)
	return nil
}
