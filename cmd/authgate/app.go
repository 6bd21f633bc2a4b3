package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tickersense/authgate"
	"github.com/tickersense/authgate/audit"
	"github.com/tickersense/authgate/config"
	"github.com/tickersense/authgate/logger"
	"github.com/tickersense/authgate/persistence"
	"github.com/tickersense/authgate/ratelimit"
	"github.com/tickersense/authgate/totp"
)

// app wires the configured stores into a Gate for one command run.
type app struct {
	cfg     *config.Config
	gate    *authgate.Gate
	blobs   persistence.BlobStore
	auditDB *gorm.DB
}

func withApp(fn func(*app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	var sealKey []byte
	if cfg.SealKey != "" {
		sealKey, err = hex.DecodeString(cfg.SealKey)
		if err != nil {
			return nil, fmt.Errorf("SEAL_KEY is not valid hex: %w", err)
		}
	}

	blobs, err := persistence.Open(cfg.StoreType, cfg.StoreDSN, &persistence.Options{SealKey: sealKey})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, blobs: blobs}

	var events audit.Store
	if cfg.AuditStore == "memory" {
		events = audit.NewMemoryStore(audit.DefaultMemoryCapacity)
	} else {
		db, owned, err := openAuditDB(cfg, blobs)
		if err != nil {
			blobs.Close()
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		if owned {
			a.auditDB = db
		}
		events, err = persistence.NewAuditStore(db)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open audit store: %w", err)
		}
	}

	gateCfg := authgate.Config{
		Issuer: cfg.Issuer,
		Generator: totp.Generator{
			Digits: cfg.TOTPDigits,
			Period: cfg.TOTPPeriod,
			Skew:   cfg.TOTPSkew,
		},
		SessionTimeout:  cfg.SessionTimeout,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		gateCfg.Limiter = ratelimit.NewRedisLimiter(client, "")
	}

	a.gate = authgate.New(blobs, events, gateCfg)
	return a, nil
}

// openAuditDB returns the GORM handle carrying the audit table. When the
// audit store points at the same database as the blob store, the blob
// store's handle is reused and the second return is false: the caller
// does not own it and must not close it.
func openAuditDB(cfg *config.Config, blobs persistence.BlobStore) (*gorm.DB, bool, error) {
	if gs, ok := blobs.(*persistence.GormStore); ok &&
		cfg.AuditStore == cfg.StoreType && cfg.AuditDSN == cfg.StoreDSN {
		return gs.DB(), false, nil
	}
	db, err := persistence.OpenDB(cfg.AuditStore, cfg.AuditDSN)
	return db, true, err
}

func (a *app) Close() {
	if a.gate != nil {
		a.gate.Close()
	}
	a.blobs.Close()
	if a.auditDB != nil {
		if sqlDB, err := a.auditDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	_ = logger.Log.Sync()
}

// ---- Utility Functions ----

func parseArgs(args []string) map[string]string {
	opts := make(map[string]string)
	for _, arg := range args {
		if strings.HasPrefix(arg, "--") {
			parts := strings.SplitN(strings.TrimPrefix(arg, "--"), "=", 2)
			if len(parts) == 2 {
				opts[parts[0]] = parts[1]
			} else {
				opts[parts[0]] = "true"
			}
		}
	}
	return opts
}
