package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// reencryptLockName guards the singleton re-encryption job across instances.
const reencryptLockName = "reencrypt-credentials"

// ReencryptReport aggregates one run across all credential kinds.
type ReencryptReport struct {
	OAuth   driven.RotationResult
	APIKeys driven.RotationResult
	Agency  driven.RotationResult
	DryRun  bool
}

// Updated returns the total rows rewritten (or rewritable, under dry-run).
func (r ReencryptReport) Updated() int {
	return r.OAuth.Updated + r.APIKeys.Updated + r.Agency.Updated
}

// Failed returns the total rows no configured key could open.
func (r ReencryptReport) Failed() int {
	return r.OAuth.Failed + r.APIKeys.Failed + r.Agency.Failed
}

// ReencryptServiceConfig holds configuration for the re-encryption job.
type ReencryptServiceConfig struct {
	Rotator driven.CredentialRotator

	// Lock, when set, makes the run a cross-instance singleton. Nil skips
	// locking (one-shot CLI runs against a quiet database).
	Lock driven.DistributedLock

	// LockTTL bounds how long a crashed run can hold the lock.
	LockTTL time.Duration

	Logger *slog.Logger
}

// ReencryptService runs the credential re-encryption job: every stored
// secret is decrypted with whichever configured key opens it and rewritten
// under the newest key.
type ReencryptService struct {
	rotator driven.CredentialRotator
	lock    driven.DistributedLock
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewReencryptService creates a new re-encryption job.
func NewReencryptService(cfg ReencryptServiceConfig) *ReencryptService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ReencryptService{
		rotator: cfg.Rotator,
		lock:    cfg.Lock,
		lockTTL: ttl,
		logger:  logger,
	}
}

// ErrLockHeld reports that another instance is already running the job.
var ErrLockHeld = fmt.Errorf("re-encryption already running elsewhere")

// Run re-encrypts all credential kinds and reports per-kind counts. Row
// failures are counted, never fatal; callers decide the exit status from
// the report. Dry-run exercises the full decrypt path without writing.
func (s *ReencryptService) Run(ctx context.Context, dryRun bool) (*ReencryptReport, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, reencryptLockName, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire re-encryption lock: %w", err)
		}
		if !acquired {
			return nil, ErrLockHeld
		}
		defer func() {
			if err := s.lock.Release(ctx, reencryptLockName); err != nil {
				s.logger.Warn("release re-encryption lock failed", "error", err)
			}
		}()
	}

	report := &ReencryptReport{DryRun: dryRun}
	var err error

	if report.OAuth, err = s.rotator.ReencryptOAuth(ctx, dryRun); err != nil {
		return nil, fmt.Errorf("re-encrypt oauth connections: %w", err)
	}
	if report.APIKeys, err = s.rotator.ReencryptAPIKeys(ctx, dryRun); err != nil {
		return nil, fmt.Errorf("re-encrypt api key connections: %w", err)
	}
	if report.Agency, err = s.rotator.ReencryptAgency(ctx, dryRun); err != nil {
		return nil, fmt.Errorf("re-encrypt agency connections: %w", err)
	}

	s.logger.Info("credential re-encryption finished",
		"dry_run", dryRun,
		"oauth_updated", report.OAuth.Updated,
		"oauth_failed", report.OAuth.Failed,
		"api_keys_updated", report.APIKeys.Updated,
		"api_keys_failed", report.APIKeys.Failed,
		"agency_updated", report.Agency.Updated,
		"agency_failed", report.Agency.Failed)

	return report, nil
}
