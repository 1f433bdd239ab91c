// Package memory holds in-process stores for single-instance deployments
// and local development.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blog-otp-auth/internal/domain"
)

// OTPStore keeps OTP records in a map keyed by email. Handles are unused.
type OTPStore struct {
	mu      sync.Mutex
	records map[string]domain.OTPRecord
}

func NewOTPStore() *OTPStore {
	return &OTPStore{records: make(map[string]domain.OTPRecord)}
}

func (s *OTPStore) Put(_ context.Context, rec *domain.OTPRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Email] = *rec
	return "", nil
}

func (s *OTPStore) Get(_ context.Context, email, _ string) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return nil, fmt.Errorf("otp record for %s: %w", email, domain.ErrNotFound)
	}
	return &rec, nil
}

func (s *OTPStore) RecordAttempt(_ context.Context, email, _ string, maxAttempts int) (*domain.OTPRecord, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return nil, "", fmt.Errorf("otp record for %s: %w", email, domain.ErrNotFound)
	}
	rec.Attempts++
	s.records[email] = rec
	if rec.Exhausted(maxAttempts) {
		return &rec, "", domain.ErrTooManyAttempts
	}
	return &rec, "", nil
}

func (s *OTPStore) Consume(_ context.Context, email, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[email]; !ok {
		return fmt.Errorf("otp record for %s: %w", email, domain.ErrNotFound)
	}
	delete(s.records, email)
	return nil
}

// Sweep drops records that expired before now and returns how many went.
func (s *OTPStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, email)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *OTPStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				slog.Debug("swept expired otp records", "count", n)
			}
		}
	}
}

// Len returns the number of stored records.
func (s *OTPStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
