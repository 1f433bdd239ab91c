// Package redisstore keeps OTP records in Redis so several instances share
// one live record per email.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blog-otp-auth/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "otp:"
	// maxRetries bounds optimistic-lock retries when another instance
	// touches the same key between WATCH and EXEC.
	maxRetries = 4
)

// OTPStore stores each record as JSON under otp:<email> with a TTL that
// ends at the record's expiry.
type OTPStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client, now: time.Now}
}

// NewClient builds a client from address, password and db index.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func key(email string) string { return keyPrefix + email }

func (s *OTPStore) Put(ctx context.Context, rec *domain.OTPRecord) (string, error) {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return "", fmt.Errorf("put otp record: already expired")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal otp record: %w", err)
	}
	if err := s.client.Set(ctx, key(rec.Email), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: redis set: %v", domain.ErrUpstream, err)
	}
	return "", nil
}

func (s *OTPStore) Get(ctx context.Context, email, _ string) (*domain.OTPRecord, error) {
	data, err := s.client.Get(ctx, key(email)).Bytes()
	if err != nil {
		return nil, mapErr(err)
	}
	return decode(data)
}

func (s *OTPStore) RecordAttempt(ctx context.Context, email, _ string, maxAttempts int) (*domain.OTPRecord, string, error) {
	k := key(email)
	for i := 0; i < maxRetries; i++ {
		var rec *domain.OTPRecord
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, k).Bytes()
			if err != nil {
				return err
			}
			rec, err = decode(data)
			if err != nil {
				return err
			}
			rec.Attempts++
			updated, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, k, updated, redis.SetArgs{KeepTTL: true})
				return nil
			})
			return err
		}, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, "", mapErr(err)
		}
		if rec.Exhausted(maxAttempts) {
			return rec, "", domain.ErrTooManyAttempts
		}
		return rec, "", nil
	}
	return nil, "", fmt.Errorf("%w: otp record for %s kept changing", domain.ErrUpstream, email)
}

// Consume deletes the record. Only one concurrent caller sees n == 1.
func (s *OTPStore) Consume(ctx context.Context, email, _ string) error {
	n, err := s.client.Del(ctx, key(email)).Result()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return fmt.Errorf("otp record for %s: %w", email, domain.ErrNotFound)
	}
	return nil
}

func decode(data []byte) (*domain.OTPRecord, error) {
	var rec domain.OTPRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode otp record: %w", err)
	}
	rec.ExpiresAtUnix = rec.ExpiresAt.Unix()
	return &rec, nil
}

func mapErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("otp record: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("%w: redis: %v", domain.ErrUpstream, err)
}
