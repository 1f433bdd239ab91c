package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/blog-otp-auth/internal/application/auth"
	"github.com/blog-otp-auth/internal/config"
	"github.com/blog-otp-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/blog-otp-auth/internal/infrastructure/jwt"
	"github.com/blog-otp-auth/internal/infrastructure/memory"
	"github.com/blog-otp-auth/internal/infrastructure/notify"
	redisstore "github.com/blog-otp-auth/internal/infrastructure/redis"
	resendinfra "github.com/blog-otp-auth/internal/infrastructure/resend"
	"github.com/blog-otp-auth/internal/infrastructure/smtp"
	"github.com/blog-otp-auth/internal/infrastructure/sns"
	"github.com/blog-otp-auth/internal/infrastructure/ticket"
	"github.com/blog-otp-auth/internal/pkg/otpcode"
	transporthttp "github.com/blog-otp-auth/internal/transport/http"
)

const sweepInterval = time.Minute

// buildDeps selects the OTP store, user store and notifier named in cfg.
// Background workers it starts stop when ctx is cancelled.
func buildDeps(ctx context.Context, cfg *config.Config) (*transporthttp.Deps, error) {
	tokens, err := jwtinfra.NewProvider(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	deps := &transporthttp.Deps{Tokens: tokens}

	var dynamoClient *dynamodb.Client
	if cfg.UserStore == config.BackendDynamo || cfg.OTPStore == config.BackendDynamo {
		dynamoClient, err = dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	}

	switch cfg.UserStore {
	case config.BackendDynamo:
		deps.Users = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	default:
		deps.Users = memory.NewUserRepo()
	}

	deps.OTPStore, err = buildOTPStore(ctx, cfg, dynamoClient, tokens)
	if err != nil {
		return nil, err
	}
	if cfg.OTPStore == config.BackendTicket {
		deps.Hasher = otpcode.NewHMACHasher(cfg.JWTSecret)
	}

	deps.Notifier, err = buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func buildOTPStore(ctx context.Context, cfg *config.Config, dynamoClient *dynamodb.Client, tokens *jwtinfra.Provider) (auth.OTPStore, error) {
	switch cfg.OTPStore {
	case config.BackendRedis:
		client := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.NewOTPStore(client), nil
	case config.BackendDynamo:
		return dynamo.NewOTPSessionRepo(dynamoClient, cfg.DynamoTables.OTPSessions), nil
	case config.BackendTicket:
		return ticket.NewStore(tokens, nil), nil
	default:
		store := memory.NewOTPStore()
		go store.RunSweeper(ctx, sweepInterval)
		return store, nil
	}
}

func buildNotifier(ctx context.Context, cfg *config.Config) (auth.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierResend:
		return resendinfra.NewSender(cfg.ResendAPIKey, cfg.SMTPFrom, cfg.OTPTTL), nil
	case config.NotifierSNS:
		return sns.NewSender(ctx, cfg)
	case config.NotifierLog:
		return notify.LogNotifier{}, nil
	default:
		return smtp.NewMailer(cfg), nil
	}
}
