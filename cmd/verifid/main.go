package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/verifid/verifid/pkg/config"
	"github.com/verifid/verifid/pkg/deviceid"
	"github.com/verifid/verifid/pkg/directory"
	"github.com/verifid/verifid/pkg/geoip"
	"github.com/verifid/verifid/pkg/ledger"
	"github.com/verifid/verifid/pkg/notice"
	"github.com/verifid/verifid/pkg/notification"
	"github.com/verifid/verifid/pkg/otp"
	"github.com/verifid/verifid/pkg/ratelimit"
	"github.com/verifid/verifid/pkg/token"
	"github.com/verifid/verifid/pkg/totp"
	"github.com/verifid/verifid/pkg/verifyflow"
	verifyflowapi "github.com/verifid/verifid/pkg/verifyflow/api"
)

type Config struct {
	Host            string `env:"VERIFID_HOST" env-default:"0.0.0.0"`
	Port            uint16 `env:"VERIFID_PORT" env-default:"4000"`
	DbConfig        config.DbConfig
	EmailConfig     config.EmailConfig
	SMSConfig       config.SMSConfig
	JWTConfig       config.JWTConfig
	OtpConfig       config.OtpConfig
	DeviceConfig    config.DeviceConfig
	GeoConfig       config.GeoConfig
	RateLimitConfig config.RateLimitConfig
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DbConfig.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed to create database pool", "host", cfg.DbConfig.Host, "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	notificationManager, err := buildNotificationManager(cfg)
	if err != nil {
		slog.Error("Failed to build notification manager", "error", err)
		os.Exit(1)
	}

	otpService, err := buildOtpService(cfg, pool, notificationManager)
	if err != nil {
		slog.Error("Failed to build otp service", "error", err)
		os.Exit(1)
	}

	deviceService, err := buildDeviceService(cfg, pool)
	if err != nil {
		slog.Error("Failed to build device service", "error", err)
		os.Exit(1)
	}

	locationService, err := buildLocationService(cfg, pool)
	if err != nil {
		slog.Error("Failed to build location service", "error", err)
		os.Exit(1)
	}

	completionTokens := token.NewJwtGenerator(cfg.JWTConfig.Secret, cfg.JWTConfig.Issuer, cfg.JWTConfig.Audience)
	if expiry, err := cfg.JWTConfig.ParseCompletionTokenExpiry(); err == nil {
		completionTokens.Expiry = expiry
	} else {
		slog.Warn("Invalid completion token expiry, using default", "value", cfg.JWTConfig.CompletionTokenExpiry, "error", err)
	}

	flowService := verifyflow.NewService(&verifyflow.Dependencies{
		Directory:       directory.NewPsqlDirectory(pool),
		OtpService:      otpService,
		DeviceService:   deviceService,
		LocationService: locationService,
		Events:          ledger.NewPsqlEventRepository(pool),
		FlowTokens:      token.NewFlowTokenGenerator(cfg.JWTConfig.Secret, cfg.JWTConfig.Issuer, cfg.JWTConfig.Audience),
		CompletionToken: completionTokens,
		TotpService:     totp.NewService(totp.NewPsqlSecretRepository(pool)),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if cfg.RateLimitConfig.PerIPEnabled {
		r.Use(ratelimit.Middleware(cfg.RateLimitConfig.PerIPCapacity, cfg.RateLimitConfig.PerIPRefillRate))
	}

	handler := verifyflowapi.NewHandler(flowService)
	r.Route("/api/v1/verify", handler.Routes)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	slog.Info("Starting verification service", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func buildNotificationManager(cfg Config) (*notification.NotificationManager, error) {
	var smsConfig *notification.SMSGatewayConfig
	if cfg.SMSConfig.IsConfigured() {
		gateway := cfg.SMSConfig.ToGatewayConfig()
		smsConfig = &gateway
	}
	return notice.NewNotificationManager(cfg.EmailConfig.ToSMTPConfig(), smsConfig)
}

func buildOtpService(cfg Config, pool *pgxpool.Pool, notificationManager *notification.NotificationManager) (*otp.Service, error) {
	expiry, err := cfg.OtpConfig.ParseExpiry()
	if err != nil {
		return nil, fmt.Errorf("invalid otp expiry %q: %w", cfg.OtpConfig.Expiry, err)
	}
	return otp.NewService(
		otp.NewPsqlChallengeRepository(pool),
		notificationManager,
		otp.WithExpiry(expiry),
		otp.WithResendLimit(cfg.OtpConfig.ResendCapacity, cfg.OtpConfig.ResendRefillRate),
	), nil
}

func buildDeviceService(cfg Config, pool *pgxpool.Pool) (*deviceid.Service, error) {
	var matcherOpts []deviceid.MatcherOption
	switch cfg.DeviceConfig.MatchPolicy {
	case "", "any":
		matcherOpts = append(matcherOpts, deviceid.WithMatchPolicy(deviceid.MatchAny))
	case "two":
		matcherOpts = append(matcherOpts, deviceid.WithMatchPolicy(deviceid.MatchTwo))
	default:
		return nil, fmt.Errorf("invalid device match policy %q", cfg.DeviceConfig.MatchPolicy)
	}

	deadline, err := cfg.DeviceConfig.ParseMigrationDeadline()
	if err != nil {
		return nil, fmt.Errorf("invalid device migration deadline %q: %w", cfg.DeviceConfig.MigrationDeadline, err)
	}
	if !deadline.IsZero() {
		matcherOpts = append(matcherOpts, deviceid.WithMigrationDeadline(deadline))
	}

	return deviceid.NewService(
		deviceid.NewPsqlTrustedDeviceRepository(pool),
		deviceid.NewMatcher(matcherOpts...),
		deviceid.WithTrustDays(cfg.DeviceConfig.TrustDays),
	), nil
}

func buildLocationService(cfg Config, pool *pgxpool.Pool) (*geoip.Service, error) {
	timeout, err := cfg.GeoConfig.ParseTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid geo timeout %q: %w", cfg.GeoConfig.Timeout, err)
	}

	var opts []geoip.ServiceOption
	if cfg.GeoConfig.Denylist != "" {
		opts = append(opts, geoip.WithDenylist(splitDenylist(cfg.GeoConfig.Denylist)))
	}

	return geoip.NewService(
		geoip.NewHTTPResolver(cfg.GeoConfig.ProviderURL, timeout),
		geoip.NewPsqlSampleRepository(pool),
		opts...,
	), nil
}

func splitDenylist(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
