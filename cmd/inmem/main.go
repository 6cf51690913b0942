// Package main runs the verification service without a database, using
// in-memory repositories. This is useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without database setup
//
// One-time codes are written to the log instead of being emailed. All data
// is lost when the server stops. For production, use cmd/verifid with
// PostgreSQL.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/verifid/verifid/pkg/deviceid"
	"github.com/verifid/verifid/pkg/directory"
	"github.com/verifid/verifid/pkg/geoip"
	"github.com/verifid/verifid/pkg/ledger"
	"github.com/verifid/verifid/pkg/notification"
	"github.com/verifid/verifid/pkg/otp"
	"github.com/verifid/verifid/pkg/token"
	"github.com/verifid/verifid/pkg/totp"
	"github.com/verifid/verifid/pkg/verifyflow"
	verifyflowapi "github.com/verifid/verifid/pkg/verifyflow/api"
)

const (
	jwtSecret = "inmem-dev-secret-change-in-production"
	issuer    = "verifid-inmem"
	addr      = ":4000"

	demoEmail    = "demo@example.com"
	demoPassword = "demo1234"
)

// logNotifier writes codes to the log instead of delivering them.
type logNotifier struct{}

func (logNotifier) Send(noticeType notification.NoticeType, data notification.NotificationData, template notification.NoticeTemplate) error {
	slog.Info("Code delivery (dev mode)", "noticeType", noticeType, "to", data.To, "code", data.Data["Code"])
	return nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("Starting in-memory verification service (no database required)")

	dir := directory.NewInMemDirectory()
	if err := dir.AddAccount(directory.Profile{
		UserID:   "demo-user",
		Email:    demoEmail,
		FullName: "Demo User",
	}, demoPassword); err != nil {
		slog.Error("Failed to seed demo account", "error", err)
		os.Exit(1)
	}
	slog.Info("Seeded demo account", "email", demoEmail, "password", demoPassword)

	notificationManager := notification.NewNotificationManager()
	notificationManager.RegisterNotifier(notification.EmailSystem, logNotifier{})
	for _, noticeType := range []notification.NoticeType{
		notification.SignupCodeNotice,
		notification.DeviceCodeNotice,
		notification.LocationCodeNotice,
	} {
		if err := notificationManager.RegisterNotification(noticeType, notification.EmailSystem, notification.NoticeTemplate{
			Subject: "Your verification code",
			Text:    "Your verification code is {{.Code}}.",
		}); err != nil {
			slog.Error("Failed to register notice", "noticeType", noticeType, "error", err)
			os.Exit(1)
		}
	}

	flowService := verifyflow.NewService(&verifyflow.Dependencies{
		Directory:  dir,
		OtpService: otp.NewService(otp.NewInMemChallengeRepository(), notificationManager),
		DeviceService: deviceid.NewService(
			deviceid.NewInMemTrustedDeviceRepository(),
			deviceid.NewMatcher(),
		),
		LocationService: geoip.NewService(
			geoip.NewHTTPResolver("http://ip-api.com/json", 5*time.Second),
			geoip.NewInMemSampleRepository(),
		),
		Events:          ledger.NewInMemEventRepository(),
		FlowTokens:      token.NewFlowTokenGenerator(jwtSecret, issuer, issuer),
		CompletionToken: token.NewJwtGenerator(jwtSecret, issuer, issuer),
		TotpService:     totp.NewService(totp.NewInMemSecretRepository()),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	handler := verifyflowapi.NewHandler(flowService)
	r.Route("/api/v1/verify", handler.Routes)

	slog.Info("Listening", "addr", addr)
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
