package notice

import (
	"embed"
	"log/slog"

	"github.com/verifid/verifid/pkg/notification"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile("templates/" + filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NewNotificationManager builds a notification manager with the verification
// notices registered. SMS registration only happens when a gateway is
// configured; the SMS text reuses the code without markup.
func NewNotificationManager(smtpConfig notification.SMTPConfig, smsConfig *notification.SMSGatewayConfig) (*notification.NotificationManager, error) {
	notificationManager := notification.NewNotificationManager()

	emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
	if err != nil {
		return nil, err
	}
	notificationManager.RegisterNotifier(notification.EmailSystem, emailNotifier)

	emailNotices := []struct {
		noticeType notification.NoticeType
		subject    string
		template   string
	}{
		{notification.SignupCodeNotice, "Your sign-up verification code", "email/signup_code.html"},
		{notification.DeviceCodeNotice, "Verify your new device", "email/device_code.html"},
		{notification.LocationCodeNotice, "Verify your sign-in location", "email/location_code.html"},
	}
	for _, n := range emailNotices {
		err = notificationManager.RegisterNotification(n.noticeType, notification.EmailSystem, notification.NoticeTemplate{
			Subject: n.subject,
			Html:    loadTemplate(n.template),
		})
		if err != nil {
			slog.Error("failed to register notification", "noticeType", n.noticeType, "error", err)
			return nil, err
		}
	}

	if smsConfig != nil && smsConfig.URL != "" {
		smsNotifier := notification.NewSMSNotifier(*smsConfig)
		notificationManager.RegisterNotifier(notification.SMSSystem, smsNotifier)

		for _, n := range emailNotices {
			err = notificationManager.RegisterNotification(n.noticeType, notification.SMSSystem, notification.NoticeTemplate{
				Text: "Your verification code is {{.Code}}. It expires in {{.ExpiryMinutes}} minutes.",
			})
			if err != nil {
				slog.Error("failed to register SMS notification", "noticeType", n.noticeType, "error", err)
				return nil, err
			}
		}
	}

	return notificationManager, nil
}
