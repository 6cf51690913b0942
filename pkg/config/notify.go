package config

import "github.com/verifid/verifid/pkg/notification"

// EmailConfig holds SMTP email configuration.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password string `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig.
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

// SMSConfig holds the HTTP SMS gateway configuration.
type SMSConfig struct {
	GatewayURL string `env:"SMS_GATEWAY_URL"`
	From       string `env:"SMS_FROM"`
	Token      string `env:"SMS_GATEWAY_TOKEN"`
}

// IsConfigured returns true if the SMS gateway is configured.
func (s SMSConfig) IsConfigured() bool {
	return s.GatewayURL != "" && s.From != ""
}

// ToGatewayConfig converts the config to a notification.SMSGatewayConfig.
func (s SMSConfig) ToGatewayConfig() notification.SMSGatewayConfig {
	return notification.SMSGatewayConfig{
		URL:   s.GatewayURL,
		From:  s.From,
		Token: s.Token,
	}
}
