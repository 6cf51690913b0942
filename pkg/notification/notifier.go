package notification

// NotificationSystem represents a delivery channel (email, sms).
type NotificationSystem string

// NoticeType identifies the kind of notice being delivered, e.g. a device
// verification code or a location verification code.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"
)

// NoticeTemplate holds the renderable parts of a notice.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationData carries the recipient and the per-notice template data.
type NotificationData struct {
	To      string            // recipient identifier (email address, phone number)
	Subject string            // optional subject override
	Body    string            // pre-rendered body, used when no template applies
	Data    map[string]string // template data (code, expiry, ...)
}

// Notifier delivers a rendered notice over one channel.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
