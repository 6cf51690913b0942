package notification

// Notice types used by the verification engine.
const (
	SignupCodeNotice   NoticeType = "signup_code"
	DeviceCodeNotice   NoticeType = "device_code"
	LocationCodeNotice NoticeType = "location_code"
)
