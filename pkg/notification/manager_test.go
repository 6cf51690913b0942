package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRoutesToRegisteredNotifier(t *testing.T) {
	manager := NewNotificationManager()
	mock := &MockNotifier{}
	manager.RegisterNotifier(EmailSystem, mock)
	require.NoError(t, manager.RegisterNotification(DeviceCodeNotice, EmailSystem, NoticeTemplate{
		Subject: "Verify your device",
		Text:    "Code: {{.Code}}",
	}))

	err := manager.Send(DeviceCodeNotice, NotificationData{
		To:   "user@example.com",
		Data: map[string]string{"Code": "123456"},
	})
	require.NoError(t, err)

	sent, ok := mock.Last()
	require.True(t, ok)
	assert.Equal(t, "user@example.com", sent.To)
	assert.Equal(t, "123456", sent.Data["Code"])
}

func TestSendUnregisteredNoticeType(t *testing.T) {
	manager := NewNotificationManager()
	manager.RegisterNotifier(EmailSystem, &MockNotifier{})

	err := manager.Send(DeviceCodeNotice, NotificationData{To: "user@example.com"})
	assert.Error(t, err)
}

func TestSendNoNotifierForSystem(t *testing.T) {
	manager := NewNotificationManager()
	require.NoError(t, manager.RegisterNotification(DeviceCodeNotice, EmailSystem, NoticeTemplate{Text: "x"}))

	err := manager.Send(DeviceCodeNotice, NotificationData{To: "user@example.com"})
	assert.Error(t, err)
}

func TestSendReportsDeliveryFailure(t *testing.T) {
	manager := NewNotificationManager()
	mock := &MockNotifier{FailWith: assert.AnError}
	manager.RegisterNotifier(EmailSystem, mock)
	require.NoError(t, manager.RegisterNotification(DeviceCodeNotice, EmailSystem, NoticeTemplate{Text: "x"}))

	err := manager.Send(DeviceCodeNotice, NotificationData{To: "user@example.com"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSendFailureOnOneSystemStillTriesOthers(t *testing.T) {
	manager := NewNotificationManager()
	email := &MockNotifier{FailWith: assert.AnError}
	sms := &MockNotifier{}
	manager.RegisterNotifier(EmailSystem, email)
	manager.RegisterNotifier(SMSSystem, sms)
	require.NoError(t, manager.RegisterNotification(DeviceCodeNotice, EmailSystem, NoticeTemplate{Text: "x"}))
	require.NoError(t, manager.RegisterNotification(DeviceCodeNotice, SMSSystem, NoticeTemplate{Text: "x"}))

	err := manager.Send(DeviceCodeNotice, NotificationData{To: "user@example.com"})
	assert.ErrorIs(t, err, assert.AnError)

	_, ok := sms.Last()
	assert.True(t, ok, "the healthy system must still deliver")
}

func TestRegisterNotificationValidation(t *testing.T) {
	manager := NewNotificationManager()

	assert.Error(t, manager.RegisterNotification("", EmailSystem, NoticeTemplate{}))
	assert.Error(t, manager.RegisterNotification(DeviceCodeNotice, "", NoticeTemplate{}))
}
