package notification

import "sync"

// MockNotifier records sent notifications for tests.
type MockNotifier struct {
	mu                sync.Mutex
	SentNotifications []NotificationData
	FailWith          error // when set, Send returns this error
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.SentNotifications = append(m.SentNotifications, notification)
	return nil
}

// Last returns the most recently sent notification, if any.
func (m *MockNotifier) Last() (NotificationData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentNotifications) == 0 {
		return NotificationData{}, false
	}
	return m.SentNotifications[len(m.SentNotifications)-1], true
}
