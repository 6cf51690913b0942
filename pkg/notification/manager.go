package notification

import (
	"fmt"
	"log/slog"
)

// NotificationManager routes notices to registered notifiers and holds the
// template registry. A notice type is registered per system, so the same
// notice can render differently over email and SMS.
type NotificationManager struct {
	notifiers map[NotificationSystem]Notifier
	registry  map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates an empty manager.
func NewNotificationManager() *NotificationManager {
	return &NotificationManager{
		notifiers: make(map[NotificationSystem]Notifier),
		registry:  make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a delivery system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds a notice template to the registry.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if _, exists := nm.registry[noticeType]; !exists {
		nm.registry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.registry[noticeType][system] = template
	return nil
}

// Send delivers the notice over every system it is registered for. Delivery
// failure on one system does not prevent attempts on the others; the last
// failure is returned.
func (nm *NotificationManager) Send(noticeType NoticeType, notification NotificationData) error {
	systemTemplates, exists := nm.registry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	var lastErr error
	sent := 0
	for system, template := range systemTemplates {
		notifier, ok := nm.notifiers[system]
		if !ok {
			slog.Debug("No notifier registered for system, skipping", "system", system, "noticeType", noticeType)
			continue
		}
		if err := notifier.Send(noticeType, notification, template); err != nil {
			slog.Error("Failed to send notice", "system", system, "noticeType", noticeType, "error", err)
			lastErr = err
			continue
		}
		sent++
	}

	if sent == 0 && lastErr == nil {
		return fmt.Errorf("no notifier available for notice type: %s", noticeType)
	}
	return lastErr
}
