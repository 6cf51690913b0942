// Package notification provides template-driven notice delivery over email
// and SMS.
//
// A NotificationManager routes each notice type to the systems it is
// registered for, rendering the per-system template with the notice data.
// Email delivery uses SMTP; SMS goes through a JSON HTTP gateway. Tests
// register MockNotifier to capture deliveries.
package notification
