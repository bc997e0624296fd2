// Package notify delivers text messages to the operators.
//
// TwilioNotifier sends one SMS per recipient through the Twilio REST API,
// LogNotifier only writes the message to the log. Dispatcher decouples the
// door coordinator from delivery: it queues messages without blocking and
// delivers them from a single worker, each under its own timeout.
package notify
