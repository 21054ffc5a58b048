// Package notifier turns alert transitions into messages and delivers them.
//
// Dispatcher composes the alert and recovery texts and sends them once to
// every configured Transport (Pushover, Telegram). Failures are logged and
// reported as a false result, never retried.
package notifier
