// Package notify delivers membership notifications to interested users.
//
// Notifications are fire-and-forget: the membership service sends them after
// a change has been stored, and a failed delivery is only logged.
//
// RedisNotifier publishes JSON payloads on Redis pub/sub channels, one per
// recipient user and one per business, for socket gateways to fan out.
// LogNotifier writes them to the structured log when no Redis is configured.
package notify
