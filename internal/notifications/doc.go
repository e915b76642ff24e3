// Package notifications pushes run results to an ntfy topic.
//
// The topic may be a full URL (self-hosted ntfy) or a bare topic name on
// ntfy.sh. Without a topic the package returns a no-op Service, so callers
// never branch on whether notifications are enabled.
package notifications
