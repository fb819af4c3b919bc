// Package dedupe tracks recently seen message IDs so a conversation can
// suppress repeated deliveries of the same message within a time window.
package dedupe
