package config

import "time"

// Sync Constants
const (
	// MaxConcurrentPublishes limits how many built-in platform publishes run at once
	MaxConcurrentPublishes = 4

	// HistoryCapacity is the number of entries kept in the sync history ring
	HistoryCapacity = 25

	// AuthCacheTTL is how long a fan-out auth probe result stays fresh
	AuthCacheTTL = 60 * time.Second

	// SyncRateLimitWindow is the minimum gap enforced between two sync passes
	SyncRateLimitWindow = 10 * time.Second
)

// Control Channel Constants
const (
	// ControlEndpoint is the fixed local websocket endpoint of the external controller
	ControlEndpoint = "ws://127.0.0.1:8765/channel"

	// ReconnectBase is the initial reconnect delay
	ReconnectBase = 1 * time.Second

	// ReconnectCap is the maximum reconnect delay
	ReconnectCap = 30 * time.Second

	// MaxReconnectAttempts stops automatic reconnection until a manual reset
	MaxReconnectAttempts = 10
)

// Storage Keys
const (
	// KeySelectedPlatforms holds the JSON set of platform ids selected for sync
	KeySelectedPlatforms = "crosspost:selected_platforms"

	// KeyCMSAccounts holds the JSON list of configured self-hosted destinations
	KeyCMSAccounts = "crosspost:cms_accounts"

	// KeySyncHistory holds the JSON sync history ring buffer
	KeySyncHistory = "crosspost:sync_history"

	// KeySyncInflight holds the snapshot of a pass in progress, for crash recovery
	KeySyncInflight = "crosspost:sync_inflight"

	// KeySyncRateLimit is the rate-limit gate key (SET NX with TTL)
	KeySyncRateLimit = "crosspost:sync_ratelimit"
)

// Transform Constants
const (
	// FormulaRendererURL is the remote formula rendering service;
	// the URL-encoded TeX source is appended to it
	FormulaRendererURL = "https://latex.codecogs.com/png.image?"

	// RequestTimeout bounds one outbound destination request, image
	// uploads included
	RequestTimeout = 30 * time.Second
)
