package core

import "time"

// Settings represents the main configuration for the relay
type Settings struct {
	Telegram  TelegramSettings  // Telegram bot settings
	Broadcast string            // Recipient of discovery alerts
	Favorites FavoriteSettings  // Favorite price sweep
	Discovery DiscoverySettings // New pair discovery sweep
	Provider  ProviderSettings  // Market data provider
	Storage   StorageSettings   // Persistent state
	Seen      SeenSettings      // Seen-set bounds

	MetricsAddress string // Listen address of the metrics endpoint, empty disables it
}

// TelegramSettings holds configuration for Telegram integration
type TelegramSettings struct {
	Token string  // Telegram bot token
	Users []int64 // Authorized sender IDs, empty allows everyone
}

type FavoriteSettings struct {
	Interval   time.Duration
	RunOnStart bool
}

type DiscoverySettings struct {
	Enabled  bool
	Interval time.Duration
	Networks []string
}

type ProviderSettings struct {
	BaseURL    string        // API root, e.g. https://api.dexscreener.com
	SiteURL    string        // Public site used to build "open" links
	Timeout    time.Duration // Per request timeout
	Delay      time.Duration // Pause between successive discovery queries
	MaxRetries int           // Retries of a rate limited request
}

type StorageSettings struct {
	Driver string // buntdb or sqlite
	Path   string
}

type SeenSettings struct {
	MaxEntries int           // 0 keeps every entry
	Retention  time.Duration // 0 keeps entries forever
}
