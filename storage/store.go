// Package storage is the persisted key-value collaborator: the selected
// platform set, the configured self-hosted accounts, the sync history ring
// and the in-flight pass snapshot, all stored as opaque JSON under fixed
// keys. A redis backend serves the daemon; a memory backend serves tests
// and redis-less setups.
package storage

import (
	"context"

	"crosspost/types"
)

// Store is everything the orchestrator persists between runs.
type Store interface {
	// SelectedPlatforms returns the persisted platform id selection.
	SelectedPlatforms(ctx context.Context) ([]string, error)
	// SelectPlatform adds an id to the selection; no-op when present.
	SelectPlatform(ctx context.Context, id string) error
	// DeselectPlatform removes an id from the selection; no-op when absent.
	DeselectPlatform(ctx context.Context, id string) error

	// CMSAccounts returns the configured self-hosted destinations.
	CMSAccounts(ctx context.Context) ([]types.CMSAccount, error)
	// SaveCMSAccounts replaces the configured account list.
	SaveCMSAccounts(ctx context.Context, accounts []types.CMSAccount) error

	// History returns the sync history, newest first.
	History(ctx context.Context) ([]types.SyncHistoryItem, error)
	// SaveHistory replaces the whole history ring.
	SaveHistory(ctx context.Context, items []types.SyncHistoryItem) error

	// InflightSnapshot returns the crash-recovery snapshot, nil when none.
	InflightSnapshot(ctx context.Context) (*types.SyncHistoryItem, error)
	// SaveInflightSnapshot persists the snapshot of a pass in progress.
	SaveInflightSnapshot(ctx context.Context, item *types.SyncHistoryItem) error
	// ClearInflightSnapshot drops the snapshot.
	ClearInflightSnapshot(ctx context.Context) error
}

// RateLimiter gates sync passes. Allow reports whether a pass may start
// now; a false answer means the previous pass was too recent.
type RateLimiter interface {
	Allow(ctx context.Context) (bool, error)
}
