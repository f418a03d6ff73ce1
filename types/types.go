package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// HistoryID creates a stable short id for one sync pass.
func HistoryID(title string, ts time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s@%d", title, ts.UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}

// Article is the authoritative content being published. Exactly one of
// HTML/Markdown is set by the author; the other representation is derived
// on demand by the transform package.
type Article struct {
	Title    string `json:"title"`
	HTML     string `json:"html,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	Cover    string `json:"cover,omitempty"`
}

// PlatformMeta describes one publishing destination. Created once at adapter
// registration and never mutated afterwards.
type PlatformMeta struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon,omitempty"`
	Homepage     string   `json:"homepage,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// AuthResult is the outcome of one auth probe against a destination.
// Recomputed per check; never holds secret material.
type AuthResult struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	UserID          string `json:"user_id,omitempty"`
	Username        string `json:"username,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SyncResult is the outcome of one publish attempt on one platform.
// Immutable once produced.
type SyncResult struct {
	Platform  string    `json:"platform"`
	Success   bool      `json:"success"`
	PostID    string    `json:"post_id,omitempty"`
	PostURL   string    `json:"post_url,omitempty"`
	DraftOnly bool      `json:"draft_only,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncHistoryItem is one completed pass in the persisted history ring.
type SyncHistoryItem struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Cover     string       `json:"cover,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Results   []SyncResult `json:"results"`
}

// SyncStatus is the orchestrator state machine status.
type SyncStatus string

const (
	StatusLoading   SyncStatus = "loading"
	StatusIdle      SyncStatus = "idle"
	StatusSyncing   SyncStatus = "syncing"
	StatusCompleted SyncStatus = "completed"
)

// ImageProgress reports image offload progress for one platform during a
// pass. Last write wins per platform.
type ImageProgress struct {
	Platform string `json:"platform"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
}

// CMSAccount is a self-hosted destination configured with user-supplied
// credentials rather than a built-in integration.
type CMSAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// PublishOptions tweaks a single publish attempt.
type PublishOptions struct {
	// DraftOnly asks the destination for an editable draft instead of a
	// public post. Destinations without draft support ignore it.
	DraftOnly bool `json:"draft_only,omitempty"`
	// Tags are forwarded to destinations that accept them.
	Tags []string `json:"tags,omitempty"`
	// OnImageProgress receives (current, total) while the destination
	// re-hosts the article's images.
	OnImageProgress func(current, total int) `json:"-"`
}

// ExtractedArticle is what the page extraction collaborator returns.
type ExtractedArticle struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	TextContent string   `json:"text_content,omitempty"`
	Excerpt     string   `json:"excerpt,omitempty"`
	Images      []string `json:"images,omitempty"`
	Extractor   string   `json:"extractor"`
}
