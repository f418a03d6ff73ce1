package platforms

import (
	"context"
	"fmt"
	"time"

	"crosspost/types"
)

// Adapter is the uniform contract every destination implements. CheckAuth
// and Publish never panic and never return a Go error; failures are folded
// into the result value so one broken destination cannot take down a pass.
type Adapter interface {
	// Meta returns the destination's immutable metadata.
	Meta() types.PlatformMeta
	// CheckAuth probes the destination with stored credentials. Network or
	// parse failure yields IsAuthenticated=false with the error message.
	CheckAuth(ctx context.Context) types.AuthResult
	// Publish runs auth-ensure, content transform, create request and
	// response interpretation, resolving to a SyncResult either way.
	Publish(ctx context.Context, article *types.Article, opts types.PublishOptions) types.SyncResult
	// UploadImage re-hosts one image source on the destination. The
	// on-failure policy (abort vs. keep the original URL) is documented
	// per adapter.
	UploadImage(ctx context.Context, src string) (string, error)
}

// authFailure is the never-raising CheckAuth failure value.
func authFailure(err error) types.AuthResult {
	return types.AuthResult{IsAuthenticated: false, Error: err.Error()}
}

// publishFailure is the never-raising Publish failure value.
func publishFailure(platform string, err error) types.SyncResult {
	return types.SyncResult{
		Platform:  platform,
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

// codeMessage resolves a destination error code through the adapter's
// bounded lookup table, with a generic fallback for unmapped codes.
func codeMessage(table map[int]string, code int) string {
	if msg, ok := table[code]; ok {
		return msg
	}
	return fmt.Sprintf("publish failed (code %d)", code)
}
