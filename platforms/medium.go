package platforms

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"crosspost/config"
	"crosspost/transform"
	"crosspost/types"
)

const (
	mediumSite    = "https://medium.com"
	mediumAPIBase = "https://api.medium.com/v1"
)

var mediumSkipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://miro\.medium\.com/`),
	regexp.MustCompile(`^https://cdn-images-\d+\.medium\.com/`),
}

var mediumErrors = map[int]string{
	400: "post payload rejected",
	401: "integration token invalid or revoked",
	403: "account not allowed to publish via API",
	429: "publishing rate limit hit",
}

// mediumStylesheet is inlined element by element; Medium ignores external
// and embedded stylesheets.
var mediumStylesheet = transform.Stylesheet{
	"h1":         "font-size:1.8em;font-weight:700;margin:1em 0 0.5em",
	"h2":         "font-size:1.5em;font-weight:700;margin:1em 0 0.5em",
	"p":          "margin:0 0 1em;line-height:1.7",
	"blockquote": "border-left:3px solid #292929;padding-left:1em;color:#555",
	"pre":        "background:#f4f4f4;padding:1em;overflow-x:auto",
	"img":        "max-width:100%",
}

// Medium publishes HTML articles through the Medium integration API.
//
// Image failure policy: abort. Medium strips images it cannot fetch, so a
// failed re-host aborts the publish instead of shipping a broken post.
type Medium struct {
	rt Runtime

	// cached by CheckAuth; mu keeps the cache safe under concurrent
	// fan-out auth probes
	mu     sync.Mutex
	userID string
}

// NewMedium builds the Medium adapter on the injected runtime.
func NewMedium(rt Runtime) *Medium { return &Medium{rt: rt} }

func mediumMeta() types.PlatformMeta {
	return types.PlatformMeta{
		ID:           "medium",
		Name:         "Medium",
		Icon:         "medium.png",
		Homepage:     mediumSite,
		Capabilities: []string{"html", "draft", "tags"},
	}
}

// Meta returns the Medium metadata.
func (m *Medium) Meta() types.PlatformMeta { return mediumMeta() }

func (m *Medium) token() (string, bool) {
	return m.rt.Cookie(mediumSite, "integration_token")
}

func (m *Medium) cachedUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// CheckAuth resolves the current user through /me with the stored
// integration token.
func (m *Medium) CheckAuth(ctx context.Context) types.AuthResult {
	token, ok := m.token()
	if !ok {
		return authFailure(fmt.Errorf("no integration token configured"))
	}

	var out struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			ImageURL string `json:"imageUrl"`
		} `json:"data"`
	}
	_, err := doJSON(ctx, m.rt, "GET", mediumAPIBase+"/me",
		map[string]string{"Authorization": "Bearer " + token}, nil, &out)
	if err != nil {
		return authFailure(err)
	}

	m.mu.Lock()
	m.userID = out.Data.ID
	m.mu.Unlock()
	return types.AuthResult{
		IsAuthenticated: true,
		UserID:          out.Data.ID,
		Username:        out.Data.Username,
		Avatar:          out.Data.ImageURL,
	}
}

// Publish transforms the article into Medium-ready HTML and creates a post
// under the authenticated user.
func (m *Medium) Publish(ctx context.Context, article *types.Article, opts types.PublishOptions) types.SyncResult {
	meta := m.Meta()

	userID := m.cachedUserID()
	if userID == "" {
		if auth := m.CheckAuth(ctx); !auth.IsAuthenticated {
			return publishFailure(meta.ID, fmt.Errorf("not authenticated: %s", auth.Error))
		}
		userID = m.cachedUserID()
	}

	html, err := transform.EnsureHTML(article)
	if err != nil {
		return publishFailure(meta.ID, err)
	}
	pipeline := transform.Pipeline{
		Policy:       transform.DefaultPolicy(),
		RendererURL:  config.FormulaRendererURL,
		SkipPatterns: mediumSkipPatterns,
		Stylesheet:   mediumStylesheet,
		Upload:       m.UploadImage, // abort policy: errors propagate
		Progress:     opts.OnImageProgress,
	}
	html, err = pipeline.Apply(ctx, html)
	if err != nil {
		return publishFailure(meta.ID, err)
	}

	token, ok := m.token()
	if !ok {
		return publishFailure(meta.ID, fmt.Errorf("no integration token configured"))
	}
	status := "public"
	if opts.DraftOnly {
		status = "draft"
	}
	payload := map[string]any{
		"title":         article.Title,
		"contentFormat": "html",
		"content":       html,
		"publishStatus": status,
		"tags":          opts.Tags,
	}

	var created struct {
		Data struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"data"`
	}
	code, err := doJSON(ctx, m.rt, "POST",
		fmt.Sprintf("%s/users/%s/posts", mediumAPIBase, userID),
		map[string]string{"Authorization": "Bearer " + token}, payload, &created)
	if err != nil {
		if code != 0 {
			return publishFailure(meta.ID, fmt.Errorf("%s", codeMessage(mediumErrors, code)))
		}
		return publishFailure(meta.ID, err)
	}

	return types.SyncResult{
		Platform:  meta.ID,
		Success:   true,
		PostID:    created.Data.ID,
		PostURL:   created.Data.URL,
		DraftOnly: opts.DraftOnly,
		Timestamp: time.Now(),
	}
}

// UploadImage re-hosts one image through the Medium images endpoint.
// Policy: abort — the error propagates and fails the whole publish.
func (m *Medium) UploadImage(ctx context.Context, src string) (string, error) {
	token, ok := m.token()
	if !ok {
		return "", fmt.Errorf("no integration token configured")
	}
	var out struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	_, err := doJSON(ctx, m.rt, "POST", mediumAPIBase+"/images",
		map[string]string{"Authorization": "Bearer " + token},
		map[string]string{"source": src}, &out)
	if err != nil {
		return "", fmt.Errorf("medium image upload: %w", err)
	}
	return out.Data.URL, nil
}
