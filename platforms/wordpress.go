package platforms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"crosspost/config"
	"crosspost/transform"
	"crosspost/types"
)

var wordpressErrors = map[int]string{
	401: "application password rejected",
	403: "user lacks publish capability",
	404: "REST API disabled on this site",
	413: "post or image too large for this site",
}

// WordPress publishes to one self-hosted site via the wp-json REST API
// with an application password. One instance per configured CMS account.
//
// Image failure policy: abort. Self-hosted sites usually block hotlinking,
// so shipping original URLs would produce broken posts.
type WordPress struct {
	rt      Runtime
	account types.CMSAccount
}

// NewWordPress builds an adapter for one configured account.
func NewWordPress(rt Runtime, account types.CMSAccount) *WordPress {
	return &WordPress{rt: rt, account: account}
}

// Meta derives metadata from the account configuration.
func (w *WordPress) Meta() types.PlatformMeta {
	return types.PlatformMeta{
		ID:           w.account.ID,
		Name:         w.account.Name,
		Icon:         "wordpress.png",
		Homepage:     w.account.BaseURL,
		Capabilities: []string{"html", "draft"},
	}
}

func (w *WordPress) authHeader() map[string]string {
	cred := base64.StdEncoding.EncodeToString([]byte(w.account.Username + ":" + w.account.Password))
	return map[string]string{"Authorization": "Basic " + cred}
}

func (w *WordPress) api(p string) string {
	return strings.TrimSuffix(w.account.BaseURL, "/") + "/wp-json/wp/v2" + p
}

// CheckAuth probes the current-user endpoint with the application password.
func (w *WordPress) CheckAuth(ctx context.Context) types.AuthResult {
	var me struct {
		ID        json.Number       `json:"id"`
		Slug      string            `json:"slug"`
		AvatarURL map[string]string `json:"avatar_urls"`
	}
	_, err := doJSON(ctx, w.rt, "GET", w.api("/users/me?context=edit"), w.authHeader(), nil, &me)
	if err != nil {
		return authFailure(err)
	}
	return types.AuthResult{
		IsAuthenticated: true,
		UserID:          me.ID.String(),
		Username:        me.Slug,
		Avatar:          me.AvatarURL["96"],
	}
}

// Publish transforms the article and creates a post on the site.
func (w *WordPress) Publish(ctx context.Context, article *types.Article, opts types.PublishOptions) types.SyncResult {
	meta := w.Meta()

	html, err := transform.EnsureHTML(article)
	if err != nil {
		return publishFailure(meta.ID, err)
	}
	skip := []*regexp.Regexp{regexp.MustCompile("^" + regexp.QuoteMeta(w.account.BaseURL))}
	pipeline := transform.Pipeline{
		Policy:       transform.DefaultPolicy(),
		RendererURL:  config.FormulaRendererURL,
		SkipPatterns: skip,
		Upload:       w.UploadImage, // abort policy: errors propagate
		Progress:     opts.OnImageProgress,
	}
	html, err = pipeline.Apply(ctx, html)
	if err != nil {
		return publishFailure(meta.ID, err)
	}

	status := "publish"
	if opts.DraftOnly {
		status = "draft"
	}
	var created struct {
		ID   json.Number `json:"id"`
		Link string      `json:"link"`
	}
	code, err := doJSON(ctx, w.rt, "POST", w.api("/posts"), w.authHeader(),
		map[string]any{"title": article.Title, "content": html, "status": status}, &created)
	if err != nil {
		if code != 0 {
			return publishFailure(meta.ID, fmt.Errorf("%s", codeMessage(wordpressErrors, code)))
		}
		return publishFailure(meta.ID, err)
	}

	return types.SyncResult{
		Platform:  meta.ID,
		Success:   true,
		PostID:    created.ID.String(),
		PostURL:   created.Link,
		DraftOnly: opts.DraftOnly,
		Timestamp: time.Now(),
	}
}

// UploadImage creates a media item on the site from the image bytes.
// Policy: abort — the error propagates and fails the whole publish.
func (w *WordPress) UploadImage(ctx context.Context, src string) (string, error) {
	data, contentType, err := fetchImageBytes(ctx, w.rt, src)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}

	filename := path.Base(src)
	if transform.IsDataURI(src) || filename == "" || filename == "." {
		filename = fmt.Sprintf("upload-%d", time.Now().UnixNano())
	}

	headers := w.authHeader()
	headers["Content-Type"] = contentType
	headers["Content-Disposition"] = fmt.Sprintf(`attachment; filename=%q`, filename)

	resp, err := w.rt.Do(ctx, &Request{Method: "POST", URL: w.api("/media"), Headers: headers, Body: data})
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if resp.StatusCode != 201 && resp.StatusCode != 200 {
		return "", fmt.Errorf("media upload returned %d", resp.StatusCode)
	}

	var media struct {
		SourceURL string `json:"source_url"`
	}
	if err := json.Unmarshal(resp.Body, &media); err != nil {
		return "", fmt.Errorf("decode media response: %w", err)
	}
	if media.SourceURL == "" {
		return "", fmt.Errorf("media response missing source_url")
	}
	return media.SourceURL, nil
}
