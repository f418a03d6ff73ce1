package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"crosspost/config"
	"crosspost/transform"
	"crosspost/types"
)

const devtoBase = "https://dev.to"

// Identity markers scraped from the settings page markup. Fetched code is
// never executed; the session state is read with plain pattern matching.
var (
	devtoUserRe   = regexp.MustCompile(`"username":"([^"]+)"`)
	devtoUserIDRe = regexp.MustCompile(`"user_id":"?(\d+)"?`)
	devtoCSRFRe   = regexp.MustCompile(`name="csrf-token"\s+content="([^"]+)"`)
)

const devtoRenderer = config.FormulaRendererURL

// Images already on the dev.to CDN are not re-uploaded.
var devtoSkipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://media\.dev\.to/`),
	regexp.MustCompile(`^https://dev-to-uploads\.s3\.`),
}

// devtoErrors maps destination error codes to readable messages.
var devtoErrors = map[int]string{
	401: "session expired, sign in again",
	422: "article rejected: missing title or malformed front matter",
	429: "publishing too fast, retry in a moment",
}

// Devto publishes markdown articles to dev.to.
//
// Image failure policy: degrade. A failed upload keeps the original URL and
// the publish continues; dev.to renders remote images fine in most cases.
type Devto struct {
	rt Runtime

	// session artifacts cached by CheckAuth; mu keeps them safe under
	// concurrent fan-out auth probes
	mu        sync.Mutex
	csrfToken string
	username  string
}

func (d *Devto) cachedCSRF() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.csrfToken
}

// NewDevto builds the dev.to adapter on the injected runtime.
func NewDevto(rt Runtime) *Devto { return &Devto{rt: rt} }

func devtoMeta() types.PlatformMeta {
	return types.PlatformMeta{
		ID:           "devto",
		Name:         "DEV Community",
		Icon:         "devto.png",
		Homepage:     devtoBase,
		Capabilities: []string{"markdown", "draft", "tags"},
	}
}

// Meta returns the dev.to metadata.
func (d *Devto) Meta() types.PlatformMeta { return devtoMeta() }

// CheckAuth fetches the settings page with session cookies and scrapes the
// identity markers out of the markup.
func (d *Devto) CheckAuth(ctx context.Context) types.AuthResult {
	resp, err := d.rt.Do(ctx, &Request{Method: "GET", URL: devtoBase + "/settings"})
	if err != nil {
		return authFailure(err)
	}
	if resp.StatusCode != 200 {
		return authFailure(fmt.Errorf("settings page returned %d", resp.StatusCode))
	}

	body := string(resp.Body)
	userMatch := devtoUserRe.FindStringSubmatch(body)
	if userMatch == nil {
		return authFailure(fmt.Errorf("no signed-in user marker in settings page"))
	}
	d.mu.Lock()
	if m := devtoCSRFRe.FindStringSubmatch(body); m != nil {
		d.csrfToken = m[1]
	}
	d.username = userMatch[1]
	d.mu.Unlock()

	result := types.AuthResult{IsAuthenticated: true, Username: userMatch[1]}
	if m := devtoUserIDRe.FindStringSubmatch(body); m != nil {
		result.UserID = m[1]
	}
	return result
}

// Publish transforms the article and creates a dev.to post via the
// internal articles endpoint.
func (d *Devto) Publish(ctx context.Context, article *types.Article, opts types.PublishOptions) types.SyncResult {
	meta := d.Meta()

	csrf := d.cachedCSRF()
	if csrf == "" {
		if auth := d.CheckAuth(ctx); !auth.IsAuthenticated {
			return publishFailure(meta.ID, fmt.Errorf("not authenticated: %s", auth.Error))
		}
		csrf = d.cachedCSRF()
	}

	html, err := transform.EnsureHTML(article)
	if err != nil {
		return publishFailure(meta.ID, err)
	}
	pipeline := transform.Pipeline{
		Policy:       transform.DefaultPolicy(),
		RendererURL:  devtoRenderer,
		SkipPatterns: devtoSkipPatterns,
		Upload:       d.degradingUpload,
		Progress:     opts.OnImageProgress,
	}
	html, err = pipeline.Apply(ctx, html)
	if err != nil {
		return publishFailure(meta.ID, err)
	}
	markdown, err := transform.HTMLToMarkdown(html)
	if err != nil {
		return publishFailure(meta.ID, err)
	}

	payload := map[string]any{
		"article": map[string]any{
			"title":         article.Title,
			"body_markdown": markdown,
			"published":     !opts.DraftOnly,
			"tags":          opts.Tags,
		},
	}
	if article.Cover != "" {
		payload["article"].(map[string]any)["main_image"] = article.Cover
	}

	var created struct {
		ID  json.Number `json:"id"`
		URL string      `json:"url"`
	}
	code, err := doJSON(ctx, d.rt, "POST", devtoBase+"/articles",
		map[string]string{"X-CSRF-Token": csrf}, payload, &created)
	if err != nil {
		if code != 0 {
			return publishFailure(meta.ID, fmt.Errorf("%s", codeMessage(devtoErrors, code)))
		}
		return publishFailure(meta.ID, err)
	}

	return types.SyncResult{
		Platform:  meta.ID,
		Success:   true,
		PostID:    created.ID.String(),
		PostURL:   created.URL,
		DraftOnly: opts.DraftOnly,
		Timestamp: time.Now(),
	}
}

// UploadImage re-hosts one image through the dev.to image endpoint.
// Policy: degrade — on failure the original source is returned unchanged.
func (d *Devto) UploadImage(ctx context.Context, src string) (string, error) {
	payload := map[string]string{"image_url": src}
	if transform.IsDataURI(src) {
		payload = map[string]string{"image_data": src}
	}
	var out struct {
		Links []string `json:"links"`
	}
	_, err := doJSON(ctx, d.rt, "POST", devtoBase+"/image_uploads",
		map[string]string{"X-CSRF-Token": d.cachedCSRF()}, payload, &out)
	if err != nil {
		return src, err
	}
	if len(out.Links) == 0 {
		return src, fmt.Errorf("image upload returned no link")
	}
	return out.Links[0], nil
}

// degradingUpload wraps UploadImage with the keep-original policy so a
// broken image never kills the publish.
func (d *Devto) degradingUpload(ctx context.Context, src string) (string, error) {
	hosted, err := d.UploadImage(ctx, src)
	if err != nil {
		log.Printf("devto: keeping original image after failed upload: %v", err)
		return src, nil
	}
	return hosted, nil
}
