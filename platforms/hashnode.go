package platforms

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"crosspost/config"
	"crosspost/signer"
	"crosspost/transform"
	"crosspost/types"
)

const (
	hashnodeSite = "https://hashnode.com"
	hashnodeGQL  = "https://gql.hashnode.com"
)

var hashnodeSkipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://cdn\.hashnode\.com/`),
}

var hashnodeErrors = map[int]string{
	401: "session token expired",
	403: "publication access denied",
	429: "GraphQL rate limit reached",
}

// Hashnode publishes markdown articles through the Hashnode GraphQL API.
// Images are re-hosted by requesting temporary object-storage credentials
// from the platform, then PUTting the bytes directly to the bucket with a
// locally computed SigV4 signature and CRC32 checksum header.
//
// Image failure policy: degrade. A failed upload keeps the original URL.
type Hashnode struct {
	rt Runtime

	// session artifacts cached by CheckAuth; mu keeps them safe under
	// concurrent fan-out auth probes
	mu          sync.Mutex
	userID      string
	publication string
}

func (h *Hashnode) cachedPublication() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.publication
}

// NewHashnode builds the Hashnode adapter on the injected runtime.
func NewHashnode(rt Runtime) *Hashnode { return &Hashnode{rt: rt} }

func hashnodeMeta() types.PlatformMeta {
	return types.PlatformMeta{
		ID:           "hashnode",
		Name:         "Hashnode",
		Icon:         "hashnode.png",
		Homepage:     hashnodeSite,
		Capabilities: []string{"markdown", "draft", "tags"},
	}
}

// Meta returns the Hashnode metadata.
func (h *Hashnode) Meta() types.PlatformMeta { return hashnodeMeta() }

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (h *Hashnode) gql(ctx context.Context, query string, variables map[string]any, result any) (int, error) {
	token, ok := h.rt.Cookie(hashnodeSite, "jwt")
	if !ok {
		return 0, fmt.Errorf("no session token configured")
	}
	return doJSON(ctx, h.rt, "POST", hashnodeGQL,
		map[string]string{"Authorization": token},
		gqlRequest{Query: query, Variables: variables}, result)
}

// CheckAuth resolves the signed-in user and their default publication.
func (h *Hashnode) CheckAuth(ctx context.Context) types.AuthResult {
	var out struct {
		Data struct {
			Me struct {
				ID           string `json:"id"`
				Username     string `json:"username"`
				ProfilePic   string `json:"profilePicture"`
				Publications struct {
					Edges []struct {
						Node struct {
							ID string `json:"id"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"publications"`
			} `json:"me"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	const query = `query { me { id username profilePicture publications(first: 1) { edges { node { id } } } } }`
	if _, err := h.gql(ctx, query, nil, &out); err != nil {
		return authFailure(err)
	}
	if len(out.Errors) > 0 {
		return authFailure(fmt.Errorf("%s", out.Errors[0].Message))
	}
	if out.Data.Me.ID == "" {
		return authFailure(fmt.Errorf("no signed-in user"))
	}

	h.mu.Lock()
	h.userID = out.Data.Me.ID
	if edges := out.Data.Me.Publications.Edges; len(edges) > 0 {
		h.publication = edges[0].Node.ID
	}
	h.mu.Unlock()
	return types.AuthResult{
		IsAuthenticated: true,
		UserID:          out.Data.Me.ID,
		Username:        out.Data.Me.Username,
		Avatar:          out.Data.Me.ProfilePic,
	}
}

// Publish transforms the article and creates a Hashnode post (or draft)
// through the publishPost mutation.
func (h *Hashnode) Publish(ctx context.Context, article *types.Article, opts types.PublishOptions) types.SyncResult {
	meta := h.Meta()

	publication := h.cachedPublication()
	if publication == "" {
		if auth := h.CheckAuth(ctx); !auth.IsAuthenticated {
			return publishFailure(meta.ID, fmt.Errorf("not authenticated: %s", auth.Error))
		}
		if publication = h.cachedPublication(); publication == "" {
			return publishFailure(meta.ID, fmt.Errorf("account has no publication"))
		}
	}

	html, err := transform.EnsureHTML(article)
	if err != nil {
		return publishFailure(meta.ID, err)
	}
	pipeline := transform.Pipeline{
		Policy:       transform.DefaultPolicy().Extend([]string{"style"}, nil),
		RendererURL:  config.FormulaRendererURL,
		SkipPatterns: hashnodeSkipPatterns,
		Upload:       h.degradingUpload,
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

	mutation := `mutation PublishPost($input: PublishPostInput!) {
		publishPost(input: $input) { post { id url } }
	}`
	if opts.DraftOnly {
		mutation = `mutation CreateDraft($input: CreateDraftInput!) {
			createDraft(input: $input) { draft { id } }
		}`
	}

	input := map[string]any{
		"title":           article.Title,
		"contentMarkdown": markdown,
		"publicationId":   publication,
	}
	if article.Cover != "" {
		input["coverImageOptions"] = map[string]any{"coverImageURL": article.Cover}
	}

	var out struct {
		Data struct {
			PublishPost struct {
				Post struct {
					ID  string `json:"id"`
					URL string `json:"url"`
				} `json:"post"`
			} `json:"publishPost"`
			CreateDraft struct {
				Draft struct {
					ID string `json:"id"`
				} `json:"draft"`
			} `json:"createDraft"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	code, err := h.gql(ctx, mutation, map[string]any{"input": input}, &out)
	if err != nil {
		if code != 0 {
			return publishFailure(meta.ID, fmt.Errorf("%s", codeMessage(hashnodeErrors, code)))
		}
		return publishFailure(meta.ID, err)
	}
	if len(out.Errors) > 0 {
		return publishFailure(meta.ID, fmt.Errorf("%s", out.Errors[0].Message))
	}

	result := types.SyncResult{
		Platform:  meta.ID,
		Success:   true,
		DraftOnly: opts.DraftOnly,
		Timestamp: time.Now(),
	}
	if opts.DraftOnly {
		result.PostID = out.Data.CreateDraft.Draft.ID
	} else {
		result.PostID = out.Data.PublishPost.Post.ID
		result.PostURL = out.Data.PublishPost.Post.URL
	}
	return result
}

type uploadCredentials struct {
	AccessKey     string `json:"accessKey"`
	SecretKey     string `json:"secretKey"`
	SecurityToken string `json:"securityToken"`
	Bucket        string `json:"bucket"`
	Region        string `json:"region"`
	Key           string `json:"key"`
	PublicURL     string `json:"publicUrl"`
}

// UploadImage fetches the image bytes, asks the platform for temporary
// storage credentials and PUTs the bytes to the bucket with a SigV4
// signature and CRC32 checksum. Policy: degrade (wrapped by
// degradingUpload inside the pipeline); called directly it returns the
// error.
func (h *Hashnode) UploadImage(ctx context.Context, src string) (string, error) {
	data, contentType, err := fetchImageBytes(ctx, h.rt, src)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}

	var creds struct {
		Data uploadCredentials `json:"data"`
	}
	_, err = doJSON(ctx, h.rt, "POST", hashnodeSite+"/api/upload-credentials",
		nil, map[string]string{"filename": path.Base(src)}, &creds)
	if err != nil {
		return "", fmt.Errorf("request upload credentials: %w", err)
	}

	c := creds.Data
	uploadURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.Bucket, c.Region, c.Key)

	crc := make([]byte, 4)
	binary.BigEndian.PutUint32(crc, signer.Checksum(data))
	headers := map[string]string{
		"Content-Type":         contentType,
		"x-amz-checksum-crc32": base64.StdEncoding.EncodeToString(crc),
	}
	signed, err := signer.PresignHeaders(
		signer.Credentials{AccessKey: c.AccessKey, SecretKey: c.SecretKey, SecurityToken: c.SecurityToken},
		signer.Request{
			Method:  "PUT",
			URL:     uploadURL,
			Region:  c.Region,
			Service: "s3",
			Headers: headers,
			Body:    data,
			Time:    time.Now(),
		})
	if err != nil {
		return "", fmt.Errorf("sign upload: %w", err)
	}

	resp, err := h.rt.Do(ctx, &Request{Method: "PUT", URL: uploadURL, Headers: signed, Body: data})
	if err != nil {
		return "", fmt.Errorf("upload to storage: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("storage returned %d", resp.StatusCode)
	}

	if c.PublicURL != "" {
		return c.PublicURL, nil
	}
	return uploadURL, nil
}

func (h *Hashnode) degradingUpload(ctx context.Context, src string) (string, error) {
	hosted, err := h.UploadImage(ctx, src)
	if err != nil {
		log.Printf("hashnode: keeping original image after failed upload: %v", err)
		return src, nil
	}
	return hosted, nil
}

// fetchImageBytes resolves an image source to raw bytes: data URIs are
// decoded locally, remote URLs are fetched through the runtime.
func fetchImageBytes(ctx context.Context, rt Runtime, src string) ([]byte, string, error) {
	if transform.IsDataURI(src) {
		meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		contentType, _, _ := strings.Cut(meta, ";")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data URI: %w", err)
		}
		return data, contentType, nil
	}

	resp, err := rt.Do(ctx, &Request{Method: "GET", URL: src})
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != 200 {
		return nil, "", fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	contentType := resp.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body, contentType, nil
}
