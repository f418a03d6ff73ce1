package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crosspost/orchestrator"
	"crosspost/platforms"
	"crosspost/types"
)

// PlatformSource is the slice of the registry the dispatcher needs.
type PlatformSource interface {
	AllMeta() []types.PlatformMeta
	Get(id string) (platforms.Adapter, error)
}

// Syncer triggers one publish pass.
type Syncer interface {
	StartSync(ctx context.Context, article *types.Article, opts types.PublishOptions) ([]types.SyncResult, error)
}

// ExtractFunc turns raw page markup into an article.
type ExtractFunc func(html, pageURL string) (*types.ExtractedArticle, error)

type handler func(ctx context.Context, params json.RawMessage) (interface{}, *Error)

// Dispatcher validates inbound requests and routes them through a fixed
// method table. It is safe for concurrent use.
type Dispatcher struct {
	token     string
	methods   map[string]handler
	platforms PlatformSource
	sync      Syncer
	extract   ExtractFunc
}

// NewDispatcher builds the method table. token is the locally configured
// shared secret; when empty every request is rejected.
func NewDispatcher(token string, platforms PlatformSource, sync Syncer, extract ExtractFunc) *Dispatcher {
	d := &Dispatcher{
		token:     token,
		platforms: platforms,
		sync:      sync,
		extract:   extract,
	}
	d.methods = map[string]handler{
		"platforms.list":     d.listPlatforms,
		"platform.checkAuth": d.checkAuth,
		"sync.start":         d.startSync,
		"article.extract":    d.extractArticle,
		"image.upload":       d.uploadImage,
	}
	return d
}

// Handle produces the response for one request. Token gating happens before
// any dispatch.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	if d.token == "" {
		return errorResponse(req.ID, CodeNoToken, "no control token configured")
	}
	if req.Token != d.token {
		return errorResponse(req.ID, CodeTokenMismatch, "control token mismatch")
	}
	h, ok := d.methods[req.Method]
	if !ok {
		return errorResponse(req.ID, CodeUnknownMethod, fmt.Sprintf("unknown method %q", req.Method))
	}
	result, herr := h(ctx, req.Params)
	if herr != nil {
		return Response{ID: req.ID, Error: herr}
	}
	return Response{ID: req.ID, Result: result}
}

func (d *Dispatcher) listPlatforms(context.Context, json.RawMessage) (interface{}, *Error) {
	return map[string]interface{}{"platforms": d.platforms.AllMeta()}, nil
}

func (d *Dispatcher) checkAuth(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Platform string `json:"platform"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Platform == "" {
		return nil, &Error{Code: CodeBadRequest, Message: "platform.checkAuth requires a platform id"}
	}
	adapter, err := d.platforms.Get(p.Platform)
	if err != nil {
		return nil, &Error{Code: CodeBadRequest, Message: err.Error()}
	}
	return adapter.CheckAuth(ctx), nil
}

func (d *Dispatcher) startSync(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Article *types.Article       `json:"article"`
		Options types.PublishOptions `json:"options"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Article == nil {
		return nil, &Error{Code: CodeBadRequest, Message: "sync.start requires an article"}
	}
	results, err := d.sync.StartSync(ctx, p.Article, p.Options)
	if err != nil {
		code := CodeInternal
		if errors.Is(err, orchestrator.ErrValidation) {
			code = CodeBadRequest
		}
		return nil, &Error{Code: code, Message: err.Error()}
	}
	return map[string]interface{}{"results": results}, nil
}

func (d *Dispatcher) extractArticle(_ context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		HTML string `json:"html"`
		URL  string `json:"url"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.HTML == "" {
		return nil, &Error{Code: CodeBadRequest, Message: "article.extract requires page html"}
	}
	article, err := d.extract(p.HTML, p.URL)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: err.Error()}
	}
	return article, nil
}

func (d *Dispatcher) uploadImage(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Platform string `json:"platform"`
		Source   string `json:"source"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Platform == "" || p.Source == "" {
		return nil, &Error{Code: CodeBadRequest, Message: "image.upload requires a platform id and an image source"}
	}
	adapter, err := d.platforms.Get(p.Platform)
	if err != nil {
		return nil, &Error{Code: CodeBadRequest, Message: err.Error()}
	}
	url, err := adapter.UploadImage(ctx, p.Source)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: err.Error()}
	}
	return map[string]string{"url": url}, nil
}

func decodeParams(raw json.RawMessage, dst interface{}) *Error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Code: CodeBadRequest, Message: fmt.Sprintf("malformed params: %v", err)}
	}
	return nil
}
