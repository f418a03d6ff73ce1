package platforms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"crosspost/types"
)

// fakeRuntime routes requests by "METHOD prefix" to canned handlers.
type fakeRuntime struct {
	mu      sync.Mutex
	cookies map[string]string
	routes  map[string]func(*Request) (*Response, error)
	calls   []string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		cookies: make(map[string]string),
		routes:  make(map[string]func(*Request) (*Response, error)),
	}
}

func (f *fakeRuntime) route(method, prefix string, fn func(*Request) (*Response, error)) {
	f.routes[method+" "+prefix] = fn
}

func (f *fakeRuntime) respond(method, prefix string, status int, body string) {
	f.route(method, prefix, func(*Request) (*Response, error) {
		return &Response{StatusCode: status, Body: []byte(body)}, nil
	})
}

func (f *fakeRuntime) Do(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Method+" "+req.URL)
	f.mu.Unlock()
	for key, fn := range f.routes {
		method, prefix, _ := strings.Cut(key, " ")
		if req.Method == method && strings.HasPrefix(req.URL, prefix) {
			return fn(req)
		}
	}
	return nil, fmt.Errorf("no route for %s %s", req.Method, req.URL)
}

func (f *fakeRuntime) Cookie(site, name string) (string, bool) {
	v, ok := f.cookies[site+"/"+name]
	return v, ok
}

func TestRegistrySetRuntimeOnce(t *testing.T) {
	r := NewRegistry()
	if err := r.SetRuntime(newFakeRuntime()); err != nil {
		t.Fatalf("first SetRuntime: %v", err)
	}
	if err := r.SetRuntime(newFakeRuntime()); !errors.Is(err, ErrRuntimeAlreadySet) {
		t.Fatalf("second SetRuntime = %v; want ErrRuntimeAlreadySet", err)
	}
}

func TestRegistryAllMetaUniqueIDs(t *testing.T) {
	r := NewRegistry()
	metas := r.AllMeta()
	if len(metas) == 0 {
		t.Fatal("no built-in platforms registered")
	}
	seen := make(map[string]bool)
	for _, m := range metas {
		if seen[m.ID] {
			t.Fatalf("duplicate platform id %q", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if err := r.SetRuntime(newFakeRuntime()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("Get(nope) = %v; want ErrUnknownPlatform", err)
	}
}

func TestRegistryGetSameInstance(t *testing.T) {
	r := NewRegistry()
	if err := r.SetRuntime(newFakeRuntime()); err != nil {
		t.Fatal(err)
	}
	a, err := r.Get("devto")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Get("devto")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("Get constructed a second adapter for the same id")
	}
}

func TestCheckAllAuthIsolatesFailures(t *testing.T) {
	rt := newFakeRuntime()
	// devto succeeds, everything else has no route and fails.
	rt.respond("GET", "https://dev.to/settings", 200,
		`<meta name="csrf-token" content="tok"/> {"username":"alice","user_id":"7"}`)

	r := NewRegistry()
	if err := r.SetRuntime(rt); err != nil {
		t.Fatal(err)
	}

	results := r.CheckAllAuth(context.Background(), false)
	if len(results) != len(r.AllMeta()) {
		t.Fatalf("got %d results; want one per platform", len(results))
	}
	if !results["devto"].IsAuthenticated {
		t.Fatalf("devto should be authenticated: %+v", results["devto"])
	}
	for id, res := range results {
		if id == "devto" {
			continue
		}
		if res.IsAuthenticated {
			t.Fatalf("%s unexpectedly authenticated", id)
		}
		if res.Error == "" {
			t.Fatalf("%s failure carries no error message", id)
		}
	}
}

func TestCheckAllAuthCaches(t *testing.T) {
	rt := newFakeRuntime()
	rt.respond("GET", "https://dev.to/settings", 200, `{"username":"alice"}`)

	r := NewRegistry()
	if err := r.SetRuntime(rt); err != nil {
		t.Fatal(err)
	}

	r.CheckAllAuth(context.Background(), false)
	first := len(rt.calls)
	r.CheckAllAuth(context.Background(), false)
	if len(rt.calls) != first {
		t.Fatalf("cached probe still hit the network: %d -> %d calls", first, len(rt.calls))
	}
	r.CheckAllAuth(context.Background(), true)
	if len(rt.calls) == first {
		t.Fatal("forceRefresh did not re-probe")
	}
}

func TestCheckAllAuthConcurrentProbes(t *testing.T) {
	rt := newFakeRuntime()
	rt.respond("GET", "https://dev.to/settings", 200,
		`<meta name="csrf-token" content="tok"/> {"username":"alice"}`)
	rt.cookies["https://medium.com/integration_token"] = "tok-1"
	rt.respond("GET", "https://api.medium.com/v1/me", 200,
		`{"data":{"id":"u1","username":"bob"}}`)
	rt.cookies["https://hashnode.com/jwt"] = "jwt-1"
	rt.respond("POST", "https://gql.hashnode.com", 200,
		`{"data":{"me":{"id":"h1","username":"kay","publications":{"edges":[{"node":{"id":"pub1"}}]}}}}`)

	r := NewRegistry()
	if err := r.SetRuntime(rt); err != nil {
		t.Fatal(err)
	}

	// Overlapping fan-outs hit the same shared adapter instances; their
	// session caches must stay consistent.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id, res := range r.CheckAllAuth(context.Background(), true) {
				if !res.IsAuthenticated {
					t.Errorf("%s: %+v", id, res)
				}
			}
		}()
	}
	wg.Wait()

	adapter, err := r.Get("devto")
	if err != nil {
		t.Fatal(err)
	}
	if adapter.(*Devto).cachedCSRF() != "tok" {
		t.Fatal("csrf cache inconsistent after overlapping probes")
	}
}

func TestCheckAuthNeverRaises(t *testing.T) {
	// No routes at all: every network call errors. CheckAuth must still
	// return a well-formed result.
	r := NewRegistry()
	if err := r.SetRuntime(newFakeRuntime()); err != nil {
		t.Fatal(err)
	}
	for _, meta := range r.AllMeta() {
		adapter, err := r.Get(meta.ID)
		if err != nil {
			t.Fatal(err)
		}
		res := adapter.CheckAuth(context.Background())
		if res.IsAuthenticated || res.Error == "" {
			t.Fatalf("%s: CheckAuth on dead network = %+v", meta.ID, res)
		}
	}
}

func TestPublishResultPlatformMatchesMeta(t *testing.T) {
	r := NewRegistry()
	if err := r.SetRuntime(newFakeRuntime()); err != nil {
		t.Fatal(err)
	}
	article := &types.Article{Title: "T", Markdown: "# H"}
	for _, meta := range r.AllMeta() {
		adapter, err := r.Get(meta.ID)
		if err != nil {
			t.Fatal(err)
		}
		res := adapter.Publish(context.Background(), article, types.PublishOptions{})
		if res.Platform != meta.ID {
			t.Fatalf("result platform %q != meta id %q", res.Platform, meta.ID)
		}
		if res.Success {
			t.Fatalf("%s: publish with dead network reported success", meta.ID)
		}
		if res.Timestamp.IsZero() {
			t.Fatalf("%s: result missing timestamp", meta.ID)
		}
	}
}
