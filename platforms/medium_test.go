package platforms

import (
	"context"
	"strings"
	"testing"

	"crosspost/types"
)

func mediumRuntime() *fakeRuntime {
	rt := newFakeRuntime()
	rt.cookies["https://medium.com/integration_token"] = "tok-1"
	rt.respond("GET", "https://api.medium.com/v1/me", 200,
		`{"data":{"id":"u1","username":"bob","imageUrl":"https://img.test/bob.png"}}`)
	return rt
}

func TestMediumCheckAuth(t *testing.T) {
	m := NewMedium(mediumRuntime())
	res := m.CheckAuth(context.Background())
	if !res.IsAuthenticated || res.UserID != "u1" || res.Username != "bob" {
		t.Fatalf("unexpected auth result: %+v", res)
	}
	if m.userID != "u1" {
		t.Fatalf("user id not cached: %q", m.userID)
	}
}

func TestMediumCheckAuthWithoutToken(t *testing.T) {
	res := NewMedium(newFakeRuntime()).CheckAuth(context.Background())
	if res.IsAuthenticated || !strings.Contains(res.Error, "token") {
		t.Fatalf("missing token not reported: %+v", res)
	}
}

func TestMediumPublishInlinesStyles(t *testing.T) {
	rt := mediumRuntime()
	var posted string
	rt.route("POST", "https://api.medium.com/v1/users/u1/posts", func(req *Request) (*Response, error) {
		posted = string(req.Body)
		return &Response{StatusCode: 201, Body: []byte(`{"data":{"id":"p1","url":"https://medium.com/p/p1"}}`)}, nil
	})

	article := &types.Article{Title: "T", HTML: "<h2>S</h2><p>body</p>"}
	res := NewMedium(rt).Publish(context.Background(), article, types.PublishOptions{})
	if !res.Success || res.PostID != "p1" {
		t.Fatalf("publish failed: %+v", res)
	}
	if !strings.Contains(posted, "crosspost-container") {
		t.Fatalf("style container missing from body: %s", posted)
	}
	if !strings.Contains(posted, "line-height:1.7") {
		t.Fatalf("stylesheet not inlined: %s", posted)
	}
}

func TestMediumImageFailureAborts(t *testing.T) {
	rt := mediumRuntime()
	rt.respond("POST", "https://api.medium.com/v1/images", 500, `{}`)
	// No posts route: reaching the create endpoint would error loudly.

	article := &types.Article{Title: "T", HTML: `<img src="https://pics.test/a.png"/>`}
	res := NewMedium(rt).Publish(context.Background(), article, types.PublishOptions{})
	if res.Success {
		t.Fatal("abort policy did not hold: publish succeeded with failed image")
	}
	if !strings.Contains(res.Error, "image upload") {
		t.Fatalf("error does not point at the image upload: %q", res.Error)
	}
}

func TestMediumPublishTokenVanished(t *testing.T) {
	rt := mediumRuntime()
	// No posts route: reaching the create endpoint would error loudly.
	m := NewMedium(rt)
	if res := m.CheckAuth(context.Background()); !res.IsAuthenticated {
		t.Fatalf("auth setup failed: %+v", res)
	}
	delete(rt.cookies, "https://medium.com/integration_token")

	res := m.Publish(context.Background(), &types.Article{Title: "T", Markdown: "x"}, types.PublishOptions{})
	if res.Success {
		t.Fatal("publish succeeded without a token")
	}
	if !strings.Contains(res.Error, "no integration token configured") {
		t.Fatalf("error = %q; want the missing-token message", res.Error)
	}
	for _, call := range rt.calls {
		if strings.Contains(call, "/posts") {
			t.Fatal("create request fired without a token")
		}
	}
}

func TestMediumDraftOnly(t *testing.T) {
	rt := mediumRuntime()
	var posted string
	rt.route("POST", "https://api.medium.com/v1/users/u1/posts", func(req *Request) (*Response, error) {
		posted = string(req.Body)
		return &Response{StatusCode: 201, Body: []byte(`{"data":{"id":"p2","url":"u"}}`)}, nil
	})

	res := NewMedium(rt).Publish(context.Background(),
		&types.Article{Title: "T", Markdown: "x"}, types.PublishOptions{DraftOnly: true})
	if !res.DraftOnly {
		t.Fatalf("draft flag lost: %+v", res)
	}
	if !strings.Contains(posted, `"publishStatus":"draft"`) {
		t.Fatalf("draft status not requested: %s", posted)
	}
}
