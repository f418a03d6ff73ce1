package platforms

import (
	"context"
	"strings"
	"testing"
)

func hashnodeRuntime() *fakeRuntime {
	rt := newFakeRuntime()
	rt.cookies["https://hashnode.com/jwt"] = "jwt-1"
	rt.respond("POST", "https://gql.hashnode.com", 200,
		`{"data":{"me":{"id":"u1","username":"carol","profilePicture":"p.png",
		  "publications":{"edges":[{"node":{"id":"pub1"}}]}}}}`)
	return rt
}

func TestHashnodeCheckAuthCachesPublication(t *testing.T) {
	h := NewHashnode(hashnodeRuntime())
	res := h.CheckAuth(context.Background())
	if !res.IsAuthenticated || res.Username != "carol" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.publication != "pub1" {
		t.Fatalf("publication not cached: %q", h.publication)
	}
}

func TestHashnodeUploadImageSignsStoragePut(t *testing.T) {
	rt := hashnodeRuntime()
	rt.respond("GET", "https://pics.test/a.png", 200, "png-bytes")
	rt.respond("POST", "https://hashnode.com/api/upload-credentials", 200,
		`{"data":{"accessKey":"AK","secretKey":"SK","securityToken":"ST",
		  "bucket":"hn-uploads","region":"us-east-1","key":"img/a.png",
		  "publicUrl":"https://cdn.hashnode.com/img/a.png"}}`)

	var putReq *Request
	rt.route("PUT", "https://hn-uploads.s3.us-east-1.amazonaws.com/", func(req *Request) (*Response, error) {
		putReq = req
		return &Response{StatusCode: 200}, nil
	})

	h := NewHashnode(rt)
	url, err := h.UploadImage(context.Background(), "https://pics.test/a.png")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if url != "https://cdn.hashnode.com/img/a.png" {
		t.Fatalf("wrong public URL: %s", url)
	}
	if putReq == nil {
		t.Fatal("no storage PUT issued")
	}
	if !strings.HasPrefix(putReq.Headers["Authorization"], "AWS4-HMAC-SHA256 Credential=AK/") {
		t.Fatalf("PUT not signed: %v", putReq.Headers)
	}
	if putReq.Headers["x-amz-security-token"] != "ST" {
		t.Fatalf("security token header missing: %v", putReq.Headers)
	}
	if putReq.Headers["x-amz-checksum-crc32"] == "" {
		t.Fatalf("checksum header missing: %v", putReq.Headers)
	}
}

func TestHashnodeGraphQLErrorSurfacesInResult(t *testing.T) {
	rt := newFakeRuntime()
	rt.cookies["https://hashnode.com/jwt"] = "jwt-1"
	rt.respond("POST", "https://gql.hashnode.com", 200,
		`{"errors":[{"message":"publication is read-only"}]}`)

	res := NewHashnode(rt).CheckAuth(context.Background())
	if res.IsAuthenticated {
		t.Fatal("GraphQL error treated as success")
	}
	if !strings.Contains(res.Error, "read-only") {
		t.Fatalf("error message lost: %q", res.Error)
	}
}
