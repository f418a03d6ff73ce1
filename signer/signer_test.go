package signer

import (
	"strings"
	"testing"
	"time"
)

var testCreds = Credentials{
	AccessKey: "AKIDEXAMPLE",
	SecretKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
}

func testRequest() Request {
	return Request{
		Method:  "PUT",
		URL:     "https://bucket.example-storage.com/images/cover.png?uploads=&partNumber=1",
		Region:  "ap-east-1",
		Service: "s3",
		Headers: map[string]string{"Content-Type": "image/png"},
		Body:    []byte("payload"),
		Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSignDeterministic(t *testing.T) {
	first, err := Sign(testCreds, testRequest())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	second, err := Sign(testCreds, testRequest())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first != second {
		t.Fatalf("same inputs produced different signatures:\n%s\n%s", first, second)
	}
	if !strings.HasPrefix(first, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240501/ap-east-1/s3/aws4_request") {
		t.Fatalf("unexpected authorization prefix: %s", first)
	}
	if !strings.Contains(first, "SignedHeaders=content-type;host;x-amz-date") {
		t.Fatalf("unexpected signed headers: %s", first)
	}
}

func TestSignIncludesSecurityToken(t *testing.T) {
	creds := testCreds
	creds.SecurityToken = "tmp-token"

	auth, err := Sign(creds, testRequest())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.Contains(auth, "x-amz-security-token") {
		t.Fatalf("security token not signed: %s", auth)
	}

	headers, err := PresignHeaders(creds, testRequest())
	if err != nil {
		t.Fatalf("PresignHeaders: %v", err)
	}
	if headers["x-amz-security-token"] != "tmp-token" {
		t.Fatalf("missing security token header: %v", headers)
	}
	if headers["x-amz-date"] != "20240501T120000Z" {
		t.Fatalf("wrong x-amz-date: %q", headers["x-amz-date"])
	}
}

func TestCanonicalQueryOrderIndependent(t *testing.T) {
	a := CanonicalQuery("b=2&a=1&a=0&c=x%20y")
	b := CanonicalQuery("c=x+y&a=0&b=2&a=1")
	if a != b {
		t.Fatalf("order-dependent canonical query: %q vs %q", a, b)
	}
	want := "a=0&a=1&b=2&c=x%20y"
	if a != want {
		t.Fatalf("canonical query = %q; want %q", a, want)
	}
}

func TestCanonicalQueryEmpty(t *testing.T) {
	if got := CanonicalQuery(""); got != "" {
		t.Fatalf("CanonicalQuery(\"\") = %q; want empty", got)
	}
}
