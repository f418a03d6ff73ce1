// Package signer produces SigV4-compatible request signatures for direct
// uploads to S3-style object storage, plus the CRC32 checksum some
// destinations require on upload bodies. Everything here is a pure function
// of its inputs; a fixed clock yields a fixed signature.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	algorithm   = "AWS4-HMAC-SHA256"
	requestTag  = "aws4_request"
	timeFormat  = "20060102T150405Z"
	dateFormat  = "20060102"
	emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// Credentials are the caller-supplied storage keys. SecurityToken is set
// when the destination hands out temporary credentials.
type Credentials struct {
	AccessKey     string
	SecretKey     string
	SecurityToken string
}

// Request describes one HTTP request to sign.
type Request struct {
	Method  string
	URL     string
	Region  string
	Service string
	Headers map[string]string
	Body    []byte
	Time    time.Time
}

// Sign computes the SigV4 authorization value for req.
// Headers passed in req.Headers are all signed; the host header is derived
// from the URL and always included.
func Sign(creds Credentials, req Request) (string, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", err
	}

	headers := map[string]string{"host": u.Host}
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	headers["x-amz-date"] = req.Time.UTC().Format(timeFormat)
	if creds.SecurityToken != "" {
		headers["x-amz-security-token"] = creds.SecurityToken
	}

	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	signedHeaders := strings.Join(names, ";")

	var canonicalHeaders strings.Builder
	for _, k := range names {
		canonicalHeaders.WriteString(k)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(headers[k])
		canonicalHeaders.WriteString("\n")
	}

	payloadHash := emptySHA256
	if len(req.Body) > 0 {
		sum := sha256.Sum256(req.Body)
		payloadHash = hex.EncodeToString(sum[:])
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	canonical := strings.Join([]string{
		req.Method,
		path,
		CanonicalQuery(u.RawQuery),
		canonicalHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	date := req.Time.UTC().Format(dateFormat)
	scope := strings.Join([]string{date, req.Region, req.Service, requestTag}, "/")

	canonicalSum := sha256.Sum256([]byte(canonical))
	stringToSign := strings.Join([]string{
		algorithm,
		req.Time.UTC().Format(timeFormat),
		scope,
		hex.EncodeToString(canonicalSum[:]),
	}, "\n")

	key := signingKey(creds.SecretKey, date, req.Region, req.Service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return algorithm +
		" Credential=" + creds.AccessKey + "/" + scope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature, nil
}

// PresignHeaders returns the full header map an upload PUT needs:
// Authorization, x-amz-date and, for temporary credentials,
// x-amz-security-token. Extra headers are signed and echoed back.
func PresignHeaders(creds Credentials, req Request) (map[string]string, error) {
	auth, err := Sign(creds, req)
	if err != nil {
		return nil, err
	}
	out := map[string]string{
		"Authorization": auth,
		"x-amz-date":    req.Time.UTC().Format(timeFormat),
	}
	if creds.SecurityToken != "" {
		out["x-amz-security-token"] = creds.SecurityToken
	}
	for k, v := range req.Headers {
		out[k] = v
	}
	return out, nil
}

// CanonicalQuery normalizes a raw query string: parameters sorted by name
// then value, every name and value percent-encoded. Parameter order in the
// input does not affect the output.
func CanonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	type pair struct{ k, v string }
	var pairs []pair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		ku, err := url.QueryUnescape(k)
		if err != nil {
			ku = k
		}
		vu, err := url.QueryUnescape(v)
		if err != nil {
			vu = v
		}
		pairs = append(pairs, pair{encodeRFC3986(ku), encodeRFC3986(vu)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// encodeRFC3986 percent-encodes everything except unreserved characters,
// which is stricter than url.QueryEscape (no '+' for space).
func encodeRFC3986(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString("%" + strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return b.String()
}

// signingKey derives the per-day signing key through the 4-stage HMAC chain.
func signingKey(secret, date, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), date)
	k = hmacSHA256(k, region)
	k = hmacSHA256(k, service)
	return hmacSHA256(k, requestTag)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
