// Package ltitest signs LTI 1.1 launches the way a consumer LMS does, for
// exercising the launch endpoint in tests.
package ltitest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Sign returns the HMAC-SHA1 oauth_signature for a request made with method
// to rawURL carrying params. oauth_signature in params is ignored. LTI
// launches have no token secret.
func Sign(method, rawURL string, params url.Values, consumerSecret string) (string, error) {
	base, err := BaseString(method, rawURL, params)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha1.New, []byte(encode(consumerSecret)+"&"))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// BaseString builds the OAuth 1.0 signature base string. Query parameters
// of rawURL are included alongside params.
func BaseString(method, rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid launch url: %w", err)
	}

	all := make(url.Values, len(params))
	for k, vs := range u.Query() {
		all[k] = append(all[k], vs...)
	}
	for k, vs := range params {
		if k == "oauth_signature" {
			continue
		}
		all[k] = append(all[k], vs...)
	}

	return strings.ToUpper(method) + "&" + encode(normalizeURL(u)) + "&" + encode(normalizeParams(all)), nil
}

func normalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

func normalizeParams(params url.Values) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		ek := encode(k)
		for _, v := range vs {
			pairs = append(pairs, pair{ek, encode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k + "=" + p.v)
	}
	return b.String()
}

// encode applies RFC 3986 percent-encoding.
func encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
