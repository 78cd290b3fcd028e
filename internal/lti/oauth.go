// Package lti verifies LTI 1.1 basic launch requests signed with OAuth 1.0a
// HMAC-SHA1.
package lti

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrjones/oauth"
)

const (
	SignatureMethod = "HMAC-SHA1"

	// DefaultTimestampWindow bounds clock skew between the LMS and this tool.
	DefaultTimestampWindow = 5 * time.Minute
)

var (
	ErrMissingParameter = errors.New("missing oauth parameter")
	ErrUnknownConsumer  = errors.New("unknown consumer key")
	ErrSignatureMethod  = errors.New("unsupported signature method")
	ErrStaleTimestamp   = errors.New("timestamp outside allowed window")
	ErrNonceReused      = errors.New("nonce already used")
	ErrInvalidSignature = errors.New("invalid signature")
)

// IsRejection reports whether err means the request itself is not an
// acceptable launch, as opposed to a failure checking it.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrMissingParameter, ErrUnknownConsumer, ErrSignatureMethod,
		ErrStaleTimestamp, ErrNonceReused, ErrInvalidSignature,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NonceStore remembers nonces for at least the timestamp window. Claim
// returns false when the nonce was already seen.
type NonceStore interface {
	Claim(ctx context.Context, consumerKey, nonce string, ttl time.Duration) (bool, error)
}

// Verifier checks launch requests for a single consumer key. Signature
// checking is done by an OAuth provider; the verifier adds the consumer,
// timestamp and nonce policy.
type Verifier struct {
	consumerKey string
	provider    *oauth.Provider
	nonces      NonceStore
	nonceTTL    time.Duration
	window      time.Duration
	now         func() time.Time
}

func NewVerifier(consumerKey, consumerSecret string, nonces NonceStore, nonceTTL time.Duration) *Verifier {
	if nonceTTL < DefaultTimestampWindow*2 {
		nonceTTL = DefaultTimestampWindow * 2
	}

	consumer := oauth.NewConsumer(consumerKey, consumerSecret, oauth.ServiceProvider{
		// Timestamps are checked against the verifier clock below.
		IgnoreTimestamp: true,
		SignQueryParams: true,
	})
	provider := oauth.NewProvider(func(key string, _ map[string]string) (*oauth.Consumer, error) {
		if key != consumerKey {
			return nil, ErrUnknownConsumer
		}
		return consumer, nil
	})

	return &Verifier{
		consumerKey: consumerKey,
		provider:    provider,
		nonces:      nonces,
		nonceTTL:    nonceTTL,
		window:      DefaultTimestampWindow,
		now:         time.Now,
	}
}

// Verify checks a launch made with method to rawURL. form holds the decoded
// request body; query parameters are read from rawURL, so launches may carry
// their oauth parameters in either.
func (v *Verifier) Verify(ctx context.Context, method, rawURL string, form url.Values) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid launch url: %w", err)
	}
	params := Merge(u.Query(), form)

	for _, key := range []string{"oauth_consumer_key", "oauth_signature", "oauth_signature_method", "oauth_timestamp", "oauth_nonce"} {
		if params.Get(key) == "" {
			return fmt.Errorf("%w: %s", ErrMissingParameter, key)
		}
	}

	if params.Get("oauth_consumer_key") != v.consumerKey {
		return ErrUnknownConsumer
	}
	if params.Get("oauth_signature_method") != SignatureMethod {
		return fmt.Errorf("%w: %s", ErrSignatureMethod, params.Get("oauth_signature_method"))
	}

	ts, err := strconv.ParseInt(params.Get("oauth_timestamp"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStaleTimestamp, err)
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew > v.window || skew < -v.window {
		return ErrStaleTimestamp
	}

	if err := v.checkSignature(method, u, form); err != nil {
		return err
	}

	// Claim the nonce last so a forged request cannot burn a valid one.
	fresh, err := v.nonces.Claim(ctx, v.consumerKey, params.Get("oauth_nonce"), v.nonceTTL)
	if err != nil {
		return fmt.Errorf("failed to check nonce: %w", err)
	}
	if !fresh {
		return ErrNonceReused
	}
	return nil
}

// checkSignature rebuilds the launch as a net/http request for the provider.
// The body is re-encoded as urlencoded so multipart launches verify the same
// way; the signature covers decoded values only.
func (v *Verifier) checkSignature(method string, u *url.URL, form url.Values) error {
	var body io.Reader = http.NoBody
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(strings.ToUpper(method), u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build launch request: %w", err)
	}
	if len(form) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if _, err := v.provider.IsAuthorized(req); err != nil {
		if errors.Is(err, ErrUnknownConsumer) {
			return ErrUnknownConsumer
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Merge combines query and body parameters. Body values come first.
func Merge(query, form url.Values) url.Values {
	all := make(url.Values, len(query)+len(form))
	for k, vs := range form {
		all[k] = append(all[k], vs...)
	}
	for k, vs := range query {
		all[k] = append(all[k], vs...)
	}
	return all
}
