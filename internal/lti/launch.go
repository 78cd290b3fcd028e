package lti

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Launch is the subset of launch parameters the tool acts on.
type Launch struct {
	UserID       string
	CourseID     string
	CanvasDomain string
	Roles        []string
}

func ParseLaunch(params url.Values) Launch {
	var roles []string
	for _, r := range strings.Split(params.Get("roles"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return Launch{
		UserID:       params.Get("user_id"),
		CourseID:     params.Get("custom_canvas_course_id"),
		CanvasDomain: params.Get("custom_canvas_api_domain"),
		Roles:        roles,
	}
}

// HasRole reports whether any launch role matches one of allowed. Matching
// is case-insensitive and a full role URN also matches its short name, so
// "urn:lti:role:ims/lis/Instructor" satisfies "Instructor".
func (l Launch) HasRole(allowed []string) bool {
	for _, have := range l.Roles {
		for _, want := range allowed {
			if strings.EqualFold(have, want) || strings.EqualFold(shortRole(have), shortRole(want)) {
				return true
			}
		}
	}
	return false
}

func shortRole(role string) string {
	if !strings.HasPrefix(strings.ToLower(role), "urn:lti:") {
		return role
	}
	if i := strings.LastIndex(role, "/"); i >= 0 {
		return role[i+1:]
	}
	return role
}

// DomainAllowed reports whether the launch came from one of domains.
func (l Launch) DomainAllowed(domains []string) bool {
	for _, d := range domains {
		if strings.EqualFold(d, l.CanvasDomain) {
			return true
		}
	}
	return false
}

// RedisNonceStore records nonces with SETNX so replays across processes are
// rejected.
type RedisNonceStore struct {
	client redis.UniversalClient
}

func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func (s *RedisNonceStore) Claim(ctx context.Context, consumerKey, nonce string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lti:nonce:%s:%s", consumerKey, nonce)
	return s.client.SetNX(ctx, key, 1, ttl).Result()
}
