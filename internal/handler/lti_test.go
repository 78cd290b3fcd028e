package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duedatechanger/api/internal/config"
	"github.com/duedatechanger/api/internal/lti"
	"github.com/duedatechanger/api/internal/lti/ltitest"
	"github.com/duedatechanger/api/internal/middleware"
)

const testBaseURL = "https://ddc.example.edu"

type memNonces map[string]bool

func (m memNonces) Claim(_ context.Context, key, nonce string, _ time.Duration) (bool, error) {
	if m[key+nonce] {
		return false, nil
	}
	m[key+nonce] = true
	return true, nil
}

func testConfig(courseNavDisabled bool) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: testBaseURL},
		Canvas: config.CanvasConfig{AllowedDomains: []string{"canvas.instructure.com"}},
		LTI: config.LTIConfig{
			ConsumerKey:       "key",
			ConsumerSecret:    "secret",
			StaffRoles:        []string{"Instructor", "urn:lti:role:ims/lis/TeachingAssistant"},
			CourseNavDisabled: courseNavDisabled,
		},
	}
}

func newLTIApp(cfg *config.Config) (*fiber.App, *middleware.SessionMiddleware) {
	session := middleware.NewSessionMiddleware("session-secret", time.Hour)
	verifier := lti.NewVerifier(cfg.LTI.ConsumerKey, cfg.LTI.ConsumerSecret, memNonces{}, time.Hour)
	h := NewLTIHandler(verifier, session, cfg)

	app := fiber.New()
	app.Get("/", h.Index)
	app.Get("/lti.xml", h.ConfigXML)
	app.Get("/launch", h.Launch)
	app.Post("/launch", h.Launch)
	return app, session
}

func signedForm(t *testing.T, secret string, overrides map[string]string) string {
	t.Helper()
	params := url.Values{
		"oauth_consumer_key":       {"key"},
		"oauth_signature_method":   {lti.SignatureMethod},
		"oauth_timestamp":          {strconv.FormatInt(time.Now().Unix(), 10)},
		"oauth_nonce":              {strconv.FormatInt(time.Now().UnixNano(), 10)},
		"oauth_version":            {"1.0"},
		"lti_message_type":         {"basic-lti-launch-request"},
		"user_id":                  {"u1"},
		"roles":                    {"Instructor"},
		"custom_canvas_course_id":  {"42"},
		"custom_canvas_api_domain": {"canvas.instructure.com"},
	}
	for k, v := range overrides {
		params.Set(k, v)
	}
	sig, err := ltitest.Sign("POST", testBaseURL+"/launch", params, secret)
	require.NoError(t, err)
	params.Set("oauth_signature", sig)
	return params.Encode()
}

func postLaunch(t *testing.T, app *fiber.App, body string) (int, string, string, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/launch", strings.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Location"), resp.Header.Get("Set-Cookie"), string(raw)
}

func TestIndex(t *testing.T) {
	app, _ := newLTIApp(testConfig(false))

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, IndexMessage, string(raw))
}

func TestConfigXML(t *testing.T) {
	for _, disabled := range []bool{false, true} {
		app, _ := newLTIApp(testConfig(disabled))

		resp, err := app.Test(httptest.NewRequest("GET", "/lti.xml", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")

		raw, _ := io.ReadAll(resp.Body)
		body := string(raw)
		assert.Contains(t, body, "<blti:launch_url>https://ddc.example.edu/launch</blti:launch_url>")
		assert.Contains(t, body, `<lticm:property name="domain">ddc.example.edu</lticm:property>`)
		assert.Equal(t, !disabled, strings.Contains(body, "course_navigation"))
	}
}

func TestLaunch_Success(t *testing.T) {
	app, _ := newLTIApp(testConfig(false))

	status, location, cookie, _ := postLaunch(t, app, signedForm(t, "secret", nil))
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, "/course/42/assignments", location)
	assert.Contains(t, cookie, middleware.SessionCookie+"=")
}

func TestLaunch_QueryString(t *testing.T) {
	app, _ := newLTIApp(testConfig(false))

	params := url.Values{
		"oauth_consumer_key":       {"key"},
		"oauth_signature_method":   {lti.SignatureMethod},
		"oauth_timestamp":          {strconv.FormatInt(time.Now().Unix(), 10)},
		"oauth_nonce":              {strconv.FormatInt(time.Now().UnixNano(), 10)},
		"oauth_version":            {"1.0"},
		"user_id":                  {"u1"},
		"roles":                    {"Instructor"},
		"custom_canvas_course_id":  {"77"},
		"custom_canvas_api_domain": {"canvas.instructure.com"},
	}
	sig, err := ltitest.Sign("GET", testBaseURL+"/launch", params, "secret")
	require.NoError(t, err)
	params.Set("oauth_signature", sig)

	resp, err := app.Test(httptest.NewRequest("GET", "/launch?"+params.Encode(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/course/77/assignments", resp.Header.Get("Location"))
}

func TestLaunch_SessionOpensCourseRoutes(t *testing.T) {
	app, session := newLTIApp(testConfig(false))
	app.Get("/course/:courseId/assignments", session.Authenticate(), func(c *fiber.Ctx) error {
		return c.SendString(middleware.GetUserID(c))
	})

	_, _, cookie, _ := postLaunch(t, app, signedForm(t, "secret", nil))
	token := strings.TrimPrefix(strings.SplitN(cookie, ";", 2)[0], middleware.SessionCookie+"=")

	req := httptest.NewRequest("GET", "/course/42/assignments", nil)
	req.Header.Set("Cookie", middleware.SessionCookie+"="+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", string(raw))
}

func TestLaunch_Rejections(t *testing.T) {
	t.Run("bad signature", func(t *testing.T) {
		app, _ := newLTIApp(testConfig(false))
		status, _, cookie, _ := postLaunch(t, app, signedForm(t, "wrong", nil))
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Empty(t, cookie)
	})

	t.Run("replay", func(t *testing.T) {
		app, _ := newLTIApp(testConfig(false))
		body := signedForm(t, "secret", nil)
		status, _, _, _ := postLaunch(t, app, body)
		require.Equal(t, fiber.StatusFound, status)
		status, _, _, _ = postLaunch(t, app, body)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})

	t.Run("student", func(t *testing.T) {
		app, _ := newLTIApp(testConfig(false))
		status, _, _, _ := postLaunch(t, app, signedForm(t, "secret", map[string]string{"roles": "Learner"}))
		assert.Equal(t, fiber.StatusForbidden, status)
	})

	t.Run("foreign domain", func(t *testing.T) {
		app, _ := newLTIApp(testConfig(false))
		status, _, _, body := postLaunch(t, app, signedForm(t, "secret", map[string]string{"custom_canvas_api_domain": "evil.example.com"}))
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.Contains(t, body, "canvas.instructure.com")
		assert.Contains(t, body, "evil.example.com")
	})
}
