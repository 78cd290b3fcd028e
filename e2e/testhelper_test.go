package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/duedatechanger/api/internal/bulkedit"
	"github.com/duedatechanger/api/internal/client"
	"github.com/duedatechanger/api/internal/config"
	"github.com/duedatechanger/api/internal/dates"
	"github.com/duedatechanger/api/internal/handler"
	"github.com/duedatechanger/api/internal/jobs"
	"github.com/duedatechanger/api/internal/lti"
	"github.com/duedatechanger/api/internal/lti/ltitest"
	"github.com/duedatechanger/api/internal/middleware"
	"github.com/duedatechanger/api/internal/service"
	"github.com/duedatechanger/api/internal/worker"
)

const (
	testBaseURL   = "https://ddc.example.edu"
	testKey       = "e2e-key"
	testSecret    = "e2e-secret"
	testQueue     = "ddc-e2e"
	testCourseID  = "42"
	testRedisAddr = "localhost:6379"
	testRedisDB   = 15 // use DB 15 for tests to avoid collision
)

// testApp holds the app plus the pieces a test drives directly.
type testApp struct {
	app    *fiber.App
	queue  *captureQueue
	worker *worker.BulkEditWorker
	canvas *fakeCanvas
}

// captureQueue records enqueued tasks so a test can hand them to the worker.
type captureQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *captureQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: task.Type(), Queue: testQueue}, nil
}

func (q *captureQueue) last(t *testing.T) *asynq.Task {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		t.Fatal("no task was enqueued")
	}
	return q.tasks[len(q.tasks)-1]
}

// fakeCanvas serves the slice of the Canvas API the tool uses and records
// every edit body it receives.
type fakeCanvas struct {
	mu      sync.Mutex
	edits   map[string]map[string]interface{}
	failPut map[string]bool
}

func (f *fakeCanvas) handler() http.Handler {
	mux := http.NewServeMux()
	prefix := "/api/v1/courses/" + testCourseID

	mux.HandleFunc("/api/v1/users/self", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"id": 1, "name": "Tool Admin"})
	})
	mux.HandleFunc(prefix, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"id": 42, "name": "Biology 101", "course_code": "BIO101"})
	})
	mux.HandleFunc(prefix+"/assignments", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]interface{}{
			{"id": 7, "name": "Essay", "published": true, "due_at": "2018-01-15T18:00:00Z", "submission_types": []string{"online_upload"}},
			{"id": 8, "name": "Quiz 1", "published": false, "quiz_id": 9, "submission_types": []string{"online_quiz"}},
		})
	})
	mux.HandleFunc(prefix+"/quizzes", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]interface{}{
			{"id": 9, "title": "Quiz 1", "show_correct_answers_at": "2018-02-01T17:00:00Z"},
		})
	})
	mux.HandleFunc(prefix+"/assignments/7", f.item("assignment", "7", map[string]interface{}{"id": 7, "name": "Essay"}))
	mux.HandleFunc(prefix+"/quizzes/9", f.item("quiz", "9", map[string]interface{}{"id": 9, "title": "Quiz 1"}))
	return mux
}

func (f *fakeCanvas) item(kind, id string, body map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			f.mu.Lock()
			fail := f.failPut[kind+id]
			if !fail {
				var wrapped map[string]map[string]interface{}
				if err := json.NewDecoder(r.Body).Decode(&wrapped); err == nil {
					f.edits[kind+id] = wrapped[kind]
				}
			}
			f.mu.Unlock()
			if fail {
				http.Error(w, `{"errors":[{"message":"boom"}]}`, http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, body)
	}
}

func (f *fakeCanvas) edit(key string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edits[key]
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// setupApp wires the same routes as cmd/server against a local Redis and an
// in-process Canvas. Tests skip when Redis is not reachable.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{Addr: testRedisAddr, DB: testRedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		t.Skipf("redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { redisClient.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: testRedisAddr, DB: testRedisDB})
	t.Cleanup(func() { inspector.Close() })

	fake := &fakeCanvas{edits: map[string]map[string]interface{}{}, failPut: map[string]bool{}}
	canvasServer := httptest.NewServer(fake.handler())
	t.Cleanup(canvasServer.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: testBaseURL},
		Canvas: config.CanvasConfig{
			BaseURL:        canvasServer.URL,
			APIKey:         "token",
			Timeout:        5,
			PerPage:        50,
			AllowedDomains: []string{"canvas.instructure.com"},
		},
		LTI: config.LTIConfig{
			ConsumerKey:    testKey,
			ConsumerSecret: testSecret,
			StaffRoles:     []string{"Instructor"},
		},
	}

	normalizer, err := dates.NewNormalizer("America/New_York", "")
	if err != nil {
		t.Fatalf("failed to build normalizer: %v", err)
	}

	validate := validator.New()
	canvas := client.NewCanvasClient(&cfg.Canvas)
	store := jobs.NewRedisStore(redisClient, time.Hour)
	queue := &captureQueue{}

	bulkEditService := service.NewBulkEditService(store, queue, testQueue, time.Hour)
	courseService := service.NewCourseService(canvas, normalizer)
	healthService := service.NewHealthService(canvas, redisClient, inspector, testQueue, cfg.Canvas.BaseURL)

	session := middleware.NewSessionMiddleware("e2e-session-secret", time.Hour)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	verifier := lti.NewVerifier(testKey, testSecret, lti.NewRedisNonceStore(redisClient), time.Hour)

	app := fiber.New()
	handler.RegisterRoutes(app, handler.Routes{
		LTI:      handler.NewLTIHandler(verifier, session, cfg),
		Course:   handler.NewCourseHandler(courseService, validate),
		BulkEdit: handler.NewBulkEditHandler(bulkEditService, validate),
		Health:   handler.NewHealthHandler(healthService, testBaseURL),
		Session:  session,
		// Very high limit so tests don't get blocked
		RateLimiter:    rateLimiter,
		UpdatesPerHour: 10000,
	})

	return &testApp{
		app:    app,
		queue:  queue,
		worker: worker.NewBulkEditWorker(store, bulkedit.NewOrchestrator(canvas, normalizer)),
		canvas: fake,
	}
}

// launch performs a signed LTI launch and returns the session cookie value.
func launch(t *testing.T, app *fiber.App, userID string) string {
	t.Helper()
	params := url.Values{
		"oauth_consumer_key":       {testKey},
		"oauth_signature_method":   {lti.SignatureMethod},
		"oauth_timestamp":          {strconv.FormatInt(time.Now().Unix(), 10)},
		"oauth_nonce":              {userID + strconv.FormatInt(time.Now().UnixNano(), 10)},
		"oauth_version":            {"1.0"},
		"lti_message_type":         {"basic-lti-launch-request"},
		"user_id":                  {userID},
		"roles":                    {"Instructor"},
		"custom_canvas_course_id":  {testCourseID},
		"custom_canvas_api_domain": {"canvas.instructure.com"},
	}
	sig, err := ltitest.Sign(http.MethodPost, testBaseURL+"/launch", params, testSecret)
	if err != nil {
		t.Fatalf("failed to sign launch: %v", err)
	}
	params.Set("oauth_signature", sig)

	resp, err := doRequest(app, http.MethodPost, "/launch", params.Encode(), map[string]string{
		"Content-Type": fiber.MIMEApplicationForm,
	})
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("launch returned %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			return c.Value
		}
	}
	t.Fatal("launch did not set a session cookie")
	return ""
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doSessionRequest performs a request carrying the session cookie.
func doSessionRequest(app *fiber.App, method, path, body, token string) (*http.Response, error) {
	headers := map[string]string{"Cookie": middleware.SessionCookie + "=" + token}
	if body != "" {
		headers["Content-Type"] = fiber.MIMEApplicationForm
	}
	return doRequest(app, method, path, body, headers)
}

// parseJSON decodes the response body into out.
func parseJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, b)
	}
}
