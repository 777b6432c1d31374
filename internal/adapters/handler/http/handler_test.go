package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/adapters/auth"
	"github.com/vncsmyrnk/taskboard/internal/adapters/ratelimit"
	"github.com/vncsmyrnk/taskboard/internal/config"
	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

type fakeTaskService struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
	// stall makes List wait for the request context to end.
	stall bool
}

func newFakeTaskService() *fakeTaskService {
	return &fakeTaskService{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *fakeTaskService) seed(owner uuid.UUID, title string) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &domain.Task{ID: uuid.New(), UserID: owner, Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.tasks[task.ID] = task
	cp := *task
	return &cp
}

func (s *fakeTaskService) completed(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Completed
}

func (s *fakeTaskService) owned(id domain.Identity, taskID uuid.UUID) (*domain.Task, error) {
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if !task.OwnedBy(id) {
		return nil, domain.ErrTaskNotOwned
	}
	return task, nil
}

func (s *fakeTaskService) Create(_ context.Context, id domain.Identity, input ports.CreateTaskInput) (*domain.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.ErrInvalidTask
	}
	return s.seed(id.UserID, input.Title), nil
}

func (s *fakeTaskService) Get(_ context.Context, id domain.Identity, taskID uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.owned(id, taskID)
	if err != nil {
		return nil, err
	}
	cp := *task
	return &cp, nil
}

func (s *fakeTaskService) List(ctx context.Context, id domain.Identity, input ports.ListTasksInput) (*domain.TaskPage, error) {
	if s.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &domain.TaskPage{Items: []*domain.Task{}, Page: 1, PageSize: 20}
	for _, task := range s.tasks {
		if task.OwnedBy(id) {
			cp := *task
			page.Items = append(page.Items, &cp)
		}
	}
	page.Total = len(page.Items)
	return page, nil
}

func (s *fakeTaskService) Update(_ context.Context, id domain.Identity, taskID uuid.UUID, input ports.UpdateTaskInput) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.owned(id, taskID)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Completed != nil {
		task.Completed = *input.Completed
	}
	cp := *task
	return &cp, nil
}

func (s *fakeTaskService) Toggle(_ context.Context, id domain.Identity, taskID uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.owned(id, taskID)
	if err != nil {
		return nil, err
	}
	task.Completed = !task.Completed
	cp := *task
	return &cp, nil
}

func (s *fakeTaskService) Delete(_ context.Context, id domain.Identity, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || !task.OwnedBy(id) {
		return domain.ErrTaskNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

type fakeAuthService struct {
	csrf      *auth.CSRFSigner
	session   *domain.Session
	err       error
	signedOut []string
	refreshed []string
}

func (s *fakeAuthService) SignUp(context.Context, string, string) (*domain.Session, error) {
	return s.session, s.err
}

func (s *fakeAuthService) SignIn(context.Context, string, string) (*domain.Session, error) {
	return s.session, s.err
}

func (s *fakeAuthService) Refresh(_ context.Context, token string) (*domain.Session, error) {
	s.refreshed = append(s.refreshed, token)
	return s.session, s.err
}

func (s *fakeAuthService) SignOut(_ context.Context, token string) error {
	s.signedOut = append(s.signedOut, token)
	return nil
}

func (s *fakeAuthService) IssueCSRF(id domain.Identity) (string, error) {
	return s.csrf.Issue(id)
}

type fakeUserService struct {
	users map[uuid.UUID]*domain.User
}

func (s *fakeUserService) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ports.RateDecision, error) {
	return ports.RateDecision{}, errors.New("redis: connection refused")
}

type testApp struct {
	handler  http.Handler
	settings *config.Settings
	tokens   *auth.TokenService
	csrf     *auth.CSRFSigner
	tasks    *fakeTaskService
	auth     *fakeAuthService
	users    *fakeUserService
	registry *prometheus.Registry
}

type appOption func(*appConfig)

type appConfig struct {
	limit   int
	limiter ports.RateLimiter
	timeout time.Duration
}

func withLimit(n int) appOption {
	return func(c *appConfig) { c.limit = n }
}

func withLimiter(l ports.RateLimiter) appOption {
	return func(c *appConfig) { c.limiter = l }
}

func withTimeout(d time.Duration) appOption {
	return func(c *appConfig) { c.timeout = d }
}

func testSettings() *config.Settings {
	return &config.Settings{
		JWTSecret:                 "test-secret",
		JWTAlgorithm:              "HS256",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 168,
		AccessTokenCookieName:     "access_token",
		RefreshTokenCookieName:    "refresh_token",
		CSRFCookieName:            "csrf_token",
		CSRFTokenHeaderName:       "x-csrf-token",
		CSRFEnabled:               true,
		CSRFSecret:                "csrf-secret",
		CookieSecure:              true,
		CookieSameSite:            "lax",
		RateLimitRequests:         100,
		RateLimitWindow:           3600,
		RequestTimeoutSeconds:     30,
	}
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	settings := testSettings()
	cfg := appConfig{limit: settings.RateLimitRequests, timeout: settings.RequestTimeout()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limiter == nil {
		cfg.limiter = ratelimit.NewMemoryLimiter(cfg.limit, settings.RateLimitWindowDuration())
	}

	tokens, err := auth.NewTokenService(settings)
	require.NoError(t, err)
	csrf := auth.NewCSRFSigner(settings)

	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	guard := NewSessionGuard(tokens, csrf, settings.AccessTokenCookieName, settings.CSRFTokenHeaderName, metrics, logger)

	app := &testApp{
		settings: settings,
		tokens:   tokens,
		csrf:     csrf,
		tasks:    newFakeTaskService(),
		auth:     &fakeAuthService{csrf: csrf},
		users:    &fakeUserService{users: make(map[uuid.UUID]*domain.User)},
		registry: registry,
	}
	app.handler = NewHandler(RouterConfig{
		Auth:           NewAuthHandler(app.auth, settings, metrics, logger),
		Users:          NewUserHandler(app.users, logger),
		Tasks:          NewTaskHandler(app.tasks, metrics, logger),
		Guard:          guard,
		Limiter:        NewRateLimit(cfg.limiter, guard.RateKey, metrics, logger),
		Metrics:        metrics,
		Gatherer:       registry,
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:3000"},
		CSRFHeader:     settings.CSRFTokenHeaderName,
		RequestTimeout: cfg.timeout,
	})
	return app
}

// session is a signed-in caller as the browser sees it.
type session struct {
	id     domain.Identity
	access string
	csrf   string
}

func (a *testApp) signIn(t *testing.T) session {
	t.Helper()
	id := domain.Identity{UserID: uuid.New()}
	access, err := a.tokens.IssueAccessToken(id)
	require.NoError(t, err)
	csrfToken, err := a.csrf.Issue(id)
	require.NoError(t, err)
	return session{id: id, access: access.Value, csrf: csrfToken}
}

func (a *testApp) do(method, path string, s *session, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if s != nil {
		if s.access != "" {
			req.AddCookie(&http.Cookie{Name: "access_token", Value: s.access})
		}
		if s.csrf != "" {
			req.Header.Set("x-csrf-token", s.csrf)
		}
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
