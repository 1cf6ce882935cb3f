package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civicsync/config"
	"civicsync/controllers"
	"civicsync/middlewares"
	"civicsync/repository"
	"civicsync/services"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	OK       bool            `json:"ok"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Redirect string          `json:"redirect"`
}

type issueBody struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Status             string   `json:"status"`
	Category           string   `json:"category"`
	CreatedByID        string   `json:"createdById"`
	Votes              int      `json:"votes"`
	UserHasVoted       bool     `json:"userHasVoted"`
	AllowedTransitions []string `json:"allowedTransitions"`
	Comments           []struct {
		Text     string `json:"text"`
		UserName string `json:"userName"`
	} `json:"comments"`
	AssignedToName *string `json:"assignedToName"`
}

type countingLimiter struct {
	counts map[string]int64
}

func (l *countingLimiter) Incr(_ context.Context, key string) *redis.IntCmd {
	l.counts[key]++
	return redis.NewIntResult(l.counts[key], nil)
}

func (l *countingLimiter) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func (l *countingLimiter) TTL(context.Context, string) *redis.DurationCmd {
	return redis.NewDurationResult(time.Hour, nil)
}

func newTestRouter(t *testing.T, dailyLimit int) *gin.Engine {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRegistry()
	if err := config.SeedDemo(ctx, issues, users, time.Now().UTC()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tokens, err := utils.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	denylist := middlewares.NewMemoryDenylist()
	limiter := &countingLimiter{counts: map[string]int64{}}

	return NewRouter(Deps{
		Auth:        controllers.NewAuthController(users, tokens, denylist, controllers.CookieConfig{}, log),
		Issues:      controllers.NewIssueController(services.NewIssueStore(issues, nil), users, log),
		Tokens:      tokens,
		Denylist:    denylist,
		RateLimiter: middlewares.IssueRateLimiter(limiter, "issue_limit", dailyLimit, time.Hour, log),
		Log:         log,
	})
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func login(t *testing.T, r http.Handler, email string) string {
	t.Helper()
	w, env := call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": config.DemoPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, w.Code, w.Body.String())
	}
	var data struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &data)
	return data.Token
}

func decodeIssue(t *testing.T, env envelope) issueBody {
	t.Helper()
	var issue issueBody
	if err := json.Unmarshal(env.Data, &issue); err != nil {
		t.Fatalf("decode issue: %v", err)
	}
	return issue
}

func TestPing(t *testing.T) {
	r := newTestRouter(t, 10)
	w, _ := call(t, r, http.MethodGet, "/ping", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRegisterMeLogout(t *testing.T) {
	r := newTestRouter(t, 10)

	w, env := call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "New Citizen", "email": "new@example.com", "password": "secret1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	var reg struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	_ = json.Unmarshal(env.Data, &reg)
	if reg.Token == "" || reg.User.Role != "citizen" {
		t.Fatalf("unexpected register payload %s", env.Data)
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), middlewares.TokenCookie+"=") {
		t.Fatalf("expected auth cookie to be set")
	}

	w, env = call(t, r, http.MethodGet, "/api/auth/me", reg.Token, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), "new@example.com") {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(string(env.Data), "password") {
		t.Fatalf("profile must not expose the password hash")
	}

	w, _ = call(t, r, http.MethodPost, "/api/auth/logout", reg.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}
	w, env = call(t, r, http.MethodGet, "/api/auth/me", reg.Token, nil)
	if w.Code != http.StatusUnauthorized || env.Redirect != "/login?from=%2Fapi%2Fauth%2Fme" {
		t.Fatalf("expected revoked token to be rejected, got %d %+v", w.Code, env)
	}
}

func TestRegisterDuplicateAndInvalid(t *testing.T) {
	r := newTestRouter(t, 10)

	w, env := call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Again", "email": "jane@example.com", "password": "secret1",
	})
	if w.Code != http.StatusBadRequest || env.Error != "User with this email already exists" {
		t.Fatalf("duplicate: %d %+v", w.Code, env)
	}

	w, env = call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Short", "email": "short@example.com", "password": "123",
	})
	if w.Code != http.StatusBadRequest || env.Error != "password must be at least 6 characters" {
		t.Fatalf("short password: %d %+v", w.Code, env)
	}
}

func TestLoginRejectsBadCredentialsAndEchoesFrom(t *testing.T) {
	r := newTestRouter(t, 10)

	w, env := call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "admin@example.com", "password": "nope"})
	if w.Code != http.StatusUnauthorized || env.Error != "Invalid credentials" {
		t.Fatalf("bad password: %d %+v", w.Code, env)
	}

	w, env = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "admin@example.com", "password": config.DemoPassword, "from": "/issues/1",
	})
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"redirect":"/issues/1"`) {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}

	for _, from := range []string{"//evil.test", "/\\evil.test", "/\t/evil.test"} {
		_, env = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
			"email": "admin@example.com", "password": config.DemoPassword, "from": from,
		})
		if !strings.Contains(string(env.Data), `"redirect":"/"`) {
			t.Fatalf("expected off-site redirect %q to be replaced, got %s", from, env.Data)
		}
	}
}

func TestIssueRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, 10)
	w, env := call(t, r, http.MethodGet, "/api/issues", "", nil)
	if w.Code != http.StatusUnauthorized || env.Redirect != "/login?from=%2Fapi%2Fissues" {
		t.Fatalf("expected 401 with redirect, got %d %+v", w.Code, env)
	}
}

func TestIssueLifecycle(t *testing.T) {
	r := newTestRouter(t, 10)
	citizen := login(t, r, "citizen@example.com")
	admin := login(t, r, "admin@example.com")

	w, env := call(t, r, http.MethodPost, "/api/issues", citizen, gin.H{
		"title":    "Pothole",
		"category": "Roads",
		"location": gin.H{"lat": 40.7, "lng": -74.0, "address": "1 Main St"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	created := decodeIssue(t, env)
	if created.Status != "pending" || created.CreatedByID != "2" || created.Votes != 0 {
		t.Fatalf("unexpected created issue %+v", created)
	}
	if len(created.AllowedTransitions) != 1 || created.AllowedTransitions[0] != "inprogress" {
		t.Fatalf("unexpected transitions %v", created.AllowedTransitions)
	}

	w, env = call(t, r, http.MethodPatch, "/api/issues/"+created.ID+"/status", citizen, gin.H{"status": "inprogress"})
	if w.Code != http.StatusForbidden || env.Redirect != "/unauthorized" {
		t.Fatalf("citizen status change: %d %+v", w.Code, env)
	}

	w, env = call(t, r, http.MethodPatch, "/api/issues/"+created.ID+"/status", admin, gin.H{"status": "inprogress"})
	if w.Code != http.StatusOK || decodeIssue(t, env).Status != "inprogress" {
		t.Fatalf("admin status change: %d %s", w.Code, w.Body.String())
	}

	w, env = call(t, r, http.MethodPatch, "/api/issues/"+created.ID+"/assign", admin, gin.H{"assigneeId": "1"})
	assigned := decodeIssue(t, env)
	if w.Code != http.StatusOK || assigned.AssignedToName == nil || *assigned.AssignedToName != "Admin User" {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}

	w, env = call(t, r, http.MethodPost, "/api/issues/"+created.ID+"/upvote", citizen, nil)
	voted := decodeIssue(t, env)
	if w.Code != http.StatusOK || voted.Votes != 1 || !voted.UserHasVoted {
		t.Fatalf("upvote: %d %s", w.Code, w.Body.String())
	}

	w, env = call(t, r, http.MethodPost, "/api/issues/"+created.ID+"/comments", admin, gin.H{"text": "On it"})
	commented := decodeIssue(t, env)
	if w.Code != http.StatusCreated || len(commented.Comments) != 1 || commented.Comments[0].UserName != "Admin User" {
		t.Fatalf("comment: %d %s", w.Code, w.Body.String())
	}
	if commented.UserHasVoted {
		t.Fatalf("admin has not voted on this issue")
	}

	w, env = call(t, r, http.MethodGet, "/api/issues?category=Roads", citizen, nil)
	var listed struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(env.Data, &listed)
	if w.Code != http.StatusOK || listed.Total != 2 {
		t.Fatalf("expected 2 Roads issues, got %d (%s)", listed.Total, w.Body.String())
	}

	w, env = call(t, r, http.MethodGet, "/api/issues/mine", citizen, nil)
	var mine struct {
		Issues []issueBody `json:"issues"`
		Counts struct {
			Total int `json:"total"`
		} `json:"counts"`
	}
	_ = json.Unmarshal(env.Data, &mine)
	if w.Code != http.StatusOK || mine.Counts.Total != 3 || len(mine.Issues) != 3 {
		t.Fatalf("mine: %d %s", w.Code, w.Body.String())
	}
}

func TestIssueErrors(t *testing.T) {
	r := newTestRouter(t, 10)
	citizen := login(t, r, "citizen@example.com")
	admin := login(t, r, "admin@example.com")

	w, env := call(t, r, http.MethodGet, "/api/issues/does-not-exist", citizen, nil)
	if w.Code != http.StatusNotFound || env.Error != "Issue does-not-exist not found" {
		t.Fatalf("unknown id: %d %+v", w.Code, env)
	}

	w, env = call(t, r, http.MethodPost, "/api/issues", citizen, gin.H{"description": "no title"})
	if w.Code != http.StatusBadRequest || env.Error != "title is required" {
		t.Fatalf("missing title: %d %+v", w.Code, env)
	}

	w, _ = call(t, r, http.MethodPatch, "/api/issues/1/status", admin, gin.H{"status": "closed"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: %d", w.Code)
	}

	w, _ = call(t, r, http.MethodGet, "/api/issues?status=closed", citizen, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status filter: %d", w.Code)
	}
}

func TestEmptyFiltersListEverything(t *testing.T) {
	r := newTestRouter(t, 10)
	citizen := login(t, r, "citizen@example.com")

	for _, query := range []string{"", "?status=", "?status=&category=", "?status=all&category=all"} {
		w, env := call(t, r, http.MethodGet, "/api/issues"+query, citizen, nil)
		var page struct {
			Total int `json:"total"`
		}
		if w.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d %+v", query, w.Code, env)
		}
		if err := json.Unmarshal(env.Data, &page); err != nil || page.Total != 3 {
			t.Fatalf("%q: expected all 3 seeded issues, got %s (%v)", query, env.Data, err)
		}
	}
}

func TestStatsAndCategories(t *testing.T) {
	r := newTestRouter(t, 10)
	token := login(t, r, "jane@example.com")

	w, env := call(t, r, http.MethodGet, "/api/issues/stats", token, nil)
	var stats struct {
		Counts struct {
			Total, Pending, Resolved int
			InProgress               int `json:"inprogress"`
		} `json:"counts"`
		Recent []issueBody `json:"recent"`
	}
	_ = json.Unmarshal(env.Data, &stats)
	if w.Code != http.StatusOK || stats.Counts.Total != 3 || stats.Counts.InProgress != 1 {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
	if len(stats.Recent) != 3 || stats.Recent[0].ID != "1" {
		t.Fatalf("expected newest demo issue first, got %+v", stats.Recent)
	}

	w, env = call(t, r, http.MethodGet, "/api/issues/categories", token, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), "Water Supply") {
		t.Fatalf("categories: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateIsRateLimited(t *testing.T) {
	r := newTestRouter(t, 1)
	token := login(t, r, "citizen@example.com")

	w, _ := call(t, r, http.MethodPost, "/api/issues", token, gin.H{"title": "first"})
	if w.Code != http.StatusCreated {
		t.Fatalf("first create: %d", w.Code)
	}
	w, _ = call(t, r, http.MethodPost, "/api/issues", token, gin.H{"title": "second"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
