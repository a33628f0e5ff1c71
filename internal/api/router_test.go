package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"testseries/internal/app/service"
	"testseries/internal/common"
	"testseries/internal/common/security"
	"testseries/internal/domain/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userMap map[string]*model.User

func (m userMap) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

type memSettings struct {
	settings []model.Setting
}

func (m *memSettings) ListSettings(_ context.Context, publicOnly bool, category string) ([]model.Setting, error) {
	var out []model.Setting
	for _, s := range m.settings {
		if publicOnly && !s.IsPublic {
			continue
		}
		if category != "" && s.Category != category {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memSettings) GetSetting(_ context.Context, key string) (*model.Setting, error) {
	for i := range m.settings {
		if m.settings[i].Key == key {
			return &m.settings[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memSettings) UpsertSetting(_ context.Context, s *model.Setting) error {
	m.settings = append(m.settings, *s)
	return nil
}

func (m *memSettings) DeleteSetting(_ context.Context, key string) error {
	return nil
}

type routerEnv struct {
	handler http.Handler
	tokens  map[string]string
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	issuer := security.NewTokenIssuer([]byte("router-key"), time.Hour, security.NewRedisRevocationStore(rdb))

	users := userMap{
		"stu":   {ID: "stu", Role: model.RoleStudent},
		"tch":   {ID: "tch", Role: model.RoleTeacher},
		"admin": {ID: "admin", Role: model.RoleAdmin},
	}
	tokens := map[string]string{}
	for id, u := range users {
		tok, err := issuer.GenerateToken(id, u.Role)
		if err != nil {
			t.Fatal(err)
		}
		tokens[id] = tok
	}

	settings := &memSettings{settings: []model.Setting{
		{Key: "site_name", Value: "Test Series", Category: "general", IsPublic: true},
		{Key: "default_passing_score", Value: "60", Category: "tests"},
	}}
	services := Services{
		Tests:       service.NewTestService(nil, nil),
		Purchases:   service.NewPurchaseService(nil, nil, nil, "INR"),
		Webhooks:    service.NewPaymentWebhookService(nil, nil, "hook-secret"),
		Leaderboard: service.NewLeaderboardService(nil, nil, nil, nil, 0),
		Settings:    service.NewSettingsService(settings),
	}
	return &routerEnv{
		handler: NewRouter(services, issuer, users, []string{"http://localhost:3000"}),
		tokens:  tokens,
	}
}

func (e *routerEnv) do(method, path, as, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRouteGuards(t *testing.T) {
	env := newRouterEnv(t)
	tests := []struct {
		name   string
		method string
		path   string
		as     string
		want   int
	}{
		{"purchases need a token", http.MethodGet, "/api/purchases/me", "", http.StatusUnauthorized},
		{"logout needs a token", http.MethodPost, "/api/users/logout", "", http.StatusUnauthorized},
		{"student cannot create tests", http.MethodPost, "/api/tests/", "stu", http.StatusForbidden},
		{"student cannot create series", http.MethodPost, "/api/series/", "stu", http.StatusForbidden},
		{"teacher is not admin", http.MethodGet, "/api/admin/users", "tch", http.StatusForbidden},
		{"admin routes need a token", http.MethodGet, "/api/admin/jobs/abc", "", http.StatusUnauthorized},
		{"leaderboard me needs a token", http.MethodGet, "/api/leaderboard/me", "", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(tc.method, tc.path, tc.as, "{}")
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestCreateTestRejectsBadPayloads(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(http.MethodPost, "/api/tests/", "tch", "{not json")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid request payload") {
		t.Errorf("malformed body: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/tests/", "tch", `{"title":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty test: %d", rec.Code)
	}
	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "Validation failed" || len(body.Details) == 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestPurchaseNeedsExactlyOneTarget(t *testing.T) {
	env := newRouterEnv(t)
	for _, payload := range []string{`{}`, `{"series_id":"s1","test_id":"t1"}`} {
		rec := env.do(http.MethodPost, "/api/purchases/", "stu", payload)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", payload, rec.Code)
		}
	}
}

func TestPaymentWebhookSecret(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(http.MethodPost, "/api/webhooks/payment", "", `{"purchase_id":"p1","status":"completed"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", strings.NewReader(`{"purchase_id":"p1","status":"pending"}`))
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("pending status: %d", rec.Code)
	}
}

func TestLeaderboardValidatesParams(t *testing.T) {
	env := newRouterEnv(t)
	for _, q := range []string{"?timeRange=year", "?testId=t1&seriesId=s1"} {
		rec := env.do(http.MethodGet, "/api/leaderboard"+q, "", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
	}
}

func TestPublicSettings(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(http.MethodGet, "/api/settings/public", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Settings map[string]string `json:"settings"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Settings["site_name"] != "Test Series" {
		t.Errorf("settings = %v", body.Settings)
	}
	if _, leaked := body.Settings["default_passing_score"]; leaked {
		t.Error("private setting exposed")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newRouterEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tests/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}
