package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hireline/internal/app"
	"hireline/internal/config"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/logging"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T, authCfg AuthConfig) *testServer {
	t.Helper()
	cfg, err := config.FromYAML([]byte(`
platform:
  owners: [oracle]
  beneficiary: treasury
token:
  initial_supply:
    tenant:acme: 5000
`))
	require.NoError(t, err)
	ws, err := app.OpenWithConfig(context.Background(), t.TempDir(), cfg, nil)
	require.NoError(t, err)

	if authCfg.JWTSecret == "" {
		authCfg.JWTSecret = testSecret
	}
	handler, err := New(Config{Engine: ws.Engine, BasePath: "/v0", Auth: authCfg})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		ws.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), Engine: ws.Engine, client: &http.Client{}}
}

func bearer(t *testing.T, actor string) map[string]string {
	t.Helper()
	token, err := SignToken(testSecret, actor, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	reader := bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

// as sends a request authenticated as actor and requires the given status.
func (s *testServer) as(t *testing.T, actor, method, path string, body any, status int) []byte {
	t.Helper()
	res, data := s.do(t, method, path, body, bearer(t, actor))
	require.Equal(t, status, res.StatusCode, string(data))
	return data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Error.Code
}

const vacancyURL = "/v0/tenants/acme/vacancies/backend"

// setupVacancy creates tenant acme (owner boss), a funded vacancy with an
// approvable and a platform-gated stage, and subscribes bob.
func setupVacancy(t *testing.T, s *testServer) {
	t.Helper()
	s.as(t, "oracle", http.MethodPost, "/v0/tenants", map[string]any{"id": "acme", "owner_id": "boss"}, http.StatusCreated)
	s.as(t, "boss", http.MethodPost, "/v0/tenants/acme/approve", map[string]any{"amount": 1000}, http.StatusOK)
	s.as(t, "boss", http.MethodPost, "/v0/tenants/acme/vacancies", map[string]any{"id": "backend", "pool_amount": 500}, http.StatusCreated)
	s.as(t, "boss", http.MethodPost, vacancyURL+"/stages", map[string]any{"name": "screen", "amount": 100, "approvable": true}, http.StatusCreated)
	s.as(t, "boss", http.MethodPost, vacancyURL+"/stages", map[string]any{"name": "onsite", "amount": 200}, http.StatusCreated)
	s.as(t, "boss", http.MethodPost, vacancyURL+"/enable", nil, http.StatusOK)
	s.as(t, "bob", http.MethodPost, "/v0/members", nil, http.StatusCreated)
	s.as(t, "bob", http.MethodPost, vacancyURL+"/subscribe", nil, http.StatusCreated)
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	res, data := s.do(t, http.MethodGet, "/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(data))

	res, data = s.do(t, http.MethodGet, "/v0/members", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "unauthorized", errorCode(t, data))

	res, data = s.do(t, http.MethodGet, "/v0/members", nil, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "invalid_credentials", errorCode(t, data))
}

func TestSettlementOverHTTP(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	setupVacancy(t, s)

	data := s.as(t, "boss", http.MethodPost, vacancyURL+"/subscribers/bob/approve-level-up", nil, http.StatusOK)
	var rec domain.Settlement
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, int64(95), rec.Net)
	require.Equal(t, int64(5), rec.Fee)
	require.Equal(t, domain.GateApproval, rec.Gate)

	data = s.as(t, "boss", http.MethodPost, vacancyURL+"/subscribers/bob/level-up", nil, http.StatusForbidden)
	require.Equal(t, "unauthorized", errorCode(t, data))

	s.as(t, "oracle", http.MethodPost, vacancyURL+"/subscribers/bob/level-up", nil, http.StatusOK)

	var pos PositionResponse
	require.NoError(t, json.Unmarshal(s.as(t, "bob", http.MethodGet, vacancyURL+"/subscribers/bob", nil, http.StatusOK), &pos))
	require.Equal(t, int64(2), pos.CurrentIndex)
	require.True(t, pos.Passed)

	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(s.as(t, "bob", http.MethodGet, "/v0/token/balances/bob", nil, http.StatusOK), &bal))
	require.Equal(t, int64(285), bal.Balance)

	var recs []domain.Settlement
	require.NoError(t, json.Unmarshal(s.as(t, "boss", http.MethodGet, "/v0/settlements?vacancy_id=backend", nil, http.StatusOK), &recs))
	require.Len(t, recs, 2)

	data = s.as(t, "boss", http.MethodPost, vacancyURL+"/subscribers/bob/reset", nil, http.StatusConflict)
	require.Equal(t, "already_passed", errorCode(t, data))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	setupVacancy(t, s)

	data := s.as(t, "oracle", http.MethodPost, vacancyURL+"/subscribers/bob/level-up", nil, http.StatusConflict)
	require.Equal(t, "wrong_gate", errorCode(t, data))

	data = s.as(t, "boss", http.MethodDelete, vacancyURL+"/stages/7", nil, http.StatusUnprocessableEntity)
	require.Equal(t, "index_out_of_range", errorCode(t, data))

	var st domain.Stage
	require.NoError(t, json.Unmarshal(s.as(t, "bob", http.MethodGet, vacancyURL+"/stages/1", nil, http.StatusOK), &st))
	require.Equal(t, "onsite", st.Name)
	data = s.as(t, "bob", http.MethodGet, vacancyURL+"/stages/2", nil, http.StatusUnprocessableEntity)
	require.Equal(t, "index_out_of_range", errorCode(t, data))

	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(s.as(t, "bob", http.MethodGet, vacancyURL+"/subscriber-index/0", nil, http.StatusOK), &sub))
	require.Equal(t, "bob", sub.MemberID)
	s.as(t, "bob", http.MethodGet, vacancyURL+"/subscriber-index/1", nil, http.StatusUnprocessableEntity)

	data = s.as(t, "boss", http.MethodGet, "/v0/tenants/acme/vacancies/missing", nil, http.StatusNotFound)
	require.Equal(t, "not_found", errorCode(t, data))

	s.as(t, "boss", http.MethodPut, vacancyURL+"/pool", map[string]any{"amount": 10}, http.StatusOK)
	data = s.as(t, "boss", http.MethodPost, vacancyURL+"/subscribers/bob/approve-level-up", nil, http.StatusPaymentRequired)
	require.Equal(t, "insufficient_pool", errorCode(t, data))

	s.as(t, "boss", http.MethodPut, vacancyURL+"/pool", map[string]any{"amount": -1}, http.StatusBadRequest)

	data = s.as(t, "bob", http.MethodPost, vacancyURL+"/subscribe", nil, http.StatusConflict)
	require.Equal(t, "already_subscribed", errorCode(t, data))

	data = s.as(t, "stranger", http.MethodPost, vacancyURL+"/disable", nil, http.StatusForbidden)
	require.Equal(t, "unauthorized", errorCode(t, data))
}

func TestFactsOverHTTP(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	for _, id := range []string{"alice", "bob"} {
		s.as(t, id, http.MethodPost, "/v0/members", nil, http.StatusCreated)
	}
	s.as(t, "alice", http.MethodPost, "/v0/members/alice/facts", map[string]any{"id": "degree", "payload": "MSc"}, http.StatusCreated)

	data := s.as(t, "bob", http.MethodPost, "/v0/members/alice/facts/degree/confirm", nil, http.StatusConflict)
	require.Equal(t, "unverified", errorCode(t, data))

	s.as(t, "oracle", http.MethodPost, "/v0/members/bob/verify", nil, http.StatusOK)
	s.as(t, "bob", http.MethodPost, "/v0/members/alice/facts/degree/confirm", nil, http.StatusOK)

	var fact FactResponse
	require.NoError(t, json.Unmarshal(s.as(t, "bob", http.MethodGet, "/v0/members/alice/facts/degree", nil, http.StatusOK), &fact))
	require.Equal(t, uint64(1), fact.ConfirmationCount)
	require.Equal(t, []string{"bob"}, fact.Confirmers)

	s.as(t, "bob", http.MethodGet, "/v0/members/alice/fact-index/3", nil, http.StatusUnprocessableEntity)

	s.as(t, "alice", http.MethodPut, "/v0/members/alice/status", map[string]any{"status": "in_search_of_work"}, http.StatusOK)
	s.as(t, "bob", http.MethodPut, "/v0/members/alice/status", map[string]any{"status": "closed"}, http.StatusForbidden)

	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(s.as(t, "alice", http.MethodGet, "/v0/me", nil, http.StatusOK), &me))
	require.Equal(t, "alice", me.ActorID)
	require.NotNil(t, me.Member)
	require.Equal(t, "in_search_of_work", me.Member.Status)
	require.False(t, me.PlatformOwner)
}

func TestAPIKeyAndLegacyHeader(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	var key APIKeyResponse
	require.NoError(t, json.Unmarshal(s.as(t, "oracle", http.MethodPost, "/v0/platform/api-keys", map[string]any{"actor_id": "ci", "name": "ci"}, http.StatusCreated), &key))
	require.NotEmpty(t, key.Key)

	res, data := s.do(t, http.MethodGet, "/v0/me", nil, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &me))
	require.Equal(t, "ci", me.ActorID)
	require.Equal(t, "api_key", me.Source)

	res, _ = s.do(t, http.MethodGet, "/v0/me", nil, map[string]string{"X-Actor-Id": "oracle"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	legacy := newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})
	res, data = legacy.do(t, http.MethodGet, "/v0/me", nil, map[string]string{"X-Actor-Id": "oracle"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &me))
	require.True(t, me.PlatformOwner)
}

func TestSettingsAndEvents(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	s.as(t, "boss", http.MethodPatch, "/v0/platform/settings", map[string]any{"service_fee_percent": 9}, http.StatusForbidden)

	var settings domain.PlatformSettings
	require.NoError(t, json.Unmarshal(s.as(t, "oracle", http.MethodPatch, "/v0/platform/settings", map[string]any{"service_fee_percent": 9}, http.StatusOK), &settings))
	require.Equal(t, int64(9), settings.ServiceFeePercent)
	require.Equal(t, 6, settings.PipelineMaxLength)

	s.as(t, "oracle", http.MethodPatch, "/v0/platform/settings", map[string]any{"service_fee_percent": 101}, http.StatusBadRequest)

	for _, id := range []string{"a", "b", "c"} {
		s.as(t, id, http.MethodPost, "/v0/members", nil, http.StatusCreated)
	}
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(s.as(t, "oracle", http.MethodGet, "/v0/events?type=member.registered&limit=2", nil, http.StatusOK), &page))
	require.Len(t, page.Items, 2)
	require.Equal(t, "c", page.Items[0].ActorID)
	require.NotEmpty(t, page.NextCursor)

	require.NoError(t, json.Unmarshal(s.as(t, "oracle", http.MethodGet, "/v0/events?type=member.registered&limit=2&cursor="+page.NextCursor, nil, http.StatusOK), &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, "a", page.Items[0].ActorID)
	require.Empty(t, page.NextCursor)
}

func TestWebhookDelivery(t *testing.T) {
	s := newTestServer(t, AuthConfig{})

	var (
		mu       sync.Mutex
		received []webhookEvent
		headers  []http.Header
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, evt)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	ctx := context.Background()
	d := newWebhookDispatcher(s.Engine, []config.WebhookConfig{
		{URL: hook.URL, Events: []string{"member.*"}, Secret: "shh"},
	}, logging.Discard())
	d.dispatchAll(ctx)

	_, err := s.Engine.RegisterMember(ctx, "dave")
	require.NoError(t, err)
	require.NoError(t, s.Engine.Mint(ctx, "oracle", "dave", 10))
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, "member.registered", received[0].Type)
	require.Equal(t, "dave", received[0].EntityID)
	require.Equal(t, "shh", headers[0].Get("X-Hireline-Secret"))
	require.NotEmpty(t, headers[0].Get("X-Hireline-Delivery"))
}

func TestEventFilter(t *testing.T) {
	f := newEventFilter([]string{"settlement.*", "tenant.created"})
	require.True(t, f.match("settlement.completed"))
	require.True(t, f.match("tenant.created"))
	require.False(t, f.match("tenant.funds_approved"))
	require.True(t, newEventFilter(nil).match("anything"))
}

func TestRequestLogging(t *testing.T) {
	ws, err := app.OpenWithConfig(context.Background(), t.TempDir(), config.Default(), nil)
	require.NoError(t, err)
	defer ws.Close()
	var buf bytes.Buffer
	handler, err := New(Config{Engine: ws.Engine, Auth: AuthConfig{JWTSecret: testSecret}, Logger: logging.NewWithOutput("info", &buf)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v0/me", nil)
	for k, v := range bearer(t, "local-user") {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "request", line["message"])
	require.Equal(t, "local-user", line["actor"])
	require.Equal(t, float64(http.StatusOK), line["status"])
	require.Equal(t, "/v0/me", line["path"])
}

func TestTenantAccountCannotAuthenticate(t *testing.T) {
	s := newTestServer(t, AuthConfig{EnableDevLogin: true})
	s.as(t, "oracle", http.MethodPost, "/v0/tenants", map[string]any{"id": "acme", "owner_id": "boss"}, http.StatusCreated)

	res, data := s.do(t, http.MethodPost, "/v0/token/transfer", map[string]any{"to": "mallory", "amount": 5000}, bearer(t, "tenant:acme"))
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))
	require.Equal(t, "invalid_credentials", errorCode(t, data))

	data = s.as(t, "oracle", http.MethodPost, "/v0/platform/api-keys", map[string]any{"actor_id": "tenant:acme", "name": "escrow"}, http.StatusBadRequest)
	require.Equal(t, "invalid_argument", errorCode(t, data))

	res, data = s.do(t, http.MethodPost, "/v0/auth/dev/login", map[string]any{"actor_id": "tenant:acme"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	legacy := newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})
	res, _ = legacy.do(t, http.MethodGet, "/v0/me", nil, map[string]string{"X-Actor-Id": "tenant:acme"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	balance, err := s.Engine.BalanceOf(context.Background(), domain.TenantAccount("acme"))
	require.NoError(t, err)
	require.EqualValues(t, 5000, balance)
}

func TestOpenAPIDocumentConcurrentReads(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		docs [][]byte
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := http.Get(s.URL + "/v0/openapi.json")
			if err != nil {
				return
			}
			defer res.Body.Close()
			body, _ := io.ReadAll(res.Body)
			mu.Lock()
			docs = append(docs, body)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, docs, 8)
	for _, d := range docs {
		require.Equal(t, docs[0], d)
	}
	require.True(t, json.Valid(docs[0]))
}
