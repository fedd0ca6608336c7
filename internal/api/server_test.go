package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxgate/voxgate/internal/call"
	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/dialplan"
	"github.com/voxgate/voxgate/internal/esl"
	"github.com/voxgate/voxgate/internal/routing"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeSender satisfies call.CommandSender without an engine.
type fakeSender struct {
	commands []string
}

func (f *fakeSender) Send(_ context.Context, cmd string) (*esl.Frame, error) {
	f.commands = append(f.commands, cmd)
	return &esl.Frame{Body: "+OK"}, nil
}

func (f *fakeSender) SendBackground(cmd string) (string, <-chan esl.BackgroundResult, error) {
	f.commands = append(f.commands, cmd)
	done := make(chan esl.BackgroundResult, 1)
	done <- esl.BackgroundResult{Body: "+OK"}
	return "job-1", done, nil
}

type testEnv struct {
	server *Server
	db     *database.DB
	sender *fakeSender
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rules := database.NewDialplanRuleRepository(db)
	trunks := database.NewTrunkRepository(db)
	inbound := database.NewInboundRouteRepository(db)
	outbound := database.NewOutboundRouteRepository(db)
	timeconds := database.NewTimeConditionRepository(db)
	admins := database.NewAdminUserRepository(db)
	sender := &fakeSender{}

	hash, err := database.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := admins.Create(context.Background(), &models.AdminUser{Username: "admin", PasswordHash: hash}); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	srv := NewServer(Deps{
		JWTSecret:   testSecret,
		CountryCode: "39",
		Tenants:     database.NewTenantRepository(db),
		Extensions:  database.NewExtensionRepository(db),
		Rules:       rules,
		Trunks:      trunks,
		Inbound:     inbound,
		Outbound:    outbound,
		TimeConds:   timeconds,
		Sessions:    database.NewCallSessionRepository(db),
		CDRs:        database.NewCDRRepository(db),
		Admins:      admins,
		Evaluator:   dialplan.NewEvaluator(rules, logger),
		Resolver:    routing.NewResolver(inbound, outbound, trunks, timeconds, logger),
		Controller:  call.NewController(sender, logger),
		Logger:      logger,
	})
	t.Cleanup(srv.Close)

	env := &testEnv{server: srv, db: db, sender: sender}
	env.token = env.login(t, "admin", "hunter22")
	return env
}

func (e *testEnv) request(t *testing.T, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := e.request(t, "POST", "/api/v1/auth/login", loginRequest{Username: username, Password: password}, false)
	if rec.Code != 200 {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data loginResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if env.Data.Token == "" {
		t.Fatal("login returned empty token")
	}
	return env.Data.Token
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return env.Data
}

func (e *testEnv) createTenant(t *testing.T) tenantResponse {
	t.Helper()
	rec := e.request(t, "POST", "/api/v1/tenants", tenantRequest{
		Name:      "Acme",
		Slug:      "acme",
		SIPDomain: "acme.example",
		Timezone:  "Europe/Rome",
	}, true)
	if rec.Code != 201 {
		t.Fatalf("create tenant status = %d: %s", rec.Code, rec.Body.String())
	}
	return decodeData[tenantResponse](t, rec)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, "POST", "/api/v1/auth/login", loginRequest{Username: "admin", Password: "wrong"}, false)
	if rec.Code != 401 {
		t.Errorf("wrong password: status = %d, want 401", rec.Code)
	}

	rec = env.request(t, "POST", "/api/v1/auth/login", loginRequest{Username: "nobody", Password: "hunter22"}, false)
	if rec.Code != 401 {
		t.Errorf("unknown user: status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, "GET", "/api/v1/tenants", nil, false)
	if rec.Code != 401 {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = env.request(t, "GET", "/api/v1/tenants", nil, true)
	if rec.Code != 200 {
		t.Errorf("with token: status = %d, want 200", rec.Code)
	}
}

func TestHealthIsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, "GET", "/api/v1/health", nil, false)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	data := decodeData[map[string]any](t, rec)
	if data["status"] != "ok" {
		t.Errorf("status field = %v", data["status"])
	}
	if data["engine_connected"] != false {
		t.Errorf("engine_connected = %v, want false with no engine wired", data["engine_connected"])
	}
}

func TestCreateTenantSeedsContexts(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	rec := env.request(t, "GET", "/api/v1/tenants/"+tenant.ID+"/dialplan-rules", nil, true)
	if rec.Code != 200 {
		t.Fatalf("list rules status = %d", rec.Code)
	}
	rules := decodeData[[]dialplanRuleResponse](t, rec)

	byContext := make(map[string]int)
	for _, r := range rules {
		byContext[r.Context]++
	}
	want := map[string]int{
		"acme-internal":  1,
		"acme-outbound":  1,
		"acme-external":  1,
		"acme-features":  5,
		"acme-voicemail": 1,
		"acme-emergency": 1,
	}
	for ctx, n := range want {
		if byContext[ctx] != n {
			t.Errorf("context %s has %d rules, want %d", ctx, byContext[ctx], n)
		}
	}
}

func TestDuplicateSlugRejected(t *testing.T) {
	env := newTestEnv(t)
	env.createTenant(t)

	rec := env.request(t, "POST", "/api/v1/tenants", tenantRequest{
		Name:      "Acme Again",
		Slug:      "acme",
		SIPDomain: "acme2.example",
	}, true)
	if rec.Code != 409 {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestCreateRuleRejectsBadPattern(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	rec := env.request(t, "POST", "/api/v1/tenants/"+tenant.ID+"/dialplan-rules", dialplanRuleRequest{
		Context:      "acme-internal",
		Name:         "Broken",
		MatchPattern: "^(1[",
		Actions:      []dialplan.Action{{Type: dialplan.ActionAnswer}},
	}, true)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateRuleRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	rec := env.request(t, "POST", "/api/v1/tenants/"+tenant.ID+"/dialplan-rules", dialplanRuleRequest{
		Context:      "acme-internal",
		Name:         "Bad Action",
		MatchPattern: `^\d+$`,
		Actions:      []dialplan.Action{{Type: "teleport", Data: "anywhere"}},
	}, true)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPatternPreviewEndpoint(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)
	base := "/api/v1/tenants/" + tenant.ID + "/dialplan-rules/test"

	rec := env.request(t, "POST", base, testPatternRequest{Pattern: `^(1\d{3})$`, Value: "1001"}, true)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	result := decodeData[dialplan.PatternResult](t, rec)
	if !result.Match {
		t.Error("expected a match")
	}
	if len(result.Groups) != 1 || result.Groups[0] != "1001" {
		t.Errorf("groups = %v", result.Groups)
	}

	rec = env.request(t, "POST", base, testPatternRequest{Pattern: "^(1[", Value: "1001"}, true)
	if rec.Code != 400 {
		t.Errorf("invalid pattern: status = %d, want 400", rec.Code)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	rec := env.request(t, "POST", "/api/v1/tenants/"+tenant.ID+"/dialplan-rules/evaluate", evaluateRequest{
		Context: "acme-internal",
		Dialed:  "1001",
	}, true)
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	result := decodeData[evaluateResponse](t, rec)
	if !result.Matched || result.Fallback {
		t.Fatalf("matched=%v fallback=%v, want matched", result.Matched, result.Fallback)
	}

	foundBridge := false
	for _, a := range result.Actions {
		if a.Type == dialplan.ActionBridge && a.Target == "user/1001@${domain_name}" {
			foundBridge = true
		}
	}
	if !foundBridge {
		t.Errorf("expected expanded bridge action, got %+v", result.Actions)
	}
}

func TestEvaluateFallback(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	rec := env.request(t, "POST", "/api/v1/tenants/"+tenant.ID+"/dialplan-rules/evaluate", evaluateRequest{
		Context: "acme-internal",
		Dialed:  "99999",
	}, true)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	result := decodeData[evaluateResponse](t, rec)
	if result.Matched || !result.Fallback {
		t.Errorf("matched=%v fallback=%v, want fallback", result.Matched, result.Fallback)
	}
}

func TestCallVerbOnUnknownCall(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, "POST", "/api/v1/calls/no-such-uuid/hangup", hangupRequest{}, true)
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if len(env.sender.commands) != 0 {
		t.Errorf("no command should reach the engine, got %v", env.sender.commands)
	}
}

func TestCallVerbOnTrackedCall(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	sessions := database.NewCallSessionRepository(env.db)
	session := &models.CallSession{
		CallUUID: "abc-123",
		TenantID: tenant.ID,
		State:    models.StateAnswered,
	}
	if err := sessions.Upsert(context.Background(), session); err != nil {
		t.Fatalf("upsert session: %v", err)
	}

	rec := env.request(t, "POST", "/api/v1/calls/abc-123/hangup", hangupRequest{Cause: "NORMAL_CLEARING"}, true)
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.sender.commands) != 1 || env.sender.commands[0] != "uuid_kill abc-123 NORMAL_CLEARING" {
		t.Errorf("commands = %v", env.sender.commands)
	}
}

func TestOutboundRouteRequiresExistingTrunk(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	rec := env.request(t, "POST", "/api/v1/tenants/"+tenant.ID+"/outbound-routes", outboundRouteRequest{
		Name:        "Mobile",
		DialPattern: `^3\d{9}$`,
		TrunkID:     "no-such-trunk",
	}, true)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTimeConditionRejectsBadSchedule(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	rec := env.request(t, "POST", "/api/v1/tenants/"+tenant.ID+"/time-conditions", timeConditionRequest{
		Name:          "Office Hours",
		Timezone:      "Europe/Rome",
		BusinessHours: json.RawMessage(`{"monday":{"enabled":true,"start_time":"18:00","end_time":"09:00"}}`),
	}, true)
	if rec.Code != 400 {
		t.Errorf("start after end: status = %d, want 400", rec.Code)
	}

	rec = env.request(t, "POST", "/api/v1/tenants/"+tenant.ID+"/time-conditions", timeConditionRequest{
		Name:     "Bad TZ",
		Timezone: "Mars/Olympus",
	}, true)
	if rec.Code != 400 {
		t.Errorf("bad timezone: status = %d, want 400", rec.Code)
	}
}

func TestCDRListFilters(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.createTenant(t)

	cdrs := database.NewCDRRepository(env.db)
	for _, c := range []models.CDR{
		{CallUUID: "c1", TenantID: tenant.ID, Direction: "inbound", CallerIDNumber: "3331234567", Destination: "1001"},
		{CallUUID: "c2", TenantID: tenant.ID, Direction: "outbound", CallerIDNumber: "1001", Destination: "0591234567"},
	} {
		cdr := c
		if err := cdrs.Create(context.Background(), &cdr); err != nil {
			t.Fatalf("create cdr: %v", err)
		}
	}

	rec := env.request(t, "GET", "/api/v1/cdrs?direction=inbound", nil, true)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var env2 struct {
		Data struct {
			Items []cdrResponse `json:"items"`
			Total int           `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env2.Data.Total != 1 || len(env2.Data.Items) != 1 {
		t.Fatalf("total = %d items = %d, want 1/1", env2.Data.Total, len(env2.Data.Items))
	}
	if env2.Data.Items[0].CallUUID != "c1" {
		t.Errorf("call_uuid = %s", env2.Data.Items[0].CallUUID)
	}

	rec = env.request(t, "GET", "/api/v1/cdrs?direction=sideways", nil, true)
	if rec.Code != 400 {
		t.Errorf("bad direction: status = %d, want 400", rec.Code)
	}
}

func TestSetupOnlyWorksOnce(t *testing.T) {
	env := newTestEnv(t)

	// An admin already exists from newTestEnv.
	rec := env.request(t, "POST", "/api/v1/setup", loginRequest{Username: "root", Password: "longenough"}, false)
	if rec.Code != 409 {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

var _ http.Handler = (*Server)(nil)
