package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/alert"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/store"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/auth"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/middleware"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/sse"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type api struct {
	t      *testing.T
	router *gin.Engine
	issuer *auth.Issuer
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := util.InitDatabase("sqlite", "")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	dir := store.NewDBDirectory(db)
	require.NoError(t, dir.SaveUser(ctx, &models.User{ID: "U1", Name: "Naledi", Phone: "+27820000001"}))
	require.NoError(t, dir.SaveUser(ctx, &models.User{ID: "U2", Name: "Alone"}))
	require.NoError(t, dir.SaveContact(ctx, &models.TrustedContact{ID: "C1", UserID: "U1", Name: "Sipho", Active: true}))
	require.NoError(t, dir.SaveContact(ctx, &models.TrustedContact{ID: "C2", UserID: "U1", Name: "Ayanda", Active: true}))

	m := metrics.NewMetrics()
	events := sse.NewHub(0)
	fanout := alert.NewFanout(m, events)
	st := store.NewAlertStore(db)
	engine := alert.NewEngine(st, dir, fanout, alert.WithMetrics(m))
	aggregator := alert.NewAggregator(st, fanout, m)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	h := NewHandlers(db, engine, aggregator, Options{
		Issuer:      issuer,
		Metrics:     m,
		Events:      events,
		Idempotency: middleware.IdempotencyConfig{OnReplay: m.IdempotentReplay},
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: "1000-M", Identifier: "user"}, nil).WithObserver(m),
	})

	r := gin.New()
	r.Use(metrics.Middleware(m))
	h.Register(r)
	return &api{t: t, router: r, issuer: issuer}
}

func (a *api) token(subject, role, owner string) string {
	tok, err := a.issuer.Issue(subject, role, "", owner)
	require.NoError(a.t, err)
	return tok
}

func (a *api) user(id string) string    { return a.token(id, auth.RoleUser, "") }
func (a *api) contact(id string) string { return a.token(id, auth.RoleContact, "U1") }

func (a *api) do(method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (a *api) create(token string) models.Alert {
	w, env := a.do(http.MethodPost, "/api/alerts", token, gin.H{"location": "Lat:-26.2,Lng:28.0", "message": "help"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var out models.Alert
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	return out
}

func TestCreateAlert(t *testing.T) {
	a := newAPI(t)

	created := a.create(a.user("U1"))
	assert.Equal(t, models.StatusActive, created.Status)
	assert.Equal(t, models.LevelMedium, created.AlertLevel)
	assert.Equal(t, 1, created.PressCount)
	assert.Len(t, created.NotifiedContacts, 2)

	w, _ := a.do(http.MethodPost, "/api/alerts", a.contact("C1"), gin.H{"location": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodPost, "/api/alerts", "", gin.H{"location": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAlertWithoutContactsWarns(t *testing.T) {
	a := newAPI(t)

	w, env := a.do(http.MethodPost, "/api/alerts", a.user("U2"), gin.H{"location": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, env.Msg, "no active trusted contacts")

	var out models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.NotEmpty(t, out.ID)
	assert.Empty(t, out.NotifiedContacts)
}

func TestCreateAlertIdempotencyKey(t *testing.T) {
	a := newAPI(t)
	tok := a.user("U1")

	w1, env1 := a.do(http.MethodPost, "/api/alerts", tok, gin.H{"location": "x"}, "Idempotency-Key", "press-1")
	w2, env2 := a.do(http.MethodPost, "/api/alerts", tok, gin.H{"location": "x"}, "Idempotency-Key", "press-1")
	require.Equal(t, http.StatusCreated, w1.Code)
	require.Equal(t, http.StatusCreated, w2.Code)
	assert.JSONEq(t, string(env1.Data), string(env2.Data))
	assert.Equal(t, "true", w2.Header().Get("Idempotent-Replayed"))

	_, env := a.do(http.MethodGet, "/api/alerts", tok, nil)
	var list []models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestReinforceAlert(t *testing.T) {
	a := newAPI(t)
	created := a.create(a.user("U1"))
	path := "/api/alerts/" + created.ID + "/reinforce"

	w, env := a.do(http.MethodPost, path, a.user("U1"), gin.H{"location": "moved"})
	require.Equal(t, http.StatusOK, w.Code)
	var out models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 2, out.PressCount)
	assert.Equal(t, "moved", out.LastKnownLocation)
	assert.Equal(t, created.Location, out.Location)

	w, _ = a.do(http.MethodPost, path, a.user("U2"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodPost, path, a.contact("C1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodPost, "/api/alerts/missing/reinforce", a.user("U1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusUpdates(t *testing.T) {
	a := newAPI(t)
	created := a.create(a.user("U1"))
	path := "/api/alerts/" + created.ID + "/status"

	w, _ := a.do(http.MethodPatch, path, a.contact("C1"), gin.H{"status": "contacted", "note": "on my way"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(http.MethodPatch, path, a.contact("C2"), gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodPatch, path, a.contact("C2"), gin.H{"status": "active"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = a.do(http.MethodPatch, path, a.contact("C2"), gin.H{"status": "panic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.do(http.MethodPatch, path, a.contact("C2"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := a.do(http.MethodPatch, path, a.contact("C2"), gin.H{"status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code)
	var out models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, models.StatusResolved, out.Status)
	assert.NotNil(t, out.ResolvedAt)
	assert.Len(t, out.ResponseLog, 2)

	w, _ = a.do(http.MethodPatch, path, a.user("U1"), gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReporterCancels(t *testing.T) {
	a := newAPI(t)
	created := a.create(a.user("U1"))

	w, env := a.do(http.MethodPatch, "/api/alerts/"+created.ID+"/status", a.user("U1"), gin.H{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)
	var out models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, models.StatusCancelled, out.Status)

	w, _ = a.do(http.MethodPost, "/api/alerts/"+created.ID+"/reinforce", a.user("U1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListingsAndVisibility(t *testing.T) {
	a := newAPI(t)
	first := a.create(a.user("U1"))
	second := a.create(a.user("U1"))
	a.do(http.MethodPatch, "/api/alerts/"+first.ID+"/status", a.user("U1"), gin.H{"status": "cancelled"})

	_, env := a.do(http.MethodGet, "/api/contact/alerts", a.contact("C1"), nil)
	var open []models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &open))
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	_, env = a.do(http.MethodGet, "/api/alerts?limit=1", a.user("U1"), nil)
	var mine []models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)

	w, _ := a.do(http.MethodGet, "/api/contact/alerts", a.user("U1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodGet, "/api/alerts/"+second.ID, a.contact("C2"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = a.do(http.MethodGet, "/api/alerts/"+second.ID, a.user("U2"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = a.do(http.MethodGet, "/api/alerts/nope", a.user("U1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newAPI(t)
	a.create(a.user("U1"))

	w, _ := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alerts_created_total 1")
	assert.Contains(t, w.Body.String(), `fanout_deliveries_total{event="new-alert",result="offline"} 2`)
}
