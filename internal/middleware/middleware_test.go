package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/gearguard/gearguard/internal/apperr"
    "github.com/gearguard/gearguard/internal/config"
    "github.com/gearguard/gearguard/internal/policy"
    "github.com/gearguard/gearguard/internal/utils"
)

const secret = "access-secret"

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
    rec := httptest.NewRecorder()
    return echo.New().NewContext(req, rec), rec
}

func token(t *testing.T, id uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, id, role, time.Minute)
    require.NoError(t, err)
    return tok.Token
}

// captureActor is a terminal handler that records the caller.
func captureActor(dst *policy.Actor) echo.HandlerFunc {
    return func(c echo.Context) error {
        *dst, _ = ActorFrom(c)
        return c.NoContent(http.StatusNoContent)
    }
}

func TestJWTAuth_BearerHeader(t *testing.T) {
    req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
    req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, 42, "TECHNICIAN"))
    c, rec := newContext(req)

    var got policy.Actor
    require.NoError(t, JWTAuth(secret)(captureActor(&got))(c))
    assert.Equal(t, http.StatusNoContent, rec.Code)
    assert.Equal(t, policy.Actor{ID: 42, Role: policy.RoleTechnician}, got)
}

func TestJWTAuth_Cookie(t *testing.T) {
    req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
    req.AddCookie(&http.Cookie{Name: AccessCookie, Value: token(t, 7, "MANAGER")})
    c, _ := newContext(req)

    var got policy.Actor
    require.NoError(t, JWTAuth(secret)(captureActor(&got))(c))
    assert.Equal(t, policy.RoleManager, got.Role)
}

func TestJWTAuth_Rejects(t *testing.T) {
    cases := map[string]string{
        "missing":      "",
        "wrong secret": "Bearer " + mustToken(t, "other-secret", 1, "USER"),
        "unknown role": "Bearer " + token(t, 1, "ROOT"),
        "garbage":      "Bearer not.a.jwt",
    }
    for name, header := range cases {
        t.Run(name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/", nil)
            if header != "" {
                req.Header.Set(echo.HeaderAuthorization, header)
            }
            c, _ := newContext(req)
            var got policy.Actor
            err := JWTAuth(secret)(captureActor(&got))(c)
            assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
            assert.Zero(t, got.ID)
        })
    }
}

func mustToken(t *testing.T, key string, id uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(key, id, role, time.Minute)
    require.NoError(t, err)
    return tok.Token
}

func TestAuthorize(t *testing.T) {
    run := func(role policy.Role, action policy.Action) error {
        c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
        if role != "" {
            c.Set(ctxUserID, uint64(5))
            c.Set(ctxRole, role)
        }
        return Authorize(action)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
    }

    assert.NoError(t, run(policy.RoleManager, policy.EquipmentWrite))
    assert.Equal(t, apperr.KindForbidden, apperr.KindOf(run(policy.RoleTechnician, policy.EquipmentWrite)))
    assert.Equal(t, apperr.KindForbidden, apperr.KindOf(run(policy.RoleUser, policy.PaymentRefund)))
    // ownership-scoped actions pass the route gate
    assert.NoError(t, run(policy.RoleUser, policy.RequestDelete))
    assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(run("", policy.RequestRead)))
}

func TestRedisMiddlewaresPassThroughWithoutRedis(t *testing.T) {
    log := zaptest.NewLogger(t)
    limiter := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, log)
    cache := NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, log)

    calls := 0
    h := limiter(cache(func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "ok")
    }))
    for i := 0; i < 3; i++ {
        c, rec := newContext(httptest.NewRequest(http.MethodGet, "/v1/teams", nil))
        require.NoError(t, h(c))
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Empty(t, rec.Header().Get("X-Cache"))
    }
    assert.Equal(t, 3, calls)
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/requests", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.1.2.3")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/requests")
    c.Set(ctxUserID, uint64(9))
    c.Set(ctxRole, policy.RoleUser)

    cfg := config.RateLimitConfig{Prefix: "gg:rl", KeyStrategy: "ip_user_route"}
    assert.Equal(t, "gg:rl:ip:10.1.2.3:user:9:route:POST /v1/requests", buildRateKey(cfg, c))
    cfg.KeyStrategy = "ip"
    assert.Equal(t, "gg:rl:ip:10.1.2.3", buildRateKey(cfg, c))
}

func TestRateKeyCarriesAuthenticatedUser(t *testing.T) {
    e := echo.New()
    cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: config.KeyUser}
    var key string
    recordKey := func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key = buildRateKey(cfg, c)
            return next(c)
        }
    }
    e.Use(Identify(secret), recordKey)
    g := e.Group("/v1/requests", JWTAuth(secret))
    g.GET("", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
    e.POST("/v1/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

    req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
    req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, 42, "USER"))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "rl:user:42", key)

    // a bad token is not an identity but does not block public routes
    req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
    req.Header.Set(echo.HeaderAuthorization, "Bearer not.a.jwt")
    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "rl:user:anon", key)
}

func TestCachePayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
    require.NoError(t, err)

    status, gotHdr, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
    assert.Equal(t, `{"ok":true}`, string(body))

    _, _, _, ok = decodePayload(bs[:5])
    assert.False(t, ok)
}

func TestMetricsCountsRenderedStatus(t *testing.T) {
    e := echo.New()
    e.Use(Metrics())
    e.GET("/v1/teams/:id", func(c echo.Context) error {
        return echo.NewHTTPError(http.StatusNotFound, "team not found")
    })
    before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/teams/:id", "404"))

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/teams/3", nil))
    assert.Equal(t, http.StatusNotFound, rec.Code)
    after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/teams/:id", "404"))
    assert.Equal(t, before+1, after)

    var r PromRecorder
    base := testutil.ToFloat64(paymentsProcessedTotal.WithLabelValues("COMPLETED"))
    r.PaymentProcessed("COMPLETED")
    assert.Equal(t, base+1, testutil.ToFloat64(paymentsProcessedTotal.WithLabelValues("COMPLETED")))
}
