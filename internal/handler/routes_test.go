package handler

import (
    "context"
    "net/http"
    "net/http/httptest"
    "regexp"
    "strings"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/gearguard/gearguard/internal/gateway"
    "github.com/gearguard/gearguard/internal/middleware"
    "github.com/gearguard/gearguard/internal/policy"
    "github.com/gearguard/gearguard/internal/repository"
    "github.com/gearguard/gearguard/internal/service"
)

var fixedTime = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

var requestCols = []string{"id", "title", "description", "type", "priority", "status",
    "equipment_id", "name", "serial_number", "assigned_team_id", "name",
    "requested_by", "full_name", "scheduled_date", "duration", "payment_status",
    "created_at", "updated_at"}

func requestRow(id int64, status string, duration any) *sqlmock.Rows {
    return sqlmock.NewRows(requestCols).AddRow(id, "Belt slipping", "Squeal on start", "CORRECTIVE", "HIGH", status,
        3, "Conveyor", "SN-3", 2, "Mechanics", 10, "Alice", nil, duration, nil, fixedTime, fixedTime)
}

var paymentCols = []string{"id", "user_id", "equipment_id", "request_id",
    "gateway_order_id", "gateway_payment_id", "gateway_signature", "gateway_refund_id",
    "amount", "currency", "status", "payment_type", "description",
    "email", "name", "title", "created_at", "updated_at"}

func paymentRow(status string, gatewayPaymentID, refundID any) *sqlmock.Rows {
    return sqlmock.NewRows(paymentCols).AddRow(1, 10, nil, 15,
        "order_1", gatewayPaymentID, nil, refundID,
        499.5, "INR", status, "SERVICE", "Belt repair",
        "alice@example.com", nil, "Belt slipping", fixedTime, fixedTime)
}

// checkoutGateway is a PaymentGateway that signs with a fixed secret and
// records what the payment service asked of it.
type checkoutGateway struct {
    fetched      []string
    refundAmount int64
    refundReason string
}

const checkoutSecret = "checkout-secret"

func (g *checkoutGateway) KeyID() string { return "rzp_test" }

func (g *checkoutGateway) VerifySignature(orderID, paymentID, signature string) bool {
    return gateway.VerifySignature(orderID, paymentID, signature, checkoutSecret)
}

func (g *checkoutGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (gateway.Order, error) {
    return gateway.Order{ID: "order_1", Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *checkoutGateway) FetchPayment(_ context.Context, paymentID string) (gateway.Payment, error) {
    g.fetched = append(g.fetched, paymentID)
    return gateway.Payment{ID: paymentID, OrderID: "order_1", Status: gateway.StatusCaptured}, nil
}

func (g *checkoutGateway) Refund(_ context.Context, paymentID string, amount int64, notes map[string]string) (gateway.Refund, error) {
    g.refundAmount = amount
    g.refundReason = notes["reason"]
    return gateway.Refund{ID: "rfnd_1", PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

// newWorkServer wires the request and payment routes onto real repositories
// backed by sqlmock.
func newWorkServer(t *testing.T, gw service.PaymentGateway) (*echo.Echo, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { _ = db.Close() })

    log := zaptest.NewLogger(t)
    eqRepo := repository.NewEquipmentRepo(db)
    reqRepo := repository.NewRequestRepo(db)
    requests := NewRequestHandler(service.NewWorkflow(reqRepo, eqRepo, nil, nil, log))
    payments := NewPaymentHandler(service.NewPayments(repository.NewPaymentRepo(db), eqRepo, reqRepo, gw, nil, nil, "INR", log))

    e := echo.New()
    e.HTTPErrorHandler = ErrorHandler(log)
    rg := e.Group("/v1/requests", middleware.JWTAuth(accessSecret))
    rg.POST("", requests.Create, middleware.Authorize(policy.RequestCreate))
    rg.PATCH("/:id/status", requests.UpdateStatus, middleware.Authorize(policy.RequestStatus))
    pg := e.Group("/v1/payments", middleware.JWTAuth(accessSecret))
    pg.POST("/verify", payments.Verify, middleware.Authorize(policy.PaymentVerify))
    pg.POST("/:id/refund", payments.Refund, middleware.Authorize(policy.PaymentRefund))
    return e, mock
}

func send(t *testing.T, e *echo.Echo, method, path, body string, id uint64, role policy.Role) *httptest.ResponseRecorder {
    t.Helper()
    var req *http.Request
    if body == "" {
        req = httptest.NewRequest(method, path, nil)
    } else {
        req = httptest.NewRequest(method, path, strings.NewReader(body))
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    req.Header.Set(echo.HeaderAuthorization, bearer(t, id, role))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestRequestRoutes_Create(t *testing.T) {
    e, mock := newWorkServer(t, &checkoutGateway{})
    mock.ExpectQuery("FROM equipment e").WithArgs(int64(3)).
        WillReturnRows(sqlmock.NewRows([]string{"id", "name", "serial_number", "location", "assigned_team_id", "name", "status", "created_at", "updated_at"}).
            AddRow(3, "Conveyor", "SN-3", "Line 1", 2, "Mechanics", "ACTIVE", fixedTime, fixedTime))
    mock.ExpectExec("INSERT INTO requests").
        WithArgs("Belt slipping", "Squeal on start", "CORRECTIVE", "HIGH", int64(10), sqlmock.AnyArg(), int64(3)).
        WillReturnResult(sqlmock.NewResult(15, 1))
    mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).WithArgs(int64(15)).
        WillReturnRows(requestRow(15, "NEW", nil))

    rec := send(t, e, http.MethodPost, "/v1/requests",
        `{"title":"Belt slipping","description":"Squeal on start","type":"corrective","priority":"high","equipmentId":3}`,
        10, policy.RoleUser)

    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    body := decode(t, rec)
    assert.Equal(t, float64(http.StatusCreated), body["statusCode"])
    assert.Equal(t, true, body["success"])
    assert.Equal(t, "Request created successfully", body["message"])
    data := body["data"].(map[string]any)
    assert.Equal(t, float64(15), data["id"])
    assert.Equal(t, "NEW", data["status"])
    assert.Equal(t, float64(2), data["assignedTeamId"])
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRoutes_UpdateStatusBindsDuration(t *testing.T) {
    e, mock := newWorkServer(t, &checkoutGateway{})
    mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).WithArgs(int64(15)).
        WillReturnRows(requestRow(15, "IN_PROGRESS", nil))
    mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = ?")).
        WithArgs("REPAIRED", 2.5, int64(15)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).WithArgs(int64(15)).
        WillReturnRows(requestRow(15, "REPAIRED", 2.5))

    rec := send(t, e, http.MethodPatch, "/v1/requests/15/status", `{"status":"repaired","duration":2.5}`, 20, policy.RoleTechnician)

    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    data := decode(t, rec)["data"].(map[string]any)
    assert.Equal(t, "REPAIRED", data["status"])
    assert.Equal(t, 2.5, data["duration"])

    // without a duration the transition is rejected before any write
    mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).WithArgs(int64(15)).
        WillReturnRows(requestRow(15, "IN_PROGRESS", nil))
    rec = send(t, e, http.MethodPatch, "/v1/requests/15/status", `{"status":"REPAIRED"}`, 20, policy.RoleTechnician)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRoutes_VerifyBindsCheckoutFields(t *testing.T) {
    gw := &checkoutGateway{}
    e, mock := newWorkServer(t, gw)
    sig := gateway.Sign("order_1", "pay_1", checkoutSecret)

    mock.ExpectQuery(regexp.QuoteMeta("WHERE p.gateway_order_id = ?")).WithArgs("order_1").
        WillReturnRows(paymentRow("PENDING", nil, nil))
    mock.ExpectBegin()
    mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = 'COMPLETED'")).
        WithArgs("pay_1", sig, int64(1)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET payment_status = 'COMPLETED'")).
        WithArgs(int64(15)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()
    mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = ?")).WithArgs(int64(1)).
        WillReturnRows(paymentRow("COMPLETED", "pay_1", nil))

    rec := send(t, e, http.MethodPost, "/v1/payments/verify",
        `{"razorpayOrderId":"order_1","razorpayPaymentId":"pay_1","razorpaySignature":"`+sig+`"}`,
        10, policy.RoleUser)

    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    data := decode(t, rec)["data"].(map[string]any)
    assert.Equal(t, "COMPLETED", data["status"])
    assert.Equal(t, "pay_1", data["gatewayPaymentId"])
    assert.Equal(t, []string{"pay_1"}, gw.fetched)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRoutes_VerifyRequiresAllFields(t *testing.T) {
    e, mock := newWorkServer(t, &checkoutGateway{})

    rec := send(t, e, http.MethodPost, "/v1/payments/verify", `{"orderId":"order_1","paymentId":"pay_1","signature":"x"}`, 10, policy.RoleUser)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRoutes_Refund(t *testing.T) {
    cases := []struct {
        name   string
        body   string
        reason string
    }{
        {"empty body", "", "Admin refund"},
        {"with reason", `{"reason":"Duplicate charge"}`, "Duplicate charge"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            gw := &checkoutGateway{}
            e, mock := newWorkServer(t, gw)
            mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = ?")).WithArgs(int64(1)).
                WillReturnRows(paymentRow("COMPLETED", "pay_1", nil))
            mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = 'REFUNDED'")).
                WithArgs("rfnd_1", int64(1)).
                WillReturnResult(sqlmock.NewResult(0, 1))
            mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = ?")).WithArgs(int64(1)).
                WillReturnRows(paymentRow("REFUNDED", "pay_1", "rfnd_1"))

            rec := send(t, e, http.MethodPost, "/v1/payments/1/refund", tc.body, 30, policy.RoleManager)

            require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
            data := decode(t, rec)["data"].(map[string]any)
            assert.Equal(t, "REFUNDED", data["status"])
            assert.Equal(t, "rfnd_1", data["refundId"])
            assert.Equal(t, int64(49950), gw.refundAmount)
            assert.Equal(t, tc.reason, gw.refundReason)
            assert.NoError(t, mock.ExpectationsWereMet())
        })
    }

    e, _ := newWorkServer(t, &checkoutGateway{})
    rec := send(t, e, http.MethodPost, "/v1/payments/1/refund", "", 10, policy.RoleUser)
    assert.Equal(t, http.StatusForbidden, rec.Code)
}
