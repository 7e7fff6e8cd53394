package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/gearguard/gearguard/internal/service"
)

// PaymentHandler serves /v1/payments.
type PaymentHandler struct {
    Payments *service.Payments
}

func NewPaymentHandler(payments *service.Payments) *PaymentHandler {
    return &PaymentHandler{Payments: payments}
}

// CreateOrder handles POST /v1/payments/create-order.  The response carries
// what the checkout widget needs: order id, amount in minor units, currency,
// local payment id and the public key id.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    var body struct {
        Amount      float64 `json:"amount"` // major units
        Description string  `json:"description"`
        PaymentType string  `json:"paymentType"` // RENTAL | SERVICE | SUBSCRIPTION
        EquipmentID *uint64 `json:"equipmentId"`
        RequestID   *uint64 `json:"requestId"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    o, err := h.Payments.CreateOrder(c.Request().Context(), a, service.CreateOrderInput{
        Amount:      body.Amount,
        Description: body.Description,
        PaymentType: body.PaymentType,
        EquipmentID: body.EquipmentID,
        RequestID:   body.RequestID,
    })
    if err != nil {
        return err
    }
    return respond(c, http.StatusCreated, o, "Payment order created successfully")
}

// Verify handles POST /v1/payments/verify with the fields returned by the
// checkout widget.
func (h *PaymentHandler) Verify(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    var body struct {
        OrderID   string `json:"razorpayOrderId"`
        PaymentID string `json:"razorpayPaymentId"`
        Signature string `json:"razorpaySignature"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    p, err := h.Payments.Verify(c.Request().Context(), a, body.OrderID, body.PaymentID, body.Signature)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, p, "Payment verified successfully")
}

// Mine handles GET /v1/payments/my-payments?status=&paymentType=.
func (h *PaymentHandler) Mine(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    out, err := h.Payments.ListMine(c.Request().Context(), a, c.QueryParam("status"), c.QueryParam("paymentType"))
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "User payments fetched successfully")
}

// Get handles GET /v1/payments/:id.
func (h *PaymentHandler) Get(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    p, err := h.Payments.Get(c.Request().Context(), a, id)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, p, "Payment fetched successfully")
}

// List handles GET /v1/payments?status=&paymentType=&userId= (MANAGER).
func (h *PaymentHandler) List(c echo.Context) error {
    userID, err := queryID(c, "userId")
    if err != nil {
        return err
    }
    out, err := h.Payments.ListAll(c.Request().Context(), c.QueryParam("status"), c.QueryParam("paymentType"), userID)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "All payments fetched successfully")
}

// Stats handles GET /v1/payments/stats/overview (MANAGER).
func (h *PaymentHandler) Stats(c echo.Context) error {
    st, err := h.Payments.Stats(c.Request().Context())
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, st, "Payment statistics fetched successfully")
}

// Refund handles POST /v1/payments/:id/refund (MANAGER).
func (h *PaymentHandler) Refund(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if c.Request().ContentLength != 0 {
        if err := bind(c, &body); err != nil {
            return err
        }
    }
    p, err := h.Payments.Refund(c.Request().Context(), id, body.Reason)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, p, "Payment refunded successfully")
}
