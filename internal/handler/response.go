package handler // handler package contains the HTTP layer: binding, envelopes and error rendering

import (
    "errors"   // errors.As unwraps echo and application errors
    "fmt"      // fmt renders echo.HTTPError messages
    "net/http" // http provides status codes and status texts
    "strconv"  // strconv parses path and query ids
    "strings"  // strings trims query values
    "time"     // time parses dates in request bodies

    "github.com/labstack/echo/v4" // echo supplies the request context and error handler type
    "go.uber.org/zap"             // zap logs unexpected failures

    "github.com/gearguard/gearguard/internal/apperr"     // error taxonomy
    "github.com/gearguard/gearguard/internal/middleware" // ActorFrom reads the authenticated caller
    "github.com/gearguard/gearguard/internal/policy"     // Actor type
)

// envelope is the body of every JSON response.  Data is null on errors.
type envelope struct {
    StatusCode int    `json:"statusCode"`
    Data       any    `json:"data"`
    Message    string `json:"message"`
    Success    bool   `json:"success"`
}

// respond writes a success envelope.
func respond(c echo.Context, status int, data any, message string) error {
    return c.JSON(status, envelope{StatusCode: status, Data: data, Message: message, Success: status < 400})
}

// ErrorHandler renders every error returned by handlers and middleware as an
// error envelope.  Application errors keep their public message; anything
// unclassified becomes a generic 500 and is logged with its cause.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
    if log == nil {
        log = zap.NewNop()
    }
    log = log.Named("http")
    return func(err error, c echo.Context) {
        if c.Response().Committed {
            return
        }
        status, message := classify(err)
        if status >= http.StatusInternalServerError {
            log.Error("request failed",
                zap.String("method", c.Request().Method),
                zap.String("path", c.Request().URL.Path),
                zap.Int("status", status),
                zap.Error(err))
        }
        if c.Request().Method == http.MethodHead {
            _ = c.NoContent(status)
            return
        }
        _ = c.JSON(status, envelope{StatusCode: status, Data: nil, Message: message, Success: false})
    }
}

func classify(err error) (int, string) {
    var ae *apperr.Error
    if errors.As(err, &ae) {
        return apperr.HTTPStatus(err), apperr.PublicMessage(err)
    }
    var he *echo.HTTPError
    if errors.As(err, &he) {
        if he.Code >= http.StatusInternalServerError {
            return he.Code, "internal server error"
        }
        return he.Code, fmt.Sprint(he.Message)
    }
    return http.StatusInternalServerError, "internal server error"
}

// bind decodes the request into dst, reporting malformed input as a
// validation error.
func bind(c echo.Context, dst any) error {
    if err := c.Bind(dst); err != nil {
        return apperr.Validation("invalid request body")
    }
    return nil
}

// actor returns the authenticated caller or an Unauthorized error.
func actor(c echo.Context) (policy.Actor, error) {
    a, ok := middleware.ActorFrom(c)
    if !ok {
        return policy.Actor{}, apperr.Unauthorized("unauthorized request")
    }
    return a, nil
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, apperr.Validation("invalid " + name)
    }
    return id, nil
}

// queryID parses an optional numeric query parameter; absent means zero.
func queryID(c echo.Context, name string) (uint64, error) {
    s := strings.TrimSpace(c.QueryParam(name))
    if s == "" {
        return 0, nil
    }
    id, err := strconv.ParseUint(s, 10, 64)
    if err != nil {
        return 0, apperr.Validation("invalid " + name)
    }
    return id, nil
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(c echo.Context, name string) (int, error) {
    s := strings.TrimSpace(c.QueryParam(name))
    if s == "" {
        return 0, nil
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        return 0, apperr.Validation("invalid " + name)
    }
    return n, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.  nil
// and blank input yield nil.
func parseDate(s *string) (*time.Time, error) {
    if s == nil || strings.TrimSpace(*s) == "" {
        return nil, nil
    }
    v := strings.TrimSpace(*s)
    for _, layout := range []string{time.RFC3339, "2006-01-02"} {
        if t, err := time.Parse(layout, v); err == nil {
            t = t.UTC()
            return &t, nil
        }
    }
    return nil, apperr.Validation("scheduledDate must be YYYY-MM-DD or RFC 3339")
}
