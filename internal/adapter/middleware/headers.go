package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderRequestID  = "Ax-Request-Id"
	HeaderRequestAt  = "Ax-Request-At"
	HeaderOperatorID = "Ax-Operator-Id"

	// set on responses served from the replay store
	HeaderReplayed = "Ax-Idempotent-Replay"
)

// epoch values above this are milliseconds
const epochMillisFrom = 1e12

var operatorName = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)

// callerError is a malformed idempotency header; it maps to 400.
type callerError struct {
	header string
	reason string
}

func (e *callerError) Error() string { return e.header + ": " + e.reason }

// requestMeta identifies one operator request.
type requestMeta struct {
	ID       string
	At       time.Time
	Operator string
}

// readMeta parses the three idempotency headers. now and skew bound the
// accepted request time.
func readMeta(h http.Header, now time.Time, skew time.Duration) (requestMeta, error) {
	var m requestMeta

	raw := strings.TrimSpace(h.Get(HeaderRequestID))
	if raw == "" {
		return m, &callerError{HeaderRequestID, "missing"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return m, &callerError{HeaderRequestID, "must be a uuid or 32 hex digits"}
	}
	m.ID = strings.ReplaceAll(id.String(), "-", "")

	at, err := parseRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return m, &callerError{HeaderRequestAt, err.Error()}
	}
	if d := now.Sub(at); d > skew || d < -skew {
		return m, &callerError{HeaderRequestAt, fmt.Sprintf("more than %s away from server time", skew)}
	}
	m.At = at

	m.Operator = strings.TrimSpace(h.Get(HeaderOperatorID))
	switch {
	case m.Operator == "":
		return m, &callerError{HeaderOperatorID, "missing"}
	case !operatorName.MatchString(m.Operator):
		return m, &callerError{HeaderOperatorID, "only letters, digits and ._@- allowed"}
	}
	return m, nil
}

// parseRequestAt reads epoch seconds, epoch milliseconds or an RFC3339
// timestamp that carries a zone.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n <= 0 {
			return time.Time{}, errors.New("epoch must be positive")
		}
		if n > epochMillisFrom {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errors.New("want epoch seconds, epoch millis or RFC3339 with zone")
	}
	return t.UTC(), nil
}
