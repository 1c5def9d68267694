package oidc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/notekeeper/notekeeper/pkg/middleware"
)

var (
	ErrMalformedToken = errors.New("oidc: malformed token")
	ErrTokenExpired   = errors.New("oidc: token expired")
)

// payload holds the raw claim set; Claims decodes it again into v.
type payload []byte

func (p payload) Claims(v interface{}) error { return json.Unmarshal(p, v) }

// InsecureVerifier accepts any well-formed JWT without checking its
// signature or issuer. It still rejects tokens whose "exp" has passed.
// Wired only outside production, for local Keycloak setups.
type InsecureVerifier struct {
	now func() time.Time
}

func NewInsecureVerifier() *InsecureVerifier { return &InsecureVerifier{now: time.Now} }

func (v *InsecureVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	body, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var std struct {
		Exp *float64 `json:"exp"`
	}
	if err := json.Unmarshal(body, &std); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if std.Exp != nil && v.now().Unix() >= int64(*std.Exp) {
		return nil, ErrTokenExpired
	}
	return payload(body), nil
}
