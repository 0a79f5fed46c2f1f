package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the POS backend puts in its access tokens.
type Claims struct {
	UserID   jsonNumberish `json:"user_id,omitempty"`
	Username string        `json:"username,omitempty"`
	Role     string        `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo describes a stored token without verifying its signature.
type TokenInfo struct {
	UserID    string
	Username  string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry at or before now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without checking its signature.
func InspectToken(token string) (TokenInfo, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("parse token: %w", err)
	}
	info := TokenInfo{
		UserID:   string(claims.UserID),
		Username: claims.Username,
		Role:     claims.Role,
	}
	if info.UserID == "" {
		info.UserID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// jsonNumberish accepts a JSON number or string.
type jsonNumberish string

func (n *jsonNumberish) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		s = ""
	}
	*n = jsonNumberish(s)
	return nil
}
