package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the verified caller handed to the core by the identity provider.
type Identity struct {
	UserID  uint
	Role    string
	IsStaff bool
}

// Anonymous reports whether the identity carries no user.
func (i Identity) Anonymous() bool {
	return i.UserID == 0
}

// Parser validates HMAC-signed bearer tokens.
type Parser struct {
	secret []byte
}

// NewParser creates a token parser bound to the shared signing secret.
func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// Parse validates the token and extracts the identity claims.
func (p *Parser) Parse(tokenString string) (Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	userID, ok := extractUserID(claims)
	if !ok || userID == 0 {
		return Identity{}, ErrInvalidToken
	}

	role := extractRole(claims)
	staff, _ := claims["is_staff"].(bool)
	if role == "admin" || role == "staff" {
		staff = true
	}

	return Identity{UserID: userID, Role: role, IsStaff: staff}, nil
}

// Issue signs a short-lived token for the identity. Used by tooling and tests.
func (p *Parser) Issue(identity Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(identity.UserID), 10),
		"is_staff": identity.IsStaff,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	if identity.Role != "" {
		claims["role"] = identity.Role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func extractUserID(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			if v > 0 {
				return uint(v), true
			}
		case string:
			parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err == nil {
				return uint(parsed), true
			}
		}
	}
	return 0, false
}

func extractRole(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			if role := strings.ToLower(strings.TrimSpace(v)); role != "" {
				return role
			}
		case []interface{}:
			for _, item := range v {
				if str, ok := item.(string); ok {
					if role := strings.ToLower(strings.TrimSpace(str)); role != "" {
						return role
					}
				}
			}
		}
	}
	return ""
}
