// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotbridge/models"
)

// Identity headers set by the gateway in front of the API
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderSignature = "X-Identity-Signature"
)

var (
	ErrMissingIdentity  = errors.New("missing identity headers")
	ErrInvalidSignature = errors.New("invalid identity signature")
	ErrInvalidRole      = errors.New("invalid role")
)

// SignIdentity creates the HMAC the gateway attaches to an identity.
// This is deterministic and verifiable
func SignIdentity(u models.User, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(u.ID + "\n" + u.Email + "\n" + string(u.Role)))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner headers
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// VerifyIdentity checks that signature was produced for u with secret
func VerifyIdentity(u models.User, signature, secret string) error {
	expected := SignIdentity(u, secret)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// FromRequest extracts and verifies the caller's identity
func FromRequest(r *http.Request, secret string) (models.User, error) {
	u := models.User{
		ID:    strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Role:  models.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))),
	}
	if u.ID == "" || u.Role == "" {
		return models.User{}, ErrMissingIdentity
	}

	switch u.Role {
	case models.RoleAdmin, models.RoleCandidate, models.RoleVoter:
	default:
		return models.User{}, ErrInvalidRole
	}

	if err := VerifyIdentity(u, r.Header.Get(HeaderSignature), secret); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// SetIdentity writes signed identity headers onto r, as the gateway does
func SetIdentity(r *http.Request, u models.User, secret string) {
	r.Header.Set(HeaderUserID, u.ID)
	r.Header.Set(HeaderUserEmail, u.Email)
	r.Header.Set(HeaderUserRole, string(u.Role))
	r.Header.Set(HeaderSignature, SignIdentity(u, secret))
}
