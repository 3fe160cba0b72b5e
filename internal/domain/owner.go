package domain

import (
	"errors"
	"strings"
)

const userKeyPrefix = "user:"

var ErrInvalidOwner = errors.New("invalid cart owner")

// OwnerKey identifies whoever owns a cart: an opaque anonymous session token
// or "user:{id}" for an authenticated principal. Never both.
type OwnerKey string

func UserOwner(userID string) OwnerKey {
	return OwnerKey(userKeyPrefix + userID)
}

// GuestOwner validates an anonymous session token. Tokens that could be
// mistaken for a user key are rejected.
func GuestOwner(token string) (OwnerKey, error) {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(token, userKeyPrefix) {
		return "", ErrInvalidOwner
	}
	return OwnerKey(token), nil
}

func (k OwnerKey) IsAuthenticated() bool {
	_, ok := k.UserID()
	return ok
}

func (k OwnerKey) UserID() (string, bool) {
	id, ok := strings.CutPrefix(string(k), userKeyPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func (k OwnerKey) String() string {
	return string(k)
}
