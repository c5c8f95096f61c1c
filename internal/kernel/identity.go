package kernel

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const bearerPrefix = "Bearer "

// IdentityToken is the decoded form of the Offline-Token header: an opaque
// bearer string carrying the caller's user id and a hash of their granted
// scopes.
type IdentityToken struct {
	UserID     int64  `json:"user_id"`
	ScopesHash string `json:"scopes_hash"`
	Raw        string `json:"-"`
}

// DecodeIdentityToken parses "Bearer " + base64(json({user_id, scopes_hash})).
func DecodeIdentityToken(header string) (*IdentityToken, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, NewValidationError("identity token missing Bearer prefix")
	}
	encoded := strings.TrimPrefix(header, bearerPrefix)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, NewValidationError("identity token is not valid base64: %s", err)
	}
	var payload struct {
		UserID     *int64  `json:"user_id"`
		ScopesHash *string `json:"scopes_hash"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, NewValidationError("identity token payload is not valid JSON: %s", err)
	}
	if payload.UserID == nil {
		return nil, NewValidationError("identity token missing user_id")
	}
	if payload.ScopesHash == nil {
		return nil, NewValidationError("identity token missing scopes_hash")
	}
	return &IdentityToken{UserID: *payload.UserID, ScopesHash: *payload.ScopesHash, Raw: header}, nil
}

// EncodeIdentityToken produces the bearer header form for a user/scopes pair,
// defaulting ScopesHash the way the original generator does.
func EncodeIdentityToken(userID int64, scopesHash string) string {
	if scopesHash == "" {
		scopesHash = "default_scopes_hash"
	}
	payload, _ := json.Marshal(struct {
		UserID     int64  `json:"user_id"`
		ScopesHash string `json:"scopes_hash"`
	}{UserID: userID, ScopesHash: scopesHash})
	return bearerPrefix + base64.StdEncoding.EncodeToString(payload)
}

// UserRole and UserStatus give the richer User aggregate a forward-compatible
// home; the control plane itself never persists a User row (see SPEC_FULL.md
// §3 "User / UserToken").
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleOperator UserRole = "OPERATOR"
	RoleViewer   UserRole = "VIEWER"
)

type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
	UserDeleted   UserStatus = "DELETED"
)

// User is an authorization-capable aggregate built around a decoded
// IdentityToken. Not persisted by this service; provided so an HTTP layer
// wanting role checks has a natural type to reach for.
type User struct {
	ID     int64
	Role   UserRole
	Status UserStatus
}

func (u *User) CanCreateJobs() bool {
	return u.Status == UserActive && (u.Role == RoleAdmin || u.Role == RoleOperator)
}

func (u *User) CanManageUsers() bool {
	return u.Status == UserActive && u.Role == RoleAdmin
}
