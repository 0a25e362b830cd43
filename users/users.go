package users

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of user roles known to the client.
type Role int

const (
	// RoleAny is only meaningful as a requirement: any authenticated user.
	RoleAny Role = iota
	// RoleUnknown is assigned to profiles carrying a role marker the client does not recognise.
	RoleUnknown
	RoleCamper
	RoleOwner
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleAny:     "any",
	RoleUnknown: "unknown",
	RoleCamper:  "camper",
	RoleOwner:   "owner",
	RoleAdmin:   "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole maps a backend user_type marker onto a Role.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "camper":
		return RoleCamper
	case "owner", "campsite_owner":
		return RoleOwner
	case "admin":
		return RoleAdmin
	case "any":
		return RoleAny
	default:
		return RoleUnknown
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a string: %w", err)
	}
	*r = ParseRole(s)
	return nil
}

// rank orders the concrete roles; RoleUnknown ranks below every requirement.
func (r Role) rank() int {
	switch r {
	case RoleCamper:
		return 1
	case RoleOwner:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Authorize is the single authorization predicate used by every gate.
// Admins satisfy every role, owners satisfy owner and camper requirements.
func Authorize(p *Profile, required Role) bool {
	if p == nil {
		return false
	}
	switch required {
	case RoleAny:
		return true
	case RoleUnknown:
		return false
	}
	return p.Role.rank() >= required.rank()
}

// Profile is the current user as reported by the backend.
type Profile struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	Address      string `json:"address,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Role         Role   `json:"role"`
}

type profileAlias Profile

// profileWire carries the backend's role markers, which vary between endpoints.
type profileWire struct {
	profileAlias
	UserType    *string `json:"user_type"`
	IsOwner     bool    `json:"is_owner"`
	IsStaff     bool    `json:"is_staff"`
	IsSuperuser bool    `json:"is_superuser"`
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var wire profileWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = Profile(wire.profileAlias)

	switch {
	case wire.IsStaff || wire.IsSuperuser:
		p.Role = RoleAdmin
	case wire.UserType != nil:
		p.Role = ParseRole(*wire.UserType)
		if wire.IsOwner && p.Role == RoleCamper {
			p.Role = RoleOwner
		}
	case wire.IsOwner:
		p.Role = RoleOwner
	case p.Role == RoleAny:
		// no marker at all: the backend default account type
		p.Role = RoleCamper
	}
	return nil
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Profile) IsOwner() bool {
	return Authorize(p, RoleOwner)
}

func (p *Profile) IsAdmin() bool {
	return Authorize(p, RoleAdmin)
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up request body.
type Registration struct {
	Email       string `json:"email"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsOwner     bool   `json:"is_owner"`
}

// ProfileUpdate is a partial profile update; nil fields are not sent.
type ProfileUpdate struct {
	Email        *string `json:"email,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	Address      *string `json:"address,omitempty"`
	BusinessName *string `json:"business_name,omitempty"`
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.Email == nil && u.FirstName == nil && u.LastName == nil &&
		u.PhoneNumber == nil && u.Address == nil && u.BusinessName == nil
}
