package auth

// Package auth contains domain-level types for marketplace identity, roles and areas.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role is a marketplace authorization role as carried in the session token payload.
// The set is closed; use ParseRole to validate untrusted input.
type Role string

const (
	RoleAdmin           Role = "ADMIN"
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RoleSellerOwner     Role = "SELLER_OWNER"
	RoleSellerManager   Role = "SELLER_MANAGER"
	RoleSellerStaff     Role = "SELLER_STAFF"
	RoleBusinessOwner   Role = "BUSINESS_OWNER"
	RoleBusinessManager Role = "BUSINESS_MANAGER"
	RoleBusinessStaff   Role = "BUSINESS_STAFF"
	RoleInfluencer      Role = "INFLUENCER"
	RoleCustomer        Role = "CUSTOMER"
)

// AllRoles returns every known role in a stable order.
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleSuperAdmin,
		RoleSellerOwner,
		RoleSellerManager,
		RoleSellerStaff,
		RoleBusinessOwner,
		RoleBusinessManager,
		RoleBusinessStaff,
		RoleInfluencer,
		RoleCustomer,
	}
}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := AreaForRole(r); !ok {
		return "", false
	}
	return r, true
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := AreaForRole(r)
	return ok
}

func (r Role) String() string { return string(r) }

// Area is a logical section of the marketplace gated as a unit.
type Area string

const (
	AreaAdmin      Area = "admin"
	AreaSeller     Area = "seller"
	AreaInfluencer Area = "influencer"
	AreaStorefront Area = "storefront"
)

// AllAreas returns every area in a stable order.
func AllAreas() []Area {
	return []Area{AreaAdmin, AreaSeller, AreaInfluencer, AreaStorefront}
}

// ParseArea validates an area name read from configuration.
func ParseArea(s string) (Area, bool) {
	a := Area(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case AreaAdmin, AreaSeller, AreaInfluencer, AreaStorefront:
		return a, true
	default:
		return "", false
	}
}

// AreaForRole maps a role to the single area it may use.
// Unknown roles return ok=false and must be treated as denied.
func AreaForRole(r Role) (Area, bool) {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return AreaAdmin, true
	case RoleSellerOwner, RoleSellerManager, RoleSellerStaff,
		RoleBusinessOwner, RoleBusinessManager, RoleBusinessStaff:
		return AreaSeller, true
	case RoleInfluencer:
		return AreaInfluencer, true
	case RoleCustomer:
		return AreaStorefront, true
	default:
		return "", false
	}
}

// CanAccess reports whether role r may enter area a.
// The storefront is public, so every known role may enter it.
func CanAccess(r Role, a Area) bool {
	home, ok := AreaForRole(r)
	if !ok {
		return false
	}
	if a == AreaStorefront {
		return true
	}
	return home == a
}

// HomeForRole returns the landing path for a role's area.
func HomeForRole(r Role) string {
	area, ok := AreaForRole(r)
	if !ok {
		return "/"
	}
	switch area {
	case AreaAdmin:
		return "/admin"
	case AreaSeller:
		return "/seller"
	case AreaInfluencer:
		return "/influencer"
	default:
		return "/"
	}
}

// Payload is the decoded body of a session token.
// Fields other than Role are optional.
type Payload struct {
	Subject    string
	Email      string
	Role       Role
	BusinessID string
	Issuer     string
	TokenID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the payload carries an expiry that has passed at now.
func (p Payload) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Identity represents a principal verified by an external identity provider.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
	Claims    map[string]any // raw provider claims, used for role extraction
	ExpiresAt time.Time
}

// AppUser is the resolved application user returned by the backend of record.
type AppUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	BusinessID string `json:"businessId,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	AvatarURL  string `json:"avatar,omitempty"`
}

// User is the persisted account record owned by the login backend.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Role            Role
	BusinessID      string
	FirstName       string
	LastName        string
	AvatarURL       string
	ProviderSubject string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppUser projects the stored record into its public shape.
func (u User) AppUser() AppUser {
	return AppUser{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		BusinessID: u.BusinessID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		AvatarURL:  u.AvatarURL,
	}
}

// ProviderUser is the signed-in principal as reported by the client-side identity provider.
type ProviderUser struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}
