package auth

import (
	"errors"
	"testing"
	"time"
)

func TestAreaForRole_TotalOverAllRoles(t *testing.T) {
	for _, r := range AllRoles() {
		if _, ok := AreaForRole(r); !ok {
			t.Fatalf("role %s has no area", r)
		}
	}
	if _, ok := AreaForRole(Role("JANITOR")); ok {
		t.Fatalf("unknown role must not map to an area")
	}
	if _, ok := AreaForRole(""); ok {
		t.Fatalf("empty role must not map to an area")
	}
}

func TestCanAccess_CrossProduct(t *testing.T) {
	allowed := map[Role][]Area{
		RoleAdmin:           {AreaAdmin},
		RoleSuperAdmin:      {AreaAdmin},
		RoleSellerOwner:     {AreaSeller},
		RoleSellerManager:   {AreaSeller},
		RoleSellerStaff:     {AreaSeller},
		RoleBusinessOwner:   {AreaSeller},
		RoleBusinessManager: {AreaSeller},
		RoleBusinessStaff:   {AreaSeller},
		RoleInfluencer:      {AreaInfluencer},
		RoleCustomer:        {},
	}
	if len(allowed) != len(AllRoles()) {
		t.Fatalf("policy table covers %d roles, want %d", len(allowed), len(AllRoles()))
	}

	for _, r := range AllRoles() {
		for _, a := range AllAreas() {
			want := a == AreaStorefront
			for _, ok := range allowed[r] {
				if ok == a {
					want = true
				}
			}
			if got := CanAccess(r, a); got != want {
				t.Errorf("CanAccess(%s, %s) = %v, want %v", r, a, got, want)
			}
		}
	}
}

func TestCanAccess_UnknownRoleDenied(t *testing.T) {
	for _, a := range AllAreas() {
		if CanAccess(Role("ROOT"), a) {
			t.Fatalf("unknown role granted %s", a)
		}
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"ADMIN", RoleAdmin, true},
		{" seller_staff ", RoleSellerStaff, true},
		{"influencer", RoleInfluencer, true},
		{"", "", false},
		{"OWNER", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRole(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseArea(t *testing.T) {
	if a, ok := ParseArea("Seller"); !ok || a != AreaSeller {
		t.Fatalf("ParseArea(Seller) = %q, %v", a, ok)
	}
	if _, ok := ParseArea("warehouse"); ok {
		t.Fatalf("unexpected area")
	}
}

func TestHomeForRole(t *testing.T) {
	cases := map[Role]string{
		RoleSuperAdmin:    "/admin",
		RoleBusinessStaff: "/seller",
		RoleInfluencer:    "/influencer",
		RoleCustomer:      "/",
		Role("nope"):      "/",
	}
	for r, want := range cases {
		if got := HomeForRole(r); got != want {
			t.Errorf("HomeForRole(%s) = %q, want %q", r, got, want)
		}
	}
}

func TestPayload_Expired(t *testing.T) {
	now := time.Now()
	if (Payload{}).Expired(now) {
		t.Fatalf("payload without exp must not be expired")
	}
	if !(Payload{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Fatalf("expected expired")
	}
	if (Payload{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("did not expect expired")
	}
}

func TestErrors_UnwrapAndMessages(t *testing.T) {
	cause := errors.New("boom")

	var decodeErr error = &TokenDecodeError{Reason: DecodeReasonBase64, Err: cause}
	if !errors.Is(decodeErr, cause) {
		t.Fatalf("TokenDecodeError should unwrap to cause")
	}

	var fetchErr error = &ProfileFetchError{Status: 503}
	var pfe *ProfileFetchError
	if !errors.As(fetchErr, &pfe) || pfe.Status != 503 {
		t.Fatalf("expected ProfileFetchError with status 503")
	}
	if fetchErr.Error() != "fetch profile (status 503): Service Unavailable" {
		t.Fatalf("unexpected message: %s", fetchErr.Error())
	}

	var provErr error = &AuthProviderError{Op: "sign_out", Err: cause}
	if !errors.Is(provErr, cause) {
		t.Fatalf("AuthProviderError should unwrap to cause")
	}

	denied := &UnauthorizedAccess{Role: RoleCustomer, Area: AreaAdmin}
	if denied.Error() != `role "CUSTOMER" may not access area "admin"` {
		t.Fatalf("unexpected message: %s", denied.Error())
	}
}

func TestUser_AppUser(t *testing.T) {
	u := User{ID: "u1", Email: "a@b.c", Role: RoleSellerOwner, BusinessID: "b1", PasswordHash: "x"}
	got := u.AppUser()
	if got.ID != "u1" || got.Role != RoleSellerOwner || got.BusinessID != "b1" {
		t.Fatalf("unexpected projection: %+v", got)
	}
}
