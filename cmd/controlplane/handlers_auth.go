package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarfleet/control-plane/internal/apierror"
	domainaudit "github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/domain/user"
	"github.com/solarfleet/control-plane/internal/httputil"
)

type registerRequest struct {
	TenantName string `json:"tenantName"`
	TenantType string `json:"tenantType"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
}

type registerResponse struct {
	Token  string         `json:"token"`
	User   *user.User     `json:"user"`
	Tenant *tenant.Tenant `json:"tenant"`
}

// handleRegister creates a new tenant, its first user, and a
// TENANT_ADMIN membership binding them, then issues a bearer token for
// the new user. There is no invite flow for a brand new organization:
// registering always creates the owning tenant in the same request.
func (rt *routes) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if !decodeBody(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.TenantName == "" || in.Email == "" || in.Password == "" {
		httputil.WriteAPIError(w, apierror.Invalid("tenantName, email, and password are required"))
		return
	}

	ctx := r.Context()
	if _, err := rt.app.Stores.Users.GetUserByEmail(ctx, in.Email); err == nil {
		httputil.WriteAPIError(w, apierror.Dup("a user with this email already exists"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to hash password", err))
		return
	}

	now := time.Now().UTC()
	tenantType := tenant.Type(in.TenantType)
	if tenantType == "" {
		tenantType = tenant.Installer
	}
	t := &tenant.Tenant{
		ID:          uuid.NewString(),
		DisplayName: in.TenantName,
		Type:        tenantType,
		Status:      tenant.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := rt.app.Stores.Tenants.CreateTenant(ctx, t); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create tenant", err))
		return
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Status:       user.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := rt.app.Stores.Users.CreateUser(ctx, u); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create user", err))
		return
	}

	m := &membership.Membership{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TenantID:  t.ID,
		Role:      membership.TenantAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rt.app.Stores.Memberships.CreateMembership(ctx, m); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create membership", err))
		return
	}

	token, err := rt.app.Identity.IssueUserToken(u)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to issue token", err))
		return
	}

	rt.app.Audit.Record(ctx, &t.ID, &u.ID, domainaudit.ActorUser, "TENANT_REGISTERED", "tenant", t.ID, nil)

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{Token: token, User: u, Tenant: t})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// handleLogin verifies email/password and issues a bearer token. The
// same UNAUTHORIZED response is returned for both an unknown email and
// a wrong password, so the endpoint never confirms which accounts
// exist.
func (rt *routes) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decodeBody(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	ctx := r.Context()
	u, err := rt.app.Stores.Users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Unauth("invalid email or password"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		httputil.WriteAPIError(w, apierror.Unauth("invalid email or password"))
		return
	}
	if u.Status != user.Active {
		httputil.WriteAPIError(w, apierror.Unauth("account is not active"))
		return
	}

	token, err := rt.app.Identity.IssueUserToken(u)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to issue token", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}
