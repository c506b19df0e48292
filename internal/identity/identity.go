// Package identity verifies the two caller credential shapes accepted
// at the HTTP boundary (a user bearer token and a device shared-secret
// token) and enforces the tenant/role policy that follows from
// whichever identity was established.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/user"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// UserClaims is the signed payload carried by a user bearer token.
type UserClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Principal is the result of a successful user-bearer verification:
// the user plus every tenant membership they hold.
type Principal struct {
	User        *user.User
	Memberships []*membership.Membership
}

// MembershipIn returns the caller's membership for tenantID, if any.
func (p *Principal) MembershipIn(tenantID string) (*membership.Membership, bool) {
	for _, m := range p.Memberships {
		if m.TenantID == tenantID {
			return m, true
		}
	}
	return nil, false
}

// IsPlatformAdmin reports whether the caller holds a PLATFORM_ADMIN
// membership in any tenant.
func (p *Principal) IsPlatformAdmin() bool {
	for _, m := range p.Memberships {
		if m.Role == membership.PlatformAdmin {
			return true
		}
	}
	return false
}

// DevicePrincipal is the result of a successful device-MAC verification.
type DevicePrincipal struct {
	DeviceID string
}

// Service verifies credentials and enforces tenant/role policy.
type Service struct {
	users       storage.UserStore
	memberships storage.MembershipStore

	jwtSecret  []byte
	jwtExpires time.Duration

	deviceSecret []byte

	log *logger.Logger
}

// New creates an identity service backed by the provided stores.
func New(users storage.UserStore, memberships storage.MembershipStore, jwtSecret string, jwtExpiresIn time.Duration, deviceSecret string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("identity")
	}
	return &Service{
		users:        users,
		memberships:  memberships,
		jwtSecret:    []byte(jwtSecret),
		jwtExpires:   jwtExpiresIn,
		deviceSecret: []byte(deviceSecret),
		log:          log,
	}
}

// IssueUserToken signs a bearer token for u, valid for the configured
// expiry window.
func (s *Service) IssueUserToken(u *user.User) (string, error) {
	now := time.Now().UTC()
	claims := UserClaims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpires)),
			Subject:   u.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyUserBearer decodes and validates bearerToken, then loads the
// user's memberships. An empty token, bad signature, expiry, or
// malformed claims all fail UNAUTHORIZED.
func (s *Service) VerifyUserBearer(ctx context.Context, bearerToken string) (*Principal, error) {
	bearerToken = strings.TrimSpace(bearerToken)
	bearerToken = strings.TrimPrefix(bearerToken, "Bearer ")
	bearerToken = strings.TrimPrefix(bearerToken, "bearer ")
	if bearerToken == "" {
		return nil, apierror.Unauth("missing bearer token")
	}

	var claims UserClaims
	_, err := jwt.ParseWithClaims(bearerToken, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, apierror.Unauth("invalid or expired bearer token")
	}
	if claims.UserID == "" {
		return nil, apierror.Unauth("malformed bearer token")
	}

	u, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, apierror.Unauth("invalid or expired bearer token")
	}
	memberships, err := s.memberships.ListMembershipsByUser(ctx, u.ID)
	if err != nil {
		return nil, apierror.Internal("failed to load memberships", err)
	}
	return &Principal{User: u, Memberships: memberships}, nil
}

// deviceMAC computes hex(HMAC-SHA256(deviceSecret, deviceID)).
func (s *Service) deviceMAC(deviceID string) []byte {
	mac := hmac.New(sha256.New, s.deviceSecret)
	mac.Write([]byte(deviceID))
	sum := mac.Sum(nil)
	digest := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(digest, sum)
	return digest
}

// IssueDeviceToken returns the MAC token a newly provisioned device
// must present on every subsequent request: "<deviceId>:<hex-digest>",
// where the digest is HMAC-SHA256(deviceSecret, deviceId). This is the
// same computation VerifyDeviceMAC checks, run forward.
func (s *Service) IssueDeviceToken(deviceID string) string {
	return deviceID + ":" + string(s.deviceMAC(deviceID))
}

// VerifyDeviceMAC validates a device token of shape
// "<deviceId>:<hex-digest>" against HMAC-SHA256(deviceSecret, deviceId)
// using a constant-time comparison.
func (s *Service) VerifyDeviceMAC(token string) (*DevicePrincipal, error) {
	token = strings.TrimSpace(token)
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, apierror.Unauth("malformed device token")
	}
	deviceID, digest := parts[0], parts[1]

	given, err := hex.DecodeString(digest)
	if err != nil {
		return nil, apierror.Unauth("malformed device token")
	}
	givenHex := make([]byte, hex.EncodedLen(len(given)))
	hex.Encode(givenHex, given)

	if subtle.ConstantTimeCompare(s.deviceMAC(deviceID), givenHex) != 1 {
		return nil, apierror.Unauth("device token mismatch")
	}
	return &DevicePrincipal{DeviceID: deviceID}, nil
}

// ResolveTenant picks the active tenant id for a non-device request in
// priority order (path param, header, query param) and verifies the
// caller holds a membership there. PLATFORM_ADMIN callers may act with
// no tenant id (global view, returns "") or target any tenant.
func (s *Service) ResolveTenant(p *Principal, pathTenantID, headerTenantID, queryTenantID string) (tenantID string, role membership.Role, err error) {
	candidate := firstNonEmpty(pathTenantID, headerTenantID, queryTenantID)

	if p.IsPlatformAdmin() {
		if candidate == "" {
			return "", membership.PlatformAdmin, nil
		}
		if m, ok := p.MembershipIn(candidate); ok {
			return candidate, m.Role, nil
		}
		return candidate, membership.PlatformAdmin, nil
	}

	if candidate == "" {
		return "", "", apierror.Forbid("tenant id is required")
	}
	m, ok := p.MembershipIn(candidate)
	if !ok {
		return "", "", apierror.Forbid("caller has no membership in the requested tenant")
	}
	return candidate, m.Role, nil
}

// RequireRole fails FORBIDDEN unless role is in allowed or the acting
// principal is a platform admin.
func RequireRole(p *Principal, role membership.Role, allowed []membership.Role) error {
	if p.IsPlatformAdmin() {
		return nil
	}
	if role.In(allowed) {
		return nil
	}
	return apierror.Forbid("caller's role does not permit this operation")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
