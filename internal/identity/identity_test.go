package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/user"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, "test-jwt-secret", time.Hour, "test-device-secret", nil)
	return svc, store
}

func TestIssueAndVerifyUserBearerRoundTrips(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	u := &user.User{ID: "u1", Email: "a@example.com", Status: user.Active}
	require.NoError(t, store.CreateUser(ctx, u))
	require.NoError(t, store.CreateMembership(ctx, &membership.Membership{
		ID: "m1", UserID: "u1", TenantID: "t1", Role: membership.TenantAdmin,
	}))

	token, err := svc.IssueUserToken(u)
	require.NoError(t, err)

	principal, err := svc.VerifyUserBearer(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.User.ID)
	require.Len(t, principal.Memberships, 1)
	assert.Equal(t, membership.TenantAdmin, principal.Memberships[0].Role)
}

func TestVerifyUserBearerRejectsMissingToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.VerifyUserBearer(context.Background(), "")
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Unauthorized, apiErr.Code)
}

func TestVerifyUserBearerRejectsTamperedToken(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := &user.User{ID: "u1", Email: "a@example.com"}
	require.NoError(t, store.CreateUser(ctx, u))

	token, err := svc.IssueUserToken(u)
	require.NoError(t, err)

	_, err = svc.VerifyUserBearer(ctx, token+"tampered")
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Unauthorized, apiErr.Code)
}

func TestVerifyUserBearerRejectsExpiredToken(t *testing.T) {
	store := memory.New()
	svc := New(store, store, "test-jwt-secret", -time.Hour, "test-device-secret", nil)
	ctx := context.Background()
	u := &user.User{ID: "u1", Email: "a@example.com"}
	require.NoError(t, store.CreateUser(ctx, u))

	token, err := svc.IssueUserToken(u)
	require.NoError(t, err)

	_, err = svc.VerifyUserBearer(ctx, token)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Unauthorized, apiErr.Code)
}

func deviceToken(secret, deviceID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(deviceID))
	return deviceID + ":" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyDeviceMACAcceptsValidToken(t *testing.T) {
	svc, _ := newTestService(t)
	token := deviceToken("test-device-secret", "dev-1")

	principal, err := svc.VerifyDeviceMAC(token)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", principal.DeviceID)
}

func TestVerifyDeviceMACRejectsWrongSecret(t *testing.T) {
	svc, _ := newTestService(t)
	token := deviceToken("wrong-secret", "dev-1")

	_, err := svc.VerifyDeviceMAC(token)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Unauthorized, apiErr.Code)
}

func TestVerifyDeviceMACRejectsMalformedToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.VerifyDeviceMAC("not-a-valid-token")
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Unauthorized, apiErr.Code)
}

func TestResolveTenantRequiresMembershipForOrdinaryUser(t *testing.T) {
	p := &Principal{Memberships: []*membership.Membership{
		{TenantID: "t1", Role: membership.Installer},
	}}
	svc := &Service{}

	tenantID, role, err := svc.ResolveTenant(p, "", "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "t1", tenantID)
	assert.Equal(t, membership.Installer, role)

	_, _, err = svc.ResolveTenant(p, "", "t2", "")
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Forbidden, apiErr.Code)

	_, _, err = svc.ResolveTenant(p, "", "", "")
	apiErr, ok = apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Forbidden, apiErr.Code)
}

func TestResolveTenantPlatformAdminCanActGloballyOrOnAnyTenant(t *testing.T) {
	p := &Principal{Memberships: []*membership.Membership{
		{TenantID: "home", Role: membership.PlatformAdmin},
	}}
	svc := &Service{}

	tenantID, role, err := svc.ResolveTenant(p, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "", tenantID)
	assert.Equal(t, membership.PlatformAdmin, role)

	tenantID, _, err = svc.ResolveTenant(p, "other-tenant", "", "")
	require.NoError(t, err)
	assert.Equal(t, "other-tenant", tenantID)
}

func TestResolveTenantPriorityOrder(t *testing.T) {
	p := &Principal{Memberships: []*membership.Membership{
		{TenantID: "path-tenant", Role: membership.EndUser},
		{TenantID: "header-tenant", Role: membership.EndUser},
		{TenantID: "query-tenant", Role: membership.EndUser},
	}}
	svc := &Service{}

	tenantID, _, err := svc.ResolveTenant(p, "path-tenant", "header-tenant", "query-tenant")
	require.NoError(t, err)
	assert.Equal(t, "path-tenant", tenantID)

	tenantID, _, err = svc.ResolveTenant(p, "", "header-tenant", "query-tenant")
	require.NoError(t, err)
	assert.Equal(t, "header-tenant", tenantID)
}

func TestRequireRole(t *testing.T) {
	allowed := []membership.Role{membership.TenantAdmin, membership.Installer}

	assert.NoError(t, RequireRole(&Principal{}, membership.Installer, allowed))

	err := RequireRole(&Principal{}, membership.EndUser, allowed)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Forbidden, apiErr.Code)

	admin := &Principal{Memberships: []*membership.Membership{{Role: membership.PlatformAdmin}}}
	assert.NoError(t, RequireRole(admin, membership.EndUser, allowed))
}
