package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/TamirHazut/ERP/internal/auth"
	"github.com/TamirHazut/ERP/internal/tokenindex"
)

const bufSize = 1024 * 1024

// fixtureStore serves a fixed set of tenants, users, roles and permissions.
type fixtureStore struct {
	tenants map[string]*auth.Tenant
	users   map[string]*auth.User
	roles   map[string]*auth.Role
	perms   map[string]*auth.Permission
}

func newFixtureStore(t *testing.T) *fixtureStore {
	t.Helper()
	hash, err := auth.HashPassword("secretpw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &fixtureStore{
		tenants: map[string]*auth.Tenant{
			"sys": {ID: "sys", Name: "system", Status: auth.TenantStatusActive, System: true},
			"t1":  {ID: "t1", Name: "acme", Status: auth.TenantStatusActive},
		},
		users: map[string]*auth.User{
			"sys/admin-1": {
				ID: "admin-1", TenantID: "sys", Username: "root",
				Email: "root@example.com", PasswordHash: hash,
				Roles:  []auth.RoleAssignment{{RoleID: "sys-admin", TenantID: "sys"}},
				Status: auth.UserStatusActive,
			},
			"t1/user-1": {
				ID: "user-1", TenantID: "t1", Username: "alice",
				Email: "alice@example.com", PasswordHash: hash,
				Roles:  []auth.RoleAssignment{{RoleID: "r1", TenantID: "t1"}},
				Status: auth.UserStatusActive,
			},
		},
		roles: map[string]*auth.Role{
			"sys/sys-admin": {
				ID: "sys-admin", TenantID: "sys", Name: auth.RoleSystemAdmin,
				Status: auth.RoleStatusActive, Type: auth.RoleTypeSystem,
			},
			"t1/r1": {
				ID: "r1", TenantID: "t1", Name: "reader", Permissions: []string{"p1"},
				Status: auth.RoleStatusActive, Type: auth.RoleTypeCustom,
			},
		},
		perms: map[string]*auth.Permission{
			"t1/p1": {
				ID: "p1", TenantID: "t1", Resource: "doc", Action: "read",
				DisplayName: "Read documents", Status: auth.PermissionStatusActive,
			},
		},
	}
}

func (f *fixtureStore) Tenants(context.Context) auth.TenantStore         { return fixtureTenants{f} }
func (f *fixtureStore) Users(context.Context) auth.UserStore             { return fixtureUsers{f} }
func (f *fixtureStore) Roles(context.Context) auth.RoleStore             { return fixtureRoles{f} }
func (f *fixtureStore) Permissions(context.Context) auth.PermissionStore { return fixturePerms{f} }
func (f *fixtureStore) Audit(context.Context) auth.AuditStore            { return fixtureAudit{} }

type fixtureTenants struct{ *fixtureStore }

func (f fixtureTenants) Create(context.Context, *auth.Tenant) error { return nil }
func (f fixtureTenants) Find(_ context.Context, id string) (*auth.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, auth.ErrNotFound
}
func (f fixtureTenants) FindByName(context.Context, string) (*auth.Tenant, error) {
	return nil, auth.ErrNotFound
}
func (f fixtureTenants) List(context.Context) ([]*auth.Tenant, error) { return nil, nil }
func (f fixtureTenants) Update(context.Context, *auth.Tenant) error   { return nil }
func (f fixtureTenants) Delete(context.Context, string) error         { return nil }

type fixtureUsers struct{ *fixtureStore }

func (f fixtureUsers) Create(context.Context, *auth.User) error { return nil }
func (f fixtureUsers) Find(_ context.Context, tenantID, id string) (*auth.User, error) {
	if u, ok := f.users[tenantID+"/"+id]; ok {
		return u, nil
	}
	return nil, auth.ErrNotFound
}
func (f fixtureUsers) FindByUsername(_ context.Context, tenantID, username string) (*auth.User, error) {
	for _, u := range f.users {
		if u.TenantID == tenantID && u.Username == username {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}
func (f fixtureUsers) FindByEmail(_ context.Context, tenantID, email string) (*auth.User, error) {
	for _, u := range f.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}
func (f fixtureUsers) ListByTenant(context.Context, string) ([]*auth.User, error) { return nil, nil }
func (f fixtureUsers) Update(context.Context, *auth.User) error                   { return nil }
func (f fixtureUsers) Delete(context.Context, string, string) error               { return nil }

type fixtureRoles struct{ *fixtureStore }

func (f fixtureRoles) Create(context.Context, *auth.Role) error { return nil }
func (f fixtureRoles) Find(_ context.Context, tenantID, id string) (*auth.Role, error) {
	if r, ok := f.roles[tenantID+"/"+id]; ok {
		return r, nil
	}
	return nil, auth.ErrNotFound
}
func (f fixtureRoles) FindByName(_ context.Context, tenantID, name string) (*auth.Role, error) {
	for _, r := range f.roles {
		if r.TenantID == tenantID && r.Name == name {
			return r, nil
		}
	}
	return nil, auth.ErrNotFound
}
func (f fixtureRoles) ListByTenant(context.Context, string) ([]*auth.Role, error) { return nil, nil }
func (f fixtureRoles) Update(context.Context, *auth.Role) error                   { return nil }
func (f fixtureRoles) Delete(context.Context, string, string) error               { return nil }

type fixturePerms struct{ *fixtureStore }

func (f fixturePerms) Ensure(context.Context, []auth.Permission) error { return nil }
func (f fixturePerms) Create(context.Context, *auth.Permission) error  { return nil }
func (f fixturePerms) Find(_ context.Context, tenantID, id string) (*auth.Permission, error) {
	if p, ok := f.perms[tenantID+"/"+id]; ok {
		return p, nil
	}
	return nil, auth.ErrNotFound
}
func (f fixturePerms) FindByKey(_ context.Context, tenantID, key string) (*auth.Permission, error) {
	for _, p := range f.perms {
		if p.TenantID == tenantID && p.Key() == key {
			return p, nil
		}
	}
	return nil, auth.ErrNotFound
}
func (f fixturePerms) ListByTenant(context.Context, string) ([]*auth.Permission, error) {
	return nil, nil
}
func (f fixturePerms) Update(context.Context, *auth.Permission) error { return nil }
func (f fixturePerms) Delete(context.Context, string, string) error   { return nil }

type fixtureAudit struct{}

func (fixtureAudit) Append(context.Context, *auth.AuditEntry) error { return nil }
func (fixtureAudit) ListByTenant(context.Context, string, int64) ([]*auth.AuditEntry, error) {
	return nil, nil
}

var _ auth.Store = (*fixtureStore)(nil)

func startBufGRPC(t *testing.T) (*Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	index := tokenindex.New(rdb)

	tokens, err := auth.NewService(newFixtureStore(t), index, []byte("grpc-test-secret"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	Register(server, NewServer(tokens))

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}

	cleanup := func() {
		server.GracefulStop()
		_ = conn.Close()
		_ = listener.Close()
		_ = rdb.Close()
	}
	return NewClient(conn), cleanup
}

func TestGRPCLoginVerifyLogout(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pair, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}

	claims, err := client.Verify(ctx, &VerifyRequest{AccessToken: pair.AccessToken})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.TenantID != "t1" || claims.UserID != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	resp, err := client.Logout(WithToken(ctx, pair.AccessToken))
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if resp.Message != "logout successful" {
		t.Fatalf("message = %q", resp.Message)
	}

	if _, err := client.Verify(ctx, &VerifyRequest{AccessToken: pair.AccessToken}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Verify after Logout: %v, want Unauthenticated", err)
	}
}

func TestGRPCLoginRejectsBadPassword(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "nope"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Login: %v, want Unauthenticated", err)
	}
}

func TestGRPCRefresh(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pair, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := client.Refresh(ctx, &RefreshRequest{TenantID: "t1", UserID: "user-1", RefreshToken: pair.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.AccessToken == pair.AccessToken {
		t.Fatal("access token was not rotated")
	}

	_, err = client.Refresh(ctx, &RefreshRequest{TenantID: "t1", UserID: "user-1", RefreshToken: pair.RefreshToken})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("stale Refresh: %v, want Unauthenticated", err)
	}
}

func TestGRPCRevokePermissions(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login alice: %v", err)
	}
	admin, err := client.Login(ctx, &LoginRequest{TenantID: "sys", Username: "root", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login root: %v", err)
	}

	// Alice cannot revoke the admin.
	_, err = client.Revoke(WithToken(ctx, alice.AccessToken), &RevokeRequest{TenantID: "sys", UserID: "admin-1"})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("Revoke by alice: %v, want PermissionDenied", err)
	}

	// The admin sweeps the tenant.
	resp, err := client.RevokeTenant(WithToken(ctx, admin.AccessToken), &RevokeTenantRequest{TenantID: "t1"})
	if err != nil {
		t.Fatalf("RevokeTenant: %v", err)
	}
	if resp.AccessTokensRevoked != 1 || resp.RefreshTokensRevoked != 1 {
		t.Fatalf("revoked counts = %d/%d, want 1/1", resp.AccessTokensRevoked, resp.RefreshTokensRevoked)
	}

	_, err = client.Verify(ctx, &VerifyRequest{AccessToken: alice.AccessToken})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Verify after sweep: %v, want Unauthenticated", err)
	}
}

func TestGRPCAuthenticatedRPCNeedsToken(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Logout(ctx)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Logout without token: %v, want Unauthenticated", err)
	}
}

func TestGRPCVerifyScopedToTenant(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pair, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := client.Verify(ctx, &VerifyRequest{AccessToken: pair.AccessToken, TenantID: "t1"})
	if err != nil {
		t.Fatalf("Verify scoped to own tenant: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	_, err = client.Verify(ctx, &VerifyRequest{AccessToken: pair.AccessToken, TenantID: "sys"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Verify scoped to foreign tenant: %v, want Unauthenticated", err)
	}
}

func TestGRPCCheckPermissions(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login alice: %v", err)
	}
	admin, err := client.Login(ctx, &LoginRequest{TenantID: "sys", Username: "root", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login root: %v", err)
	}

	// Anyone may ask about themselves.
	resp, err := client.CheckPermissions(WithToken(ctx, alice.AccessToken), &CheckPermissionsRequest{
		TenantID: "t1", UserID: "user-1", Permissions: []string{"doc:read", "doc:write"},
	})
	if err != nil {
		t.Fatalf("CheckPermissions self: %v", err)
	}
	if !resp.Results["doc:read"] || resp.Results["doc:write"] {
		t.Fatalf("Results = %v", resp.Results)
	}

	// Asking about someone else needs user:manage.
	_, err = client.CheckPermissions(WithToken(ctx, alice.AccessToken), &CheckPermissionsRequest{
		TenantID: "sys", UserID: "admin-1", Permissions: []string{"doc:read"},
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("CheckPermissions cross-user by alice: %v, want PermissionDenied", err)
	}

	resp, err = client.CheckPermissions(WithToken(ctx, admin.AccessToken), &CheckPermissionsRequest{
		TenantID: "t1", UserID: "user-1", Permissions: []string{"doc:read"},
	})
	if err != nil {
		t.Fatalf("CheckPermissions by admin: %v", err)
	}
	if !resp.Results["doc:read"] {
		t.Fatalf("Results = %v", resp.Results)
	}
}

func TestGRPCLoginByEmail(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pair, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Identifier: "alice@example.com", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login by email: %v", err)
	}
	claims, err := client.Verify(ctx, &VerifyRequest{AccessToken: pair.AccessToken})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	_, err = client.Login(ctx, &LoginRequest{TenantID: "t1", Identifier: "nobody@example.com", Password: "secretpw"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Login with unknown email: %v, want Unauthenticated", err)
	}
}

func TestGRPCVerifyReportsSystemTenant(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	admin, err := client.Login(ctx, &LoginRequest{TenantID: "sys", Username: "root", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login root: %v", err)
	}
	alice, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login alice: %v", err)
	}

	claims, err := client.Verify(ctx, &VerifyRequest{AccessToken: admin.AccessToken})
	if err != nil {
		t.Fatalf("Verify root: %v", err)
	}
	if !claims.IsSystemTenant {
		t.Fatal("system tenant user reported IsSystemTenant=false")
	}

	claims, err = client.Verify(ctx, &VerifyRequest{AccessToken: alice.AccessToken})
	if err != nil {
		t.Fatalf("Verify alice: %v", err)
	}
	if claims.IsSystemTenant {
		t.Fatal("regular tenant user reported IsSystemTenant=true")
	}
}

func TestGRPCHasPermission(t *testing.T) {
	client, cleanup := startBufGRPC(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := client.Login(ctx, &LoginRequest{TenantID: "t1", Username: "alice", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login alice: %v", err)
	}
	admin, err := client.Login(ctx, &LoginRequest{TenantID: "sys", Username: "root", Password: "secretpw"})
	if err != nil {
		t.Fatalf("Login root: %v", err)
	}

	resp, err := client.HasPermission(WithToken(ctx, alice.AccessToken), &HasPermissionRequest{
		TenantID: "t1", UserID: "user-1", Permission: "doc:read",
	})
	if err != nil {
		t.Fatalf("HasPermission self: %v", err)
	}
	if !resp.Allowed {
		t.Fatal("held permission reported Allowed=false")
	}

	resp, err = client.HasPermission(WithToken(ctx, alice.AccessToken), &HasPermissionRequest{
		TenantID: "t1", UserID: "user-1", Permission: "doc:write",
	})
	if err != nil {
		t.Fatalf("HasPermission self unheld: %v", err)
	}
	if resp.Allowed {
		t.Fatal("unheld permission reported Allowed=true")
	}

	// Asking about someone else needs user:manage.
	_, err = client.HasPermission(WithToken(ctx, alice.AccessToken), &HasPermissionRequest{
		TenantID: "sys", UserID: "admin-1", Permission: "doc:read",
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("HasPermission cross-user by alice: %v, want PermissionDenied", err)
	}

	resp, err = client.HasPermission(WithToken(ctx, admin.AccessToken), &HasPermissionRequest{
		TenantID: "t1", UserID: "user-1", Permission: "doc:read",
	})
	if err != nil {
		t.Fatalf("HasPermission by admin: %v", err)
	}
	if !resp.Allowed {
		t.Fatal("admin query on held permission reported Allowed=false")
	}
}
