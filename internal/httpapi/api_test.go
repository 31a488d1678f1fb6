package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/TamirHazut/ERP/internal/auth"
)

// stubStore is a minimal in-memory auth.Store for handler tests.
type stubStore struct {
	mu      sync.Mutex
	tenants map[string]*auth.Tenant
	users   map[string]*auth.User
	roles   map[string]*auth.Role
	perms   map[string]*auth.Permission
	audits  []*auth.AuditEntry
}

func newStubStore() *stubStore {
	return &stubStore{
		tenants: make(map[string]*auth.Tenant),
		users:   make(map[string]*auth.User),
		roles:   make(map[string]*auth.Role),
		perms:   make(map[string]*auth.Permission),
	}
}

func (s *stubStore) Tenants(context.Context) auth.TenantStore         { return stubTenants{s} }
func (s *stubStore) Users(context.Context) auth.UserStore             { return stubUsers{s} }
func (s *stubStore) Roles(context.Context) auth.RoleStore             { return stubRoles{s} }
func (s *stubStore) Permissions(context.Context) auth.PermissionStore { return stubPerms{s} }
func (s *stubStore) Audit(context.Context) auth.AuditStore            { return stubAudit{s} }

func sk(tenantID, id string) string { return tenantID + "/" + id }

type stubTenants struct{ *stubStore }

func (s stubTenants) Create(ctx context.Context, t *auth.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.tenants {
		if ex.Name == t.Name {
			return auth.ErrAlreadyExists
		}
	}
	s.tenants[t.ID] = t
	return nil
}

func (s stubTenants) Find(ctx context.Context, id string) (*auth.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return t, nil
}

func (s stubTenants) FindByName(ctx context.Context, name string) (*auth.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s stubTenants) List(ctx context.Context) ([]*auth.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (s stubTenants) Update(ctx context.Context, t *auth.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return auth.ErrNotFound
	}
	s.tenants[t.ID] = t
	return nil
}

func (s stubTenants) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.tenants, id)
	return nil
}

type stubUsers struct{ *stubStore }

func (s stubUsers) Create(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.users {
		if ex.TenantID == u.TenantID && ex.Username == u.Username {
			return auth.ErrAlreadyExists
		}
	}
	s.users[sk(u.TenantID, u.ID)] = u
	return nil
}

func (s stubUsers) Find(ctx context.Context, tenantID, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[sk(tenantID, id)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (s stubUsers) FindByUsername(ctx context.Context, tenantID, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TenantID == tenantID && u.Username == username {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s stubUsers) FindByEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s stubUsers) ListByTenant(ctx context.Context, tenantID string) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.User, 0)
	for _, u := range s.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s stubUsers) Update(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[sk(u.TenantID, u.ID)]; !ok {
		return auth.ErrNotFound
	}
	s.users[sk(u.TenantID, u.ID)] = u
	return nil
}

func (s stubUsers) Delete(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[sk(tenantID, id)]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, sk(tenantID, id))
	return nil
}

type stubRoles struct{ *stubStore }

func (s stubRoles) Create(ctx context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[sk(r.TenantID, r.ID)] = r
	return nil
}

func (s stubRoles) Find(ctx context.Context, tenantID, id string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[sk(tenantID, id)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return r, nil
}

func (s stubRoles) FindByName(ctx context.Context, tenantID, name string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.TenantID == tenantID && r.Name == name {
			return r, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s stubRoles) ListByTenant(ctx context.Context, tenantID string) ([]*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Role, 0)
	for _, r := range s.roles {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s stubRoles) Update(ctx context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[sk(r.TenantID, r.ID)]; !ok {
		return auth.ErrNotFound
	}
	s.roles[sk(r.TenantID, r.ID)] = r
	return nil
}

func (s stubRoles) Delete(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, sk(tenantID, id))
	return nil
}

type stubPerms struct{ *stubStore }

func (s stubPerms) Ensure(ctx context.Context, perms []auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range perms {
		p := perms[i]
		exists := false
		for _, ex := range s.perms {
			if ex.TenantID == p.TenantID && ex.Key() == p.Key() {
				exists = true
				break
			}
		}
		if !exists {
			s.perms[sk(p.TenantID, p.ID)] = &p
		}
	}
	return nil
}

func (s stubPerms) Create(ctx context.Context, p *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.perms {
		if ex.TenantID == p.TenantID && ex.Key() == p.Key() {
			return auth.ErrAlreadyExists
		}
	}
	s.perms[sk(p.TenantID, p.ID)] = p
	return nil
}

func (s stubPerms) Find(ctx context.Context, tenantID, id string) (*auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.perms[sk(tenantID, id)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return p, nil
}

func (s stubPerms) FindByKey(ctx context.Context, tenantID, key string) (*auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.perms {
		if p.TenantID == tenantID && p.Key() == key {
			return p, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s stubPerms) ListByTenant(ctx context.Context, tenantID string) ([]*auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Permission, 0)
	for _, p := range s.perms {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s stubPerms) Update(ctx context.Context, p *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[sk(p.TenantID, p.ID)]; !ok {
		return auth.ErrNotFound
	}
	s.perms[sk(p.TenantID, p.ID)] = p
	return nil
}

func (s stubPerms) Delete(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[sk(tenantID, id)]; !ok {
		return auth.ErrNotFound
	}
	delete(s.perms, sk(tenantID, id))
	return nil
}

type stubAudit struct{ *stubStore }

func (s stubAudit) Append(ctx context.Context, entry *auth.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, entry)
	return nil
}

func (s stubAudit) ListByTenant(ctx context.Context, tenantID string, limit int64) ([]*auth.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.AuditEntry, 0)
	for _, e := range s.audits {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// stubIndex is a map-backed auth.TokenIndex.
type stubIndex struct {
	mu      sync.Mutex
	access  map[string]string
	refresh map[string]string
}

func newStubIndex() *stubIndex {
	return &stubIndex{access: make(map[string]string), refresh: make(map[string]string)}
}

func (s *stubIndex) PutPair(ctx context.Context, tenantID, userID, access string, _ time.Duration, refresh string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access[sk(tenantID, userID)] = access
	s.refresh[sk(tenantID, userID)] = refresh
	return nil
}

func (s *stubIndex) Access(ctx context.Context, tenantID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.access[sk(tenantID, userID)]
	if !ok {
		return "", auth.ErrNotFound
	}
	return v, nil
}

func (s *stubIndex) Refresh(ctx context.Context, tenantID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.refresh[sk(tenantID, userID)]
	if !ok {
		return "", auth.ErrNotFound
	}
	return v, nil
}

func (s *stubIndex) DeletePair(ctx context.Context, tenantID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, sk(tenantID, userID))
	delete(s.refresh, sk(tenantID, userID))
	return nil
}

func (s *stubIndex) CompareAndDelete(ctx context.Context, tenantID, userID, access string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.access[sk(tenantID, userID)] != access {
		return false, nil
	}
	delete(s.access, sk(tenantID, userID))
	delete(s.refresh, sk(tenantID, userID))
	return true, nil
}

func (s *stubIndex) ReplacePair(ctx context.Context, tenantID, userID, oldRefresh, access string, _ time.Duration, refresh string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresh[sk(tenantID, userID)] != oldRefresh {
		return false, nil
	}
	s.access[sk(tenantID, userID)] = access
	s.refresh[sk(tenantID, userID)] = refresh
	return true, nil
}

func (s *stubIndex) FindRefreshOwner(ctx context.Context, tenantID, refresh string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := tenantID + "/"
	for k, v := range s.refresh {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix && v == refresh {
			return k[len(prefix):], nil
		}
	}
	return "", auth.ErrNotFound
}

func (s *stubIndex) RevokeTenant(ctx context.Context, tenantID string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := tenantID + "/"
	var access, refresh int64
	for k := range s.access {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(s.access, k)
			access++
		}
	}
	for k := range s.refresh {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(s.refresh, k)
			refresh++
		}
	}
	return access, refresh, nil
}

var (
	_ auth.Store      = (*stubStore)(nil)
	_ auth.TokenIndex = (*stubIndex)(nil)
)

// testAPI builds an API over in-memory backends with a seeded tenant,
// admin and regular user.
func testAPI(t *testing.T) (*API, *stubStore, http.Handler) {
	t.Helper()
	store := newStubStore()
	index := newStubIndex()

	tokens, err := auth.NewService(store, index, []byte("handler-test-secret"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	rbac, err := auth.NewRBACService(store)
	if err != nil {
		t.Fatalf("NewRBACService: %v", err)
	}

	store.tenants["sys"] = &auth.Tenant{ID: "sys", Name: "system", Status: auth.TenantStatusActive, System: true}
	store.tenants["t1"] = &auth.Tenant{ID: "t1", Name: "acme", Status: auth.TenantStatusActive}
	store.roles[sk("sys", "sys-admin")] = &auth.Role{ID: "sys-admin", TenantID: "sys", Name: auth.RoleSystemAdmin, Status: auth.RoleStatusActive, Type: auth.RoleTypeSystem}
	store.perms[sk("t1", "p1")] = &auth.Permission{ID: "p1", TenantID: "t1", Resource: "invoice", Action: "read", Status: auth.PermissionStatusActive}
	store.roles[sk("t1", "r1")] = &auth.Role{ID: "r1", TenantID: "t1", Name: "viewer", Permissions: []string{"p1"}, Status: auth.RoleStatusActive, Type: auth.RoleTypeCustom}
	store.roles[sk("t1", "t1-admin")] = &auth.Role{ID: "t1-admin", TenantID: "t1", Name: auth.RoleTenantAdmin, Status: auth.RoleStatusActive, Type: auth.RoleTypeSystem}

	seedStubUser(t, store, "sys", "admin-1", "root", "rootpw", []string{"sys-admin"})
	seedStubUser(t, store, "t1", "user-1", "alice", "alicepw", []string{"r1"})

	api := New(tokens, rbac, ReadyProbe{}, "test")
	return api, store, api.Handler()
}

func seedStubUser(t *testing.T, store *stubStore, tenantID, id, username, password string, roleIDs []string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	assignments := make([]auth.RoleAssignment, 0, len(roleIDs))
	for _, rid := range roleIDs {
		assignments = append(assignments, auth.RoleAssignment{RoleID: rid, TenantID: tenantID, AssignedAt: time.Now().UTC()})
	}
	store.users[sk(tenantID, id)] = &auth.User{
		ID:           id,
		TenantID:     tenantID,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Roles:        assignments,
		Status:       auth.UserStatusActive,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, tenantID, username, password string) tokenPairResponse {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/v1/auth/login", "", loginRequest{
		TenantID: tenantID,
		Username: username,
		Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	var pair tokenPairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	return pair
}
