package grpcapi

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/TamirHazut/ERP/internal/auth"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "erp.auth.v1.AuthService"

// Server exposes the token lifecycle over gRPC. Authenticated RPCs
// read the access token from the "authorization" metadata key, the
// same bearer scheme the HTTP API uses.
type Server struct {
	tokens *auth.Service
}

func NewServer(tokens *auth.Service) *Server {
	return &Server{tokens: tokens}
}

// Register attaches the auth service to a grpc.Server.
func Register(s *grpc.Server, srv *Server) {
	s.RegisterService(&authServiceDesc, srv)
}

func (s *Server) Login(ctx context.Context, req *LoginRequest) (*TokenPairResponse, error) {
	pair, err := s.tokens.Login(ctx, req.TenantID, req.identifier(), req.Password)
	if err != nil {
		return nil, statusFromError(err)
	}
	return pairResponse(pair), nil
}

func (s *Server) Logout(ctx context.Context, _ *LogoutRequest) (*LogoutResponse, error) {
	claims, err := s.callerClaims(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Logout(ctx, claims.TenantID, claims.Subject); err != nil {
		return nil, statusFromError(err)
	}
	return &LogoutResponse{Message: "logout successful"}, nil
}

func (s *Server) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error) {
	pair, err := s.tokens.Refresh(ctx, req.TenantID, req.UserID, req.RefreshToken)
	if err != nil {
		return nil, statusFromError(err)
	}
	return pairResponse(pair), nil
}

func (s *Server) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	claims, err := s.tokens.Verify(ctx, req.AccessToken)
	if err != nil {
		return nil, statusFromError(err)
	}
	// A token from another tenant is invalid here.
	if req.TenantID != "" && req.TenantID != claims.TenantID {
		return nil, statusFromError(auth.ErrInvalidToken)
	}
	sys, err := s.tokens.IsSystemTenantUser(ctx, claims)
	if err != nil {
		return nil, statusFromError(err)
	}
	resp := &VerifyResponse{
		TenantID:       claims.TenantID,
		UserID:         claims.Subject,
		Username:       claims.Username,
		Email:          claims.Email,
		Roles:          claims.Roles,
		Permissions:    claims.Permissions,
		IsSystemTenant: sys,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	return resp, nil
}

func (s *Server) Revoke(ctx context.Context, req *RevokeRequest) (*RevokeResponse, error) {
	claims, err := s.callerClaims(ctx)
	if err != nil {
		return nil, err
	}
	self := req.TenantID == claims.TenantID && req.UserID == claims.Subject
	if !self {
		if err := s.tokens.Authorize(ctx, claims, auth.PermTokenRevoke, req.TenantID); err != nil {
			return nil, statusFromError(err)
		}
	}
	if err := s.tokens.Revoke(ctx, req.TenantID, req.UserID, req.AccessToken); err != nil {
		return nil, statusFromError(err)
	}
	return &RevokeResponse{Revoked: true}, nil
}

func (s *Server) RevokeTenant(ctx context.Context, req *RevokeTenantRequest) (*RevokeTenantResponse, error) {
	claims, err := s.callerClaims(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Authorize(ctx, claims, auth.PermTokenRevoke, req.TenantID); err != nil {
		return nil, statusFromError(err)
	}
	access, refresh, err := s.tokens.RevokeTenant(ctx, req.TenantID)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &RevokeTenantResponse{AccessTokensRevoked: access, RefreshTokensRevoked: refresh}, nil
}

// CheckPermissions reports which of the requested permissions a user
// holds. Callers may ask about themselves; asking about someone else
// needs user:manage on the target tenant.
func (s *Server) CheckPermissions(ctx context.Context, req *CheckPermissionsRequest) (*CheckPermissionsResponse, error) {
	claims, err := s.callerClaims(ctx)
	if err != nil {
		return nil, err
	}
	self := req.TenantID == claims.TenantID && req.UserID == claims.Subject
	if !self {
		if err := s.tokens.Authorize(ctx, claims, auth.PermUserManage, req.TenantID); err != nil {
			return nil, statusFromError(err)
		}
	}
	results, err := s.tokens.CheckPermissions(ctx, req.TenantID, req.UserID, req.Permissions)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &CheckPermissionsResponse{Results: results}, nil
}

// HasPermission answers a single permission question, optionally
// against another tenant. Cross-tenant checks only succeed for system
// tenant users. Same caller rules as CheckPermissions.
func (s *Server) HasPermission(ctx context.Context, req *HasPermissionRequest) (*HasPermissionResponse, error) {
	claims, err := s.callerClaims(ctx)
	if err != nil {
		return nil, err
	}
	self := req.TenantID == claims.TenantID && req.UserID == claims.Subject
	if !self {
		if err := s.tokens.Authorize(ctx, claims, auth.PermUserManage, req.TenantID); err != nil {
			return nil, statusFromError(err)
		}
	}
	allowed, err := s.tokens.HasPermission(ctx, req.TenantID, req.UserID, req.Permission, req.TargetTenantID)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &HasPermissionResponse{Allowed: allowed}, nil
}

// callerClaims verifies the bearer token from incoming metadata.
func (s *Server) callerClaims(ctx context.Context) (*auth.Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	raw := strings.TrimSpace(values[0])
	if !strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return nil, status.Error(codes.Unauthenticated, "invalid authorization scheme")
	}
	token := strings.TrimSpace(raw[len("bearer "):])
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return nil, statusFromError(err)
	}
	return claims, nil
}

func pairResponse(pair *auth.TokenPair) *TokenPairResponse {
	return &TokenPairResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	}
}

func statusFromError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, auth.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, auth.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func unaryHandler[Req any, Resp any](method string, call func(*Server, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(*Server), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(*Server), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler("Login", (*Server).Login)},
		{MethodName: "Logout", Handler: unaryHandler("Logout", (*Server).Logout)},
		{MethodName: "Refresh", Handler: unaryHandler("Refresh", (*Server).Refresh)},
		{MethodName: "Verify", Handler: unaryHandler("Verify", (*Server).Verify)},
		{MethodName: "Revoke", Handler: unaryHandler("Revoke", (*Server).Revoke)},
		{MethodName: "RevokeTenant", Handler: unaryHandler("RevokeTenant", (*Server).RevokeTenant)},
		{MethodName: "CheckPermissions", Handler: unaryHandler("CheckPermissions", (*Server).CheckPermissions)},
		{MethodName: "HasPermission", Handler: unaryHandler("HasPermission", (*Server).HasPermission)},
	},
	Streams: []grpc.StreamDesc{},
}
