package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Client is a thin typed wrapper over the auth gRPC service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client with sensible defaults (insecure transport).
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client { return &Client{conn: conn} }

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// WithToken attaches a bearer token for authenticated RPCs.
func WithToken(ctx context.Context, accessToken string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+accessToken)
}

func (c *Client) Login(ctx context.Context, req *LoginRequest) (*TokenPairResponse, error) {
	return invoke[TokenPairResponse](ctx, c, "Login", req)
}

func (c *Client) Logout(ctx context.Context) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c, "Logout", &LogoutRequest{})
}

func (c *Client) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error) {
	return invoke[TokenPairResponse](ctx, c, "Refresh", req)
}

func (c *Client) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	return invoke[VerifyResponse](ctx, c, "Verify", req)
}

func (c *Client) Revoke(ctx context.Context, req *RevokeRequest) (*RevokeResponse, error) {
	return invoke[RevokeResponse](ctx, c, "Revoke", req)
}

func (c *Client) RevokeTenant(ctx context.Context, req *RevokeTenantRequest) (*RevokeTenantResponse, error) {
	return invoke[RevokeTenantResponse](ctx, c, "RevokeTenant", req)
}

func (c *Client) CheckPermissions(ctx context.Context, req *CheckPermissionsRequest) (*CheckPermissionsResponse, error) {
	return invoke[CheckPermissionsResponse](ctx, c, "CheckPermissions", req)
}

func (c *Client) HasPermission(ctx context.Context, req *HasPermissionRequest) (*HasPermissionResponse, error) {
	return invoke[HasPermissionResponse](ctx, c, "HasPermission", req)
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
