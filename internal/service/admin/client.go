package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the admin API over an existing connection.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

// NewClient attaches token as TokenHeader on every call.
func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, TokenHeader, c.token)
}

func (c *Client) BanUser(ctx context.Context, userID uint64, opts ...grpc.CallOption) error {
	return c.cc.Invoke(c.outgoing(ctx), banUserMethod, wrapperspb.UInt64(userID), new(emptypb.Empty), opts...)
}

func (c *Client) UnbanUser(ctx context.Context, userID uint64, opts ...grpc.CallOption) error {
	return c.cc.Invoke(c.outgoing(ctx), unbanUserMethod, wrapperspb.UInt64(userID), new(emptypb.Empty), opts...)
}

func (c *Client) Stats(ctx context.Context, opts ...grpc.CallOption) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(c.outgoing(ctx), statsMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
