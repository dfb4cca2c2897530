package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin gRPC client for the reputation service, used by the
// router to emit reputation events and look up scores (spec.md §6).
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a reputation service at addr over plaintext — the
// reputation service is expected to run inside the same cluster/namespace,
// matching the teacher's GRPCLLMClient dial style.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial reputation service at %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) RecordEvent(ctx context.Context, req *RecordEventRequest) (*RecordEventResponse, error) {
	out := new(RecordEventResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/RecordEvent", req, out); err != nil {
		return nil, fmt.Errorf("rpc: RecordEvent: %w", err)
	}
	return out, nil
}

func (c *Client) GetScore(ctx context.Context, req *GetScoreRequest) (*GetScoreResponse, error) {
	out := new(GetScoreResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GetScore", req, out); err != nil {
		return nil, fmt.Errorf("rpc: GetScore: %w", err)
	}
	return out, nil
}
