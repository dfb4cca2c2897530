package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"

	"github.com/waddlebot/core/pkg/authn"
	"github.com/waddlebot/core/pkg/reputation"
)

const serviceName = "waddlebot.reputation.v1.ReputationService"

// ServiceDesc is the grpc.ServiceDesc protoc-gen-go-grpc would otherwise
// generate from a reputation.proto file.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReputationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RecordEvent", Handler: recordEventHandler},
		{MethodName: "GetScore", Handler: getScoreHandler},
	},
	Metadata: "reputation.proto",
}

// ReputationServer is the interface grpc-go dispatches incoming calls to.
type ReputationServer interface {
	RecordEvent(ctx context.Context, req *RecordEventRequest) (*RecordEventResponse, error)
	GetScore(ctx context.Context, req *GetScoreRequest) (*GetScoreResponse, error)
}

func recordEventHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecordEventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReputationServer).RecordEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RecordEvent"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReputationServer).RecordEvent(ctx, req.(*RecordEventRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getScoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetScoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReputationServer).GetScore(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetScore"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReputationServer).GetScore(ctx, req.(*GetScoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements ReputationServer against a reputation.Engine, verifying
// the JWT service token on every call per spec.md §6.
type Server struct {
	engine   *reputation.Engine
	verifier *authn.TokenVerifier
}

// NewServer builds a Server. RegisterService attaches it to a *grpc.Server.
func NewServer(engine *reputation.Engine, verifier *authn.TokenVerifier) *Server {
	return &Server{engine: engine, verifier: verifier}
}

// RegisterService registers the reputation service on srv.
func RegisterService(srv *grpc.Server, impl *Server) {
	srv.RegisterService(&ServiceDesc, impl)
}

func (s *Server) RecordEvent(ctx context.Context, req *RecordEventRequest) (*RecordEventResponse, error) {
	if _, err := s.verifier.Verify(req.Token); err != nil {
		return &RecordEventResponse{Success: false, Error: "authentication failed: " + err.Error()}, nil
	}

	outcome, err := s.engine.RecordEvent(ctx, req.CommunityID, req.UserID, req.EntityID, req.EventID, req.EventType, req.Metadata)
	if err != nil {
		if errors.Is(err, reputation.ErrDuplicateEvent) {
			return &RecordEventResponse{Success: true, Message: "event already processed"}, nil
		}
		return &RecordEventResponse{Success: false, Error: err.Error()}, nil
	}

	return &RecordEventResponse{
		Success:      true,
		Message:      "event processed",
		NewScore:     outcome.Score,
		Tier:         string(outcome.Tier),
		DeltaApplied: outcome.DeltaApplied,
	}, nil
}

func (s *Server) GetScore(ctx context.Context, req *GetScoreRequest) (*GetScoreResponse, error) {
	if _, err := s.verifier.Verify(req.Token); err != nil {
		return &GetScoreResponse{Success: false, Error: "authentication failed: " + err.Error()}, nil
	}

	outcome, err := s.engine.GetScore(ctx, req.CommunityID, req.UserID)
	if err != nil {
		return &GetScoreResponse{Success: false, Error: err.Error()}, nil
	}

	return &GetScoreResponse{Success: true, Score: outcome.Score, Label: string(outcome.Tier)}, nil
}
