package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"livecap/internal/audio"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	transcriberService = "livecap.v1.Transcriber"
	transcribeMethod   = "/" + transcriberService + "/Transcribe"
)

// GRPC calls a remote Transcriber service with WAV-encoded chunks.
type GRPC struct {
	addr    string
	timeout time.Duration
	conn    *grpc.ClientConn
}

// DialGRPC creates a client for addr. The connection is established lazily.
func DialGRPC(addr string, timeout time.Duration) (*GRPC, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", addr, err)
	}
	return &GRPC{addr: addr, timeout: timeout, conn: conn}, nil
}

func (g *GRPC) Name() string { return "grpc" }

func (g *GRPC) Ready() bool { return g.conn != nil }

func (g *GRPC) Close() error { return g.conn.Close() }

func (g *GRPC) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	wav, err := audio.EncodeChunk(chunk)
	if err != nil {
		return "", &BackendError{Backend: g.Name(), Err: err}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	out := &wrapperspb.StringValue{}
	if err := g.conn.Invoke(ctx, transcribeMethod, wrapperspb.Bytes(wav), out); err != nil {
		return "", &BackendError{Backend: g.Name(), Err: err}
	}
	return strings.TrimSpace(out.GetValue()), nil
}

// TranscriberServer is the server side of livecap.v1.Transcriber.
type TranscriberServer interface {
	Transcribe(ctx context.Context, wav *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
}

var transcriberDesc = grpc.ServiceDesc{
	ServiceName: transcriberService,
	HandlerType: (*TranscriberServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transcribe", Handler: transcribeHandler},
	},
	Metadata: "livecap/v1/transcriber.proto",
}

func transcribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranscriberServer).Transcribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transcribeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TranscriberServer).Transcribe(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterServer exposes b on s.
func RegisterServer(s *grpc.Server, b Backend) {
	s.RegisterService(&transcriberDesc, &backendServer{backend: b})
}

type backendServer struct {
	backend Backend
}

func (s *backendServer) Transcribe(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	chunk, err := audio.DecodeWAVBytes(in.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode wav: %v", err)
	}
	text, err := s.backend.Transcribe(ctx, chunk)
	switch {
	case errors.Is(err, ErrNotReady):
		return nil, status.Error(codes.Unavailable, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(text), nil
}
