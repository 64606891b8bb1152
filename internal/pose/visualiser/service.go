package visualiser

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName         = "posetrack.visualiser.SkeletonService"
	streamSkeletonsPath = "/" + serviceName + "/StreamSkeletons"
)

// SkeletonServiceServer is the server side of the skeleton stream.
type SkeletonServiceServer interface {
	StreamSkeletons(req *StreamRequest, stream SkeletonStream) error
}

// SkeletonStream is the server's handle on one client stream.
type SkeletonStream interface {
	Send(*SkeletonFrame) error
	Context() context.Context
}

type skeletonStream struct {
	grpc.ServerStream
}

func (s *skeletonStream) Send(f *SkeletonFrame) error { return s.ServerStream.SendMsg(f) }

func streamSkeletonsHandler(srv any, stream grpc.ServerStream) error {
	req := new(StreamRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SkeletonServiceServer).StreamSkeletons(req, &skeletonStream{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SkeletonServiceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSkeletons",
			Handler:       streamSkeletonsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "posetrack/visualiser.proto",
}

// RegisterSkeletonService registers srv with a gRPC server.
func RegisterSkeletonService(s grpc.ServiceRegistrar, srv SkeletonServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Client opens skeleton streams on a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// SkeletonReceiver reads frames from an open stream.
type SkeletonReceiver struct {
	stream grpc.ClientStream
}

// StreamSkeletons sends req and returns a receiver for the resulting frames.
func (c *Client) StreamSkeletons(ctx context.Context, req *StreamRequest) (*SkeletonReceiver, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], streamSkeletonsPath, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &SkeletonReceiver{stream: stream}, nil
}

// Recv blocks for the next frame.
func (r *SkeletonReceiver) Recv() (*SkeletonFrame, error) {
	f := new(SkeletonFrame)
	if err := r.stream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}
