package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "arkeep.wire.AgentService"

// AgentServiceClient is the client side of the agent<->server contract.
type AgentServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	StreamJobs(ctx context.Context, in *StreamJobsRequest, opts ...grpc.CallOption) (AgentService_StreamJobsClient, error)
	ReportJobStatus(ctx context.Context, in *JobStatusReport, opts ...grpc.CallOption) (*JobStatusAck, error)
	StreamLogs(ctx context.Context, opts ...grpc.CallOption) (AgentService_StreamLogsClient, error)
}

type agentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentServiceClient builds a client bound to an established connection.
func NewAgentServiceClient(cc grpc.ClientConnInterface) AgentServiceClient {
	return &agentServiceClient{cc: cc}
}

func (c *agentServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Register", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Heartbeat", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) ReportJobStatus(ctx context.Context, in *JobStatusReport, opts ...grpc.CallOption) (*JobStatusAck, error) {
	out := new(JobStatusAck)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ReportJobStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) StreamJobs(ctx context.Context, in *StreamJobsRequest, opts ...grpc.CallOption) (AgentService_StreamJobsClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+serviceName+"/StreamJobs", opts...)
	if err != nil {
		return nil, err
	}
	x := &agentServiceStreamJobsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// AgentService_StreamJobsClient receives the server-streamed job assignments.
type AgentService_StreamJobsClient interface {
	Recv() (*JobAssignment, error)
	grpc.ClientStream
}

type agentServiceStreamJobsClient struct {
	grpc.ClientStream
}

func (x *agentServiceStreamJobsClient) Recv() (*JobAssignment, error) {
	m := new(JobAssignment)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *agentServiceClient) StreamLogs(ctx context.Context, opts ...grpc.CallOption) (AgentService_StreamLogsClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[1], "/"+serviceName+"/StreamLogs", opts...)
	if err != nil {
		return nil, err
	}
	return &agentServiceStreamLogsClient{stream}, nil
}

// AgentService_StreamLogsClient sends a client-streamed sequence of log lines.
type AgentService_StreamLogsClient interface {
	Send(*LogEntry) error
	CloseAndRecv() (*StreamLogsAck, error)
	grpc.ClientStream
}

type agentServiceStreamLogsClient struct {
	grpc.ClientStream
}

func (x *agentServiceStreamLogsClient) Send(m *LogEntry) error {
	return x.ClientStream.SendMsg(m)
}

func (x *agentServiceStreamLogsClient) CloseAndRecv() (*StreamLogsAck, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(StreamLogsAck)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// AgentServiceServer is the server side of the agent<->server contract.
type AgentServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	StreamJobs(*StreamJobsRequest, AgentService_StreamJobsServer) error
	ReportJobStatus(context.Context, *JobStatusReport) (*JobStatusAck, error)
	StreamLogs(AgentService_StreamLogsServer) error
}

// UnimplementedAgentServiceServer embeds into a concrete
// implementation to satisfy the interface for methods it doesn't
// override, matching the forward-compatibility pattern
// protoc-gen-go-grpc emits.
type UnimplementedAgentServiceServer struct{}

func (UnimplementedAgentServiceServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedAgentServiceServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedAgentServiceServer) StreamJobs(*StreamJobsRequest, AgentService_StreamJobsServer) error {
	return status.Error(codes.Unimplemented, "method StreamJobs not implemented")
}
func (UnimplementedAgentServiceServer) ReportJobStatus(context.Context, *JobStatusReport) (*JobStatusAck, error) {
	return nil, status.Error(codes.Unimplemented, "method ReportJobStatus not implemented")
}
func (UnimplementedAgentServiceServer) StreamLogs(AgentService_StreamLogsServer) error {
	return status.Error(codes.Unimplemented, "method StreamLogs not implemented")
}

// AgentService_StreamJobsServer sends the server-streamed job assignments.
type AgentService_StreamJobsServer interface {
	Send(*JobAssignment) error
	grpc.ServerStream
}

type agentServiceStreamJobsServer struct {
	grpc.ServerStream
}

func (x *agentServiceStreamJobsServer) Send(m *JobAssignment) error {
	return x.ServerStream.SendMsg(m)
}

// AgentService_StreamLogsServer receives the client-streamed log lines.
type AgentService_StreamLogsServer interface {
	Recv() (*LogEntry, error)
	SendAndClose(*StreamLogsAck) error
	grpc.ServerStream
}

type agentServiceStreamLogsServer struct {
	grpc.ServerStream
}

func (x *agentServiceStreamLogsServer) Recv() (*LogEntry, error) {
	m := new(LogEntry)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *agentServiceStreamLogsServer) SendAndClose(m *StreamLogsAck) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterAgentServiceServer wires srv into grpc server s.
func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Register"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func heartbeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Heartbeat"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reportJobStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(JobStatusReport)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).ReportJobStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ReportJobStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).ReportJobStatus(ctx, req.(*JobStatusReport))
	}
	return interceptor(ctx, in, info, handler)
}

func streamJobsHandler(srv any, stream grpc.ServerStream) error {
	m := new(StreamJobsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(AgentServiceServer).StreamJobs(m, &agentServiceStreamJobsServer{stream})
}

func streamLogsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(AgentServiceServer).StreamLogs(&agentServiceStreamLogsServer{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "Heartbeat", Handler: heartbeatHandler},
		{MethodName: "ReportJobStatus", Handler: reportJobStatusHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamJobs", Handler: streamJobsHandler, ServerStreams: true},
		{StreamName: "StreamLogs", Handler: streamLogsHandler, ClientStreams: true},
	},
	Metadata: "arkeep.proto",
}
