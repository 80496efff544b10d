package loader

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ReflectionClient fetches descriptors from a gRPC server with the reflection service enabled, so
// a schema can be taken from a running proxy instead of from sources.
type ReflectionClient struct {
	target string
	useTLS bool
	dial   []grpc.DialOption
}

// NewReflectionClient parses target, either a URL or a dns:host:port string.
func NewReflectionClient(target string, opts ...grpc.DialOption) (*ReflectionClient, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target URL: %w", err)
	}
	host := target
	if parsed.Scheme == "http" || parsed.Scheme == "https" || parsed.Scheme == "grpc" || parsed.Scheme == "grpcs" {
		host = parsed.Host
	}
	return &ReflectionClient{target: host, useTLS: ShouldUseTLS(parsed), dial: opts}, nil
}

// ShouldUseTLS reports whether target asks for TLS: an https or grpcs scheme, or port 443.
func ShouldUseTLS(target *url.URL) bool {
	scheme := strings.ToLower(target.Scheme)
	if scheme == "https" || scheme == "grpcs" {
		return true
	}
	if target.Port() == "443" {
		return true
	}
	// dns:host:443 parses with the port in Opaque
	return target.Opaque != "" && strings.HasSuffix(target.Opaque, ":443")
}

// Discover returns every file the server's services are declared in, with their imports, ordered
// so that dependencies come first.
func (c *ReflectionClient) Discover(ctx context.Context) (*descriptorpb.FileDescriptorSet, error) {
	var creds credentials.TransportCredentials
	if c.useTLS {
		creds = credentials.NewTLS(&tls.Config{})
	} else {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, c.dial...)

	conn, err := grpc.NewClient(c.target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client: %w", err)
	}
	defer conn.Close()

	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create reflection stream: %w", err)
	}
	defer stream.CloseSend()

	resp, err := roundTrip(stream, &reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{},
	})
	if err != nil {
		return nil, err
	}
	list := resp.GetListServicesResponse()
	if list == nil {
		return nil, fmt.Errorf("unexpected response type")
	}

	collected := make(map[string]*descriptorpb.FileDescriptorProto)
	var order []string
	for _, svc := range list.GetService() {
		if strings.HasPrefix(svc.GetName(), "grpc.reflection.") {
			continue
		}
		req := &reflectionpb.ServerReflectionRequest{
			MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: svc.GetName()},
		}
		if err := c.collect(stream, req, collected, &order); err != nil {
			return nil, fmt.Errorf("failed to get file descriptors for %s: %w", svc.GetName(), err)
		}
	}

	files := make([]*descriptorpb.FileDescriptorProto, 0, len(order))
	for _, name := range order {
		files = append(files, collected[name])
	}
	sorted, err := Sort(files)
	if err != nil {
		return nil, err
	}
	return &descriptorpb.FileDescriptorSet{File: sorted}, nil
}

func (c *ReflectionClient) collect(
	stream reflectionpb.ServerReflection_ServerReflectionInfoClient,
	req *reflectionpb.ServerReflectionRequest,
	collected map[string]*descriptorpb.FileDescriptorProto,
	order *[]string,
) error {
	resp, err := roundTrip(stream, req)
	if err != nil {
		return err
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return fmt.Errorf("unexpected response type")
	}

	for _, raw := range fdResp.GetFileDescriptorProto() {
		fd := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(raw, fd); err != nil {
			return fmt.Errorf("failed to unmarshal file descriptor: %w", err)
		}
		if _, ok := collected[fd.GetName()]; ok {
			continue
		}
		collected[fd.GetName()] = fd
		*order = append(*order, fd.GetName())

		for _, dep := range fd.GetDependency() {
			if _, ok := collected[dep]; ok {
				continue
			}
			byName := &reflectionpb.ServerReflectionRequest{
				MessageRequest: &reflectionpb.ServerReflectionRequest_FileByFilename{FileByFilename: dep},
			}
			if err := c.collect(stream, byName, collected, order); err != nil {
				return fmt.Errorf("failed to fetch %s imported by %s: %w", dep, fd.GetName(), err)
			}
		}
	}
	return nil
}

func roundTrip(stream reflectionpb.ServerReflection_ServerReflectionInfoClient, req *reflectionpb.ServerReflectionRequest) (*reflectionpb.ServerReflectionResponse, error) {
	if err := stream.Send(req); err != nil {
		return nil, fmt.Errorf("failed to send reflection request: %w", err)
	}
	resp, err := stream.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive reflection response: %w", err)
	}
	if e := resp.GetErrorResponse(); e != nil {
		slog.Debug("Reflection error", "code", e.GetErrorCode(), "message", e.GetErrorMessage())
		return nil, fmt.Errorf("reflection error: %s", e.GetErrorMessage())
	}
	return resp, nil
}
