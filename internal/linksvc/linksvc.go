// Package linksvc exposes the verifying linker (internal/linker) as a gRPC
// service, so a remote build farm can submit a batch of packed modules
// (internal/portable) and get back the resulting diagnostics without the
// submitting machine needing a host type system of its own -- it ships a
// Host Type Insight snapshot (internal/hosttype) alongside the modules.
//
// The service schema is parsed at init with protoparse from an embedded
// .proto string (matching internal/hosttype's snapshot schema) and the RPC
// is wired up by hand-building a *grpc.ServiceDesc and dynamic.Message
// request/response types, rather than checking in generated .pb.go stubs --
// this keeps the wire schema colocated with the code that produces and
// consumes it instead of a separate codegen step.
package linksvc

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"

	"github.com/kestrelengine/scriptcore/internal/diag"
	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/linker"
	"github.com/kestrelengine/scriptcore/internal/portable"
	"github.com/kestrelengine/scriptcore/internal/registry"
)

const linkServiceProto = `
syntax = "proto3";
package linksvc;

message Module {
  bytes packed = 1;
  string path = 2;
}

message LinkRequest {
  repeated Module modules = 1;
  bytes host_snapshot = 2;
}

message Diagnostic {
  string kind = 1;
  string severity = 2;
  string message = 3;
  string file = 4;
  int32 line = 5;
  string also_file = 6;
  int32 also_line = 7;
}

message LinkResponse {
  bool ok = 1;
  repeated Diagnostic diagnostics = 2;
}

service LinkService {
  rpc Link(LinkRequest) returns (LinkResponse);
}
`

var (
	fileDescriptor  = mustParse()
	serviceDesc     = fileDescriptor.FindService("linksvc.LinkService")
	linkRequestDesc = fileDescriptor.FindMessage("linksvc.LinkRequest")
)

func mustParse() *desc.FileDescriptor {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{"linksvc.proto": linkServiceProto}),
	}
	fds, err := parser.ParseFiles("linksvc.proto")
	if err != nil {
		panic(fmt.Sprintf("linksvc: embedded schema failed to parse: %v", err))
	}
	return fds[0]
}

// Server implements the Link RPC against a fresh linker.Linker and
// registry.Registry per call, so concurrent submissions never share state
// (spec §5: the registry requires exclusive access during load).
type Server struct{}

// Register attaches the hand-built ServiceDesc to s via the standard
// RegisterService call, just as any statically generated service would.
func Register(s *grpc.Server) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "linksvc.LinkService",
		HandlerType: (*Server)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Link",
				Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
					req := dynamic.NewMessage(linkRequestDesc)
					if err := dec(req); err != nil {
						return nil, err
					}
					return srv.(*Server).handleLink(ctx, req)
				},
			},
		},
		Metadata: "linksvc.proto",
	}, &Server{})
}

func (s *Server) handleLink(_ context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	var insight hosttype.Insight = hosttype.NewReflectInsight()
	if snap, ok := req.GetFieldByName("host_snapshot").([]byte); ok && len(snap) > 0 {
		decoded, err := hosttype.DecodeSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("linksvc: decode host snapshot: %w", err)
		}
		insight = decoded
	}

	var modules []*portable.Data
	for _, raw := range req.GetFieldByName("modules").([]interface{}) {
		m := raw.(*dynamic.Message)
		packed, _ := m.GetFieldByName("packed").([]byte)
		path, _ := m.GetFieldByName("path").(string)
		data, err := portable.Load(packed, path)
		if err != nil {
			return nil, fmt.Errorf("linksvc: load module %s: %w", path, err)
		}
		modules = append(modules, data)
	}

	reg := registry.New()
	l := linker.New(insight, reg)
	bag, loadErr := l.Load(modules)

	resp := dynamic.NewMessage(fileDescriptor.FindMessage("linksvc.LinkResponse"))
	resp.SetFieldByName("ok", loadErr == nil)
	if bag != nil {
		for _, d := range bag.Sorted() {
			resp.AddRepeatedFieldByName("diagnostics", diagnosticToDynamic(d))
		}
	}
	return resp, nil
}

func diagnosticToDynamic(d diag.Diagnostic) *dynamic.Message {
	msg := dynamic.NewMessage(fileDescriptor.FindMessage("linksvc.Diagnostic"))
	msg.SetFieldByName("kind", d.Kind.String())
	sev := "error"
	if d.Severity == diag.SeverityWarning {
		sev = "warning"
	}
	msg.SetFieldByName("severity", sev)
	msg.SetFieldByName("message", d.Message)
	msg.SetFieldByName("file", d.At.File)
	msg.SetFieldByName("line", int32(d.At.Line))
	if d.Also != nil {
		msg.SetFieldByName("also_file", d.Also.File)
		msg.SetFieldByName("also_line", int32(d.Also.Line))
	}
	return msg
}

// ServiceDescriptor exposes the parsed service descriptor for client-side
// dynamic stub construction (e.g. a build-farm submission CLI).
func ServiceDescriptor() *desc.ServiceDescriptor { return serviceDesc }
