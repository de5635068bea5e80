package linksvc

import (
	"context"
	"testing"

	"github.com/jhump/protoreflect/dynamic"

	"github.com/kestrelengine/scriptcore/internal/diag"
)

func newRequest(t *testing.T, modules [][]byte) *dynamic.Message {
	t.Helper()
	req := dynamic.NewMessage(linkRequestDesc)
	for _, packed := range modules {
		m := dynamic.NewMessage(fileDescriptor.FindMessage("linksvc.Module"))
		m.SetFieldByName("packed", packed)
		m.SetFieldByName("path", "m.smod")
		req.AddRepeatedFieldByName("modules", m)
	}
	return req
}

func TestHandleLinkEmptyRequestSucceeds(t *testing.T) {
	s := &Server{}
	resp, err := s.handleLink(context.Background(), newRequest(t, nil))
	if err != nil {
		t.Fatalf("handleLink: %v", err)
	}
	ok, _ := resp.GetFieldByName("ok").(bool)
	if !ok {
		t.Fatalf("expected ok=true for an empty module list")
	}
}

func TestHandleLinkRejectsCorruptModule(t *testing.T) {
	s := &Server{}
	_, err := s.handleLink(context.Background(), newRequest(t, [][]byte{{0x01, 0x02, 0x03}}))
	if err == nil {
		t.Fatalf("expected an error loading a corrupt packed module")
	}
}

func TestDiagnosticToDynamicRoundTrip(t *testing.T) {
	d := diag.Diagnostic{
		Kind:     diag.KindLink,
		Severity: diag.SeverityWarning,
		Message:  "duplicate export",
		At:       diag.Location{File: "a.script", Line: 10},
		Also:     &diag.Location{File: "b.script", Line: 20},
	}
	msg := diagnosticToDynamic(d)
	if got, _ := msg.GetFieldByName("message").(string); got != "duplicate export" {
		t.Fatalf("message = %q", got)
	}
	if got, _ := msg.GetFieldByName("severity").(string); got != "warning" {
		t.Fatalf("severity = %q", got)
	}
	if got, _ := msg.GetFieldByName("also_file").(string); got != "b.script" {
		t.Fatalf("also_file = %q", got)
	}
}

func TestServiceDescriptorFindsLinkMethod(t *testing.T) {
	sd := ServiceDescriptor()
	if sd == nil {
		t.Fatalf("ServiceDescriptor() returned nil")
	}
	if m := sd.FindMethodByName("Link"); m == nil {
		t.Fatalf("expected a Link method on the service descriptor")
	}
}
