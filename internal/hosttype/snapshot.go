package hosttype

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
)

// snapshotProto describes the wire format of a captured host type universe.
// It is parsed once at process init with protoparse and built into
// dynamic.Message values rather than compiled to generated .pb.go code, so
// cmd/hosttypegen and this package never drift out of sync with a
// checked-in codegen step.
const snapshotProto = `
syntax = "proto3";
package hosttype;

message Member {
  string name = 1;
  string type_name = 2;
  uint32 offset = 3;
}

message EnumOption {
  string name = 1;
  int64 value = 2;
}

message Traits {
  bool requires_constructor = 1;
  bool requires_destructor = 2;
  bool simple_copy_compare = 3;
  bool zero_init_constructor = 4;
}

message TypeInfo {
  string name = 1;
  uint32 meta = 2;
  uint32 size = 3;
  uint32 align = 4;
  string inner_type_name = 5;
  uint32 array_size = 6;
  string base_class_name = 7;
  Traits traits = 8;
  repeated Member members = 9;
  repeated EnumOption enum_options = 10;
}

message Snapshot {
  repeated TypeInfo types = 1;
}
`

var snapshotFileDescriptor = mustParseSnapshotProto()

func mustParseSnapshotProto() *desc.FileDescriptor {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{"hosttype.proto": snapshotProto}),
	}
	fds, err := parser.ParseFiles("hosttype.proto")
	if err != nil {
		panic(fmt.Sprintf("hosttype: embedded snapshot schema failed to parse: %v", err))
	}
	return fds[0]
}

func snapshotMessageDescriptor(name string) *desc.MessageDescriptor {
	md := snapshotFileDescriptor.FindMessage("hosttype." + name)
	if md == nil {
		panic("hosttype: missing message " + name + " in embedded schema")
	}
	return md
}

// EncodeSnapshot serializes infos to the wire format cmd/hosttypegen writes
// and SnapshotInsight reads.
func EncodeSnapshot(infos []*TypeInfo) ([]byte, error) {
	snap := dynamic.NewMessage(snapshotMessageDescriptor("Snapshot"))
	for _, info := range infos {
		snap.AddRepeatedField(snap.FindFieldDescriptorByName("types"), typeInfoToDynamic(info))
	}
	return snap.Marshal()
}

func typeInfoToDynamic(info *TypeInfo) *dynamic.Message {
	msg := dynamic.NewMessage(snapshotMessageDescriptor("TypeInfo"))
	msg.SetFieldByName("name", info.Name)
	msg.SetFieldByName("meta", uint32(info.Meta))
	msg.SetFieldByName("size", info.Size)
	msg.SetFieldByName("align", info.Align)
	msg.SetFieldByName("inner_type_name", info.InnerTypeName)
	msg.SetFieldByName("array_size", info.ArraySize)
	msg.SetFieldByName("base_class_name", info.BaseClassName)

	traits := dynamic.NewMessage(snapshotMessageDescriptor("Traits"))
	traits.SetFieldByName("requires_constructor", info.Traits.RequiresConstructor)
	traits.SetFieldByName("requires_destructor", info.Traits.RequiresDestructor)
	traits.SetFieldByName("simple_copy_compare", info.Traits.SimpleCopyCompare)
	traits.SetFieldByName("zero_init_constructor", info.Traits.ZeroInitConstructor)
	msg.SetFieldByName("traits", traits)

	for _, m := range info.Members {
		member := dynamic.NewMessage(snapshotMessageDescriptor("Member"))
		member.SetFieldByName("name", m.Name)
		member.SetFieldByName("type_name", m.TypeName)
		member.SetFieldByName("offset", m.Offset)
		msg.AddRepeatedFieldByName("members", member)
	}
	for _, o := range info.EnumOptions {
		opt := dynamic.NewMessage(snapshotMessageDescriptor("EnumOption"))
		opt.SetFieldByName("name", o.Name)
		opt.SetFieldByName("value", o.Value)
		msg.AddRepeatedFieldByName("enum_options", opt)
	}
	return msg
}

// SnapshotInsight is an Insight backed by a previously captured type
// universe, decoded once at construction. It is used when the host type
// system cannot be reflected in-process -- compiling for a different target
// platform than the one running the linker.
type SnapshotInsight struct {
	types map[string]*TypeInfo
}

// DecodeSnapshot parses a buffer written by EncodeSnapshot (typically
// produced by cmd/hosttypegen) into a ready-to-query SnapshotInsight.
func DecodeSnapshot(data []byte) (*SnapshotInsight, error) {
	snap := dynamic.NewMessage(snapshotMessageDescriptor("Snapshot"))
	if err := snap.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("hosttype: decode snapshot: %w", err)
	}

	types := make(map[string]*TypeInfo)
	for _, raw := range snap.GetField(snap.FindFieldDescriptorByName("types")).([]interface{}) {
		msg, ok := raw.(*dynamic.Message)
		if !ok {
			return nil, fmt.Errorf("hosttype: decode snapshot: malformed TypeInfo entry")
		}
		info := dynamicToTypeInfo(msg)
		types[info.Name] = info
	}
	return &SnapshotInsight{types: types}, nil
}

func dynamicToTypeInfo(msg *dynamic.Message) *TypeInfo {
	info := &TypeInfo{
		Name:          msg.GetFieldByName("name").(string),
		Meta:          MetaKind(msg.GetFieldByName("meta").(uint32)),
		Size:          msg.GetFieldByName("size").(uint32),
		Align:         msg.GetFieldByName("align").(uint32),
		InnerTypeName: msg.GetFieldByName("inner_type_name").(string),
		ArraySize:     msg.GetFieldByName("array_size").(uint32),
		BaseClassName: msg.GetFieldByName("base_class_name").(string),
	}
	if traits, ok := msg.GetFieldByName("traits").(*dynamic.Message); ok && traits != nil {
		info.Traits = Traits{
			RequiresConstructor: traits.GetFieldByName("requires_constructor").(bool),
			RequiresDestructor:  traits.GetFieldByName("requires_destructor").(bool),
			SimpleCopyCompare:   traits.GetFieldByName("simple_copy_compare").(bool),
			ZeroInitConstructor: traits.GetFieldByName("zero_init_constructor").(bool),
		}
	}
	for _, raw := range msg.GetFieldByName("members").([]interface{}) {
		m := raw.(*dynamic.Message)
		info.Members = append(info.Members, Member{
			Name:     m.GetFieldByName("name").(string),
			TypeName: m.GetFieldByName("type_name").(string),
			Offset:   m.GetFieldByName("offset").(uint32),
		})
	}
	for _, raw := range msg.GetFieldByName("enum_options").([]interface{}) {
		o := raw.(*dynamic.Message)
		info.EnumOptions = append(info.EnumOptions, EnumOption{
			Name:  o.GetFieldByName("name").(string),
			Value: o.GetFieldByName("value").(int64),
		})
	}
	return info
}

// Lookup implements Insight.
func (s *SnapshotInsight) Lookup(name string) (*TypeInfo, bool) {
	info, ok := s.types[name]
	return info, ok
}
