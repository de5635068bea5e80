package stub

// Sink receives a stub's fields during packing (spec §4.2). The same
// WriteBody implementation runs against a mapping Sink (pass 1: record
// strings/names/refs, emit nothing) and an emitting Sink (pass 2: write
// real bytes) -- only the Sink implementation differs between passes.
type Sink interface {
	Ref(r Ref)
	Name(s string)
	Str(s string)
	U8(v uint8)
	U16(v uint16)
	U32(v uint32)
	U64(v uint64)
	I64(v int64)
	F64(v float64)
	Bool(v bool)
}

// Source supplies a stub's fields during unpacking, mirroring Sink.
type Source interface {
	Ref() (Ref, error)
	Name() (string, error)
	Str() (string, error)
	U8() (uint8, error)
	U16() (uint16, error)
	U32() (uint32, error)
	U64() (uint64, error)
	I64() (int64, error)
	F64() (float64, error)
	Bool() (bool, error)
}

// Codeable is implemented by every concrete stub type: WriteBody/ReadBody
// are invoked by the codec during packing/unpacking (spec §4.2).
type Codeable interface {
	Stub
	WriteBody(w Sink)
	ReadBody(r Source) error
}

func writeBase(w Sink, b *Base) {
	w.Ref(b.Owner)
	w.Ref(b.Loc.File)
	w.U32(uint32(b.Loc.Line))
	w.U32(uint32(b.Flags))
	w.Name(b.Name)
}

func readBase(r Source, b *Base) error {
	var err error
	if b.Owner, err = r.Ref(); err != nil {
		return err
	}
	if b.Loc.File, err = r.Ref(); err != nil {
		return err
	}
	line, err := r.U32()
	if err != nil {
		return err
	}
	b.Loc.Line = int(line)
	flags, err := r.U32()
	if err != nil {
		return err
	}
	b.Flags = Flag(flags)
	if b.Name, err = r.Name(); err != nil {
		return err
	}
	return nil
}

func writeRefSlice(w Sink, refs []Ref) {
	w.U32(uint32(len(refs)))
	for _, r := range refs {
		w.Ref(r)
	}
}

func readRefSlice(r Source) ([]Ref, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]Ref, n)
	for i := range out {
		if out[i], err = r.Ref(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *ModuleStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	writeRefSlice(w, s.Files)
	writeRefSlice(w, s.Imports)
}

func (s *ModuleStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.Files, err = readRefSlice(r); err != nil {
		return err
	}
	s.Imports, err = readRefSlice(r)
	return err
}

func (s *ModuleImportStub) WriteBody(w Sink) { writeBase(w, &s.Base) }
func (s *ModuleImportStub) ReadBody(r Source) error { return readBase(r, &s.Base) }

func (s *FileStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.Str(s.DepotPath)
	w.Str(s.AbsolutePath)
	writeRefSlice(w, s.TopLevel)
}

func (s *FileStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.DepotPath, err = r.Str(); err != nil {
		return err
	}
	if s.AbsolutePath, err = r.Str(); err != nil {
		return err
	}
	s.TopLevel, err = readRefSlice(r)
	return err
}

func (s *TypeNameStub) WriteBody(w Sink)        { writeBase(w, &s.Base) }
func (s *TypeNameStub) ReadBody(r Source) error { return readBase(r, &s.Base) }

func (s *TypeRefStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.Ref(s.Name)
	w.Ref(s.Resolved)
}

func (s *TypeRefStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.Name, err = r.Ref(); err != nil {
		return err
	}
	s.Resolved, err = r.Ref()
	return err
}

func (s *TypeDeclStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.U8(byte(s.Kind))
	w.Ref(s.TypeRef)
	w.Str(s.EngineName)
	w.Ref(s.Inner)
	w.U32(s.ArraySize)
}

func (s *TypeDeclStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	kind, err := r.U8()
	if err != nil {
		return err
	}
	s.Kind = DeclKind(kind)
	if s.TypeRef, err = r.Ref(); err != nil {
		return err
	}
	if s.EngineName, err = r.Str(); err != nil {
		return err
	}
	if s.Inner, err = r.Ref(); err != nil {
		return err
	}
	s.ArraySize, err = r.U32()
	return err
}

func (s *ClassStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.Str(s.ParentName)
	w.Str(s.OuterName)
	w.Str(s.EngineImportName)
	writeRefSlice(w, s.Members)
	writeRefSlice(w, s.Derived)
}

func (s *ClassStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.ParentName, err = r.Str(); err != nil {
		return err
	}
	if s.OuterName, err = r.Str(); err != nil {
		return err
	}
	if s.EngineImportName, err = r.Str(); err != nil {
		return err
	}
	if s.Members, err = readRefSlice(r); err != nil {
		return err
	}
	s.Derived, err = readRefSlice(r)
	return err
}

func (s *ConstantStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.Ref(s.TypeDecl)
	w.Ref(s.Value)
}

func (s *ConstantStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.TypeDecl, err = r.Ref(); err != nil {
		return err
	}
	s.Value, err = r.Ref()
	return err
}

func (s *ConstantValueStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.U8(byte(s.Kind))
	switch s.Kind {
	case ValueInteger:
		w.I64(s.IntVal)
	case ValueUnsigned:
		w.U64(s.UintVal)
	case ValueFloat:
		w.F64(s.FloatVal)
	case ValueBool:
		w.Bool(s.BoolVal)
	case ValueString:
		w.Str(s.StrVal)
	case ValueName:
		w.Name(s.StrVal)
	case ValueCompound:
		w.Ref(s.TypeDecl)
		writeRefSlice(w, s.SubValues)
	}
}

func (s *ConstantValueStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	kind, err := r.U8()
	if err != nil {
		return err
	}
	s.Kind = ValueKind(kind)
	switch s.Kind {
	case ValueInteger:
		s.IntVal, err = r.I64()
	case ValueUnsigned:
		s.UintVal, err = r.U64()
	case ValueFloat:
		s.FloatVal, err = r.F64()
	case ValueBool:
		s.BoolVal, err = r.Bool()
	case ValueString:
		s.StrVal, err = r.Str()
	case ValueName:
		s.StrVal, err = r.Name()
	case ValueCompound:
		if s.TypeDecl, err = r.Ref(); err != nil {
			return err
		}
		s.SubValues, err = readRefSlice(r)
	}
	return err
}

func (s *EnumStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	writeRefSlice(w, s.Options)
	w.Str(s.EngineImportName)
}

func (s *EnumStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.Options, err = readRefSlice(r); err != nil {
		return err
	}
	s.EngineImportName, err = r.Str()
	return err
}

func (s *EnumOptionStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.I64(s.Value)
	w.Bool(s.HasValue)
}

func (s *EnumOptionStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.Value, err = r.I64(); err != nil {
		return err
	}
	s.HasValue, err = r.Bool()
	return err
}

func (s *PropertyStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.Ref(s.TypeDecl)
	w.Ref(s.Default)
}

func (s *PropertyStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.TypeDecl, err = r.Ref(); err != nil {
		return err
	}
	s.Default, err = r.Ref()
	return err
}

func (s *FunctionStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.Ref(s.ReturnType)
	writeRefSlice(w, s.Args)
	w.Str(s.OperatorName)
	w.Str(s.OpcodeAliasName)
	w.I64(int64(s.CastCost))
	w.Ref(s.BaseFunction)
	writeRefSlice(w, s.Opcodes)
	w.U64(s.CodeHash)
}

func (s *FunctionStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.ReturnType, err = r.Ref(); err != nil {
		return err
	}
	if s.Args, err = readRefSlice(r); err != nil {
		return err
	}
	if s.OperatorName, err = r.Str(); err != nil {
		return err
	}
	if s.OpcodeAliasName, err = r.Str(); err != nil {
		return err
	}
	cc, err := r.I64()
	if err != nil {
		return err
	}
	s.CastCost = int(cc)
	if s.BaseFunction, err = r.Ref(); err != nil {
		return err
	}
	if s.Opcodes, err = readRefSlice(r); err != nil {
		return err
	}
	s.CodeHash, err = r.U64()
	return err
}

func (s *FunctionArgStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.Ref(s.TypeDecl)
	w.Ref(s.Default)
	w.U32(uint32(s.Index))
}

func (s *FunctionArgStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	var err error
	if s.TypeDecl, err = r.Ref(); err != nil {
		return err
	}
	if s.Default, err = r.Ref(); err != nil {
		return err
	}
	idx, err := r.U32()
	if err != nil {
		return err
	}
	s.Index = int(idx)
	return nil
}

func (s *OpcodeStub) WriteBody(w Sink) {
	writeBase(w, &s.Base)
	w.U16(uint16(s.Op))
	w.Ref(s.Referenced)
	w.Ref(s.Target)
	w.U8(byte(s.Imm.Kind))
	switch s.Imm.Kind {
	case ImmDouble:
		w.F64(s.Imm.F)
	case ImmUint64:
		w.U64(s.Imm.U)
	case ImmName:
		w.Name(s.Imm.S)
	case ImmString:
		w.Str(s.Imm.S)
	}
}

func (s *OpcodeStub) ReadBody(r Source) error {
	if err := readBase(r, &s.Base); err != nil {
		return err
	}
	op, err := r.U16()
	if err != nil {
		return err
	}
	s.Op = OpKind(op)
	if s.Referenced, err = r.Ref(); err != nil {
		return err
	}
	if s.Target, err = r.Ref(); err != nil {
		return err
	}
	kind, err := r.U8()
	if err != nil {
		return err
	}
	s.Imm.Kind = ImmKind(kind)
	switch s.Imm.Kind {
	case ImmDouble:
		s.Imm.F, err = r.F64()
	case ImmUint64:
		s.Imm.U, err = r.U64()
	case ImmName:
		s.Imm.S, err = r.Name()
	case ImmString:
		s.Imm.S, err = r.Str()
	}
	return err
}
