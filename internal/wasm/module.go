package wasm

import "github.com/moznion/go-optional"

type Module struct {
	Types   []*SubType
	Funcs   []*Func
	Globals []*Global
	Tags    []*Tag
	Exports []*Export
	Start   optional.Option[uint32] // function index
	// DeclaredFuncs lists functions referenced by ref.func inside bodies;
	// they are emitted as a declarative element segment.
	DeclaredFuncs []uint32
}

// DeclareFunc marks a function as referenceable from instruction position.
func (m *Module) DeclareFunc(idx uint32) {
	for _, f := range m.DeclaredFuncs {
		if f == idx {
			return
		}
	}
	m.DeclaredFuncs = append(m.DeclaredFuncs, idx)
}

type Func struct {
	Name    string
	TypeIdx uint32
	Locals  []ValType // beyond the parameters
	Body    *Body
}

type Global struct {
	Name    string
	Type    ValType
	Mutable bool
	Init    *Body // constant expression, without the trailing end
}

type Tag struct {
	TypeIdx uint32
}

type ExportKind byte

const (
	ExportFunc   ExportKind = 0
	ExportTable  ExportKind = 1
	ExportMemory ExportKind = 2
	ExportGlobal ExportKind = 3
	ExportTag    ExportKind = 4
)

type Export struct {
	Name string
	Kind ExportKind
	Idx  uint32
}

// AddType appends a type definition and returns its index.
func (m *Module) AddType(t *SubType) uint32 {
	m.Types = append(m.Types, t)
	return uint32(len(m.Types) - 1)
}

// AddFunc appends a function and returns its index.
func (m *Module) AddFunc(f *Func) uint32 {
	m.Funcs = append(m.Funcs, f)
	return uint32(len(m.Funcs) - 1)
}

// AddGlobal appends a global and returns its index.
func (m *Module) AddGlobal(g *Global) uint32 {
	m.Globals = append(m.Globals, g)
	return uint32(len(m.Globals) - 1)
}

// AddTag appends an exception tag and returns its index.
func (m *Module) AddTag(t *Tag) uint32 {
	m.Tags = append(m.Tags, t)
	return uint32(len(m.Tags) - 1)
}

func (m *Module) Export(name string, kind ExportKind, idx uint32) {
	m.Exports = append(m.Exports, &Export{Name: name, Kind: kind, Idx: idx})
}
