package wasm

// Body accumulates the instruction bytes of one function body or constant
// expression.
type Body struct {
	buf []byte

	// Calls and GlobalUses record the function and global indices referenced
	// by the body. Dead-code elimination does not read them; it walks the
	// AST.
	Calls      []uint32
	GlobalUses []uint32
}

func NewBody() *Body {
	return &Body{buf: nil, Calls: nil, GlobalUses: nil}
}

func (b *Body) Bytes() []byte { return b.buf }

func (b *Body) byte(v byte)      { b.buf = append(b.buf, v) }
func (b *Body) u32(v uint32)     { b.buf = appendUleb(b.buf, uint64(v)) }
func (b *Body) s32(v int32)      { b.buf = appendSleb(b.buf, int64(v)) }
func (b *Body) s64(v int64)      { b.buf = appendSleb(b.buf, v) }
func (b *Body) heap(h HeapType)  { b.buf = appendHeapType(b.buf, h) }
func (b *Body) val(v ValType)    { b.buf = appendValType(b.buf, v) }

// Raw appends another body's bytes (used to splice preludes).
func (b *Body) Raw(other *Body) {
	b.buf = append(b.buf, other.buf...)
	b.Calls = append(b.Calls, other.Calls...)
	b.GlobalUses = append(b.GlobalUses, other.GlobalUses...)
}

// Control

func (b *Body) Unreachable() { b.byte(0x00) }
func (b *Body) Nop()         { b.byte(0x01) }

// Block types: blockType writes blockVoid for no result, or the value type
// for one result.
const blockVoid = 0x40

func (b *Body) Block(result *ValType) {
	b.byte(0x02)
	b.blockType(result)
}

func (b *Body) Loop(result *ValType) {
	b.byte(0x03)
	b.blockType(result)
}

func (b *Body) If(result *ValType) {
	b.byte(0x04)
	b.blockType(result)
}

func (b *Body) Else() { b.byte(0x05) }
func (b *Body) End()  { b.byte(0x0B) }

func (b *Body) blockType(result *ValType) {
	if result == nil {
		b.byte(blockVoid)
		return
	}
	b.val(*result)
}

func (b *Body) Br(label uint32)   { b.byte(0x0C); b.u32(label) }
func (b *Body) BrIf(label uint32) { b.byte(0x0D); b.u32(label) }
func (b *Body) Return()           { b.byte(0x0F) }

func (b *Body) Call(fn uint32) {
	b.byte(0x10)
	b.u32(fn)
	b.Calls = append(b.Calls, fn)
}

func (b *Body) CallRef(typeIdx uint32) { b.byte(0x14); b.u32(typeIdx) }

func (b *Body) Drop()   { b.byte(0x1A) }
func (b *Body) Select() { b.byte(0x1B) }

// Exceptions

func (b *Body) Throw(tag uint32) { b.byte(0x08); b.u32(tag) }

// Catch clauses for TryTable.
type Catch struct {
	Ref   bool // catch_ref: push the exnref as well
	All   bool
	Tag   uint32
	Label uint32
}

func (b *Body) TryTable(result *ValType, catches []Catch) {
	b.byte(0x1F)
	b.blockType(result)
	b.u32(uint32(len(catches)))
	for _, c := range catches {
		switch {
		case c.All && c.Ref:
			b.byte(0x03)
		case c.All:
			b.byte(0x02)
		case c.Ref:
			b.byte(0x01)
			b.u32(c.Tag)
		default:
			b.byte(0x00)
			b.u32(c.Tag)
		}
		b.u32(c.Label)
	}
}

func (b *Body) ThrowRef() { b.byte(0x0A) }

// Locals and globals

func (b *Body) LocalGet(i uint32) { b.byte(0x20); b.u32(i) }
func (b *Body) LocalSet(i uint32) { b.byte(0x21); b.u32(i) }
func (b *Body) LocalTee(i uint32) { b.byte(0x22); b.u32(i) }

func (b *Body) GlobalGet(i uint32) {
	b.byte(0x23)
	b.u32(i)
	b.GlobalUses = append(b.GlobalUses, i)
}

func (b *Body) GlobalSet(i uint32) {
	b.byte(0x24)
	b.u32(i)
	b.GlobalUses = append(b.GlobalUses, i)
}

// Constants

func (b *Body) I32Const(v int32)   { b.byte(0x41); b.s32(v) }
func (b *Body) I64Const(v int64)   { b.byte(0x42); b.s64(v) }
func (b *Body) F32Const(v float32) { b.byte(0x43); b.buf = appendF32(b.buf, v) }
func (b *Body) F64Const(v float64) { b.byte(0x44); b.buf = appendF64(b.buf, v) }

// Numeric operations (the subset the code generator emits)

func (b *Body) Op(opcode byte) { b.byte(opcode) }

const (
	OpI32Eqz  = 0x45
	OpI32Eq   = 0x46
	OpI32Ne   = 0x47
	OpI32LtS  = 0x48
	OpI32LtU  = 0x49
	OpI32GtS  = 0x4A
	OpI32GtU  = 0x4B
	OpI32LeS  = 0x4C
	OpI32LeU  = 0x4D
	OpI32GeS  = 0x4E
	OpI32GeU  = 0x4F
	OpI64Eqz  = 0x50
	OpI64Eq   = 0x51
	OpI64Ne   = 0x52
	OpI64LtS  = 0x53
	OpI64GtS  = 0x55
	OpI64LeS  = 0x57
	OpI64GeS  = 0x59
	OpF32Eq   = 0x5B
	OpF32Ne   = 0x5C
	OpF32Lt   = 0x5D
	OpF32Gt   = 0x5E
	OpF32Le   = 0x5F
	OpF32Ge   = 0x60
	OpF64Eq   = 0x61
	OpF64Ne   = 0x62
	OpF64Lt   = 0x63
	OpF64Gt   = 0x64
	OpF64Le   = 0x65
	OpF64Ge   = 0x66
	OpI32Add  = 0x6A
	OpI32Sub  = 0x6B
	OpI32Mul  = 0x6C
	OpI32DivS = 0x6D
	OpI32DivU = 0x6E
	OpI32RemS = 0x6F
	OpI32RemU = 0x70
	OpI64Add  = 0x7C
	OpI64Sub  = 0x7D
	OpI64Mul  = 0x7E
	OpI64DivS = 0x7F
	OpI64RemS = 0x81
	OpF32Neg  = 0x8C
	OpF64Neg  = 0x9A
	OpF32Add  = 0x92
	OpF32Sub  = 0x93
	OpF32Mul  = 0x94
	OpF32Div  = 0x95
	OpF64Add  = 0xA0
	OpF64Sub  = 0xA1
	OpF64Mul  = 0xA2
	OpF64Div  = 0xA3

	OpI32WrapI64    = 0xA7
	OpI64ExtendI32S = 0xAC
	OpI64ExtendI32U = 0xAD
	OpF32ConvertI32S = 0xB2
	OpF32DemoteF64  = 0xB6
	OpF64ConvertI32S = 0xB7
	OpF64PromoteF32 = 0xBB
	OpI32TruncF64S  = 0xAA
)

// References

func (b *Body) RefNull(h HeapType)  { b.byte(0xD0); b.heap(h) }
func (b *Body) RefIsNull()          { b.byte(0xD1) }
func (b *Body) RefFunc(fn uint32)   { b.byte(0xD2); b.u32(fn); b.Calls = append(b.Calls, fn) }
func (b *Body) RefEq()              { b.byte(0xD3) }
func (b *Body) RefAsNonNull()       { b.byte(0xD4) }

// GC instructions (0xFB prefix)

func (b *Body) gc(op uint32) { b.byte(0xFB); b.u32(op) }

func (b *Body) StructNew(t uint32)        { b.gc(0); b.u32(t) }
func (b *Body) StructNewDefault(t uint32) { b.gc(1); b.u32(t) }
func (b *Body) StructGet(t, f uint32)     { b.gc(2); b.u32(t); b.u32(f) }
func (b *Body) StructSet(t, f uint32)     { b.gc(5); b.u32(t); b.u32(f) }

func (b *Body) ArrayNew(t uint32)        { b.gc(6); b.u32(t) }
func (b *Body) ArrayNewDefault(t uint32) { b.gc(7); b.u32(t) }
func (b *Body) ArrayNewFixed(t, n uint32) {
	b.gc(8)
	b.u32(t)
	b.u32(n)
}
func (b *Body) ArrayGet(t uint32)  { b.gc(11); b.u32(t) }
func (b *Body) ArrayGetS(t uint32) { b.gc(12); b.u32(t) }
func (b *Body) ArrayGetU(t uint32) { b.gc(13); b.u32(t) }
func (b *Body) ArraySet(t uint32) { b.gc(14); b.u32(t) }
func (b *Body) ArrayLen()         { b.gc(15) }

func (b *Body) RefTest(h HeapType)     { b.gc(20); b.heap(h) }
func (b *Body) RefTestNull(h HeapType) { b.gc(21); b.heap(h) }
func (b *Body) RefCast(h HeapType)     { b.gc(22); b.heap(h) }
func (b *Body) RefCastNull(h HeapType) { b.gc(23); b.heap(h) }
