// Package shader lexes, parses, and lowers DirectX 8 vertex- and pixel-shader
// assembly (vs.1.1, ps.1.1-ps.1.4) into a neutral intermediate representation,
// a deterministic bytecode encoding, and (via the emitglsl/emitwgsl
// subpackages) high-level shading language source.
package shader

import "fmt"

// Opcode identifies a DirectX 8 shader instruction. Values are stable.
// OpNop through OpM3x2 match the D3DSIO_* enumeration of the original
// interface; OpSinCos onward use this package's own numbering and do not
// match the D3DSIO_* codes.
type Opcode uint16

const (
	OpNop Opcode = iota
	OpMov
	OpAdd
	OpSub
	OpMad
	OpMul
	OpRcp
	OpRsq
	OpDp3
	OpDp4
	OpMin
	OpMax
	OpSlt
	OpSge
	OpExp
	OpLog
	OpLit
	OpDst
	OpLrp
	OpFrc
	OpM4x4
	OpM4x3
	OpM3x4
	OpM3x3
	OpM3x2
	OpSinCos
	OpDcl
	OpTexKill
	OpTex    // also serves ps.1.4 texld
	OpTexCoord
	OpMulSat
	OpMadSat
	OpExpp
	OpLogp
	OpCnd
	OpCmp
	OpBem
	OpDef
	OpPhase
	OpEnd
)

// opcodeNames gives the canonical assembly mnemonic for each opcode.
// "tex" is reused for texld under ps.1.4; the parser records which spelling
// was used in Instruction.TexldSpelling, but String gives "tex" for both.
var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpMov: "mov", OpAdd: "add", OpSub: "sub", OpMad: "mad",
	OpMul: "mul", OpRcp: "rcp", OpRsq: "rsq", OpDp3: "dp3", OpDp4: "dp4",
	OpMin: "min", OpMax: "max", OpSlt: "slt", OpSge: "sge", OpExp: "exp",
	OpLog: "log", OpLit: "lit", OpDst: "dst", OpLrp: "lrp", OpFrc: "frc",
	OpM4x4: "m4x4", OpM4x3: "m4x3", OpM3x4: "m3x4", OpM3x3: "m3x3", OpM3x2: "m3x2",
	OpSinCos: "sincos", OpDcl: "dcl", OpTexKill: "texkill", OpTex: "tex",
	OpTexCoord: "texcoord", OpMulSat: "mul_sat", OpMadSat: "mad_sat",
	OpExpp: "expp", OpLogp: "logp", OpCnd: "cnd", OpCmp: "cmp", OpBem: "bem",
	OpDef: "def", OpPhase: "phase", OpEnd: "end",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", uint16(o))
}

// HasDestination reports whether the opcode writes a destination register.
func (o Opcode) HasDestination() bool {
	switch o {
	case OpNop, OpTexKill, OpPhase, OpDef, OpEnd, OpDcl:
		return o == OpDcl // dcl writes to the declared register; others do not
	}
	return true
}

// RegisterType tags the role of a register reference.
type RegisterType uint8

const (
	RegTemp RegisterType = iota
	RegInput
	RegConst
	RegAddr
	RegTexture
	RegRastOut
	RegAttrOut
	RegColorOut
)

func (t RegisterType) String() string {
	switch t {
	case RegTemp:
		return "r"
	case RegInput:
		return "v"
	case RegConst:
		return "c"
	case RegAddr:
		return "a"
	case RegTexture:
		return "t"
	case RegRastOut:
		return "o"
	case RegAttrOut:
		return "o"
	case RegColorOut:
		return "oC"
	default:
		return "?"
	}
}

// Modifier is the shared enumeration for destination write modifiers and
// source read modifiers (spec §3: "same enumeration as destination").
type Modifier uint8

const (
	ModNone Modifier = iota
	ModSat
	ModX2
	ModX4
	ModD2
	ModBias
	ModBx2
	ModComp
)

var modifierSuffixes = map[string]Modifier{
	"":     ModNone,
	"sat":  ModSat,
	"x2":   ModX2,
	"x4":   ModX4,
	"d2":   ModD2,
	"bias": ModBias,
	"bx2":  ModBx2,
	"comp": ModComp,
}

// RastOutKind distinguishes the fixed rasterizer-output slots (oPos, oFog,
// oPts) which share RegRastOut but are not indexed like other registers.
type RastOutKind uint8

const (
	RastOutPosition RastOutKind = iota
	RastOutFog
	RastOutPointSize
)

// Register is a single operand: a typed, indexed slot with an optional
// swizzle/write-mask, sign, and read/write modifier.
type Register struct {
	Type RegisterType
	// Index is the numeric register index (v0, c12, r3, ...). For
	// RegRastOut, Index is unused; RastOut identifies the specific slot.
	Index int
	// RastOut is meaningful only when Type == RegRastOut.
	RastOut RastOutKind
	// AttrOutIsTexcoord distinguishes oT<n> (true) from oD<n> (false) when
	// Type == RegAttrOut.
	AttrOutIsTexcoord bool
	// Sampler marks an 's'-prefixed register used as a texture/sampler
	// selector rather than a plain RegTexture coordinate read.
	Sampler bool

	// WriteMask applies to destination registers; empty means "xyzw".
	WriteMask string
	// Swizzle applies to source registers; empty means identity ("xyzw").
	Swizzle string

	Negate      bool
	SrcModifier Modifier

	// Relative indicates `c[a0.x + Index]` relative addressing on a
	// constant register source.
	Relative bool
}

// Instruction is one parsed shader statement.
type Instruction struct {
	Opcode   Opcode
	DestMod  Modifier
	Dest     Register
	Sources  []Register
	// TexldSpelling records that a ps.1.4 `texld` used the OpTex opcode.
	// The emitters and Encode do not read it.
	TexldSpelling bool
}

// Kind distinguishes vertex from pixel shaders.
type Kind uint8

const (
	KindVertex Kind = iota
	KindPixel
)

func (k Kind) String() string {
	if k == KindVertex {
		return "vertex"
	}
	return "pixel"
}

// Constant is an inline `def c<i>, f,f,f,f` value.
type Constant struct {
	Index int
	Value [4]float32
}

// IR is the fully parsed, validated shader: a flat instruction stream plus
// side tables an emitter needs without re-scanning instructions.
type IR struct {
	MajorVersion int
	MinorVersion int
	Kind         Kind

	Instructions []Instruction
	Constants    map[int][4]float32

	// UsesPosition records an explicit `mov oPos, ...` (or m4x4 oPos, ...).
	// The emitters do not read it; when it is false no position write is
	// synthesized.
	UsesPosition bool

	// Declared input semantics from dcl_<semantic> vN, keyed by input index.
	DeclaredInputs map[int]string

	// Varying tracking (spec §3, §4.3): a pixel shader IR records which
	// color/texcoord varyings it reads; a vertex shader IR records which it
	// writes. Only referenced varyings are ever declared by an emitter.
	VaryingColorsUsed    map[int]bool
	VaryingTexcoordsUsed map[int]bool

	// TextureStagesUsed records pixel-shader texture-register (t#) use.
	TextureStagesUsed map[int]bool
	// OutputTexturesUsed records vertex-shader oT# attribute-output use.
	OutputTexturesUsed map[int]bool

	// AddrWritten records, per address register index, whether a0 has been
	// written; used by the parser to reject reads before writes.
	AddrWritten map[int]bool
}

func newIR(kind Kind, major, minor int) *IR {
	return &IR{
		MajorVersion:         major,
		MinorVersion:         minor,
		Kind:                 kind,
		Constants:            make(map[int][4]float32),
		DeclaredInputs:       make(map[int]string),
		VaryingColorsUsed:    make(map[int]bool),
		VaryingTexcoordsUsed: make(map[int]bool),
		TextureStagesUsed:    make(map[int]bool),
		OutputTexturesUsed:   make(map[int]bool),
		AddrWritten:          make(map[int]bool),
	}
}

// MaxConstantIndex returns the largest legal constant register index for
// this shader kind and version (spec §8 boundary behaviors).
func (ir *IR) MaxConstantIndex() int {
	if ir.Kind == KindVertex {
		return 95
	}
	if ir.MinorVersion >= 4 {
		return 31
	}
	return 7
}
