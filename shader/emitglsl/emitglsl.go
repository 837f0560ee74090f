// Package emitglsl lowers a parsed DirectX 8 shader IR to GLSL-style source
// text (spec §4.3, "target A"), for consumption by the hardware-GL backend.
// Grounded on the teacher's general approach to code generation from a flat
// IR walk (backend/software/raster/pipeline.go's single-pass, no-backtracking
// structure), adapted here to text emission instead of rasterization.
package emitglsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dx8gl/dx8gl/shader"
)

// Emit lowers ir to a single GLSL source string. Varying, uniform, and
// sampler declarations are limited to the slots the IR actually references
// (spec §4.3): a shader that only ever touches position emits zero varying
// declarations.
func Emit(ir *shader.IR) (string, error) {
	e := &emitter{ir: ir}
	return e.run()
}

type emitter struct {
	ir   *shader.IR
	body strings.Builder
	temps map[int]bool
	usesAddr bool
}

func (e *emitter) run() (string, error) {
	e.temps = make(map[int]bool)

	for _, inst := range e.ir.Instructions {
		if err := e.lower(inst); err != nil {
			return "", fmt.Errorf("emitglsl: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString("#version 120\n")

	if e.ir.Kind == shader.KindVertex {
		for idx, semantic := range e.ir.DeclaredInputs {
			sb.WriteString(fmt.Sprintf("attribute vec4 v%d; // %s\n", idx, semantic))
		}
	}

	for _, idx := range sortedKeys(e.ir.VaryingColorsUsed) {
		sb.WriteString(fmt.Sprintf("varying vec4 vary_color%d;\n", idx))
	}
	for _, idx := range sortedKeys(e.ir.VaryingTexcoordsUsed) {
		sb.WriteString(fmt.Sprintf("varying vec4 vary_tex%d;\n", idx))
	}

	if len(e.ir.Constants) > 0 || hasConstRefs(e.ir) {
		sb.WriteString(fmt.Sprintf("uniform vec4 c_const[%d];\n", e.ir.MaxConstantIndex()+1))
	}
	for _, idx := range sortedKeys(e.ir.TextureStagesUsed) {
		sb.WriteString(fmt.Sprintf("uniform sampler2D sampler%d;\n", idx))
	}
	if e.usesAddr {
		sb.WriteString("int a0;\n")
	}

	sb.WriteString("void main() {\n")
	for _, idx := range sortedKeys(e.temps) {
		sb.WriteString(fmt.Sprintf("  vec4 r%d = vec4(0.0);\n", idx))
	}
	sb.WriteString(e.body.String())
	sb.WriteString("}\n")
	return sb.String(), nil
}

func hasConstRefs(ir *shader.IR) bool {
	for _, inst := range ir.Instructions {
		if inst.Dest.Type == shader.RegConst {
			return true
		}
		for _, s := range inst.Sources {
			if s.Type == shader.RegConst {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// lower translates one instruction into zero or more GLSL statements,
// appended to e.body.
func (e *emitter) lower(inst shader.Instruction) error {
	switch inst.Opcode {
	case shader.OpDef, shader.OpDcl, shader.OpPhase, shader.OpNop:
		return nil // no runtime statement; handled via declarations or no-ops
	case shader.OpTexKill:
		src := e.source(inst.Sources[0])
		fmt.Fprintf(&e.body, "  if (any(lessThan(%s.xyz, vec3(0.0)))) discard;\n", src)
		return nil
	case shader.OpSinCos:
		e.trackDest(inst.Dest)
		src := e.scalarSource(inst.Sources[0])
		rhs := fmt.Sprintf("vec4(cos(%s), sin(%s), 0.0, 0.0)", src, src)
		e.assign(inst.Dest, inst.DestMod, rhs)
		return nil
	}

	if !inst.Opcode.HasDestination() {
		return nil
	}
	e.trackDest(inst.Dest)

	rhs, err := e.lowerExpr(inst)
	if err != nil {
		return err
	}
	e.assign(inst.Dest, inst.DestMod, rhs)
	return nil
}

func (e *emitter) trackDest(dest shader.Register) {
	if dest.Type == shader.RegTemp {
		e.temps[dest.Index] = true
	}
	if dest.Type == shader.RegAddr {
		e.usesAddr = true
	}
}

// lowerExpr builds the right-hand-side expression for opcodes handled by a
// simple operator/intrinsic table (spec §4.3's per-opcode-family lowering).
func (e *emitter) lowerExpr(inst shader.Instruction) (string, error) {
	srcs := make([]string, len(inst.Sources))
	for i, s := range inst.Sources {
		srcs[i] = e.source(s)
	}

	switch inst.Opcode {
	case shader.OpMov, shader.OpTexCoord:
		return srcs[0], nil
	case shader.OpAdd:
		return fmt.Sprintf("(%s + %s)", srcs[0], srcs[1]), nil
	case shader.OpSub:
		return fmt.Sprintf("(%s - %s)", srcs[0], srcs[1]), nil
	case shader.OpMul, shader.OpMulSat:
		return fmt.Sprintf("(%s * %s)", srcs[0], srcs[1]), nil
	case shader.OpMad, shader.OpMadSat:
		return fmt.Sprintf("((%s * %s) + %s)", srcs[0], srcs[1], srcs[2]), nil
	case shader.OpLrp:
		return fmt.Sprintf("mix(%s, %s, %s)", srcs[2], srcs[1], srcs[0]), nil
	case shader.OpRcp:
		return fmt.Sprintf("vec4(1.0 / (%s).x)", srcs[0]), nil
	case shader.OpRsq:
		return fmt.Sprintf("vec4(inversesqrt((%s).x))", srcs[0]), nil
	case shader.OpFrc:
		return fmt.Sprintf("fract(%s)", srcs[0]), nil
	case shader.OpMin:
		return fmt.Sprintf("min(%s, %s)", srcs[0], srcs[1]), nil
	case shader.OpMax:
		return fmt.Sprintf("max(%s, %s)", srcs[0], srcs[1]), nil
	case shader.OpDp3:
		return fmt.Sprintf("vec4(dot((%s).xyz, (%s).xyz))", srcs[0], srcs[1]), nil
	case shader.OpDp4:
		return fmt.Sprintf("vec4(dot(%s, %s))", srcs[0], srcs[1]), nil
	case shader.OpM4x4, shader.OpM4x3, shader.OpM3x4, shader.OpM3x3, shader.OpM3x2:
		return e.lowerMatrix(inst)
	case shader.OpSlt:
		return fmt.Sprintf("vec4(lessThan(%s, %s))", srcs[0], srcs[1]), nil
	case shader.OpSge:
		return fmt.Sprintf("vec4(greaterThanEqual(%s, %s))", srcs[0], srcs[1]), nil
	case shader.OpCnd:
		return fmt.Sprintf("((%s).a > 0.5 ? %s : %s)", srcs[0], srcs[1], srcs[2]), nil
	case shader.OpCmp:
		return fmt.Sprintf("mix(%s, %s, vec4(greaterThanEqual(%s, vec4(0.0))))", srcs[2], srcs[1], srcs[0]), nil
	case shader.OpExp:
		return fmt.Sprintf("vec4(exp2((%s).x))", srcs[0]), nil
	case shader.OpExpp:
		return fmt.Sprintf("vec4(exp2(floor((%s).x)))", srcs[0]), nil
	case shader.OpLog:
		return fmt.Sprintf("vec4(log2((%s).x))", srcs[0]), nil
	case shader.OpLogp:
		return fmt.Sprintf("vec4(log2(abs((%s).x)))", srcs[0]), nil
	case shader.OpLit:
		return fmt.Sprintf("dx8_lit(%s)", srcs[0]), nil
	case shader.OpDst:
		return fmt.Sprintf("dx8_dst(%s, %s)", srcs[0], srcs[1]), nil
	case shader.OpTex:
		return e.lowerTex(inst, srcs)
	case shader.OpBem:
		return fmt.Sprintf("dx8_bem(%s, %s)", srcs[0], srcs[1]), nil
	default:
		return "", fmt.Errorf("unsupported opcode %s", inst.Opcode)
	}
}

// lowerMatrix expands an N-row matrix-multiply opcode into N consecutive dot
// products against consecutive constant registers starting at Sources[1]
// (spec §4.3: "N dot products against consecutive constant registers").
func (e *emitter) lowerMatrix(inst shader.Instruction) (string, error) {
	rows := map[shader.Opcode]int{
		shader.OpM4x4: 4, shader.OpM4x3: 3, shader.OpM3x4: 4, shader.OpM3x3: 3, shader.OpM3x2: 2,
	}[inst.Opcode]
	srcVecComponents := 4
	if inst.Opcode == shader.OpM3x4 || inst.Opcode == shader.OpM3x3 || inst.Opcode == shader.OpM3x2 {
		srcVecComponents = 3
	}
	base := inst.Sources[1]
	left := e.source(inst.Sources[0])
	if srcVecComponents == 3 {
		left = fmt.Sprintf("(%s).xyz", left)
	}
	parts := make([]string, rows)
	for i := 0; i < rows; i++ {
		row := base
		row.Index += i
		rowExpr := e.source(row)
		if srcVecComponents == 3 {
			rowExpr = fmt.Sprintf("(%s).xyz", rowExpr)
		}
		parts[i] = fmt.Sprintf("dot(%s, %s)", left, rowExpr)
	}
	return fmt.Sprintf("vec4(%s)", strings.Join(padFour(parts), ", ")), nil
}

func padFour(parts []string) []string {
	out := make([]string, 4)
	for i := 0; i < 4; i++ {
		if i < len(parts) {
			out[i] = parts[i]
		} else {
			out[i] = "0.0"
		}
	}
	return out
}

// lowerTex handles both the ps<=1.3 implicit-coordinate `tex t0` form (no
// explicit sources, destination doubles as the sampler/coordinate slot) and
// the ps.1.4 `texld dst, src` explicit form.
func (e *emitter) lowerTex(inst shader.Instruction, srcs []string) (string, error) {
	stage := inst.Dest.Index
	coordExpr := fmt.Sprintf("vary_tex%d", stage)
	if len(srcs) > 0 {
		coordExpr = srcs[0]
	}
	return fmt.Sprintf("texture2D(sampler%d, (%s).xy)", stage, coordExpr), nil
}

func (e *emitter) assign(dest shader.Register, mod shader.Modifier, rhs string) {
	rhs = applyModifier(mod, rhs)
	if dest.Type == shader.RegAddr {
		// Address registers hold an integer lane index, not a vector; the
		// write truncates the source's x component (D3D's `mova` semantics
		// approximated here since this instruction set has no separate
		// mova opcode from ordinary destination writes to a0).
		fmt.Fprintf(&e.body, "  a0 = int((%s).x);\n", rhs)
		return
	}
	lhs := e.destName(dest)
	mask := dest.WriteMask
	if mask != "" && mask != "xyzw" {
		lhs = lhs + "." + mask
	}
	fmt.Fprintf(&e.body, "  %s = %s;\n", lhs, maskRHS(rhs, mask))
}

// maskRHS swizzles the right-hand side down to the destination mask's
// component count when the mask is a strict subset, so `dst.xy = vec4(...)`
// type-checks.
func maskRHS(rhs, mask string) string {
	if mask == "" || mask == "xyzw" || len(mask) == 4 {
		return rhs
	}
	return fmt.Sprintf("(%s).%s", rhs, mask)
}

func applyModifier(mod shader.Modifier, expr string) string {
	switch mod {
	case shader.ModSat:
		return fmt.Sprintf("clamp(%s, 0.0, 1.0)", expr)
	case shader.ModX2:
		return fmt.Sprintf("(%s * 2.0)", expr)
	case shader.ModX4:
		return fmt.Sprintf("(%s * 4.0)", expr)
	case shader.ModD2:
		return fmt.Sprintf("(%s * 0.5)", expr)
	case shader.ModBias:
		return fmt.Sprintf("(%s - 0.5)", expr)
	case shader.ModBx2:
		return fmt.Sprintf("((%s * 2.0) - 1.0)", expr)
	case shader.ModComp:
		return fmt.Sprintf("(1.0 - %s)", expr)
	default:
		return expr
	}
}

// scalarSource renders a source register's first swizzled component as a
// plain scalar, for opcodes (sincos, rcp, rsq-already-handled-above) that
// consume a single channel.
func (e *emitter) scalarSource(r shader.Register) string {
	base := e.source(r)
	return fmt.Sprintf("(%s).x", base)
}

// source renders a source register reference, applying negation, the
// source modifier, and the swizzle (spec §4.3: "negation applies after
// modifier expansion").
func (e *emitter) source(r shader.Register) string {
	name := e.regName(r)
	expr := applyModifier(r.SrcModifier, name)
	if r.Negate {
		expr = fmt.Sprintf("(-%s)", expr)
	}
	if r.Swizzle != "" && r.Swizzle != "xyzw" {
		expr = fmt.Sprintf("(%s).%s", expr, r.Swizzle)
	}
	return expr
}

// regName renders the bare (unswizzled, unmodified) name of a register
// reference, lowering relative addressing to an indexed constant-array
// read (spec §4.3: "lowers to an indexed constant array read").
func (e *emitter) regName(r shader.Register) string {
	switch r.Type {
	case shader.RegTemp:
		return fmt.Sprintf("r%d", r.Index)
	case shader.RegInput:
		if e.ir.Kind == shader.KindPixel {
			return fmt.Sprintf("vary_color%d", r.Index)
		}
		return fmt.Sprintf("v%d", r.Index)
	case shader.RegConst:
		if r.Relative {
			return fmt.Sprintf("c_const[a0 + %d]", r.Index)
		}
		return fmt.Sprintf("c_const[%d]", r.Index)
	case shader.RegAddr:
		return "vec4(float(a0))"
	case shader.RegTexture:
		if r.Sampler {
			return fmt.Sprintf("sampler%d", r.Index)
		}
		return fmt.Sprintf("vary_tex%d", r.Index)
	case shader.RegRastOut:
		switch r.RastOut {
		case shader.RastOutPosition:
			return "gl_Position"
		case shader.RastOutFog:
			return "gl_FogFragCoord"
		default:
			return "gl_PointSize"
		}
	case shader.RegAttrOut:
		if r.AttrOutIsTexcoord {
			return fmt.Sprintf("vary_tex%d", r.Index)
		}
		return fmt.Sprintf("vary_color%d", r.Index)
	case shader.RegColorOut:
		return "gl_FragColor"
	default:
		return "vec4(0.0)"
	}
}

func (e *emitter) destName(r shader.Register) string {
	return e.regName(r)
}
