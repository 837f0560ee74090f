// Package emitwgsl lowers a parsed DirectX 8 shader IR to WGSL-style source
// text (spec §4.4, "target B"), for consumption by the web-GPU backend.
// Shares emitglsl's per-opcode lowering rules (spec §4.3) but differs in
// binding layout: explicit numbered-location I/O structs, a single uniform
// binding in group 0, two binding slots per texture stage in group 1.
package emitwgsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dx8gl/dx8gl/shader"
)

// Emit lowers ir to a single WGSL source string.
func Emit(ir *shader.IR) (string, error) {
	e := &emitter{ir: ir}
	return e.run()
}

type emitter struct {
	ir       *shader.IR
	body     strings.Builder
	temps    map[int]bool
	usesAddr bool
}

func (e *emitter) run() (string, error) {
	e.temps = make(map[int]bool)
	for _, inst := range e.ir.Instructions {
		if err := e.lower(inst); err != nil {
			return "", fmt.Errorf("emitwgsl: %w", err)
		}
	}

	var sb strings.Builder
	e.writeStructs(&sb)
	e.writeBindings(&sb)
	e.writeEntry(&sb)
	return sb.String(), nil
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// writeStructs emits the input/output structs with explicit numbered
// locations (spec §4.4).
func (e *emitter) writeStructs(sb *strings.Builder) {
	if e.ir.Kind == shader.KindVertex {
		sb.WriteString("struct VertexInput {\n")
		for _, idx := range sortedIntKeys(e.ir.DeclaredInputs) {
			fmt.Fprintf(sb, "  @location(%d) v%d: vec4<f32>,\n", idx, idx)
		}
		sb.WriteString("}\n\n")

		sb.WriteString("struct VertexOutput {\n")
		sb.WriteString("  @builtin(position) position: vec4<f32>,\n")
		for _, idx := range sortedKeys(e.ir.VaryingColorsUsed) {
			fmt.Fprintf(sb, "  @location(%d) vary_color%d: vec4<f32>,\n", idx, idx)
		}
		for _, idx := range sortedKeys(e.ir.VaryingTexcoordsUsed) {
			fmt.Fprintf(sb, "  @location(%d) vary_tex%d: vec4<f32>,\n", 8+idx, idx)
		}
		sb.WriteString("}\n\n")
		return
	}

	sb.WriteString("struct FragmentInput {\n")
	for _, idx := range sortedKeys(e.ir.VaryingColorsUsed) {
		fmt.Fprintf(sb, "  @location(%d) vary_color%d: vec4<f32>,\n", idx, idx)
	}
	for _, idx := range sortedKeys(e.ir.VaryingTexcoordsUsed) {
		fmt.Fprintf(sb, "  @location(%d) vary_tex%d: vec4<f32>,\n", 8+idx, idx)
	}
	sb.WriteString("}\n\n")
}

func sortedIntKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// writeBindings emits the single group-0 uniform binding and the group-1
// texture/sampler pairs, two slots per stage (spec §4.4).
func (e *emitter) writeBindings(sb *strings.Builder) {
	fmt.Fprintf(sb, "struct Uniforms {\n  const_array: array<vec4<f32>, %d>,\n}\n", e.ir.MaxConstantIndex()+1)
	sb.WriteString("@group(0) @binding(0) var<uniform> uniforms: Uniforms;\n")

	for i, idx := range sortedKeys(e.ir.TextureStagesUsed) {
		fmt.Fprintf(sb, "@group(1) @binding(%d) var tex%d: texture_2d<f32>;\n", 2*i, idx)
		fmt.Fprintf(sb, "@group(1) @binding(%d) var samp%d: sampler;\n", 2*i+1, idx)
	}
	sb.WriteString("\n")
}

// writeEntry emits the vertex or fragment entry point. A vertex entry
// returns the full output struct; a fragment entry returns the color-output
// register (spec §4.4).
func (e *emitter) writeEntry(sb *strings.Builder) {
	if e.ir.Kind == shader.KindVertex {
		sb.WriteString("@vertex\n")
		sb.WriteString("fn vs_main(in: VertexInput) -> VertexOutput {\n")
		if e.usesAddr {
			sb.WriteString("  var a0: i32 = 0;\n")
		}
		for _, idx := range sortedKeys(e.temps) {
			fmt.Fprintf(sb, "  var r%d: vec4<f32> = vec4<f32>(0.0);\n", idx)
		}
		sb.WriteString("  var oPos: vec4<f32> = vec4<f32>(0.0);\n")
		for _, idx := range sortedKeys(e.ir.VaryingColorsUsed) {
			fmt.Fprintf(sb, "  var vary_color%d: vec4<f32> = vec4<f32>(0.0);\n", idx)
		}
		for _, idx := range sortedKeys(e.ir.VaryingTexcoordsUsed) {
			fmt.Fprintf(sb, "  var vary_tex%d: vec4<f32> = vec4<f32>(0.0);\n", idx)
		}
		sb.WriteString(e.body.String())
		sb.WriteString("  var out: VertexOutput;\n  out.position = oPos;\n")
		for _, idx := range sortedKeys(e.ir.VaryingColorsUsed) {
			fmt.Fprintf(sb, "  out.vary_color%d = vary_color%d;\n", idx, idx)
		}
		for _, idx := range sortedKeys(e.ir.VaryingTexcoordsUsed) {
			fmt.Fprintf(sb, "  out.vary_tex%d = vary_tex%d;\n", idx, idx)
		}
		sb.WriteString("  return out;\n}\n")
		return
	}

	sb.WriteString("@fragment\n")
	sb.WriteString("fn fs_main(in: FragmentInput) -> @location(0) vec4<f32> {\n")
	for _, idx := range sortedKeys(e.temps) {
		fmt.Fprintf(sb, "  var r%d: vec4<f32> = vec4<f32>(0.0);\n", idx)
	}
	sb.WriteString("  var oC0: vec4<f32> = vec4<f32>(0.0);\n")
	sb.WriteString(e.body.String())
	sb.WriteString("  return oC0;\n}\n")
}

func (e *emitter) lower(inst shader.Instruction) error {
	switch inst.Opcode {
	case shader.OpDef, shader.OpDcl, shader.OpPhase, shader.OpNop:
		return nil
	case shader.OpTexKill:
		src := e.source(inst.Sources[0])
		fmt.Fprintf(&e.body, "  if (any((%s).xyz < vec3<f32>(0.0))) { discard; }\n", src)
		return nil
	case shader.OpSinCos:
		e.trackDest(inst.Dest)
		src := fmt.Sprintf("(%s).x", e.source(inst.Sources[0]))
		rhs := fmt.Sprintf("vec4<f32>(cos(%s), sin(%s), 0.0, 0.0)", src, src)
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
		return fmt.Sprintf("vec4<f32>(1.0 / (%s).x)", srcs[0]), nil
	case shader.OpRsq:
		return fmt.Sprintf("vec4<f32>(inverseSqrt((%s).x))", srcs[0]), nil
	case shader.OpFrc:
		return fmt.Sprintf("fract(%s)", srcs[0]), nil
	case shader.OpMin:
		return fmt.Sprintf("min(%s, %s)", srcs[0], srcs[1]), nil
	case shader.OpMax:
		return fmt.Sprintf("max(%s, %s)", srcs[0], srcs[1]), nil
	case shader.OpDp3:
		return fmt.Sprintf("vec4<f32>(dot((%s).xyz, (%s).xyz))", srcs[0], srcs[1]), nil
	case shader.OpDp4:
		return fmt.Sprintf("vec4<f32>(dot(%s, %s))", srcs[0], srcs[1]), nil
	case shader.OpM4x4, shader.OpM4x3, shader.OpM3x4, shader.OpM3x3, shader.OpM3x2:
		return e.lowerMatrix(inst)
	case shader.OpSlt:
		return fmt.Sprintf("vec4<f32>(%s < %s)", srcs[0], srcs[1]), nil
	case shader.OpSge:
		return fmt.Sprintf("vec4<f32>(%s >= %s)", srcs[0], srcs[1]), nil
	case shader.OpCnd:
		return fmt.Sprintf("select(%s, %s, (%s).a > 0.5)", srcs[2], srcs[1], srcs[0]), nil
	case shader.OpCmp:
		return fmt.Sprintf("select(%s, %s, %s >= vec4<f32>(0.0))", srcs[2], srcs[1], srcs[0]), nil
	case shader.OpExp:
		return fmt.Sprintf("vec4<f32>(exp2((%s).x))", srcs[0]), nil
	case shader.OpExpp:
		return fmt.Sprintf("vec4<f32>(exp2(floor((%s).x)))", srcs[0]), nil
	case shader.OpLog:
		return fmt.Sprintf("vec4<f32>(log2((%s).x))", srcs[0]), nil
	case shader.OpLogp:
		return fmt.Sprintf("vec4<f32>(log2(abs((%s).x)))", srcs[0]), nil
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

func (e *emitter) lowerMatrix(inst shader.Instruction) (string, error) {
	rows := map[shader.Opcode]int{
		shader.OpM4x4: 4, shader.OpM4x3: 3, shader.OpM3x4: 4, shader.OpM3x3: 3, shader.OpM3x2: 2,
	}[inst.Opcode]
	threeComp := inst.Opcode == shader.OpM3x4 || inst.Opcode == shader.OpM3x3 || inst.Opcode == shader.OpM3x2
	base := inst.Sources[1]
	left := e.source(inst.Sources[0])
	if threeComp {
		left = fmt.Sprintf("(%s).xyz", left)
	}
	parts := make([]string, rows)
	for i := 0; i < rows; i++ {
		row := base
		row.Index += i
		rowExpr := e.source(row)
		if threeComp {
			rowExpr = fmt.Sprintf("(%s).xyz", rowExpr)
		}
		parts[i] = fmt.Sprintf("dot(%s, %s)", left, rowExpr)
	}
	for len(parts) < 4 {
		parts = append(parts, "0.0")
	}
	return fmt.Sprintf("vec4<f32>(%s)", strings.Join(parts, ", ")), nil
}

func (e *emitter) lowerTex(inst shader.Instruction, srcs []string) (string, error) {
	stage := inst.Dest.Index
	coordExpr := fmt.Sprintf("in.vary_tex%d", stage)
	if len(srcs) > 0 {
		coordExpr = srcs[0]
	}
	return fmt.Sprintf("textureSample(tex%d, samp%d, (%s).xy)", stage, stage, coordExpr), nil
}

func (e *emitter) assign(dest shader.Register, mod shader.Modifier, rhs string) {
	rhs = applyModifier(mod, rhs)
	if dest.Type == shader.RegAddr {
		fmt.Fprintf(&e.body, "  a0 = i32((%s).x);\n", rhs)
		return
	}
	lhs := e.destName(dest)
	mask := dest.WriteMask
	if mask != "" && mask != "xyzw" {
		lhs = lhs + "." + mask
	}
	fmt.Fprintf(&e.body, "  %s = %s;\n", lhs, maskRHS(rhs, mask))
}

func maskRHS(rhs, mask string) string {
	if mask == "" || mask == "xyzw" || len(mask) == 4 {
		return rhs
	}
	return fmt.Sprintf("(%s).%s", rhs, mask)
}

func applyModifier(mod shader.Modifier, expr string) string {
	switch mod {
	case shader.ModSat:
		return fmt.Sprintf("clamp(%s, vec4<f32>(0.0), vec4<f32>(1.0))", expr)
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

// regName renders the bare register reference. Relative addressing lowers
// to `uniforms.const_array[i]` with i cast from the address register
// (spec §4.4).
func (e *emitter) regName(r shader.Register) string {
	switch r.Type {
	case shader.RegTemp:
		return fmt.Sprintf("r%d", r.Index)
	case shader.RegInput:
		if e.ir.Kind == shader.KindPixel {
			return fmt.Sprintf("in.vary_color%d", r.Index)
		}
		return fmt.Sprintf("in.v%d", r.Index)
	case shader.RegConst:
		if r.Relative {
			return fmt.Sprintf("uniforms.const_array[a0 + %d]", r.Index)
		}
		return fmt.Sprintf("uniforms.const_array[%d]", r.Index)
	case shader.RegAddr:
		return "vec4<f32>(f32(a0))"
	case shader.RegTexture:
		if r.Sampler {
			return fmt.Sprintf("samp%d", r.Index)
		}
		return fmt.Sprintf("in.vary_tex%d", r.Index)
	case shader.RegRastOut:
		switch r.RastOut {
		case shader.RastOutPosition:
			return "oPos"
		default:
			return "oPos" // fog/point-size have no WGSL builtin equivalent here
		}
	case shader.RegAttrOut:
		if r.AttrOutIsTexcoord {
			return fmt.Sprintf("vary_tex%d", r.Index)
		}
		return fmt.Sprintf("vary_color%d", r.Index)
	case shader.RegColorOut:
		return "oC0"
	default:
		return "vec4<f32>(0.0)"
	}
}

func (e *emitter) destName(r shader.Register) string { return e.regName(r) }
