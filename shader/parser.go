package shader

import (
	"fmt"
	"strconv"
	"strings"
)

var destOpcodes = map[Opcode]bool{
	OpMov: true, OpAdd: true, OpSub: true, OpMad: true, OpMul: true, OpRcp: true,
	OpRsq: true, OpDp3: true, OpDp4: true, OpMin: true, OpMax: true, OpSlt: true,
	OpSge: true, OpExp: true, OpLog: true, OpLit: true, OpDst: true, OpLrp: true,
	OpFrc: true, OpM4x4: true, OpM4x3: true, OpM3x4: true, OpM3x3: true, OpM3x2: true,
	OpSinCos: true, OpTex: true, OpTexCoord: true, OpMulSat: true, OpMadSat: true,
	OpExpp: true, OpLogp: true, OpCnd: true, OpCmp: true, OpBem: true,
}

var mnemonicToOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	m["texld"] = OpTex // ps.1.4 alias; disambiguated by version at parse time
	m["texdepth"] = OpTexCoord
	return m
}()

// Parse lexes and parses DirectX 8 shader assembly into an IR, or returns a
// *ParseError identifying the offending line (spec §4.1).
func Parse(source string) (*IR, error) {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")

	headerLineNo := -1
	var headerText string
	for i, raw := range lines {
		l := splitLine(raw)
		if l == "" {
			continue
		}
		headerLineNo = i + 1
		headerText = l
		break
	}
	if headerLineNo == -1 {
		return nil, errAt(1, "", "missing version header")
	}
	kind, major, minor, ok := parseVersionHeader(headerText)
	if !ok {
		return nil, errAt(headerLineNo, headerText, "missing or malformed version header")
	}
	if kind == KindVertex && !(major == 1 && minor == 1) {
		return nil, errAt(headerLineNo, headerText, "unsupported vertex shader version %d.%d", major, minor)
	}
	if kind == KindPixel {
		if major != 1 || minor < 1 || minor > 4 {
			return nil, errAt(headerLineNo, headerText, "unsupported pixel shader version %d.%d", major, minor)
		}
	}

	ir := newIR(kind, major, minor)
	p := &parseState{ir: ir}

	for i := headerLineNo; i < len(lines); i++ {
		lineNo := i + 1
		line := splitLine(lines[i])
		if line == "" {
			continue
		}
		if err := p.parseLine(lineNo, line); err != nil {
			return nil, err
		}
	}
	return ir, nil
}

type parseState struct {
	ir *IR
}

func (p *parseState) parseLine(lineNo int, line string) error {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "def "), strings.HasPrefix(lower, "def\t"):
		return p.parseDef(lineNo, line)
	case strings.HasPrefix(lower, "dcl_"):
		return p.parseDcl(lineNo, line)
	case lower == "phase":
		if p.ir.Kind != KindPixel || p.ir.MinorVersion != 4 {
			return errAt(lineNo, line, "phase is only legal in ps.1.4")
		}
		p.ir.Instructions = append(p.ir.Instructions, Instruction{Opcode: OpPhase})
		return nil
	default:
		return p.parseInstruction(lineNo, line)
	}
}

// parseDef handles `def c<i>, f, f, f, f`.
func (p *parseState) parseDef(lineNo int, line string) error {
	rest := strings.TrimSpace(line[3:])
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return errAt(lineNo, line, "def requires a register and four floats")
	}
	regTok := strings.TrimSpace(parts[0])
	if len(regTok) < 2 || (regTok[0] != 'c' && regTok[0] != 'C') {
		return errAt(lineNo, line, "def target must be a constant register")
	}
	idx, err := strconv.Atoi(regTok[1:])
	if err != nil {
		return errAt(lineNo, line, "def: bad constant index %q", regTok[1:])
	}
	if idx < 0 || idx > p.ir.MaxConstantIndex() {
		return errAt(lineNo, line, "def: constant index %d out of range", idx)
	}
	floatToks := strings.Split(parts[1], ",")
	if len(floatToks) != 4 {
		return errAt(lineNo, line, "def requires exactly four floats")
	}
	var vals [4]float32
	for i, ft := range floatToks {
		f, err := strconv.ParseFloat(strings.TrimSpace(ft), 32)
		if err != nil {
			return errAt(lineNo, line, "def: bad float %q", ft)
		}
		vals[i] = float32(f)
	}
	p.ir.Constants[idx] = vals
	p.ir.Instructions = append(p.ir.Instructions, Instruction{
		Opcode: OpDef,
		Dest:   Register{Type: RegConst, Index: idx},
	})
	return nil
}

// parseDcl handles `dcl_<semantic> v<n>` (vertex shaders only).
func (p *parseState) parseDcl(lineNo int, line string) error {
	if p.ir.Kind != KindVertex {
		return errAt(lineNo, line, "dcl_ is only legal in vertex shaders")
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return errAt(lineNo, line, "dcl_ requires a semantic and a register")
	}
	semantic := strings.TrimPrefix(fields[0], "dcl_")
	regTok := fields[1]
	if len(regTok) < 2 || (regTok[0] != 'v' && regTok[0] != 'V') {
		return errAt(lineNo, line, "dcl_ target must be an input register")
	}
	idx, err := strconv.Atoi(regTok[1:])
	if err != nil {
		return errAt(lineNo, line, "dcl_: bad input index %q", regTok[1:])
	}
	p.ir.DeclaredInputs[idx] = semantic
	return nil
}

func (p *parseState) parseInstruction(lineNo int, line string) error {
	opcodeTok, modTok, operandToks, err := lexInstruction(line)
	if err != nil {
		return errAt(lineNo, line, "%v", err)
	}
	op, ok := mnemonicToOpcode[strings.ToLower(opcodeTok)]
	if !ok {
		return errAt(lineNo, line, "unrecognized opcode %q", opcodeTok)
	}
	texldSpelling := strings.ToLower(opcodeTok) == "texld"
	if texldSpelling && !(p.ir.Kind == KindPixel && p.ir.MinorVersion == 4) {
		return errAt(lineNo, line, "texld is only legal in ps.1.4")
	}

	destMod := ModNone
	if modTok != "" {
		m, ok := modifierSuffixes[strings.ToLower(modTok)]
		if !ok {
			return errAt(lineNo, line, "unknown modifier suffix %q", modTok)
		}
		destMod = m
	}

	inst := Instruction{Opcode: op, DestMod: destMod, TexldSpelling: texldSpelling}

	operandIdx := 0
	if destOpcodes[op] {
		if len(operandToks) == 0 {
			return errAt(lineNo, line, "%s requires a destination", op)
		}
		reg, err := p.parseRegister(lineNo, line, operandToks[0].text, true)
		if err != nil {
			return err
		}
		if err := p.checkDestLegality(lineNo, line, op, reg); err != nil {
			return err
		}
		inst.Dest = reg
		operandIdx = 1
	}

	for ; operandIdx < len(operandToks); operandIdx++ {
		reg, err := p.parseRegister(lineNo, line, operandToks[operandIdx].text, false)
		if err != nil {
			return err
		}
		if reg.Type == RegAddr && reg.Index == 0 && !p.ir.AddrWritten[0] {
			// a0 read before write, outside the write itself.
			return errAt(lineNo, line, "address register read before write")
		}
		if reg.Type == RegConst && reg.Relative && !p.ir.AddrWritten[0] {
			return errAt(lineNo, line, "relative addressing reads a0 before it is written")
		}
		inst.Sources = append(inst.Sources, reg)
	}

	if op == OpSinCos && len(inst.Sources) > 0 {
		src := inst.Sources[0]
		if len(src.Swizzle) > 1 {
			return errAt(lineNo, line, "sincos source must be a single scalar")
		}
	}

	p.recordUsage(op, inst)
	p.ir.Instructions = append(p.ir.Instructions, inst)
	return nil
}

// checkDestLegality enforces the register-type legality table in spec §4.1.
func (p *parseState) checkDestLegality(lineNo int, line string, op Opcode, reg Register) error {
	if op == OpTexKill || (op == OpTexCoord && reg.Type == RegTexture) {
		return nil
	}
	if p.ir.Kind == KindVertex {
		switch reg.Type {
		case RegTemp, RegAddr, RegRastOut, RegAttrOut:
			return nil
		default:
			return errAt(lineNo, line, "illegal destination register type in vertex shader")
		}
	}
	// Pixel shader.
	if p.ir.MinorVersion >= 4 {
		switch reg.Type {
		case RegTemp, RegColorOut:
			return nil
		default:
			return errAt(lineNo, line, "illegal destination register type in ps.1.4")
		}
	}
	switch reg.Type {
	case RegTemp, RegTexture, RegColorOut:
		return nil
	default:
		return errAt(lineNo, line, "illegal destination register type in pixel shader")
	}
}

func (p *parseState) recordUsage(op Opcode, inst Instruction) {
	if (op == OpMov || op == OpM4x4) && inst.Dest.Type == RegRastOut && inst.Dest.RastOut == RastOutPosition {
		p.ir.UsesPosition = true
	}
	if inst.Dest.Type == RegAddr {
		p.ir.AddrWritten[inst.Dest.Index] = true
	}
	if p.ir.Kind == KindVertex {
		if inst.Dest.Type == RegAttrOut {
			if inst.Dest.AttrOutIsTexcoord {
				p.ir.OutputTexturesUsed[inst.Dest.Index] = true
				p.ir.VaryingTexcoordsUsed[inst.Dest.Index] = true
			} else {
				p.ir.VaryingColorsUsed[inst.Dest.Index] = true
			}
		}
	} else {
		for _, s := range inst.Sources {
			switch s.Type {
			case RegTexture:
				p.ir.TextureStagesUsed[s.Index] = true
				p.ir.VaryingTexcoordsUsed[s.Index] = true
			case RegInput:
				// v0/v1 are the interpolated diffuse/specular color
				// varyings a pixel shader reads (matching oD0/oD1 written
				// by the vertex shader).
				p.ir.VaryingColorsUsed[s.Index] = true
			}
		}
	}
}

// parseRegister parses a single register token such as "-r0.xyz",
// "c[a0.x + 4]", "oPos", "oT2.xy", "v3".
func (p *parseState) parseRegister(lineNo int, line, tok string, isDest bool) (Register, error) {
	reg := Register{SrcModifier: ModNone}

	t := tok
	if strings.HasPrefix(t, "-") {
		reg.Negate = true
		t = t[1:]
	}
	// Trailing source-modifier suffix, e.g. "r0_bias".
	if !isDest {
		if idx := strings.LastIndexByte(t, '_'); idx > 0 {
			if m, ok := modifierSuffixes[strings.ToLower(t[idx+1:])]; ok && m != ModNone {
				reg.SrcModifier = m
				t = t[:idx]
			}
		}
	}

	// Split off the .swizzle / .mask suffix, looking past any "[a0.x + n]"
	// index so the dot inside the brackets is not taken for it.
	body := t
	comp := ""
	from := 0
	if end := strings.IndexByte(t, ']'); end >= 0 {
		from = end
	}
	if idx := strings.IndexByte(t[from:], '.'); idx >= 0 {
		body = t[:from+idx]
		comp = t[from+idx+1:]
	}

	if err := p.parseRegisterBody(lineNo, line, body, &reg); err != nil {
		return Register{}, err
	}
	if err := p.checkRegisterRange(lineNo, line, reg); err != nil {
		return Register{}, err
	}

	if isDest {
		if comp != "" {
			if err := validateMask(comp); err != nil {
				return Register{}, errAt(lineNo, line, "%v", err)
			}
		}
		reg.WriteMask = comp
	} else {
		if comp != "" {
			if err := validateSwizzle(comp); err != nil {
				return Register{}, errAt(lineNo, line, "%v", err)
			}
		}
		reg.Swizzle = comp
	}
	return reg, nil
}

func (p *parseState) parseRegisterBody(lineNo int, line, body string, reg *Register) error {
	lower := strings.ToLower(body)
	switch {
	case strings.HasPrefix(lower, "oc"):
		reg.Type = RegColorOut
		idx, err := strconv.Atoi(body[2:])
		if err != nil {
			return errAt(lineNo, line, "bad color-output index %q", body[2:])
		}
		reg.Index = idx
		return nil
	case lower == "opos":
		reg.Type, reg.RastOut = RegRastOut, RastOutPosition
		return nil
	case lower == "ofog":
		reg.Type, reg.RastOut = RegRastOut, RastOutFog
		return nil
	case lower == "opts":
		reg.Type, reg.RastOut = RegRastOut, RastOutPointSize
		return nil
	case strings.HasPrefix(lower, "od"):
		reg.Type, reg.AttrOutIsTexcoord = RegAttrOut, false
		idx, err := strconv.Atoi(body[2:])
		if err != nil {
			return errAt(lineNo, line, "bad attribute-output index %q", body[2:])
		}
		reg.Index = idx
		return nil
	case strings.HasPrefix(lower, "ot"):
		reg.Type, reg.AttrOutIsTexcoord = RegAttrOut, true
		idx, err := strconv.Atoi(body[2:])
		if err != nil {
			return errAt(lineNo, line, "bad attribute-output index %q", body[2:])
		}
		reg.Index = idx
		return nil
	case strings.HasPrefix(lower, "a0"):
		reg.Type = RegAddr
		reg.Index = 0
		return nil
	case strings.HasPrefix(lower, "s") && len(lower) > 1 && isDigit(lower[1]):
		reg.Type, reg.Sampler = RegTexture, true
		idx, err := strconv.Atoi(body[1:])
		if err != nil {
			return errAt(lineNo, line, "bad sampler index %q", body[1:])
		}
		reg.Index = idx
		return nil
	case strings.HasPrefix(lower, "c[") && strings.HasSuffix(lower, "]"):
		inner := body[2 : len(body)-1]
		// a0.x + <literal>
		plusIdx := strings.IndexByte(inner, '+')
		if plusIdx < 0 {
			return errAt(lineNo, line, "malformed relative address %q", body)
		}
		lit := strings.TrimSpace(inner[plusIdx+1:])
		idx, err := strconv.Atoi(lit)
		if err != nil {
			return errAt(lineNo, line, "bad relative offset %q", lit)
		}
		reg.Type, reg.Relative, reg.Index = RegConst, true, idx
		return nil
	default:
		if len(lower) < 2 {
			return errAt(lineNo, line, "malformed register %q", body)
		}
		rt, ok := registerTypePrefixes[lower[0]]
		if !ok {
			return errAt(lineNo, line, "unrecognized register sigil %q", body)
		}
		idx, err := strconv.Atoi(body[1:])
		if err != nil {
			return errAt(lineNo, line, "bad register index %q", body[1:])
		}
		reg.Type = rt
		reg.Index = idx
		return nil
	}
}

// checkRegisterRange enforces the boundary behaviors of spec §8: constant
// index limits per shader kind/version, and texture-stage index <= 7.
func (p *parseState) checkRegisterRange(lineNo int, line string, reg Register) error {
	if reg.Type == RegConst && !reg.Relative {
		if reg.Index < 0 || reg.Index > p.ir.MaxConstantIndex() {
			return errAt(lineNo, line, "constant index %d out of range", reg.Index)
		}
	}
	if reg.Type == RegTexture && (reg.Index < 0 || reg.Index > 7) {
		return errAt(lineNo, line, "texture stage %d out of range", reg.Index)
	}
	return nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func validateMask(mask string) error {
	seen := map[byte]bool{}
	for i := 0; i < len(mask); i++ {
		c := mask[i]
		if c != 'x' && c != 'y' && c != 'z' && c != 'w' {
			return fmt.Errorf("write mask component %q out of range", string(c))
		}
		if seen[c] {
			return fmt.Errorf("write mask has duplicate component %q", string(c))
		}
		seen[c] = true
	}
	return nil
}

func validateSwizzle(sw string) error {
	for i := 0; i < len(sw); i++ {
		c := sw[i]
		if c != 'x' && c != 'y' && c != 'z' && c != 'w' {
			return fmt.Errorf("swizzle component %q out of range", string(c))
		}
	}
	return nil
}
