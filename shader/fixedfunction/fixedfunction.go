// Package fixedfunction synthesizes a vertex/fragment shader pair for the
// legacy, state-driven D3D8 fixed-function pipeline (spec §4.8), built by
// generating DX8 shader assembly text and routing it through the same
// lexer/parser/emitter pipeline a programmable shader uses, rather than
// hand-building IR or target-language text directly. This keeps exactly one
// instruction-lowering path (emitglsl/emitwgsl), matching spec §9's design
// note that target-A/target-B should "share the instruction-lowering logic
// and differ only in syntax tables."
package fixedfunction

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dx8gl/dx8gl/shader"
	"github.com/dx8gl/dx8gl/shader/emitglsl"
	"github.com/dx8gl/dx8gl/shader/emitwgsl"
)

// Config enumerates the fixed-function state that drives synthesis
// (spec §4.8). It is itself the cache key: repeated configurations reuse
// the same generated pair.
type Config struct {
	LightingEnabled     bool
	FogEnabled          bool
	TextureStageBitmask uint8 // bit i set => texture stage i is enabled
	VertexHasColor      bool
	TransformTexcoords  bool

	// DepthBiasScale resolves the D3DRS_ZBIAS open question of spec §9:
	// bias = zbias_level * DepthBiasScale / 16777215.0 (24-bit NDC range).
	// The synthesizer does not read it and emits no depth bias; the field
	// only takes part in the Config cache key.
	DepthBiasScale float32
}

// Pair is a synthesized vertex+fragment shader pair, expressed both as DX8
// assembly source (for round-tripping through the bytecode encoder like any
// other shader) and as translated target source ready for a backend.
type Pair struct {
	VertexSource   string
	FragmentSource string
	VertexIR       *shader.IR
	FragmentIR     *shader.IR
}

// Target selects which high-level shading language a Pair is translated to.
type Target int

const (
	TargetGLSL Target = iota
	TargetWGSL
)

// Synthesizer builds and caches fixed-function shader pairs, keyed on
// Config (spec §4.8: "cached on the configuration itself").
type Synthesizer struct {
	mu    sync.Mutex
	pairs map[Config]*Pair
}

// NewSynthesizer creates an empty synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{pairs: make(map[Config]*Pair)}
}

// Synthesize returns the cached Pair for cfg, generating and parsing it on
// first use.
func (s *Synthesizer) Synthesize(cfg Config) (*Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pairs[cfg]; ok {
		return p, nil
	}

	vsSrc := generateVertexSource(cfg)
	fsSrc := generateFragmentSource(cfg)

	vsIR, err := shader.Parse(vsSrc)
	if err != nil {
		return nil, fmt.Errorf("fixedfunction: vertex synthesis: %w", err)
	}
	fsIR, err := shader.Parse(fsSrc)
	if err != nil {
		return nil, fmt.Errorf("fixedfunction: fragment synthesis: %w", err)
	}

	p := &Pair{VertexSource: vsSrc, FragmentSource: fsSrc, VertexIR: vsIR, FragmentIR: fsIR}
	s.pairs[cfg] = p
	return p, nil
}

// Translate lowers a synthesized Pair to the requested target language.
func Translate(p *Pair, target Target) (vs, fs string, err error) {
	switch target {
	case TargetGLSL:
		vs, err = emitglsl.Emit(p.VertexIR)
		if err != nil {
			return "", "", err
		}
		fs, err = emitglsl.Emit(p.FragmentIR)
		return vs, fs, err
	case TargetWGSL:
		vs, err = emitwgsl.Emit(p.VertexIR)
		if err != nil {
			return "", "", err
		}
		fs, err = emitwgsl.Emit(p.FragmentIR)
		return vs, fs, err
	default:
		return "", "", fmt.Errorf("fixedfunction: unknown target %d", target)
	}
}

// activeStages returns the sorted list of texture stage indices enabled by
// the bitmask, stages 0-7 per spec §4.1's texture-stage boundary.
func activeStages(mask uint8) []int {
	var stages []int
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) != 0 {
			stages = append(stages, i)
		}
	}
	return stages
}

// generateVertexSource builds the vs.1.1 assembly for cfg, following the
// structure of spec §4.8's generated-vertex-shader list:
//  1. inputs: position always; normal iff lighting; color iff
//     vertex-has-color; texcoord_i iff stage i enabled.
//  2. body: transform position via c0-c3; accumulate directional-light
//     diffuse into the output color if lighting is enabled; multiply by
//     vertex color if present; compute a linear fog factor if enabled;
//     optionally transform each texcoord by its per-stage matrix.
func generateVertexSource(cfg Config) string {
	var b strings.Builder
	b.WriteString("vs.1.1\n")
	b.WriteString("dcl_position v0\n")
	nextInput := 1
	normalReg, colorReg := -1, -1
	if cfg.LightingEnabled {
		normalReg = nextInput
		fmt.Fprintf(&b, "dcl_normal v%d\n", normalReg)
		nextInput++
	}
	if cfg.VertexHasColor {
		colorReg = nextInput
		fmt.Fprintf(&b, "dcl_color v%d\n", colorReg)
		nextInput++
	}
	stages := activeStages(cfg.TextureStageBitmask)
	texInputs := make(map[int]int, len(stages))
	for _, stage := range stages {
		texInputs[stage] = nextInput
		fmt.Fprintf(&b, "dcl_texcoord v%d\n", nextInput)
		nextInput++
	}

	b.WriteString("m4x4 oPos, v0, c0\n")

	if cfg.LightingEnabled {
		// c20 holds the light direction, c21 the diffuse color (fixed
		// constant slots reserved by this synthesizer's own convention).
		b.WriteString("dp3 r0, v" + itoa(normalReg) + ", c20\n")
		b.WriteString("mul r0, r0, c21\n")
		if cfg.VertexHasColor {
			b.WriteString("mul r0, r0, v" + itoa(colorReg) + "\n")
		}
		b.WriteString("mov oD0, r0\n")
	} else if cfg.VertexHasColor {
		b.WriteString("mov oD0, v" + itoa(colorReg) + "\n")
	} else {
		b.WriteString("mov oD0, c22\n") // flat material color, fixed slot
	}

	if cfg.FogEnabled {
		// c23 = {fogStart, fogEnd, 1/(fogEnd-fogStart), 0}; linear factor
		// (fogEnd - z) / (fogEnd - fogStart) from clip-space depth oPos.z,
		// replicated into every component of r1.
		b.WriteString("mov r1, oPos\n")
		b.WriteString("sub r1, c23.yyyy, r1.zzzz\n")
		b.WriteString("mul r1, r1, c23.zzzz\n")
		b.WriteString("mov oFog, r1\n")
	}

	for _, stage := range stages {
		in := texInputs[stage]
		out := stage // oT<stage> feeds t<stage> in the fragment shader
		if cfg.TransformTexcoords {
			base := 24 + stage*4 // per-stage texture matrix base constant
			fmt.Fprintf(&b, "m4x4 oT%d, v%d, c%d\n", out, in, base)
		} else {
			fmt.Fprintf(&b, "mov oT%d, v%d\n", out, in)
		}
	}

	return b.String()
}

// generateFragmentSource builds the ps.1.4 assembly mirroring the vertex
// outputs: samples each enabled texture stage, modulates them in
// declared order against the vertex color, and mixes with a fog color when
// fog is enabled (spec §4.8). No alpha-test discard is emitted; c0 holds a
// threshold value that no instruction reads.
func generateFragmentSource(cfg Config) string {
	var b strings.Builder
	b.WriteString("ps.1.4\n")
	b.WriteString("def c0, 0.5, 0.5, 0.5, 0.5\n") // alpha-test threshold value, unused

	stages := activeStages(cfg.TextureStageBitmask)
	for i, stage := range stages {
		fmt.Fprintf(&b, "texld r%d, t%d\n", i, stage)
	}

	b.WriteString("mov r7, v0\n") // v0 stands in for the interpolated vertex color
	for i := range stages {
		fmt.Fprintf(&b, "mul r7, r7, r%d\n", i)
	}

	if cfg.FogEnabled {
		b.WriteString("mov r6, c1\n") // fog color, fixed slot
		b.WriteString("lrp r7, v1, r7, r6\n")
	}

	b.WriteString("mov oC0, r7\n")
	return b.String()
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}
