package shader

import "testing"

func TestParseVersionHeader(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"vertex ok", "vs.1.1\ndcl_position v0\nmov oPos, v0\n", false},
		{"pixel 1.1 ok", "ps.1.1\nmov r0, c0\n", false},
		{"pixel 1.4 ok", "ps.1.4\nmov r0, c0\n", false},
		{"vertex wrong version", "vs.1.0\nmov oPos, v0\n", true},
		{"pixel wrong version", "ps.2.0\nmov r0, c0\n", true},
		{"missing header", "mov r0, c0\n", true},
		{"empty source", "\n\n", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.src)
			if (err != nil) != c.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", c.src, err, c.wantErr)
			}
		})
	}
}

func TestParseDestRegisterLegality(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"vertex writes temp", "vs.1.1\nmov r0, v0\n", false},
		{"vertex writes addr", "vs.1.1\nmov a0, v0\n", false},
		{"vertex writes oPos", "vs.1.1\nmov oPos, v0\n", false},
		{"vertex writes oT", "vs.1.1\nmov oT0, v0\n", false},
		{"vertex illegal const dest", "vs.1.1\nmov c0, v0\n", true},
		{"pixel 1.1 writes texture", "ps.1.1\nmov t0, v0\n", false},
		{"pixel 1.1 writes color", "ps.1.1\nmov oC0, v0\n", false},
		{"pixel 1.4 rejects texture dest", "ps.1.4\nmov t0, v0\n", true},
		{"pixel 1.4 writes temp", "ps.1.4\nmov r0, v0\n", false},
		{"pixel 1.4 writes color", "ps.1.4\nmov oC0, v0\n", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.src)
			if (err != nil) != c.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", c.src, err, c.wantErr)
			}
		})
	}
}

func TestParseWriteMask(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"valid mask", "vs.1.1\nmov r0.xyz, v0\n", false},
		{"duplicate component", "vs.1.1\nmov r0.xx, v0\n", true},
		{"out of range component", "vs.1.1\nmov r0.q, v0\n", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.src)
			if (err != nil) != c.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", c.src, err, c.wantErr)
			}
		})
	}
}

func TestParseSwizzle(t *testing.T) {
	_, err := Parse("vs.1.1\nmov r0, v0.q\n")
	if err == nil {
		t.Fatal("expected error for out-of-range swizzle component")
	}
}

func TestParseDefFloatCount(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"four floats", "vs.1.1\ndef c0, 1.0, 2.0, 3.0, 4.0\nmov oPos, v0\n", false},
		{"three floats", "vs.1.1\ndef c0, 1.0, 2.0, 3.0\nmov oPos, v0\n", true},
		{"five floats", "vs.1.1\ndef c0, 1.0, 2.0, 3.0, 4.0, 5.0\nmov oPos, v0\n", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.src)
			if (err != nil) != c.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", c.src, err, c.wantErr)
			}
		})
	}
}

func TestParseAddressRegisterReadBeforeWrite(t *testing.T) {
	_, err := Parse("vs.1.1\nmov r0, c[a0.x + 4]\n")
	if err == nil {
		t.Fatal("expected error reading a0 before it is written")
	}

	_, err = Parse("vs.1.1\nmov a0, v0\nmov r0, c[a0.x + 4]\n")
	if err != nil {
		t.Fatalf("unexpected error reading a0 after it was written: %v", err)
	}
}

func TestParseSinCosRequiresScalarSource(t *testing.T) {
	_, err := Parse("ps.1.1\nsincos r0, r1.xy\n")
	if err == nil {
		t.Fatal("expected error: sincos source must be scalar")
	}
	_, err = Parse("ps.1.1\nsincos r0, r1.x\n")
	if err != nil {
		t.Fatalf("unexpected error for scalar sincos source: %v", err)
	}
}

func TestParsePhaseRejectedInVertexShader(t *testing.T) {
	_, err := Parse("vs.1.1\nphase\nmov oPos, v0\n")
	if err == nil {
		t.Fatal("expected error: phase illegal in vertex shaders")
	}
}

func TestParsePhaseRequiresPs14(t *testing.T) {
	_, err := Parse("ps.1.1\nphase\nmov r0, c0\n")
	if err == nil {
		t.Fatal("expected error: phase illegal before ps.1.4")
	}
	_, err = Parse("ps.1.4\nphase\nmov r0, c0\n")
	if err != nil {
		t.Fatalf("unexpected error for phase in ps.1.4: %v", err)
	}
}

func TestParseTexldAliasRequiresPs14(t *testing.T) {
	_, err := Parse("ps.1.1\ntexld r0, t0\n")
	if err == nil {
		t.Fatal("expected error: texld illegal before ps.1.4")
	}
	ir, err := Parse("ps.1.4\ntexld r0, t0\n")
	if err != nil {
		t.Fatalf("unexpected error for texld in ps.1.4: %v", err)
	}
	if len(ir.Instructions) != 1 || ir.Instructions[0].Opcode != OpTex || !ir.Instructions[0].TexldSpelling {
		t.Fatalf("texld did not lower to an OpTex instruction with TexldSpelling set: %+v", ir.Instructions)
	}
}

func TestConstantIndexBoundary(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"vertex const 95 ok", "vs.1.1\nmov r0, c95\n", false},
		{"vertex const 96 rejected", "vs.1.1\nmov r0, c96\n", true},
		{"ps1.4 const 31 ok", "ps.1.4\nmov r0, c31\n", false},
		{"ps1.4 const 32 rejected", "ps.1.4\nmov r0, c32\n", true},
		{"ps1.1 const 7 ok", "ps.1.1\nmov r0, c7\n", false},
		{"ps1.1 const 8 rejected", "ps.1.1\nmov r0, c8\n", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.src)
			if (err != nil) != c.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", c.src, err, c.wantErr)
			}
		})
	}
}

func TestTextureStageBoundary(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"stage 7 ok", "ps.1.1\nmov r0, t7\n", false},
		{"stage 8 rejected", "ps.1.1\nmov r0, t8\n", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.src)
			if (err != nil) != c.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", c.src, err, c.wantErr)
			}
		})
	}
}

func TestParseUnknownModifierSuffixRejected(t *testing.T) {
	_, err := Parse("vs.1.1\nmov_bogus oPos, v0\n")
	if err == nil {
		t.Fatal("expected error for unknown destination modifier suffix")
	}
}
