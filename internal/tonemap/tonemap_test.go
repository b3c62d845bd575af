package tonemap

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"defaults", DefaultParams(), false},
		{"min curve", Params{Exposure: 0.5, Curve: Reinhard}, false},
		{"max curve", Params{Exposure: 2.0, Curve: Uchimura}, false},
		{"zero exposure", Params{Exposure: 0, Curve: Reinhard}, true},
		{"negative exposure", Params{Exposure: -1, Curve: Reinhard}, true},
		{"curve out of range", Params{Exposure: 1, Curve: Curve(8)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDeterministic(t *testing.T) {
	// Re-running with identical parameters on identical input must
	// produce identical output for every curve.
	in := [3]float32{0.8, 0.25, 1.6}
	for c := Reinhard; c < curveCount; c++ {
		p := Params{Exposure: 1.3, Curve: c}
		first := Apply(in, p)
		for i := 0; i < 10; i++ {
			if got := Apply(in, p); got != first {
				t.Fatalf("%s: run %d produced %v, first run %v", c, i, got, first)
			}
		}
	}
}

func TestApplyOutputInRange(t *testing.T) {
	inputs := [][3]float32{
		{0, 0, 0},
		{1, 1, 1},
		{0.01, 0.5, 0.99},
		{4, 8, 16},
		{1000, 1000, 1000},
	}
	for c := Reinhard; c < curveCount; c++ {
		for _, in := range inputs {
			out := Apply(in, Params{Exposure: 1, Curve: c})
			for i, v := range out {
				if v < 0 || v > 1 {
					t.Fatalf("%s: channel %d of %v mapped to %v, outside [0,1]", c, i, in, v)
				}
			}
		}
	}
}

func TestApplyExposureMonotone(t *testing.T) {
	// For a fixed non-black pixel, raising exposure must strictly
	// raise at least one output channel.
	in := [3]float32{0.3, 0.5, 0.2}
	for c := Reinhard; c < curveCount; c++ {
		lo := Apply(in, Params{Exposure: 0.5, Curve: c})
		hi := Apply(in, Params{Exposure: 1.5, Curve: c})
		raised := false
		for i := range lo {
			if hi[i] > lo[i] {
				raised = true
			}
		}
		if !raised {
			t.Fatalf("%s: no channel raised by higher exposure (lo=%v hi=%v)", c, lo, hi)
		}
	}
}

func TestApplyBlackStaysBlack(t *testing.T) {
	for c := Reinhard; c < curveCount; c++ {
		out := Apply([3]float32{0, 0, 0}, Params{Exposure: 2, Curve: c})
		for i, v := range out {
			if v > 0.01 {
				t.Fatalf("%s: black input produced channel %d = %v", c, i, v)
			}
		}
	}
}

func TestCurveString(t *testing.T) {
	if got := ACESHill.String(); got != "ACES Hill" {
		t.Fatalf("ACESHill.String() = %q", got)
	}
	if got := Curve(99).String(); !strings.Contains(got, "99") {
		t.Fatalf("out-of-range String() = %q", got)
	}
}

func TestShaderSourceMentionsAllCurves(t *testing.T) {
	// The WGSL switch must dispatch every curve the CPU reference knows.
	for _, fn := range []string{
		"reinhard", "aces_fast", "aces_hill", "aces_day",
		"hable", "reinhard_extended", "uchimura",
	} {
		if !strings.Contains(shaderWGSL, "fn "+fn) {
			t.Errorf("shader missing curve function %q", fn)
		}
	}
	for i := 0; i < int(curveCount); i++ {
		if !strings.Contains(shaderWGSL, "case "+string(rune('0'+i))+"u:") {
			t.Errorf("shader switch missing case %du", i)
		}
	}
	if !strings.Contains(shaderWGSL, "@workgroup_size(16, 16)") {
		t.Error("shader workgroup size does not match WorkgroupSize")
	}
}
