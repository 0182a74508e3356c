package augment

import (
	"errors"
	"testing"
)

// checkOrigins checks out[c, z] against in[c, z] shifted by origin(z).
func checkOrigins(t *testing.T, key string, in, out Sample, origin func(z int) (y0, x0 int, blank bool)) {
	t.Helper()
	c, z, y, x := out[key].Dims()
	for ci := 0; ci < c; ci++ {
		for zi := 0; zi < z; zi++ {
			y0, x0, blank := origin(zi)
			for yi := 0; yi < y; yi++ {
				for xi := 0; xi < x; xi++ {
					want := float32(0)
					if !blank {
						want = in[key].At(ci, zi, yi+y0, xi+x0)
					}
					if got := out[key].At(ci, zi, yi, xi); got != want {
						t.Fatalf("%s (%d,%d,%d,%d) = %v, want %v", key, ci, zi, yi, xi, got, want)
					}
				}
			}
		}
	}
}

func TestMisalign_ShiftsFromTheCut(t *testing.T) {
	m, err := NewMisalign(MisalignConfig{Disp: [2]int{5, 10}, Margin: 2})
	if err != nil {
		t.Fatalf("NewMisalign: %v", err)
	}
	spec := Spec{"image": {1, 8, 10, 10}}
	for seed := uint64(0); seed < 6; seed++ {
		in, out, plan := episode(t, m, seed, spec, Options{})
		p := plan.(*misalignPlan)
		ty, tx := p.Displacement()
		if ty < 5 || ty >= 10 || tx < 5 || tx >= 10 {
			t.Fatalf("displacement (%d, %d) out of range", ty, tx)
		}
		if got := in["image"].Shape(); got[2] != 10+ty || got[3] != 10+tx {
			t.Fatalf("input shape %v does not carry displacement (%d, %d)", got, ty, tx)
		}
		zloc := p.Cut("image")
		if zloc < 3 || zloc > 6 {
			t.Fatalf("cut %d outside margins", zloc)
		}
		if got := out["image"].Shape(); got != [4]int{1, 8, 10, 10} {
			t.Fatalf("output shape %v", got)
		}
		checkOrigins(t, "image", in, out, func(z int) (int, int, bool) {
			if z < zloc {
				return 0, 0, false
			}
			return ty, tx, false
		})
	}
}

func TestMisalign_DeeperKeysShiftTheirCut(t *testing.T) {
	m, _ := NewMisalign(DefaultMisalignConfig())
	_, _, plan := episode(t, m, 3, Spec{"image": {1, 10, 8, 8}, "label": {1, 6, 8, 8}}, Options{})
	p := plan.(*misalignPlan)
	if got := p.Cut("image") - p.Cut("label"); got != 4 {
		t.Fatalf("want cut offset 4, got %d", got)
	}
}

func TestMisalign_Errors(t *testing.T) {
	m, _ := NewMisalign(MisalignConfig{Disp: [2]int{1, 3}, Margin: 2})
	if _, _, err := m.Prepare(newRNG(1), Spec{"image": {1, 5, 8, 8}}, Options{}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("shallow depth: want shape mismatch, got %v", err)
	}
	for _, cfg := range []MisalignConfig{
		{Disp: [2]int{5, 5}, Margin: 1},
		{Disp: [2]int{-1, 3}, Margin: 1},
		{Disp: [2]int{1, 3}, Margin: -1},
	} {
		if _, err := NewMisalign(cfg); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("config %+v: want configuration error, got %v", cfg, err)
		}
	}
	if _, err := NewMisalignPlusMissing(MisalignConfig{Disp: [2]int{1, 3}}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("zero margin: want configuration error, got %v", err)
	}
}

func TestMisalignPlusMissing_BlanksImagesInterpolatesLabels(t *testing.T) {
	m, err := NewMisalignPlusMissing(MisalignConfig{Disp: [2]int{4, 9}, Margin: 2})
	if err != nil {
		t.Fatalf("NewMisalignPlusMissing: %v", err)
	}
	spec := Spec{"image": {1, 10, 6, 6}, "label": {1, 10, 6, 6}}
	opts := Options{Imgs: []string{"image"}}
	seenMissing := map[int]bool{}
	for seed := uint64(0); seed < 24; seed++ {
		in, out, plan := episode(t, m, seed, spec, opts)
		p := plan.(*misalignPlan)
		ty, tx := p.Displacement()
		zloc := p.Cut("image")
		first := zloc - p.missing + 1
		seenMissing[p.missing] = true
		checkOrigins(t, "image", in, out, func(z int) (int, int, bool) {
			switch {
			case z < first:
				return 0, 0, false
			case z > zloc:
				return ty, tx, false
			}
			return 0, 0, true
		})
		checkOrigins(t, "label", in, out, func(z int) (int, int, bool) {
			switch {
			case z < first:
				return 0, 0, false
			case z > zloc:
				return ty, tx, false
			}
			y0, x0 := p.interpolate(z - first + 1)
			if y0 < 0 || y0 > ty || x0 < 0 || x0 > tx {
				t.Fatalf("interpolated origin (%d, %d) outside [0, (%d, %d)]", y0, x0, ty, tx)
			}
			return y0, x0, false
		})
	}
	if !seenMissing[1] || !seenMissing[2] {
		t.Fatalf("want one and two missing slices over seeds, got %v", seenMissing)
	}
}

func TestMisalignPlusMissing_NeedsImageKeys(t *testing.T) {
	m, _ := NewMisalignPlusMissing(DefaultMisalignConfig())
	if _, _, err := m.Prepare(newRNG(1), Spec{"image": {1, 12, 8, 8}}, Options{}); !errors.Is(err, ErrContractViolation) {
		t.Fatalf("want contract violation, got %v", err)
	}
}

func TestMisalignPlan_Interpolate(t *testing.T) {
	p := &misalignPlan{ty: 9, tx: 6, missing: 2}
	for i, want := range [][2]int{{3, 2}, {6, 4}} {
		y0, x0 := p.interpolate(i + 1)
		if y0 != want[0] || x0 != want[1] {
			t.Fatalf("slice %d: want %v, got (%d, %d)", i+1, want, y0, x0)
		}
	}
}

func TestSlipMisalign_OnlyTheCutSlips(t *testing.T) {
	for _, interp := range []bool{false, true} {
		m, err := NewSlipMisalign(MisalignConfig{Disp: [2]int{2, 5}, Margin: 1}, interp)
		if err != nil {
			t.Fatalf("NewSlipMisalign: %v", err)
		}
		spec := Spec{"image": {1, 6, 5, 5}, "label": {1, 6, 5, 5}}
		in, out, plan := episode(t, m, 8, spec, Options{Imgs: []string{"image"}})
		p := plan.(*misalignPlan)
		ty, tx := p.Displacement()
		zloc := p.Cut("image")
		slip := func(follow bool) func(int) (int, int, bool) {
			return func(z int) (int, int, bool) {
				if z == zloc && follow {
					return ty, tx, false
				}
				return 0, 0, false
			}
		}
		checkOrigins(t, "image", in, out, slip(true))
		checkOrigins(t, "label", in, out, slip(interp))
	}
}

func TestSlipMisalign_WithoutImagesEveryKeySlips(t *testing.T) {
	m, _ := NewSlipMisalign(MisalignConfig{Disp: [2]int{2, 5}, Margin: 1}, false)
	spec := Spec{"image": {1, 6, 5, 5}, "label": {1, 6, 5, 5}}
	_, out, _ := episode(t, m, 2, spec, Options{})
	if !out["image"].Equal(out["label"]) {
		t.Fatalf("want identical slips for every key")
	}
}
