package pattern

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadFile_OK(t *testing.T) {
	p := writeTemp(t, "heart.json", `{"pattern":[{"x":0,"y":0,"color":4},{"x":1,"y":1,"color":6}]}`)
	tg, err := LoadFile(p, 100, 50, TierBuild1)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tg.Tier != TierBuild1 {
		t.Fatalf("tier: got %s", tg.Tier)
	}
	if tg.Pattern.OriginX != 100 || tg.Pattern.OriginY != 50 {
		t.Fatalf("origin: got (%d,%d)", tg.Pattern.OriginX, tg.Pattern.OriginY)
	}
	want := []PixelSpec{{0, 0, 4}, {1, 1, 6}}
	if len(tg.Pattern.Pixels) != len(want) {
		t.Fatalf("pixels: got %d want %d", len(tg.Pattern.Pixels), len(want))
	}
	for i := range want {
		if tg.Pattern.Pixels[i] != want[i] {
			t.Fatalf("pixel %d: got %+v want %+v", i, tg.Pattern.Pixels[i], want[i])
		}
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not_json", `{"pattern":`},
		{"missing_pattern", `{"pixels":[]}`},
		{"empty_pattern", `{"pattern":[]}`},
		{"color_out_of_range", `{"pattern":[{"x":0,"y":0,"color":17}]}`},
		{"color_zero", `{"pattern":[{"x":0,"y":0,"color":0}]}`},
		{"missing_color", `{"pattern":[{"x":0,"y":0}]}`},
		{"float_coord", `{"pattern":[{"x":0.5,"y":0,"color":1}]}`},
	}
	for _, c := range cases {
		p := writeTemp(t, c.name+".json", c.content)
		_, err := LoadFile(p, 0, 0, TierDefensivePrimary)
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("%s: expected FormatError, got %T", c.name, err)
		}
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), 0, 0, TierDefensivePrimary)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestNewSet_SortsAndValidates(t *testing.T) {
	px := []PixelSpec{{0, 0, 1}}
	set, err := NewSet([]Target{
		{Tier: TierBuild2, Pattern: Pattern{Pixels: px}},
		{Tier: TierDefensivePrimary, Pattern: Pattern{Pixels: px}},
		{Tier: TierDefensiveSecondary, Pattern: Pattern{Pixels: px}},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	got := set.Targets()
	wantOrder := []Tier{TierDefensivePrimary, TierDefensiveSecondary, TierBuild2}
	for i, w := range wantOrder {
		if got[i].Tier != w {
			t.Fatalf("order[%d]: got %s want %s", i, got[i].Tier, w)
		}
	}
}

func TestNewSet_RequiresPrimary(t *testing.T) {
	px := []PixelSpec{{0, 0, 1}}
	if _, err := NewSet([]Target{{Tier: TierBuild1, Pattern: Pattern{Pixels: px}}}); err == nil {
		t.Fatalf("expected error without defensive1 target")
	}
}

func TestNewSet_RejectsDuplicateTier(t *testing.T) {
	px := []PixelSpec{{0, 0, 1}}
	_, err := NewSet([]Target{
		{Tier: TierDefensivePrimary, Pattern: Pattern{Pixels: px}},
		{Tier: TierDefensivePrimary, Pattern: Pattern{Pixels: px}},
	})
	if err == nil {
		t.Fatalf("expected error for duplicate tier")
	}
}
