package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ShadowDevAt42/ftplace-script/internal/config"
	"github.com/ShadowDevAt42/ftplace-script/internal/pattern"
)

func writePattern(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	body := `{"pattern":[{"x":0,"y":0,"color":4}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write pattern: %v", err)
	}
	return path
}

func emptySlots() []slotFlags {
	slots := make([]slotFlags, 0, 5)
	for _, name := range []string{"defensive1", "defensive2", "build1", "build2", "build3"} {
		empty := ""
		zeroX := 0
		zeroY := 0
		slots = append(slots, slotFlags{name: name, pattern: &empty, x: &zeroX, y: &zeroY})
	}
	return slots
}

func TestLoadTargets_FlagOverridesConfigSlot(t *testing.T) {
	cfgPattern := writePattern(t, "cfg.json")
	flagPattern := writePattern(t, "flag.json")

	cfg := config.Config{
		Targets: []config.TargetSpec{
			{Tier: "defensive1", Pattern: cfgPattern, X: 1, Y: 2},
		},
	}
	slots := emptySlots()
	*slots[0].pattern = flagPattern
	*slots[0].x = 40
	*slots[0].y = 60

	set, err := loadTargets(cfg, slots)
	if err != nil {
		t.Fatalf("loadTargets: %v", err)
	}
	targets := set.Targets()
	if len(targets) != 1 {
		t.Fatalf("targets: %d", len(targets))
	}
	if targets[0].Pattern.OriginX != 40 || targets[0].Pattern.OriginY != 60 {
		t.Fatalf("flag origin should win: %+v", targets[0].Pattern)
	}
}

func TestLoadTargets_ConfigAndFlagSlotsMerge(t *testing.T) {
	cfg := config.Config{
		Targets: []config.TargetSpec{
			{Tier: "build1", Pattern: writePattern(t, "b1.json"), X: 5, Y: 5},
		},
	}
	slots := emptySlots()
	*slots[0].pattern = writePattern(t, "d1.json")

	set, err := loadTargets(cfg, slots)
	if err != nil {
		t.Fatalf("loadTargets: %v", err)
	}
	targets := set.Targets()
	if len(targets) != 2 {
		t.Fatalf("targets: %d", len(targets))
	}
	if targets[0].Tier != pattern.TierDefensivePrimary || targets[1].Tier != pattern.TierBuild1 {
		t.Fatalf("tier order: %v, %v", targets[0].Tier, targets[1].Tier)
	}
}

func TestLoadTargets_RequiresDefensivePrimary(t *testing.T) {
	cfg := config.Config{
		Targets: []config.TargetSpec{
			{Tier: "build1", Pattern: writePattern(t, "b1.json")},
		},
	}
	if _, err := loadTargets(cfg, emptySlots()); err == nil {
		t.Fatalf("expected error without a defensive1 slot")
	}
}
