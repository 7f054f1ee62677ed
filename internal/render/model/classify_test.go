package model

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/pkg/mathx"
)

func box(w, d, h float32) mathx.AABB {
	return mathx.AABB{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{w, d, h}}
}

func TestClassifyByName(t *testing.T) {
	tests := []struct {
		name   string
		bounds mathx.AABB
		check  func(c Classification) bool
		desc   string
	}{
		{"World\\Generic\\Human\\Fountain01.m2", box(6, 6, 3),
			func(c Classification) bool { return c.SteppedFountain }, "fountain"},
		{"World\\Azeroth\\Stormwind\\CanalBridge.m2", box(12, 4, 1),
			func(c Classification) bool { return c.Bridge }, "bridge"},
		{"World\\Generic\\HeroStatue.m2", box(2.2, 2.2, 3),
			func(c Classification) bool { return c.Statue }, "statue"},
		{"World\\Generic\\StonePlanter02.m2", box(1.5, 1.5, 0.8),
			func(c Classification) bool { return c.Planter }, "planter"},
		{"World\\Azeroth\\Elwynn\\Bush03.m2", box(1, 1, 1.2),
			func(c Classification) bool { return c.SmallFoliage }, "foliage"},
		{"World\\Generic\\GrassClumpA.m2", box(0.8, 0.8, 0.4),
			func(c Classification) bool { return c.GroundDetail }, "ground detail"},
		{"World\\Azeroth\\Elwynn\\CanopyTree01.m2", box(5, 5, 14),
			func(c Classification) bool { return c.TreeTrunk }, "tree"},
		{"World\\Generic\\GuildBanner.m2", box(1, 0.2, 3),
			func(c Classification) bool { return c.NoBlock }, "no-block"},
		{"World\\Generic\\ChimneySmoke01.m2", box(1, 1, 4),
			func(c Classification) bool { return c.Smoke }, "smoke"},
		{"Spells\\Fire_Missile_Impact.m2", box(1, 1, 1),
			func(c Classification) bool { return c.SpellEffect }, "spell effect"},
		{"World\\Generic\\FloorTrigger01.m2", box(2, 2, 0.1),
			func(c Classification) bool { return c.InvisibleTrap }, "trap"},
	}

	for _, tt := range tests {
		c := Classify(tt.name, tt.bounds)
		if !tt.check(c) {
			t.Errorf("%s: %q not classified as %s: %+v", tt.desc, tt.name, tt.desc, c)
		}
	}
}

func TestClassifyShapeHeuristics(t *testing.T) {
	// Tall and thin with no matching name tokens.
	c := Classify("World\\Generic\\IronLamp01.m2", box(0.6, 0.6, 5))
	if !c.NarrowVerticalProp {
		t.Errorf("tall thin prop not NarrowVerticalProp: %+v", c)
	}

	// Low and wide with a platform token.
	c = Classify("World\\Generic\\StoneDais01.m2", box(7, 7, 0.9))
	if !c.SteppedLowPlatform {
		t.Errorf("low wide dais not SteppedLowPlatform: %+v", c)
	}

	// Small and solid.
	c = Classify("World\\Generic\\WoodCrate01.m2", box(1.1, 1.1, 1.1))
	if !c.SmallSolidProp {
		t.Errorf("crate not SmallSolidProp: %+v", c)
	}

	// Tall foliage keeps blocking: bush token but above the height cap.
	c = Classify("World\\Generic\\GiantBush.m2", box(3, 3, 6))
	if c.SmallFoliage {
		t.Errorf("tall bush should not be SmallFoliage: %+v", c)
	}
}

func TestClassificationBlocks(t *testing.T) {
	tests := []struct {
		name   string
		bounds mathx.AABB
		blocks bool
	}{
		{"World\\Generic\\WoodCrate01.m2", box(1, 1, 1), true},
		{"World\\Generic\\HeroStatue.m2", box(2.2, 2.2, 3), true},
		{"World\\Azeroth\\Elwynn\\Bush03.m2", box(1, 1, 1.2), false},
		{"World\\Generic\\GrassClumpA.m2", box(0.8, 0.8, 0.4), false},
		{"World\\Generic\\GuildBanner.m2", box(1, 0.2, 3), false},
		{"World\\Generic\\FloorTrigger01.m2", box(2, 2, 0.1), false},
		{"World\\Generic\\ChimneySmoke01.m2", box(1, 1, 4), false},
		{"Spells\\Fire_Missile_Impact.m2", box(1, 1, 1), false},
	}
	for _, tt := range tests {
		if got := Classify(tt.name, tt.bounds).Blocks(); got != tt.blocks {
			t.Errorf("Blocks(%q) = %v, want %v", tt.name, got, tt.blocks)
		}
	}
}

func TestStepUpCeiling(t *testing.T) {
	tests := []struct {
		c    Classification
		want float32
	}{
		{Classification{Bridge: true}, 3.0},
		{Classification{Statue: true}, 2.5},
		{Classification{SteppedFountain: true}, 2.0},
		{Classification{Planter: true}, 1.5},
		{Classification{SmallSolidProp: true}, 1.2},
		{Classification{}, 1.0},
		// Bridge wins when several flags are set.
		{Classification{Bridge: true, SmallSolidProp: true}, 3.0},
	}
	for _, tt := range tests {
		if got := tt.c.StepUpCeiling(); got != tt.want {
			t.Errorf("StepUpCeiling(%+v) = %v, want %v", tt.c, got, tt.want)
		}
	}
}
