package model

import (
	"strings"

	"github.com/wowee/azerite/pkg/mathx"
)

// Classification is the policy bundle derived once at load time from
// the model's name and shape. Collision and update scheduling read it;
// nothing else does.
type Classification struct {
	SteppedFountain    bool
	SteppedLowPlatform bool
	Planter            bool
	Bridge             bool
	Statue             bool
	SmallSolidProp     bool
	NarrowVerticalProp bool
	TreeTrunk          bool
	SmallFoliage       bool
	GroundDetail       bool
	InvisibleTrap      bool
	SpellEffect        bool
	Smoke              bool
	NoBlock            bool
}

// StepUpCeiling returns how far above the query point a candidate floor
// may sit and still be climbable. Tall walkable props get generous
// ceilings so their tops stay reachable.
func (c Classification) StepUpCeiling() float32 {
	switch {
	case c.Bridge:
		return 3.0
	case c.Statue:
		return 2.5
	case c.SteppedFountain:
		return 2.0
	case c.Planter:
		return 1.5
	case c.SmallSolidProp:
		return 1.2
	default:
		return 1.0
	}
}

// Blocks reports whether the model participates in wall collision.
func (c Classification) Blocks() bool {
	return !c.NoBlock && !c.SmallFoliage && !c.GroundDetail &&
		!c.InvisibleTrap && !c.SpellEffect && !c.Smoke
}

// name token groups, matched against the lowercased model path.
var (
	foliageTokens  = []string{"bush", "shrub", "flower", "weed", "fern", "plant", "sunflower", "thistle"}
	detailTokens   = []string{"grass", "groundcover", "detail_"}
	fountainTokens = []string{"fountain"}
	planterTokens  = []string{"planter", "trough"}
	bridgeTokens   = []string{"bridge", "walkway", "ramp"}
	statueTokens   = []string{"statue", "monument", "obelisk"}
	trapTokens     = []string{"trap", "trigger"}
	effectTokens   = []string{"spell", "fx_", "_fx", "impact", "missile"}
	smokeTokens    = []string{"smoke", "chimney"}
	treeTokens     = []string{"tree", "oak", "pine", "palm", "elm", "birch"}
	noBlockTokens  = []string{"vine", "cobweb", "web", "banner", "flag"}
	platformTokens = []string{"platform", "dais", "pedestal", "step"}
)

// Classify derives the policy bundle from a model name and its tight
// local bounds.
func Classify(name string, bounds mathx.AABB) Classification {
	var c Classification

	lower := strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	size := bounds.Size()
	width := size.X()
	depth := size.Y()
	height := size.Z()
	footprint := width
	if depth > footprint {
		footprint = depth
	}

	c.SteppedFountain = hasToken(lower, fountainTokens)
	c.Planter = hasToken(lower, planterTokens)
	c.Bridge = hasToken(lower, bridgeTokens)
	c.Statue = hasToken(lower, statueTokens)
	c.InvisibleTrap = hasToken(lower, trapTokens)
	c.SpellEffect = hasToken(lower, effectTokens)
	c.Smoke = hasToken(lower, smokeTokens)
	// "planter" would match the "plant" foliage token.
	c.SmallFoliage = hasToken(lower, foliageTokens) && height < 4 && !c.Planter
	c.GroundDetail = hasToken(lower, detailTokens) && height < 1.5
	c.NoBlock = hasToken(lower, noBlockTokens)

	if hasToken(lower, treeTokens) && !c.SmallFoliage {
		c.TreeTrunk = true
	}

	// Shape heuristics refine or substitute for name matches.
	if height > 2.5 && footprint > 0 && height > footprint*3 {
		c.NarrowVerticalProp = true
	}
	if height < 1.5 && footprint > 3 && (hasToken(lower, platformTokens) || c.Planter) {
		c.SteppedLowPlatform = true
	}
	if height < 2 && footprint < 2 && !c.SmallFoliage && !c.GroundDetail {
		c.SmallSolidProp = true
	}

	return c
}

func hasToken(name string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}
