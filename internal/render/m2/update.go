package m2

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/wowee/azerite/internal/render/anim"
	"github.com/wowee/azerite/internal/render/model"
	"github.com/wowee/azerite/pkg/mathx"
)

const (
	// animMaxDistance is how far from the camera skeletons still animate.
	animMaxDistance = 100.0

	// animAmbientDistance extends that range for slow ambient sway
	// such as trees and foliage, whose freeze is visible from further
	// away than a creature's idle.
	animAmbientDistance = 180.0

	// animNearDistance keeps skeletons near the camera animating even
	// when frustum-culled, so they are not mid-pose when turned back to.
	animNearDistance = 20.0

	// fadeInPerSecond ramps freshly placed instances to full opacity.
	fadeInPerSecond = 2.0
)

// Update advances movement, sequencing and skeletons by dt seconds.
// Bone computation runs on the worker pool when enough instances are
// animating; everything else is single-threaded.
func (r *Renderer) Update(dt float32, cameraPos mgl32.Vec3, frustum *mathx.Frustum) {
	r.animList = r.animList[:0]

	for _, inst := range r.instances {
		if inst.FadeIn < 1 {
			inst.FadeIn = mathx.Clamp01(inst.FadeIn + dt*fadeInPerSecond)
		}

		r.updateMovement(inst, dt)
		if inst.attach != nil {
			continue // posed from the parent bone after its skeleton updates
		}
		if !inst.Playing {
			continue
		}

		m := r.registry.Get(inst.ModelID)
		if m == nil || !m.HasAnimation || len(m.Sequences) == 0 {
			continue
		}

		if !r.animationWorthy(inst, m, cameraPos, frustum) {
			continue
		}

		r.advanceSequence(inst, m, dt)
		r.animList = append(r.animList, inst)
	}

	r.computeBones(r.animList)
	r.updateAttachments()
}

// animationWorthy decides whether an instance's skeleton is worth
// advancing this frame. Ambient models animate out to a larger radius
// than creatures and props.
func (r *Renderer) animationWorthy(inst *Instance, m *model.Model, cameraPos mgl32.Vec3, frustum *mathx.Frustum) bool {
	limit := float32(animMaxDistance)
	if m.Class.TreeTrunk || m.Class.SmallFoliage || m.Class.GroundDetail {
		limit = animAmbientDistance
	}

	d := inst.Position.Sub(cameraPos).Len()
	if d > limit {
		return false
	}
	if d <= animNearDistance {
		return true
	}
	if frustum != nil && !frustum.IntersectsAABB(inst.WorldBounds) {
		return false
	}
	return true
}

func (r *Renderer) updateMovement(inst *Instance, dt float32) {
	if !inst.moving {
		return
	}

	inst.moveT += dt
	t := mathx.Clamp01(inst.moveT / inst.moveDur)
	inst.Position = mathx.Mix(inst.moveFrom, inst.moveTo, t)
	r.refreshTransform(inst)
	r.grid.Update(inst.ID, inst.WorldBounds)

	if t >= 1 {
		inst.moving = false
		r.returnToIdle(inst)
	}
}

// advanceSequence moves the animation clock and handles sequence
// transitions: one-shot endings, variation endings and the idle
// variation timer.
func (r *Renderer) advanceSequence(inst *Instance, m *model.Model, dt float32) {
	seq := m.Sequences[inst.SequenceIndex]
	dur := float64(seq.Duration)

	inst.AnimTime += float64(dt) * 1000 * float64(inst.AnimSpeed)

	if !inst.Loop && dur > 0 && inst.AnimTime >= dur {
		if inst.playingVariation {
			r.returnToIdle(inst)
		} else {
			// One-shot requested by the caller: hold the final pose.
			inst.AnimTime = dur
			inst.Playing = false
		}
	} else if inst.Loop && inst.SequenceIndex == inst.idleSequence && len(m.IdleVariations) > 1 {
		inst.variationTimer -= dt
		if inst.variationTimer <= 0 {
			r.playVariation(inst, m.IdleVariations)
		}
	}

	inst.frameTimeMs = uint32(anim.WrapTime(inst.AnimTime, dur, inst.Loop))
}

// playVariation switches to a random idle variation other than the base
// idle. Variations play once and fall back to the base idle.
func (r *Renderer) playVariation(inst *Instance, variations []int) {
	pick := variations[r.rng.Intn(len(variations))]
	if pick == inst.idleSequence && len(variations) > 1 {
		pick = variations[(indexOf(variations, pick)+1)%len(variations)]
	}
	inst.SequenceIndex = pick
	inst.AnimTime = 0
	inst.Loop = false
	inst.playingVariation = true
}

func (r *Renderer) returnToIdle(inst *Instance) {
	inst.SequenceIndex = inst.idleSequence
	inst.AnimTime = 0
	inst.Loop = true
	inst.Playing = true
	inst.playingVariation = false
	inst.variationTimer = r.variationDelay()
}

// computeBones evaluates the skeleton of every queued instance, in
// parallel when the batch is big enough to pay for the fan-out.
func (r *Renderer) computeBones(list []*Instance) {
	if len(list) == 0 {
		return
	}

	if len(list) < r.cfg.ParallelMin || r.cfg.DoodadThreads <= 1 {
		for _, inst := range list {
			r.computeInstanceBones(inst)
		}
		return
	}

	workers := r.cfg.DoodadThreads
	perThread := r.cfg.WorkPerThread
	if perThread < 1 {
		perThread = 1
	}
	if need := (len(list) + perThread - 1) / perThread; workers > need {
		workers = need
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (len(list) + workers - 1) / workers
	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if lo >= len(list) {
			break
		}
		if hi > len(list) {
			hi = len(list)
		}
		part := list[lo:hi]
		g.Go(func() error {
			for _, inst := range part {
				r.computeInstanceBones(inst)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Renderer) computeInstanceBones(inst *Instance) {
	m := r.registry.Get(inst.ModelID)
	if m == nil || len(m.Bones) == 0 {
		return
	}
	if len(inst.BoneMatrices) != len(m.Bones) {
		inst.BoneMatrices = make([]mgl32.Mat4, len(m.Bones))
	}
	anim.ComputeBoneMatrices(m.Bones, inst.SequenceIndex, inst.frameTimeMs, m.GlobalDurations, inst.BoneMatrices)
}

func indexOf(vals []int, v int) int {
	for i, x := range vals {
		if x == v {
			return i
		}
	}
	return 0
}
