// Package main is the offline inspection tool: it classifies model names
// and benchmarks skeleton evaluation without touching the GPU.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/wowee/azerite/internal/config"
	"github.com/wowee/azerite/internal/logger"
	"github.com/wowee/azerite/internal/render/anim"
	"github.com/wowee/azerite/internal/render/model"
	"github.com/wowee/azerite/pkg/mathx"
)

var (
	flagBones     = flag.Int("bones", 64, "bones per skeleton in the benchmark")
	flagInstances = flag.Int("instances", 2000, "skeleton count in the benchmark")
	flagFrames    = flag.Int("frames", 200, "frames to simulate in the benchmark")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "classify":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "classify needs at least one model name")
			os.Exit(2)
		}
		runClassify(args[1:])
	case "bench":
		runBench(cfg.Animation)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: azerite-inspect [flags] <command>

commands:
  classify <name>...  print the collision policy derived from model names
  bench               benchmark skeleton evaluation with the configured pool
`)
	flag.PrintDefaults()
}

// runClassify prints the policy bundle each name maps to, using a unit
// box as the shape so only name tokens contribute.
func runClassify(names []string) {
	bounds := mathx.AABB{Min: mgl32.Vec3{-0.5, -0.5, 0}, Max: mgl32.Vec3{0.5, 0.5, 1}}
	for _, name := range names {
		c := model.Classify(name, bounds)
		fmt.Printf("%s\n", name)
		fmt.Printf("  blocks=%v stepUp=%.2f\n", c.Blocks(), c.StepUpCeiling())
		for _, f := range classFlags(c) {
			fmt.Printf("  %s\n", f)
		}
	}
}

func classFlags(c model.Classification) []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(c.SteppedFountain, "stepped-fountain")
	add(c.SteppedLowPlatform, "stepped-low-platform")
	add(c.Planter, "planter")
	add(c.Bridge, "bridge")
	add(c.Statue, "statue")
	add(c.SmallSolidProp, "small-solid-prop")
	add(c.NarrowVerticalProp, "narrow-vertical-prop")
	add(c.TreeTrunk, "tree-trunk")
	add(c.SmallFoliage, "small-foliage")
	add(c.GroundDetail, "ground-detail")
	add(c.InvisibleTrap, "invisible-trap")
	add(c.SpellEffect, "spell-effect")
	add(c.Smoke, "smoke")
	add(c.NoBlock, "no-block")
	return out
}

// runBench evaluates synthetic skeletons serially and with the
// configured doodad pool, printing per-frame timings for both.
func runBench(cfg config.AnimationConfig) {
	bones := syntheticSkeleton(*flagBones)
	out := make([][]mgl32.Mat4, *flagInstances)
	for i := range out {
		out[i] = make([]mgl32.Mat4, len(bones))
	}

	serial := benchRun(bones, out, 1, cfg.WorkPerThread)
	parallel := benchRun(bones, out, cfg.DoodadThreads, cfg.WorkPerThread)

	perFrame := func(d time.Duration) time.Duration {
		return d / time.Duration(*flagFrames)
	}
	fmt.Printf("skeletons=%d bones=%d frames=%d\n", *flagInstances, *flagBones, *flagFrames)
	fmt.Printf("serial:   %v/frame\n", perFrame(serial))
	fmt.Printf("pool(%d): %v/frame\n", cfg.DoodadThreads, perFrame(parallel))
	if parallel > 0 {
		fmt.Printf("speedup:  %.2fx\n", float64(serial)/float64(parallel))
	}
}

func benchRun(bones []anim.Bone, out [][]mgl32.Mat4, workers, perThread int) time.Duration {
	if workers < 1 {
		workers = 1
	}
	if perThread < 1 {
		perThread = 1
	}

	start := time.Now()
	for frame := 0; frame < *flagFrames; frame++ {
		timeMs := uint32(frame * 16)
		if workers == 1 {
			for i := range out {
				anim.ComputeBoneMatrices(bones, 0, timeMs, nil, out[i])
			}
			continue
		}

		var g errgroup.Group
		chunk := (len(out) + workers - 1) / workers
		if chunk < perThread {
			chunk = perThread
		}
		for lo := 0; lo < len(out); lo += chunk {
			hi := lo + chunk
			if hi > len(out) {
				hi = len(out)
			}
			part := out[lo:hi]
			g.Go(func() error {
				for i := range part {
					anim.ComputeBoneMatrices(bones, 0, timeMs, nil, part[i])
				}
				return nil
			})
		}
		g.Wait()
	}
	return time.Since(start)
}

// syntheticSkeleton builds a keyed chain: every bone translates and
// rotates over a one-second looping sequence.
func syntheticSkeleton(n int) []anim.Bone {
	rng := rand.New(rand.NewSource(7))
	bones := make([]anim.Bone, n)
	for i := range bones {
		parent := int16(i - 1)
		bones[i] = anim.Bone{
			Parent:  parent,
			KeyBone: -1,
			Pivot:   mgl32.Vec3{0, 0, float32(i) * 0.1},
			Translation: anim.Vec3Track{
				GlobalSeq: -1,
				Keys: []anim.Vec3Keys{{
					Times: []uint32{0, 500, 1000},
					Values: []mgl32.Vec3{
						{0, 0, 0},
						{rng.Float32(), rng.Float32(), rng.Float32()},
						{0, 0, 0},
					},
				}},
			},
			Rotation: anim.QuatTrack{
				GlobalSeq: -1,
				Keys: []anim.QuatKeys{{
					Times: []uint32{0, 1000},
					Values: []mgl32.Quat{
						mgl32.QuatIdent(),
						mgl32.QuatRotate(0.5, mgl32.Vec3{0, 0, 1}),
					},
				}},
			},
			Scale: anim.Vec3Track{GlobalSeq: -1},
		}
	}
	return bones
}
