// Package config handles renderer configuration loading and management.
package config

import "runtime"

// Config holds all renderer settings.
type Config struct {
	Animation AnimationConfig `yaml:"animation"`
	Textures  TextureConfig   `yaml:"textures"`
	Models    ModelConfig     `yaml:"models"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AnimationConfig holds animation worker pool settings.
type AnimationConfig struct {
	// CharThreads is the worker count for character bone evaluation.
	CharThreads int `yaml:"char_threads"`
	// DoodadThreads is the worker count for doodad instance animation.
	DoodadThreads int `yaml:"doodad_threads"`
	// ParallelMin is the minimum animated-instance count before the
	// doodad pool is used; below it updates run sequentially.
	ParallelMin int `yaml:"parallel_min"`
	// WorkPerThread caps how many instances one worker chunk covers.
	WorkPerThread int `yaml:"work_per_thread"`
}

// TextureConfig holds per-cache byte budgets in megabytes.
type TextureConfig struct {
	CharacterCacheMB int `yaml:"character_cache_mb"`
	DoodadCacheMB    int `yaml:"doodad_cache_mb"`
	TerrainCacheMB   int `yaml:"terrain_cache_mb"`
}

// ModelConfig holds model registry limits.
type ModelConfig struct {
	// Limit is the maximum number of distinct loaded models.
	Limit int `yaml:"limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values. Thread counts
// scale with the machine: a quarter of the cores for character animation
// and half for the much larger doodad population.
func Default() *Config {
	cores := runtime.NumCPU()
	return &Config{
		Animation: AnimationConfig{
			CharThreads:   clampInt(cores/4, 1, 8),
			DoodadThreads: clampInt(cores/2, 1, 16),
			ParallelMin:   64,
			WorkPerThread: 256,
		},
		Textures: TextureConfig{
			CharacterCacheMB: 4096,
			DoodadCacheMB:    1024,
			TerrainCacheMB:   512,
		},
		Models: ModelConfig{
			Limit: 6000,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
