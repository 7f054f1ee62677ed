package config

import (
	"os"
	"strconv"
)

// applyEnv applies environment variable overrides to the config.
// Invalid or non-positive values are ignored.
func applyEnv(cfg *Config) {
	setIntEnv("CHAR_ANIM_THREADS", &cfg.Animation.CharThreads)
	setIntEnv("M2_ANIM_THREADS", &cfg.Animation.DoodadThreads)
	setIntEnv("M2_ANIM_MT_MIN", &cfg.Animation.ParallelMin)
	setIntEnv("M2_ANIM_WORK_PER_THREAD", &cfg.Animation.WorkPerThread)
	setIntEnv("CHARACTER_TEX_CACHE_MB", &cfg.Textures.CharacterCacheMB)
	setIntEnv("M2_TEX_CACHE_MB", &cfg.Textures.DoodadCacheMB)
	setIntEnv("TERRAIN_TEX_CACHE_MB", &cfg.Textures.TerrainCacheMB)
	setIntEnv("M2_MODEL_LIMIT", &cfg.Models.Limit)

	if v := os.Getenv("AZERITE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func setIntEnv(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return
	}
	*dst = n
}
