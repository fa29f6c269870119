// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Prefs   PrefsConfig   `yaml:"prefs"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP control surface settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DataConfig holds spatial data source settings. Source is an http(s) URL
// prefix or a local directory of <venueID>.json documents.
type DataConfig struct {
	Source       string        `yaml:"source"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// ViewerConfig holds default view state and label tuning.
type ViewerConfig struct {
	DefaultMode  string      `yaml:"default_mode"`  // "2D" or "3D"
	DefaultLevel string      `yaml:"default_level"` // level id or "ALL"
	WallsVisible bool        `yaml:"walls_visible"`
	ClipMin      float64     `yaml:"clip_min"`
	ClipMax      float64     `yaml:"clip_max"`
	Labels       LabelConfig `yaml:"labels"`
}

// LabelConfig tunes unit-name label generation: the two-point
// camera-distance scale curve and the minimum polygon area below which a
// unit gets no label at all.
type LabelConfig struct {
	NearDistance float64 `yaml:"near_distance"`
	NearScale    float64 `yaml:"near_scale"`
	FarDistance  float64 `yaml:"far_distance"`
	FarScale     float64 `yaml:"far_scale"`
	MinArea      float64 `yaml:"min_area"`
}

// PrefsConfig selects the preference persistence backend.
type PrefsConfig struct {
	Backend   string        `yaml:"backend"` // "memory" or "redis"
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8480",
		},
		Data: DataConfig{
			Source:       "./data",
			FetchTimeout: 15 * time.Second,
		},
		Viewer: ViewerConfig{
			DefaultMode:  "3D",
			DefaultLevel: "ALL",
			WallsVisible: true,
			ClipMin:      -10,
			ClipMax:      120,
			Labels: LabelConfig{
				NearDistance: 50,
				NearScale:    1.2,
				FarDistance:  2000,
				FarScale:     0.4,
				MinArea:      4,
			},
		},
		Prefs: PrefsConfig{
			Backend: "memory",
			TTL:     30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
