package tessera

import (
	"bytes"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config holds the tunables of a Scene. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Atlas     AtlasConfig     `toml:"atlas"`
	Renderer  RendererConfig  `toml:"renderer"`
	Animation AnimationConfig `toml:"animation"`
	Debug     bool            `toml:"debug"`
}

// AtlasConfig sizes the glyph atlases.
type AtlasConfig struct {
	// PageSize is the width and height of each page in texels.
	PageSize int `toml:"page_size"`
	// Padding is the gap between packed entries.
	Padding int `toml:"padding"`
	// MaxPages caps the page count per atlas. Zero means unlimited.
	MaxPages int `toml:"max_pages"`
	// EvictAfterFrames evicts unreferenced entries unused for that many
	// frames. Zero keeps them until their space is needed.
	EvictAfterFrames uint64 `toml:"evict_after_frames"`
}

// RendererConfig tunes batching and rasterization.
type RendererConfig struct {
	// ParallelBatches bounds concurrent batch rebuilds. 0 or 1 rebuilds
	// on the calling goroutine.
	ParallelBatches int `toml:"parallel_batches"`
	// AAFactor scales the distance-field anti-aliasing ramp.
	AAFactor float64 `toml:"aa_factor"`
	// FovY is the default camera field of view in degrees.
	FovY float64 `toml:"fov_y"`
}

// AnimationConfig holds animation defaults.
type AnimationConfig struct {
	// Easing is the name used when callers pass no easing, see
	// EasingNames.
	Easing string `toml:"easing"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Atlas: AtlasConfig{
			PageSize: 1024,
			Padding:  1,
		},
		Renderer: RendererConfig{
			ParallelBatches: 4,
			AAFactor:        DefaultAAFactor,
			FovY:            45,
		},
		Animation: AnimationConfig{
			Easing: "linear",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Atlas.PageSize < 16:
		return errors.Errorf("tessera: atlas.page_size %d is below 16", c.Atlas.PageSize)
	case c.Atlas.Padding < 0:
		return errors.Errorf("tessera: atlas.padding %d is negative", c.Atlas.Padding)
	case c.Atlas.MaxPages < 0:
		return errors.Errorf("tessera: atlas.max_pages %d is negative", c.Atlas.MaxPages)
	case c.Renderer.ParallelBatches < 0:
		return errors.Errorf("tessera: renderer.parallel_batches %d is negative", c.Renderer.ParallelBatches)
	case c.Renderer.AAFactor <= 0:
		return errors.Errorf("tessera: renderer.aa_factor %g must be positive", c.Renderer.AAFactor)
	case c.Renderer.FovY <= 0 || c.Renderer.FovY >= 180:
		return errors.Errorf("tessera: renderer.fov_y %g out of range (0, 180)", c.Renderer.FovY)
	}
	if _, ok := EasingByName(c.Animation.Easing); !ok {
		return errors.Errorf("tessera: unknown animation.easing %q", c.Animation.Easing)
	}
	return nil
}

// ParseConfig decodes TOML on top of DefaultConfig. Unknown keys are an
// error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "tessera: decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "tessera: read config %s", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "tessera: config %s", path)
	}
	return cfg, nil
}

// MarshalTOML encodes the config, for writing a starter file.
func (c Config) MarshalTOML() ([]byte, error) {
	return toml.Marshal(c)
}
