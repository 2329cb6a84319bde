// Package config loads server configuration from a YAML file and CIV_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lavaeater/civ-server-go/internal/game"
	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// EnvPrefix is prepended to every environment override, e.g. CIV_SERVER_ADDRESS.
const EnvPrefix = "CIV"

// Config is the complete server configuration.
type Config struct {
	Game    GameConfig    `mapstructure:"game"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GameConfig holds the rule parameters and the seating of the hosted game.
type GameConfig struct {
	ID                      string         `mapstructure:"id"`
	PopulationTokens        int            `mapstructure:"population_tokens"`
	CityTokens              int            `mapstructure:"city_tokens"`
	CitySupportTokens       int            `mapstructure:"city_support_tokens"`
	CitySitePopulation      int            `mapstructure:"city_site_population"`
	CityPopulation          int            `mapstructure:"city_population"`
	CityEliminationCapacity int            `mapstructure:"city_elimination_capacity"`
	MinTradeCards           int            `mapstructure:"min_trade_cards"`
	TradeManifestSize       int            `mapstructure:"trade_manifest_size"`
	TaxPerCity              int            `mapstructure:"tax_per_city"`
	Seed                    uint64         `mapstructure:"seed"`
	StrictInvariants        bool           `mapstructure:"strict_invariants"`
	MapPath                 string         `mapstructure:"map_path"`
	ReplayDir               string         `mapstructure:"replay_dir"`
	Players                 []PlayerConfig `mapstructure:"players"`
}

// PlayerConfig seats one player.
type PlayerConfig struct {
	ID      string `mapstructure:"id"`
	Faction string `mapstructure:"faction"`
	Start   string `mapstructure:"start"`
	Human   bool   `mapstructure:"human"`
}

// ServerConfig configures the websocket gateway.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where snapshots are kept.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite, postgres or file
	DSN         string `mapstructure:"dsn"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

func setDefaults(v *viper.Viper) {
	rules := game.DefaultConfig()
	v.SetDefault("game.id", "")
	v.SetDefault("game.population_tokens", rules.Setup.PopulationTokens)
	v.SetDefault("game.city_tokens", rules.Setup.CityTokens)
	v.SetDefault("game.city_support_tokens", rules.CitySupportTokens)
	v.SetDefault("game.city_site_population", rules.CitySitePopulation)
	v.SetDefault("game.city_population", rules.CityPopulation)
	v.SetDefault("game.city_elimination_capacity", rules.CityEliminationCapacity)
	v.SetDefault("game.min_trade_cards", rules.MinTradeCards)
	v.SetDefault("game.trade_manifest_size", rules.TradeManifestSize)
	v.SetDefault("game.tax_per_city", rules.TaxPerCity)
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.strict_invariants", false)
	v.SetDefault("game.map_path", "config/map.yaml")
	v.SetDefault("game.replay_dir", "data/replays")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.tick_interval", 200*time.Millisecond)
	v.SetDefault("server.read_limit", 64*1024)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "data/civ.db")
	v.SetDefault("storage.snapshot_dir", "data/snapshots")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads the YAML file at path, applies CIV_* overrides and validates the
// result. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine or the stores cannot run with.
func (c *Config) Validate() error {
	var errs []error
	g := c.Game
	if g.PopulationTokens <= 0 {
		errs = append(errs, fmt.Errorf("game.population_tokens must be positive, got %d", g.PopulationTokens))
	}
	if g.CityTokens < 0 {
		errs = append(errs, fmt.Errorf("game.city_tokens must not be negative, got %d", g.CityTokens))
	}
	if g.TradeManifestSize <= 0 {
		errs = append(errs, fmt.Errorf("game.trade_manifest_size must be positive, got %d", g.TradeManifestSize))
	}
	seen := make(map[string]bool, len(g.Players))
	for _, p := range g.Players {
		if p.ID == "" {
			errs = append(errs, errors.New("game.players entry without id"))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("game.players: duplicate id %q", p.ID))
		}
		seen[p.ID] = true
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for %s", c.Storage.Driver))
		}
	case "file":
		if c.Storage.SnapshotDir == "" {
			errs = append(errs, errors.New("storage.snapshot_dir is required for file storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of sqlite, postgres, file", c.Storage.Driver))
	}

	if c.Server.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("server.tick_interval must be positive, got %s", c.Server.TickInterval))
	}
	return errors.Join(errs...)
}

// EngineConfig converts the game section into engine parameters.
func (g GameConfig) EngineConfig() game.Config {
	return game.Config{
		GameID: g.ID,
		Setup: board.Setup{
			PopulationTokens: g.PopulationTokens,
			CityTokens:       g.CityTokens,
		},
		CitySupportTokens:       g.CitySupportTokens,
		CitySitePopulation:      g.CitySitePopulation,
		CityPopulation:          g.CityPopulation,
		CityEliminationCapacity: g.CityEliminationCapacity,
		MinTradeCards:           g.MinTradeCards,
		TradeManifestSize:       g.TradeManifestSize,
		TaxPerCity:              g.TaxPerCity,
		Seed:                    g.Seed,
		StrictInvariants:        g.StrictInvariants,
	}
}
