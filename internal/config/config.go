// Package config centralizes all application configuration into typed structs.
//
// Go Learning Note — Configuration Management:
// Defaults live in NewDefaultConfig as a plain struct literal. Load overlays
// them with a .env file (github.com/joho/godotenv), an optional YAML/JSON
// config file and GEOPULSE_* environment variables (github.com/spf13/viper).
// Code outside this package only ever sees the typed *Config.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// GEOPULSE_SERVER_PORT or GEOPULSE_STORE_EVENTS.
const EnvPrefix = "GEOPULSE"

// Store driver names.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

// Config is the top-level configuration container.
//
// Go Learning Note — Struct Tags:
// `mapstructure:"..."` tells viper which config key feeds which field.
// Nested structs map to dotted keys ("server.port").
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Store          StoreConfig          `mapstructure:"store"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Geo            GeoConfig            `mapstructure:"geo"`
	Demand         DemandConfig         `mapstructure:"demand"`
	Supply         SupplyConfig         `mapstructure:"supply"`
	Hotspot        HotspotConfig        `mapstructure:"hotspot"`
	Opportunity    OpportunityConfig    `mapstructure:"opportunity"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Go Learning Note — time.Duration:
// Go uses time.Duration (an int64 of nanoseconds) instead of raw integers for
// timeouts and intervals. Viper decodes strings like "10s" into it.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug|release|test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and connects the event and listing backends.
type StoreConfig struct {
	Events         string        `mapstructure:"events"`   // memory|postgres|mongo|redis
	Listings       string        `mapstructure:"listings"` // memory|postgres|mongo
	PostgresURL    string        `mapstructure:"postgres_url"`
	MongoURI       string        `mapstructure:"mongo_uri"`
	MongoDatabase  string        `mapstructure:"mongo_database"`
	RedisURL       string        `mapstructure:"redis_url"`
	EventRetention time.Duration `mapstructure:"event_retention"`
}

// CacheConfig sizes the two result caches.
type CacheConfig struct {
	ShortTTL time.Duration `mapstructure:"short_ttl"`
	LongTTL  time.Duration `mapstructure:"long_ttl"`
	Capacity int           `mapstructure:"capacity"`
}

// GeoConfig controls geohash bucketing. Precision 6 ≈ 1.2 km cells,
// precision 7 ≈ 150 m cells.
type GeoConfig struct {
	BucketPrecision int `mapstructure:"bucket_precision"`
	IndexPrecision  int `mapstructure:"index_precision"`
}

// DemandConfig holds Demand Engine defaults.
type DemandConfig struct {
	RadiusKm          float64       `mapstructure:"radius_km"`
	Hours             int           `mapstructure:"hours"`
	TrendingLimit     int           `mapstructure:"trending_limit"`
	IntensityDivisor  float64       `mapstructure:"intensity_divisor"`
	CategoryWindow    time.Duration `mapstructure:"category_window"`
	HighDemandRatio   float64       `mapstructure:"high_demand_ratio"`
	BalancedDemandMin float64       `mapstructure:"balanced_demand_min"`
}

// SupplyConfig holds Supply Engine defaults.
type SupplyConfig struct {
	RadiusKm         float64 `mapstructure:"radius_km"`
	IntensityDivisor float64 `mapstructure:"intensity_divisor"`
	MaxClusters      int     `mapstructure:"max_clusters"`
	FeedLimit        int     `mapstructure:"feed_limit"`
	FeedMaxLimit     int     `mapstructure:"feed_max_limit"`
}

// HotspotConfig holds Hotspot Detector defaults.
type HotspotConfig struct {
	Hours           int     `mapstructure:"hours"`
	Threshold       float64 `mapstructure:"threshold"`
	GrowthThreshold float64 `mapstructure:"growth_threshold"`
	GrowthFloor     int     `mapstructure:"growth_floor"`
	NewRatioMin     float64 `mapstructure:"new_ratio_min"`
}

// OpportunityConfig holds the matcher's window and classification rules.
type OpportunityConfig struct {
	Hours            int     `mapstructure:"hours"`
	Threshold        float64 `mapstructure:"threshold"`
	DemandMin        float64 `mapstructure:"demand_min"`
	SupplyMax        float64 `mapstructure:"supply_max"`
	SaturationMin    float64 `mapstructure:"saturation_min"`
	SaturationFactor float64 `mapstructure:"saturation_factor"`
	MaxZones         int     `mapstructure:"max_zones"`
}

// RecommendationConfig holds the composer's radii and windows.
type RecommendationConfig struct {
	TrendingRadiusKm float64 `mapstructure:"trending_radius_km"`
	TrendingHours    int     `mapstructure:"trending_hours"`
	UnmetRadiusKm    float64 `mapstructure:"unmet_radius_km"`
	UnmetHours       int     `mapstructure:"unmet_hours"`
	UnmetMax         int     `mapstructure:"unmet_max"`
	NearbyRadiusKm   float64 `mapstructure:"nearby_radius_km"`
	NearbyHours      int     `mapstructure:"nearby_hours"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json|text
}

// NewDefaultConfig returns a Config populated with sensible defaults.
//
// Go Learning Note — Constructor Functions:
// Go has no constructors. By convention, New<Type>() functions serve the same
// purpose.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            ":8080",
			Mode:            "release",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Events:         DriverMemory,
			Listings:       DriverMemory,
			MongoDatabase:  "geopulse",
			EventRetention: 30 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			ShortTTL: 30 * time.Second,
			LongTTL:  5 * time.Minute,
			Capacity: 1000,
		},
		Geo: GeoConfig{
			BucketPrecision: 6,
			IndexPrecision:  6,
		},
		Demand: DemandConfig{
			RadiusKm:          5,
			Hours:             24,
			TrendingLimit:     10,
			IntensityDivisor:  10,
			CategoryWindow:    7 * 24 * time.Hour,
			HighDemandRatio:   3,
			BalancedDemandMin: 1,
		},
		Supply: SupplyConfig{
			RadiusKm:         5,
			IntensityDivisor: 20,
			MaxClusters:      200,
			FeedLimit:        20,
			FeedMaxLimit:     100,
		},
		Hotspot: HotspotConfig{
			Hours:           24,
			Threshold:       0.3,
			GrowthThreshold: 0.3,
			GrowthFloor:     5,
			NewRatioMin:     0.5,
		},
		Opportunity: OpportunityConfig{
			Hours:            48,
			Threshold:        0.2,
			DemandMin:        0.4,
			SupplyMax:        0.3,
			SaturationMin:    0.5,
			SaturationFactor: 0.3,
			MaxZones:         20,
		},
		Recommendation: RecommendationConfig{
			TrendingRadiusKm: 10,
			TrendingHours:    24,
			UnmetRadiusKm:    5,
			UnmetHours:       6,
			UnmetMax:         3,
			NearbyRadiusKm:   3,
			NearbyHours:      24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then .env, then the optional
// config file at path, then GEOPULSE_* environment variables. An empty path
// skips the file; a missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	v := viper.New()
	setDefaults(v, NewDefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key with viper. AutomaticEnv only resolves
// keys viper already knows about, so each field needs a default here.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("store.events", d.Store.Events)
	v.SetDefault("store.listings", d.Store.Listings)
	v.SetDefault("store.postgres_url", d.Store.PostgresURL)
	v.SetDefault("store.mongo_uri", d.Store.MongoURI)
	v.SetDefault("store.mongo_database", d.Store.MongoDatabase)
	v.SetDefault("store.redis_url", d.Store.RedisURL)
	v.SetDefault("store.event_retention", d.Store.EventRetention)

	v.SetDefault("cache.short_ttl", d.Cache.ShortTTL)
	v.SetDefault("cache.long_ttl", d.Cache.LongTTL)
	v.SetDefault("cache.capacity", d.Cache.Capacity)

	v.SetDefault("geo.bucket_precision", d.Geo.BucketPrecision)
	v.SetDefault("geo.index_precision", d.Geo.IndexPrecision)

	v.SetDefault("demand.radius_km", d.Demand.RadiusKm)
	v.SetDefault("demand.hours", d.Demand.Hours)
	v.SetDefault("demand.trending_limit", d.Demand.TrendingLimit)
	v.SetDefault("demand.intensity_divisor", d.Demand.IntensityDivisor)
	v.SetDefault("demand.category_window", d.Demand.CategoryWindow)
	v.SetDefault("demand.high_demand_ratio", d.Demand.HighDemandRatio)
	v.SetDefault("demand.balanced_demand_min", d.Demand.BalancedDemandMin)

	v.SetDefault("supply.radius_km", d.Supply.RadiusKm)
	v.SetDefault("supply.intensity_divisor", d.Supply.IntensityDivisor)
	v.SetDefault("supply.max_clusters", d.Supply.MaxClusters)
	v.SetDefault("supply.feed_limit", d.Supply.FeedLimit)
	v.SetDefault("supply.feed_max_limit", d.Supply.FeedMaxLimit)

	v.SetDefault("hotspot.hours", d.Hotspot.Hours)
	v.SetDefault("hotspot.threshold", d.Hotspot.Threshold)
	v.SetDefault("hotspot.growth_threshold", d.Hotspot.GrowthThreshold)
	v.SetDefault("hotspot.growth_floor", d.Hotspot.GrowthFloor)
	v.SetDefault("hotspot.new_ratio_min", d.Hotspot.NewRatioMin)

	v.SetDefault("opportunity.hours", d.Opportunity.Hours)
	v.SetDefault("opportunity.threshold", d.Opportunity.Threshold)
	v.SetDefault("opportunity.demand_min", d.Opportunity.DemandMin)
	v.SetDefault("opportunity.supply_max", d.Opportunity.SupplyMax)
	v.SetDefault("opportunity.saturation_min", d.Opportunity.SaturationMin)
	v.SetDefault("opportunity.saturation_factor", d.Opportunity.SaturationFactor)
	v.SetDefault("opportunity.max_zones", d.Opportunity.MaxZones)

	v.SetDefault("recommendation.trending_radius_km", d.Recommendation.TrendingRadiusKm)
	v.SetDefault("recommendation.trending_hours", d.Recommendation.TrendingHours)
	v.SetDefault("recommendation.unmet_radius_km", d.Recommendation.UnmetRadiusKm)
	v.SetDefault("recommendation.unmet_hours", d.Recommendation.UnmetHours)
	v.SetDefault("recommendation.unmet_max", d.Recommendation.UnmetMax)
	v.SetDefault("recommendation.nearby_radius_km", d.Recommendation.NearbyRadiusKm)
	v.SetDefault("recommendation.nearby_hours", d.Recommendation.NearbyHours)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Events {
	case DriverMemory, DriverPostgres, DriverMongo, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("store.events: unknown driver %q", c.Store.Events))
	}
	switch c.Store.Listings {
	case DriverMemory, DriverPostgres, DriverMongo:
	default:
		errs = append(errs, fmt.Errorf("store.listings: unknown driver %q", c.Store.Listings))
	}
	if (c.Store.Events == DriverPostgres || c.Store.Listings == DriverPostgres) && c.Store.PostgresURL == "" {
		errs = append(errs, errors.New("store.postgres_url is required for the postgres driver"))
	}
	if (c.Store.Events == DriverMongo || c.Store.Listings == DriverMongo) && c.Store.MongoURI == "" {
		errs = append(errs, errors.New("store.mongo_uri is required for the mongo driver"))
	}
	if c.Store.Events == DriverRedis && c.Store.RedisURL == "" {
		errs = append(errs, errors.New("store.redis_url is required for the redis driver"))
	}
	if c.Cache.Capacity <= 0 {
		errs = append(errs, errors.New("cache.capacity must be positive"))
	}
	if c.Cache.ShortTTL <= 0 || c.Cache.LongTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Geo.BucketPrecision < 1 || c.Geo.BucketPrecision > 12 {
		errs = append(errs, fmt.Errorf("geo.bucket_precision %d out of range 1..12", c.Geo.BucketPrecision))
	}
	if c.Geo.IndexPrecision < 1 || c.Geo.IndexPrecision > 12 {
		errs = append(errs, fmt.Errorf("geo.index_precision %d out of range 1..12", c.Geo.IndexPrecision))
	}

	errs = append(errs,
		positiveInt("hotspot.hours", c.Hotspot.Hours),
		unitRange("hotspot.threshold", c.Hotspot.Threshold),
		unitRange("hotspot.growth_threshold", c.Hotspot.GrowthThreshold),
		positiveInt("hotspot.growth_floor", c.Hotspot.GrowthFloor),
		unitRange("hotspot.new_ratio_min", c.Hotspot.NewRatioMin),

		positiveInt("opportunity.hours", c.Opportunity.Hours),
		unitRange("opportunity.threshold", c.Opportunity.Threshold),
		unitRange("opportunity.demand_min", c.Opportunity.DemandMin),
		unitRange("opportunity.supply_max", c.Opportunity.SupplyMax),
		unitRange("opportunity.saturation_min", c.Opportunity.SaturationMin),
		unitRange("opportunity.saturation_factor", c.Opportunity.SaturationFactor),
		positiveInt("opportunity.max_zones", c.Opportunity.MaxZones),

		positiveFloat("recommendation.trending_radius_km", c.Recommendation.TrendingRadiusKm),
		positiveInt("recommendation.trending_hours", c.Recommendation.TrendingHours),
		positiveFloat("recommendation.unmet_radius_km", c.Recommendation.UnmetRadiusKm),
		positiveInt("recommendation.unmet_hours", c.Recommendation.UnmetHours),
		positiveInt("recommendation.unmet_max", c.Recommendation.UnmetMax),
		positiveFloat("recommendation.nearby_radius_km", c.Recommendation.NearbyRadiusKm),
		positiveInt("recommendation.nearby_hours", c.Recommendation.NearbyHours),
	)

	return errors.Join(errs...)
}

func positiveInt(key string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return nil
}

func positiveFloat(key string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return nil
}

// unitRange accepts thresholds and ratios in (0, 1].
func unitRange(key string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s %v out of range (0, 1]", key, v)
	}
	return nil
}
