package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// Lock drivers.
const (
	LockDriverMemory = "memory"
	LockDriverRedis  = "redis"
)

// DefaultClassSlots is the class order of the timetable columns after day and period.
var DefaultClassSlots = []string{
	"10A", "10B", "10C",
	"9A", "9B", "9C",
	"8A", "8B", "8C",
	"7A", "7B", "7C",
	"6A", "6B", "6C",
}

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Log      LogConfig
	CORS     CORSConfig
	Sources  SourcesConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Policy   PolicyConfig
	Matching MatchingConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// SourcesConfig locates the raw timetable, roster and profile files.
type SourcesConfig struct {
	DataDir       string
	TimetableFile string
	RosterFile    string
	ProfilesFile  string
}

// StoreConfig selects the assignment store backend.
type StoreConfig struct {
	Driver string
	Dir    string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LockConfig governs per-date run serialization.
type LockConfig struct {
	Driver string
	TTL    time.Duration
	Wait   time.Duration
}

// PolicyConfig carries the workload, grade and class-slot policy shared by
// the assignment and verification engines.
type PolicyConfig struct {
	MaxDailyWorkload       int
	SubstituteDailyCap     int
	RegularDailyCap        int
	DefaultGradeLevel      int
	FallbackMaxTargetGrade int
	FallbackMinGradeLevel  int
	GradeBandWidth         int
	ClassSlots             []string
}

// MatchingConfig tunes fuzzy name resolution.
type MatchingConfig struct {
	Threshold float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	cfg.Sources = SourcesConfig{
		DataDir:       v.GetString("DATA_DIR"),
		TimetableFile: v.GetString("TIMETABLE_FILE"),
		RosterFile:    v.GetString("ROSTER_FILE"),
		ProfilesFile:  v.GetString("PROFILES_FILE"),
	}

	cfg.Store = StoreConfig{
		Driver: strings.ToLower(v.GetString("STORE_DRIVER")),
		Dir:    v.GetString("STORE_DIR"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Lock = LockConfig{
		Driver: strings.ToLower(v.GetString("LOCK_DRIVER")),
		TTL:    parseDuration(v.GetString("LOCK_TTL"), 2*time.Minute),
		Wait:   parseDuration(v.GetString("LOCK_WAIT"), 30*time.Second),
	}

	classSlots := splitAndTrim(v.GetString("CLASS_SLOTS"))
	if len(classSlots) == 0 {
		classSlots = append([]string(nil), DefaultClassSlots...)
	}
	cfg.Policy = PolicyConfig{
		MaxDailyWorkload:       v.GetInt("MAX_DAILY_WORKLOAD"),
		SubstituteDailyCap:     v.GetInt("SUBSTITUTE_DAILY_CAP"),
		RegularDailyCap:        v.GetInt("REGULAR_DAILY_CAP"),
		DefaultGradeLevel:      v.GetInt("DEFAULT_GRADE_LEVEL"),
		FallbackMaxTargetGrade: v.GetInt("FALLBACK_MAX_TARGET_GRADE"),
		FallbackMinGradeLevel:  v.GetInt("FALLBACK_MIN_GRADE_LEVEL"),
		GradeBandWidth:         v.GetInt("GRADE_BAND_WIDTH"),
		ClassSlots:             classSlots,
	}

	cfg.Matching = MatchingConfig{
		Threshold: v.GetFloat64("NAME_MATCH_THRESHOLD"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("TIMETABLE_FILE", "timetable.csv")
	v.SetDefault("ROSTER_FILE", "substitutes.csv")
	v.SetDefault("PROFILES_FILE", "profiles.yaml")

	v.SetDefault("STORE_DRIVER", StoreDriverFile)
	v.SetDefault("STORE_DIR", "./data/store")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "substitutions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOCK_DRIVER", LockDriverMemory)
	v.SetDefault("LOCK_TTL", "2m")
	v.SetDefault("LOCK_WAIT", "30s")

	v.SetDefault("MAX_DAILY_WORKLOAD", 6)
	v.SetDefault("SUBSTITUTE_DAILY_CAP", 3)
	v.SetDefault("REGULAR_DAILY_CAP", 2)
	v.SetDefault("DEFAULT_GRADE_LEVEL", 10)
	v.SetDefault("FALLBACK_MAX_TARGET_GRADE", 8)
	v.SetDefault("FALLBACK_MIN_GRADE_LEVEL", 9)
	v.SetDefault("GRADE_BAND_WIDTH", 0)
	v.SetDefault("CLASS_SLOTS", "")
	v.SetDefault("NAME_MATCH_THRESHOLD", 0.92)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
