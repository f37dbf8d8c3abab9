package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

type Config struct {
	Port       string
	LogLevel   zerolog.Level
	CORSOrigin string
	PublicURL  string

	TurnDurationSeconds int
	RoundsPerTeam       int
	SessionTimeout      time.Duration

	Store         string
	MongoURI      string
	MongoDatabase string
	RedisURL      string

	PacksDir      string
	ExportEnabled bool
	ExportFile    string
}

type option struct {
	key   string
	def   any
	usage string
}

// Keys double as flag names. The matching environment variable is the key
// upper-cased with dashes turned into underscores.
var options = []option{
	{"port", "8080", "port to listen on"},
	{"log-level", "info", "log level (debug, info, warn, error)"},
	{"cors-origin", "*", "allowed origin for socket.io requests"},
	{"public-url", "http://localhost:8080", "externally reachable base URL, used for join links"},
	{"turn-duration-seconds", 60, "length of a turn in seconds"},
	{"rounds-per-team", 3, "turns each team plays before the game ends"},
	{"session-timeout", 60 * time.Minute, "time before idle rooms are closed"},
	{"store", StoreMemory, "room store: memory, mongo or redis"},
	{"mongodb-uri", "mongodb://localhost:27017", "MongoDB connection string"},
	{"mongodb-database", "cavetalk", "MongoDB database name"},
	{"redis-url", "redis://localhost:6379/0", "Redis connection URL"},
	{"packs-dir", "", "directory with additional content packs"},
	{"export-enabled", true, "append finished game results to a file"},
	{"export-file", "./cavetalk-results.txt", "path of the results file"},
}

// New returns a viper instance reading the environment, with every key
// defaulted.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, o := range options {
		v.SetDefault(o.key, o.def)
	}
	return v
}

// BindFlags registers a flag per key on fs and binds it to v. Flags given on
// the command line win over the environment.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, o := range options {
		env := strings.ToUpper(strings.ReplaceAll(o.key, "-", "_"))
		usage := fmt.Sprintf("%s (env: %s)", o.usage, env)
		switch def := o.def.(type) {
		case string:
			fs.String(o.key, def, usage)
		case int:
			fs.Int(o.key, def, usage)
		case bool:
			fs.Bool(o.key, def, usage)
		case time.Duration:
			fs.Duration(o.key, def, usage)
		}
		if err := v.BindPFlag(o.key, fs.Lookup(o.key)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the settings from v, as prepared by New and optionally BindFlags.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		Port:                v.GetString("port"),
		CORSOrigin:          v.GetString("cors-origin"),
		PublicURL:           strings.TrimRight(v.GetString("public-url"), "/"),
		TurnDurationSeconds: v.GetInt("turn-duration-seconds"),
		RoundsPerTeam:       v.GetInt("rounds-per-team"),
		SessionTimeout:      v.GetDuration("session-timeout"),
		Store:               strings.ToLower(v.GetString("store")),
		MongoURI:            v.GetString("mongodb-uri"),
		MongoDatabase:       v.GetString("mongodb-database"),
		RedisURL:            v.GetString("redis-url"),
		PacksDir:            v.GetString("packs-dir"),
		ExportEnabled:       v.GetBool("export-enabled"),
		ExportFile:          v.GetString("export-file"),
	}
	lvl, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}
	c.LogLevel = lvl
	return c, c.validate()
}

func (c Config) validate() error {
	switch c.Store {
	case StoreMemory, StoreMongo, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want memory, mongo or redis)", c.Store)
	}
	if c.TurnDurationSeconds <= 0 {
		return fmt.Errorf("turn duration must be positive: %d", c.TurnDurationSeconds)
	}
	if c.RoundsPerTeam <= 0 {
		return fmt.Errorf("rounds per team must be positive: %d", c.RoundsPerTeam)
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("session timeout must not be negative: %s", c.SessionTimeout)
	}
	return nil
}
