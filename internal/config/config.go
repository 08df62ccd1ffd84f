// Package config loads rollbook settings.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file, a .env file in the working directory, and ROLLBOOK_*
// environment variables. The result is validated against an embedded CUE
// schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// EnvFile is the dotenv file read from the working directory.
const EnvFile = ".env"

// Config is the complete application configuration.
type Config struct {
	DataDir      string      `json:"data_dir" yaml:"data_dir"`
	DatabaseFile string      `json:"database_file" yaml:"database_file"`
	PhotosDir    string      `json:"photos_dir" yaml:"photos_dir"`
	BcryptCost   int         `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	Log          LogConfig   `json:"log" yaml:"log"`
	Admin        AdminConfig `json:"admin" yaml:"admin"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// AdminConfig is the credential seeded into an empty database.
type AdminConfig struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:      "./data",
		DatabaseFile: "rollbook.db",
		PhotosDir:    "photos",
		BcryptCost:   10,
		Log:          LogConfig{Level: "info", Format: "console"},
		Admin:        AdminConfig{Username: "admin", Password: "admin123"},
	}
}

// Load reads configuration from path (skipped when empty), .env and the
// process environment.
func Load(path string) (*Config, error) {
	return load(path, EnvFile, os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := applyEnv(cfg, get); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, get func(string) (string, bool)) error {
	fields := map[string]*string{
		"ROLLBOOK_DATA_DIR":       &cfg.DataDir,
		"ROLLBOOK_DATABASE_FILE":  &cfg.DatabaseFile,
		"ROLLBOOK_PHOTOS_DIR":     &cfg.PhotosDir,
		"ROLLBOOK_LOG_LEVEL":      &cfg.Log.Level,
		"ROLLBOOK_LOG_FORMAT":     &cfg.Log.Format,
		"ROLLBOOK_ADMIN_USERNAME": &cfg.Admin.Username,
		"ROLLBOOK_ADMIN_PASSWORD": &cfg.Admin.Password,
	}
	for key, dst := range fields {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get("ROLLBOOK_BCRYPT_COST"); ok {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROLLBOOK_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = cost
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(cfg))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DatabasePath is DatabaseFile resolved against DataDir, made absolute.
func (c *Config) DatabasePath() string {
	return c.resolve(c.DatabaseFile)
}

// PhotoRoot is PhotosDir resolved against DataDir, made absolute. Photo
// paths are stored as given, so the root must not depend on the working
// directory of later readers.
func (c *Config) PhotoRoot() string {
	return c.resolve(c.PhotosDir)
}

func (c *Config) resolve(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.DataDir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
