// Package config provides configuration management for sitepipe using Viper
// for loading from files, environment variables, and command-line flags.
//
// The defaults reproduce the classic layout: sources under ./src, a preview
// root at ./public served with live reload, and a distribution root at ./dist
// ready to ship. Every value can be overridden from .sitepipe.yml or from
// SITEPIPE_<SECTION>_<OPTION> environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	Data     DataConfig     `mapstructure:"data" yaml:"data"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build"`
	Validate ValidateConfig `mapstructure:"validate" yaml:"validate"`
	Publish  PublishConfig  `mapstructure:"publish" yaml:"publish"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// AssetPaths describes one source tree. Root is the base directory that
// Files and Watch globs are resolved against; Dest is the subdirectory of
// each output root that receives the produced artifacts.
type AssetPaths struct {
	Root    string   `mapstructure:"root" yaml:"root"`
	Files   []string `mapstructure:"files" yaml:"files"`
	Watch   []string `mapstructure:"watch" yaml:"watch"`
	Dest    string   `mapstructure:"dest" yaml:"dest"`
	Command string   `mapstructure:"command" yaml:"command,omitempty"`
}

type PathsConfig struct {
	Images    AssetPaths `mapstructure:"images" yaml:"images"`
	Styles    AssetPaths `mapstructure:"styles" yaml:"styles"`
	Scripts   AssetPaths `mapstructure:"scripts" yaml:"scripts"`
	Templates AssetPaths `mapstructure:"templates" yaml:"templates"`
	Files     AssetPaths `mapstructure:"files" yaml:"files"`
}

type DataConfig struct {
	Site  string `mapstructure:"site" yaml:"site"`
	Build string `mapstructure:"build" yaml:"build"`
}

type OutputConfig struct {
	Public string `mapstructure:"public" yaml:"public"`
	Dist   string `mapstructure:"dist" yaml:"dist"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type BuildConfig struct {
	Workers        int    `mapstructure:"workers" yaml:"workers"`
	CacheSize      int    `mapstructure:"cache_size" yaml:"cache_size"`
	ScriptBundle   string `mapstructure:"script_bundle" yaml:"script_bundle"`
	MinSuffix      string `mapstructure:"min_suffix" yaml:"min_suffix"`
	StripAttribute string `mapstructure:"strip_attribute" yaml:"strip_attribute"`
	FileInclude    bool   `mapstructure:"file_include" yaml:"file_include"`
}

type ValidateConfig struct {
	Files []string `mapstructure:"files" yaml:"files"`
}

type PublishConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EnvPrefix is the prefix of environment overrides, e.g. SITEPIPE_SERVER_PORT.
const EnvPrefix = "SITEPIPE"

// BindEnv enables SITEPIPE_ environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every key with its default value. Registering all
// keys also lets AutomaticEnv overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.images.root", "./src/images")
	v.SetDefault("paths.images.files", []string{"**/*.*"})
	v.SetDefault("paths.images.watch", []string{"**/*.*"})
	v.SetDefault("paths.images.dest", "images")

	v.SetDefault("paths.styles.root", "./src/styles")
	v.SetDefault("paths.styles.files", []string{"**/*.scss", "**/*.css"})
	v.SetDefault("paths.styles.watch", []string{"**/*.scss", "**/*.css"})
	v.SetDefault("paths.styles.dest", "css")
	v.SetDefault("paths.styles.command", "")

	v.SetDefault("paths.scripts.root", "./src/scripts")
	v.SetDefault("paths.scripts.files", []string{"vendor/**/*.js", "*.js"})
	v.SetDefault("paths.scripts.watch", []string{"**/*.js"})
	v.SetDefault("paths.scripts.dest", "js")
	v.SetDefault("paths.scripts.command", "")

	v.SetDefault("paths.templates.root", "./src/templates")
	v.SetDefault("paths.templates.files", []string{"*.html", "*.twig", "**/*.html", "**/*.twig"})
	v.SetDefault("paths.templates.watch", []string{"**/*.html", "**/*.twig"})
	v.SetDefault("paths.templates.dest", "")

	v.SetDefault("paths.files.root", "./src/files")
	v.SetDefault("paths.files.files", []string{"**/*.*"})
	v.SetDefault("paths.files.watch", []string{"**/*.*"})
	v.SetDefault("paths.files.dest", "files")

	v.SetDefault("data.site", "./src/data/data.json")
	v.SetDefault("data.build", "./src/data/data-build.json")

	v.SetDefault("output.public", "./public")
	v.SetDefault("output.dist", "./dist")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.open", false)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("watch.debounce", 200*time.Millisecond)

	v.SetDefault("build.workers", 0)
	v.SetDefault("build.cache_size", 512)
	v.SetDefault("build.script_bundle", "app.js")
	v.SetDefault("build.min_suffix", ".min")
	v.SetDefault("build.strip_attribute", ` xmlns="http://www.w3.org/2000/svg"`)
	v.SetDefault("build.file_include", true)

	v.SetDefault("validate.files", []string{"*.html"})

	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.region", "us-east-1")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.use_ssl", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v after registering defaults.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	// Flags bound as "log-level" sit outside the log section.
	if v.IsSet("log-level") {
		config.Log.Level = v.GetString("log-level")
	}
	if v.IsSet("log-format") {
		config.Log.Format = v.GetString("log-format")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// AssetNames lists the asset trees in declaration order.
var AssetNames = []string{"images", "styles", "scripts", "templates", "files"}

// Assets returns the asset trees keyed by their task name.
func (c *Config) Assets() map[string]AssetPaths {
	return map[string]AssetPaths{
		"images":    c.Paths.Images,
		"styles":    c.Paths.Styles,
		"scripts":   c.Paths.Scripts,
		"templates": c.Paths.Templates,
		"files":     c.Paths.Files,
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	assets := config.Assets()
	for _, name := range AssetNames {
		asset := assets[name]
		if err := validatePath(asset.Root); err != nil {
			return fmt.Errorf("paths.%s.root: %w", name, err)
		}
		if len(asset.Files) == 0 {
			return fmt.Errorf("paths.%s.files: at least one glob is required", name)
		}
		if strings.Contains(filepath.Clean(asset.Dest), "..") {
			return fmt.Errorf("paths.%s.dest contains path traversal: %s", name, asset.Dest)
		}
	}

	if err := validatePath(config.Data.Site); err != nil {
		return fmt.Errorf("data.site: %w", err)
	}
	if config.Data.Build != "" {
		if err := validatePath(config.Data.Build); err != nil {
			return fmt.Errorf("data.build: %w", err)
		}
	}

	if err := validatePath(config.Output.Public); err != nil {
		return fmt.Errorf("output.public: %w", err)
	}
	if err := validatePath(config.Output.Dist); err != nil {
		return fmt.Errorf("output.dist: %w", err)
	}
	if filepath.Clean(config.Output.Public) == filepath.Clean(config.Output.Dist) {
		return fmt.Errorf("output.public and output.dist must differ")
	}

	if config.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", config.Watch.Debounce)
	}
	if config.Build.Workers < 0 {
		return fmt.Errorf("build.workers must not be negative")
	}
	if config.Build.ScriptBundle == "" || strings.ContainsAny(config.Build.ScriptBundle, `/\`) {
		return fmt.Errorf("build.script_bundle must be a plain file name")
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
