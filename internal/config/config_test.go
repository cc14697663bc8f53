package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "./src/styles", cfg.Paths.Styles.Root)
	assert.Equal(t, []string{"vendor/**/*.js", "*.js"}, cfg.Paths.Scripts.Files)
	assert.Equal(t, "css", cfg.Paths.Styles.Dest)
	assert.Equal(t, "./public", cfg.Output.Public)
	assert.Equal(t, "./dist", cfg.Output.Dist)
	assert.Equal(t, "./src/data/data.json", cfg.Data.Site)
	assert.Equal(t, "./src/data/data-build.json", cfg.Data.Build)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "app.js", cfg.Build.ScriptBundle)
	assert.Equal(t, ` xmlns="http://www.w3.org/2000/svg"`, cfg.Build.StripAttribute)
	assert.True(t, cfg.Build.FileInclude)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(v *viper.Viper)
		check  func(t *testing.T, cfg *Config)
		errMsg string
	}{
		{
			name: "custom port and debounce",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 3000)
				v.Set("watch.debounce", "50ms")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
			},
		},
		{
			name: "log-level flag wins",
			setup: func(v *viper.Viper) {
				v.Set("log-level", "debug")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Log.Level)
			},
		},
		{
			name:   "port out of range",
			setup:  func(v *viper.Viper) { v.Set("server.port", 70000) },
			errMsg: "port 70000",
		},
		{
			name:   "traversal in root",
			setup:  func(v *viper.Viper) { v.Set("paths.styles.root", "../outside") },
			errMsg: "paths.styles.root",
		},
		{
			name: "same output roots",
			setup: func(v *viper.Viper) {
				v.Set("output.public", "./out")
				v.Set("output.dist", "out")
			},
			errMsg: "must differ",
		},
		{
			name:   "zero debounce",
			setup:  func(v *viper.Viper) { v.Set("watch.debounce", "0s") },
			errMsg: "watch.debounce",
		},
		{
			name:   "bundle with directory",
			setup:  func(v *viper.Viper) { v.Set("build.script_bundle", "js/app.js") },
			errMsg: "script_bundle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidationReportsFirstAssetInOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		v := viper.New()
		v.Set("paths.files.root", "../files")
		v.Set("paths.scripts.root", "../scripts")
		v.Set("paths.images.root", "../images")

		_, err := LoadFrom(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "paths.images.root")
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".sitepipe.yml")
	content := `
paths:
  styles:
    root: ./assets/scss
    files: ["main.scss"]
output:
  public: ./www
server:
  port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "./assets/scss", cfg.Paths.Styles.Root)
	assert.Equal(t, []string{"main.scss"}, cfg.Paths.Styles.Files)
	assert.Equal(t, "./www", cfg.Output.Public)
	assert.Equal(t, "./dist", cfg.Output.Dist)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SITEPIPE_OUTPUT_DIST", "./release")

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "./release", cfg.Output.Dist)
}

func TestAssets(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assets := cfg.Assets()
	assert.Len(t, assets, len(AssetNames))
	for _, name := range AssetNames {
		assert.Contains(t, assets, name)
	}
	assert.Equal(t, cfg.Paths.Templates, assets["templates"])
}
