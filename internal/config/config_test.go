package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMap is a lookup over a fixed environment.
func envMap(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/api/v1", cfg.APIBasePath)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "prayer.db", cfg.DSN())
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "heart_icons/heart_red.png", cfg.FallbackThumbnail)
	assert.True(t, cfg.SeedOnStartup)
	assert.Empty(t, cfg.MapOutputDir)
	assert.Empty(t, cfg.AdminToken)
	assert.Equal(t, 10*time.Minute, cfg.ReseedKeyTTL)
	assert.Equal(t, 5.0, cfg.RateRPS)
	assert.Equal(t, 10, cfg.RateBurst)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 180*24*time.Hour, cfg.Security.HSTSMaxAge)
	assert.False(t, cfg.OTEL.Enabled)
	assert.Equal(t, "go-prayer-queue", cfg.OTEL.ServiceName)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"PORT":                    "9090",
		"WRITE_TIMEOUT":           "45s",
		"GIN_MODE":                "Debug",
		"LOG_LEVEL":               "WARNING",
		"LOG_PRETTY":              "yes",
		"SWAGGER_ENABLED":         "on",
		"API_BASE_PATH":           "prayer/v2/",
		"DB_DRIVER":               "Postgres",
		"DATABASE_URL":            "postgres://u:p@db:5432/prayer",
		"DATA_DIR":                "/srv/rosters",
		"COUNTRIES_FILE":          "/etc/prayer/countries.yaml",
		"MAP_OUTPUT_DIR":          "/srv/maps",
		"SEED_ON_STARTUP":         "off",
		"ADMIN_TOKEN":             "  s3cret ",
		"RESEED_KEY_TTL":          "1h",
		"RATE_RPS":                "0.5",
		"RATE_BURST":              "3",
		"CORS_ALLOWED_ORIGINS":    " https://pray.example.org, ,http://localhost:5173 ",
		"ENABLE_HSTS":             "1",
		"OTEL_ENABLED":            "true",
		"OTEL_TRACES_SAMPLER_ARG": "0.25",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.True(t, cfg.SwaggerEnabled)
	assert.Equal(t, "/prayer/v2", cfg.APIBasePath)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://u:p@db:5432/prayer", cfg.DSN())
	assert.Equal(t, "/srv/rosters", cfg.DataDir)
	assert.Equal(t, "/etc/prayer/countries.yaml", cfg.CountriesFile)
	assert.Equal(t, "/srv/maps", cfg.MapOutputDir)
	assert.False(t, cfg.SeedOnStartup)
	assert.Equal(t, "s3cret", cfg.AdminToken)
	assert.Equal(t, time.Hour, cfg.ReseedKeyTTL)
	assert.Equal(t, 0.5, cfg.RateRPS)
	assert.Equal(t, 3, cfg.RateBurst)
	assert.Equal(t, []string{"https://pray.example.org", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Security.EnableHSTS)
	assert.True(t, cfg.OTEL.Enabled)
	assert.Equal(t, 0.25, cfg.OTEL.SampleRatio)
}

func TestLoad_UnknownGinModeFallsBackToRelease(t *testing.T) {
	cfg, err := load(envMap(map[string]string{"GIN_MODE": "weird"}))
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.GinMode)
}

func TestLoad_MalformedValuesAreReportedTogether(t *testing.T) {
	_, err := load(envMap(map[string]string{
		"READ_TIMEOUT":    "fifteen",
		"RATE_BURST":      "ten",
		"RATE_RPS":        "fast",
		"SEED_ON_STARTUP": "maybe",
	}))
	require.Error(t, err)
	for _, want := range []string{`READ_TIMEOUT="fifteen"`, `RATE_BURST="ten"`, `RATE_RPS="fast"`, `SEED_ON_STARTUP="maybe": not a boolean`} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_BlankValuesUseDefaults(t *testing.T) {
	cfg, err := load(envMap(map[string]string{"PORT": "  ", "RATE_BURST": ""}))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.RateBurst)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := load(envMap(nil))
		require.NoError(t, err)
		return cfg
	}
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"log level":      {func(c *Config) { c.LogLevel = "verbose" }, `LOG_LEVEL "verbose"`},
		"port":           {func(c *Config) { c.Port = " " }, "PORT must not be empty"},
		"timeouts":       {func(c *Config) { c.IdleTimeout = 0 }, "server timeouts must be positive"},
		"header bytes":   {func(c *Config) { c.MaxHeaderBytes = 0 }, "MAX_HEADER_BYTES"},
		"sqlite path":    {func(c *Config) { c.DBPath = "" }, "DB_PATH must not be empty"},
		"postgres dsn":   {func(c *Config) { c.DBDriver = "postgres" }, "DATABASE_URL is required"},
		"driver":         {func(c *Config) { c.DBDriver = "mysql" }, `DB_DRIVER "mysql"`},
		"data dir":       {func(c *Config) { c.DataDir = "" }, "DATA_DIR must not be empty"},
		"reseed key ttl": {func(c *Config) { c.ReseedKeyTTL = 0 }, "RESEED_KEY_TTL"},
		"rate":           {func(c *Config) { c.RateRPS = -1 }, "RATE_RPS"},
		"burst":          {func(c *Config) { c.RateBurst = 0 }, "RATE_BURST"},
		"hsts":           {func(c *Config) { c.Security.HSTSMaxAge = -time.Second }, "HSTS_MAX_AGE"},
		"sample ratio":   {func(c *Config) { c.OTEL.SampleRatio = 1.5 }, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("all problems at once", func(t *testing.T) {
		cfg := valid()
		cfg.RateBurst = 0
		cfg.DataDir = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t, 2, len(strings.Split(err.Error(), "\n")))
	})
}

func TestLoad_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestSplitCSV_AndNormalizeBasePath(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Nil(t, splitCSV(" , "))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b,"))

	for in, want := range map[string]string{
		"":           "/",
		" / ":        "/",
		"v1":         "/v1",
		"/api/v1/":   "/api/v1",
		"//api//":    "/api",
		"prayer/v2/": "/prayer/v2",
	} {
		assert.Equal(t, want, normalizeBasePath(in), "in=%q", in)
	}
}
