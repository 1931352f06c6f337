package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:              "development",
		DBSSLMode:        "disable",
		DBSchemaMode:     "hybrid",
		JWTSecret:        "secure-secret-at-least-32-chars-long",
		DBPassword:       "secure-password",
		Port:             "8080",
		MediaMaxUploadMB: 10,
		RedisURL:         "localhost:6379",

		AllowedEmailDomains: "campus.edu",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with disable SSL mode", "prod", "disable", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Port = "" }},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"zero upload limit", func(c *Config) { c.MediaMaxUploadMB = 0 }},
		{"unknown schema mode", func(c *Config) { c.DBSchemaMode = "yolo" }},
		{"default secret in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.JWTSecret = defaultJWTSecret
		}},
		{"short secret in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.JWTSecret = "short"
		}},
		{"negative verify ttl", func(c *Config) { c.EmailVerifyTTLHours = -1 }},
		{"open registration in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.AllowedEmailDomains = " , "
		}},
		{"default db password in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.DBPassword = "password"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_EmailDomains(t *testing.T) {
	c := validConfig()
	c.AllowedEmailDomains = " Campus.EDU, @mail.campus.edu,,"
	assert.Equal(t, []string{"campus.edu", "mail.campus.edu"}, c.EmailDomains())

	c.AllowedEmailDomains = ""
	assert.Empty(t, c.EmailDomains())
}

func TestConfig_MediaMaxUploadBytes(t *testing.T) {
	c := validConfig()
	c.MediaMaxUploadMB = 3
	assert.Equal(t, int64(3*1024*1024), c.MediaMaxUploadBytes())
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("MEDIA_BASE_URL")
	defer os.Unsetenv("MEDIA_MAX_UPLOAD_MB")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("MEDIA_BASE_URL", "https://cdn.example.edu/media/")
	os.Setenv("MEDIA_MAX_UPLOAD_MB", "4")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.edu/media", c.MediaBaseURL)
	assert.Equal(t, 4, c.MediaMaxUploadMB)
}

func TestLoadConfig_EmailPolicy(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("ALLOWED_EMAIL_DOMAINS")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("ALLOWED_EMAIL_DOMAINS", "campus.edu,alumni.campus.edu")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"campus.edu", "alumni.campus.edu"}, c.EmailDomains())
	assert.Equal(t, 24, c.EmailVerifyTTLHours)
}

func TestLoadConfig_MissingProfileFails(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer viper.Reset()

	os.Setenv("APP_ENV", "staging-does-not-exist")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_TestProfile(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer viper.Reset()

	os.Setenv("APP_ENV", "test")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "test", c.Env)
	assert.Equal(t, "campus_feed_test", c.DBName)
}
