package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"campusfeed/internal/config"
	"campusfeed/internal/middleware"
	"campusfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "feedctl-test-secret-that-is-long-enough"

func stubConfig(t *testing.T) {
	t.Helper()
	prev := loadConfig
	loadConfig = func() (*config.Config, error) {
		return &config.Config{JWTSecret: testSecret, Env: "test"}, nil
	}
	t.Cleanup(func() { loadConfig = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	stubConfig(t)

	out, err := execute(t, "token", "--user", "42")
	require.NoError(t, err)

	id, err := middleware.ParseToken(testSecret, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestTokenCommandRequiresUser(t *testing.T) {
	stubConfig(t)

	_, err := execute(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")
}

func TestSeedCommandFixturesOnly(t *testing.T) {
	stubConfig(t)
	db := testutil.OpenDB(t)
	prev := connectDB
	connectDB = func(context.Context, *config.Config) (*gorm.DB, error) { return db, nil }
	t.Cleanup(func() { connectDB = prev })

	out, err := execute(t, "seed", "--fixtures-only", "--fast-hash")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded users=4 posts=3 comments=7 reactions=5")
}

func TestSeedCommandConnectFailure(t *testing.T) {
	stubConfig(t)
	prev := connectDB
	connectDB = func(context.Context, *config.Config) (*gorm.DB, error) {
		return nil, errors.New("connection refused")
	}
	t.Cleanup(func() { connectDB = prev })

	_, err := execute(t, "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

func TestResetRequiresConfirmation(t *testing.T) {
	stubConfig(t)
	prev := openDB
	openDB = func(context.Context, *config.Config) (*gorm.DB, error) {
		t.Fatal("database opened without --yes")
		return nil, nil
	}
	t.Cleanup(func() { openDB = prev })

	_, err := execute(t, "db", "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestResetRefusesProduction(t *testing.T) {
	prevCfg := loadConfig
	loadConfig = func() (*config.Config, error) {
		return &config.Config{JWTSecret: testSecret, Env: "production"}, nil
	}
	t.Cleanup(func() { loadConfig = prevCfg })

	db := testutil.OpenDB(t)
	prev := openDB
	openDB = func(context.Context, *config.Config) (*gorm.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = prev })

	_, err := execute(t, "db", "reset", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}
