package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
auth:
  jwt:
    secret: test-secret
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Scholarship.CounterBackend, "counter follows the storage driver")
	assert.Equal(t, int64(10001), cfg.Scholarship.CounterStart)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 512*1024, cfg.Storage.InlineMaxBytes)
	assert.Equal(t, "*/15 * * * *", cfg.Scholarship.ReconcileSchedule)
	assert.Equal(t, "INR", cfg.Checkout.Currency)
	assert.Equal(t, "scholarship-workers", cfg.Observability.ServiceName)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "db.internal")
	path := writeConfig(t, `
storage:
  driver: postgres
database:
  postgres:
    host: ${TEST_PG_HOST}
    database: scholarship
    user: app
auth:
  jwt:
    secret: s
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal port=5432")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown driver",
			body:    "storage:\n  driver: mongo\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "storage.driver",
		},
		{
			name:    "postgres without host",
			body:    "storage:\n  driver: postgres\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "database.postgres.host",
		},
		{
			name:    "redis counter without address",
			body:    "storage:\n  driver: memory\nscholarship:\n  counter_backend: redis\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "memory counter over postgres storage",
			body:    "storage:\n  driver: postgres\ndatabase:\n  postgres:\n    host: db\n    database: scholarship\n    user: app\nscholarship:\n  counter_backend: memory\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "counter_backend memory requires storage.driver memory",
		},
		{
			name:    "postgres counter over memory storage",
			body:    "storage:\n  driver: memory\nscholarship:\n  counter_backend: postgres\nauth:\n  jwt:\n    secret: s\n",
			wantErr: "counter_backend postgres requires storage.driver postgres",
		},
		{
			name:    "missing jwt secret",
			body:    "storage:\n  driver: memory\n",
			wantErr: "auth.jwt.secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv("AUTH_JWT_SECRET", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Defaults(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"checkout-quote-coupon": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "checkout-quote-coupon"))
	assert.True(t, IsWorkerEnabled(cfg, "scholarship-submit-application"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "unknown").MaxJobsActive)
	assert.Equal(t, 30*1000, int(GetDuration(30).Microseconds()))
}
