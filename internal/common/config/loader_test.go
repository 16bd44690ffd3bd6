package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: intake
    user: intake
crm:
  base_url: https://crm.example.test/api
workers:
  lead-convert:
    enabled: true
    max_jobs_active: 7
  diagnosis-score:
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "postgres", cfg.Sequence.Backend)
	assert.Equal(t, "상담", cfg.Sequence.Prefix)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, GetDuration(cfg.Retry.Delay))
	assert.Equal(t, "data/intake.db", cfg.Database.Local.Path)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)

	w := GetWorkerConfig(cfg, "lead.convert")
	assert.Equal(t, 3, w.MaxRetries)
	assert.Equal(t, 7, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.False(t, IsWorkerEnabled(cfg, "diagnosis.score"))
	assert.True(t, IsWorkerEnabled(cfg, "lead.submit-direct"))
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("CRM_API_TOKEN", "secret-token")
	t.Setenv("DATABASE_POSTGRES_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.CRM.APIToken)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{
			name: "missing crm",
			body: "database:\n  postgres:\n    host: h\n    database: d\n    user: u\n",
			msg:  "crm.base_url",
		},
		{
			name: "redis backend without address",
			body: minimalYAML + "sequence:\n  backend: redis\n",
			msg:  "database.redis.address",
		},
		{
			name: "unknown backend",
			body: minimalYAML + "sequence:\n  backend: etcd\n",
			msg:  "sequence.backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
