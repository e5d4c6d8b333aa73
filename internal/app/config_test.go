package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9991"

[database]
dsn = "test.db"

[sync]
interval_minutes = 15
fetch_grade_details = true
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9991", config.Server.Port)
	assert.Equal(t, "test.db", config.Database.DSN)
	assert.Equal(t, 15, config.Sync.IntervalMinutes)
	assert.True(t, config.Sync.FetchGradeDetails)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9991"

[database]
dsn = "test.db"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./migrations", config.Database.MigrationsDir)
	assert.Equal(t, "oaa:session:portal:%s", config.Redis.PortalKeyTemplate)
	assert.Equal(t, "oaa:session:checkin:%s", config.Redis.CheckinKeyTemplate)
	assert.Equal(t, "https://jwgl.suse.edu.cn", config.Portal.BaseURL)
	assert.Equal(t, "https://qfhy.suse.edu.cn", config.Checkin.BaseURL)
	assert.Equal(t, "https://uias.suse.edu.cn", config.Checkin.UIASURL)
	assert.Equal(t, 60, config.Sync.IntervalMinutes)
	assert.Equal(t, "0 7 * * *", config.Export.Schedule)
}

func TestLoadConfig_MissingPort(t *testing.T) {
	path := writeConfig(t, `
[database]
dsn = "test.db"
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingDSN(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9991"
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
