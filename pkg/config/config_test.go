package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResolvesRelativePathsAgainstConfigDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	const yamlDoc = `
grantsFilePath: grants.yaml
auditLogPath: logs/audit.log
caches:
  accessControllers:
    maxInMemory: 500
    expireTime: 300
    useSoftReference: true
`
	require.NoError(t, afero.WriteFile(fs, "/etc/artisec/config.yaml", []byte(yamlDoc), 0644))

	cfg, err := Load(fs, "/etc/artisec/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/etc/artisec/grants.yaml", cfg.GrantsFilePath)
	assert.Equal(t, "/etc/artisec/logs/audit.log", cfg.AuditLogPath)
	assert.EqualValues(t, defaultAuditLogMaxSizeBytes, cfg.AuditLogMaxSizeBytes)

	tuning := cfg.TuningFor("accessControllers")
	assert.Equal(t, 500, tuning.MaxInMemory)
	assert.True(t, tuning.UseSoftReference)
}

func TestLoadKeepsAbsolutePaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	const yamlDoc = `
grantsFilePath: /var/lib/artisec/grants.yaml
`
	require.NoError(t, afero.WriteFile(fs, "/etc/artisec/config.yaml", []byte(yamlDoc), 0644))

	cfg, err := Load(fs, "/etc/artisec/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/artisec/grants.yaml", cfg.GrantsFilePath)
}

func TestLoadMissingFileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Load(fs, "/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadReadsGlobalDisabledSwitch(t *testing.T) {
	fs := afero.NewMemMapFs()
	const yamlDoc = `
grantsFilePath: grants.yaml
authorizationManager.disabled: true
`
	require.NoError(t, afero.WriteFile(fs, "/etc/artisec/config.yaml", []byte(yamlDoc), 0644))

	cfg, err := Load(fs, "/etc/artisec/config.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.Disabled)
}

func TestLoadDefaultsDisabledToFalse(t *testing.T) {
	fs := afero.NewMemMapFs()
	const yamlDoc = `
grantsFilePath: grants.yaml
`
	require.NoError(t, afero.WriteFile(fs, "/etc/artisec/config.yaml", []byte(yamlDoc), 0644))

	cfg, err := Load(fs, "/etc/artisec/config.yaml")
	require.NoError(t, err)
	assert.False(t, cfg.Disabled)
}
