package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtal-snapshots/crystal-snapshots/internal/config"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

func TestGranularConnFlags_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		flags *GranularConnFlags
		want  bool
	}{
		{"nil", nil, true},
		{"empty", &GranularConnFlags{}, true},
		{"database only", &GranularConnFlags{Database: "ispyb"}, true},
		{"host", &GranularConnFlags{Host: "db"}, false},
		{"port", &GranularConnFlags{Port: 5433}, false},
		{"user", &GranularConnFlags{Username: "u"}, false},
		{"sslmode", &GranularConnFlags{SSLMode: "require"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flags.IsEmpty())
		})
	}
}

func TestResolveConnectionParams_ConnectionStringConflictsWithFlags(t *testing.T) {
	_, err := ResolveConnectionParams("postgresql://db/ispyb", &GranularConnFlags{Host: "other"}, nil, nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, snapshots.ErrInvalidConfig)
}

func TestResolveConnectionParams_ConnectionStringWithDatabaseOverride(t *testing.T) {
	cfg, err := ResolveConnectionParams("postgresql://reader@db:5432/postgres", &GranularConnFlags{Database: "ispyb"}, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, "reader", cfg.Username)
	assert.Equal(t, "ispyb", cfg.Database)
}

func TestResolveConnectionParams_SSLModeFromEnvironmentWhenAbsent(t *testing.T) {
	env := &EnvVars{PGSSLMODE: "require"}

	cfg, err := ResolveConnectionParams("postgresql://db/ispyb", nil, nil, env, nil)
	require.NoError(t, err)
	assert.Equal(t, "require", cfg.SSLMode)

	cfg, err = ResolveConnectionParams("postgresql://db/ispyb?sslmode=disable", nil, nil, env, nil)
	require.NoError(t, err)
	assert.Equal(t, "disable", cfg.SSLMode)
}

func TestResolveConnectionParams_DatabaseURL(t *testing.T) {
	env := &EnvVars{DATABASE_URL: "postgresql://reader:pw@from-env:6000/ispyb", PGHOST: "ignored"}

	cfg, err := ResolveConnectionParams("", nil, nil, env, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Host)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, "pw", cfg.Password)
}

func TestResolveConnectionParams_GranularPrecedence(t *testing.T) {
	file := &config.ConnectionConfig{Host: "file-host", Port: 7000, Username: "file-user", Database: "file-db", SSLMode: "verify-ca"}

	t.Run("flags win", func(t *testing.T) {
		flags := &GranularConnFlags{Host: "flag-host", Port: 5000, Username: "flag-user", Database: "flag-db", SSLMode: "disable"}
		env := &EnvVars{PGHOST: "env-host", PGPORT: "6000", PGUSER: "env-user", PGDATABASE: "env-db", PGSSLMODE: "require", PGPASSWORD: "pw"}

		cfg, err := ResolveConnectionParams("", flags, nil, env, file)
		require.NoError(t, err)
		assert.Equal(t, "flag-host", cfg.Host)
		assert.Equal(t, 5000, cfg.Port)
		assert.Equal(t, "flag-user", cfg.Username)
		assert.Equal(t, "flag-db", cfg.Database)
		assert.Equal(t, "disable", cfg.SSLMode)
		assert.Equal(t, "pw", cfg.Password)
	})

	t.Run("environment beats file", func(t *testing.T) {
		env := &EnvVars{PGHOST: "env-host", PGPORT: "6000", PGUSER: "env-user", PGDATABASE: "env-db"}

		cfg, err := ResolveConnectionParams("", nil, nil, env, file)
		require.NoError(t, err)
		assert.Equal(t, "env-host", cfg.Host)
		assert.Equal(t, 6000, cfg.Port)
		assert.Equal(t, "env-user", cfg.Username)
		assert.Equal(t, "env-db", cfg.Database)
		assert.Equal(t, "verify-ca", cfg.SSLMode)
	})

	t.Run("file beats defaults", func(t *testing.T) {
		cfg, err := ResolveConnectionParams("", nil, nil, &EnvVars{}, file)
		require.NoError(t, err)
		assert.Equal(t, "file-host", cfg.Host)
		assert.Equal(t, 7000, cfg.Port)
		assert.Equal(t, "file-db", cfg.Database)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := ResolveConnectionParams("", nil, nil, &EnvVars{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 5432, cfg.Port)
		assert.Equal(t, "postgres", cfg.Database)
		assert.Equal(t, "prefer", cfg.SSLMode)
	})
}

func TestResolveConnectionParams_InvalidPGPORT(t *testing.T) {
	_, err := ResolveConnectionParams("", nil, nil, &EnvVars{PGPORT: "abc"}, nil)

	assert.ErrorIs(t, err, snapshots.ErrInvalidConfig)
}

func TestResolveConnectionParams_AuthMethod(t *testing.T) {
	tests := []struct {
		name   string
		cloud  *CloudFlags
		env    *EnvVars
		file   *config.ConnectionConfig
		want   snapshots.AuthMethod
		verify func(t *testing.T, cfg *snapshots.ConnectionConfig)
	}{
		{
			name: "standard by default",
			want: snapshots.AuthMethodStandard,
		},
		{
			name:  "aws flag with region from environment",
			cloud: &CloudFlags{AWSIAM: true},
			env:   &EnvVars{AWS_DEFAULT_REGION: "eu-west-2"},
			want:  snapshots.AuthMethodAWSIAM,
			verify: func(t *testing.T, cfg *snapshots.ConnectionConfig) {
				assert.Equal(t, "eu-west-2", cfg.AWSRegion)
			},
		},
		{
			name: "aws from file",
			file: &config.ConnectionConfig{AuthMethod: "aws-iam", AWSRegion: "us-east-1"},
			env:  &EnvVars{AWS_REGION: "eu-west-1"},
			want: snapshots.AuthMethodAWSIAM,
			verify: func(t *testing.T, cfg *snapshots.ConnectionConfig) {
				assert.Equal(t, "us-east-1", cfg.AWSRegion)
			},
		},
		{
			name:  "google instance flag",
			cloud: &CloudFlags{GoogleInstance: "proj:europe-west2:ispyb"},
			want:  snapshots.AuthMethodGoogleIAM,
			verify: func(t *testing.T, cfg *snapshots.ConnectionConfig) {
				assert.Equal(t, "proj:europe-west2:ispyb", cfg.GoogleInstance)
			},
		},
		{
			name: "azure inferred from environment",
			env:  &EnvVars{AZURE_TENANT_ID: "tenant", AZURE_CLIENT_ID: "client", AZURE_CLIENT_SECRET: "secret"},
			want: snapshots.AuthMethodAzureEntraID,
			verify: func(t *testing.T, cfg *snapshots.ConnectionConfig) {
				assert.Equal(t, "tenant", cfg.AzureTenantID)
				assert.Equal(t, "client", cfg.AzureClientID)
				assert.Equal(t, "secret", cfg.AzureClientSecret)
			},
		},
		{
			name:  "azure flags override environment",
			cloud: &CloudFlags{Azure: true, AzureTenantID: "flag-tenant"},
			env:   &EnvVars{AZURE_TENANT_ID: "env-tenant", AZURE_CLIENT_ID: "env-client"},
			want:  snapshots.AuthMethodAzureEntraID,
			verify: func(t *testing.T, cfg *snapshots.ConnectionConfig) {
				assert.Equal(t, "flag-tenant", cfg.AzureTenantID)
				assert.Equal(t, "env-client", cfg.AzureClientID)
			},
		},
		{
			name: "explicit standard ignores azure environment",
			file: &config.ConnectionConfig{AuthMethod: "standard"},
			env:  &EnvVars{AZURE_TENANT_ID: "tenant"},
			want: snapshots.AuthMethodStandard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tt.env
			if env == nil {
				env = &EnvVars{}
			}
			cfg, err := ResolveConnectionParams("", nil, tt.cloud, env, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.AuthMethod)
			if tt.verify != nil {
				tt.verify(t, cfg)
			}
		})
	}
}

func TestResolveConnectionParams_CloudFlagsAreExclusive(t *testing.T) {
	_, err := ResolveConnectionParams("", nil, &CloudFlags{AWSIAM: true, Azure: true}, nil, nil)

	assert.ErrorIs(t, err, snapshots.ErrInvalidConfig)
}

func TestParseAuthMethod(t *testing.T) {
	tests := []struct {
		in   string
		want snapshots.AuthMethod
	}{
		{"", snapshots.AuthMethodStandard},
		{"Standard", snapshots.AuthMethodStandard},
		{"aws-iam", snapshots.AuthMethodAWSIAM},
		{"google", snapshots.AuthMethodGoogleIAM},
		{" azure ", snapshots.AuthMethodAzureEntraID},
	}
	for _, tt := range tests {
		got, err := ParseAuthMethod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseAuthMethod("kerberos")
	assert.ErrorIs(t, err, snapshots.ErrUnsupportedAuthMethod)
}
