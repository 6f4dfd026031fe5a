package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xtal-snapshots/crystal-snapshots/internal/config"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// GranularConnFlags holds the libpq style connection flags (-h, -p, -U, -d).
// There is deliberately no password flag: use $PGPASSWORD, a connection
// string or cloud authentication.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty reports whether none of the server-selecting flags were given.
// Database is left out because it may refine a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g == nil || (g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == "")
}

// CloudFlags selects cloud IAM authentication from the command line.
type CloudFlags struct {
	AWSIAM    bool
	AWSRegion string

	Azure         bool
	AzureTenantID string
	AzureClientID string

	GoogleInstance string
}

// EnvVars holds the environment variables that influence the connection.
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string

	AWS_REGION         string
	AWS_DEFAULT_REGION string

	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
		AWS_DEFAULT_REGION:  os.Getenv("AWS_DEFAULT_REGION"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ParseAuthMethod maps the auth_method config value to an AuthMethod.
func ParseAuthMethod(s string) (snapshots.AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return snapshots.AuthMethodStandard, nil
	case "aws", "aws-iam":
		return snapshots.AuthMethodAWSIAM, nil
	case "google", "google-iam":
		return snapshots.AuthMethodGoogleIAM, nil
	case "azure", "azure-entra-id", "entra":
		return snapshots.AuthMethodAzureEntraID, nil
	default:
		return 0, fmt.Errorf("auth method %q: %w", s, snapshots.ErrUnsupportedAuthMethod)
	}
}

// ResolveConnectionParams builds the connection configuration.
//
// The server is chosen from, in order: the --connection flag, $DATABASE_URL
// when no granular flag is set, or granular values where each field prefers
// its flag, then its PG* variable, then the config file, then the libpq
// default. --connection and granular flags are mutually exclusive.
//
// The authentication method comes from the cloud flags, then the config
// file's auth_method, then the presence of Azure environment variables.
func ResolveConnectionParams(
	connStringFlag string,
	granular *GranularConnFlags,
	cloud *CloudFlags,
	env *EnvVars,
	file *config.ConnectionConfig,
) (*snapshots.ConnectionConfig, error) {
	if granular == nil {
		granular = &GranularConnFlags{}
	}
	if cloud == nil {
		cloud = &CloudFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	if file == nil {
		file = &config.ConnectionConfig{}
	}

	if connStringFlag != "" && !granular.IsEmpty() {
		return nil, fmt.Errorf("cannot specify both --connection and granular flags (-h, -p, -U, --sslmode): %w", snapshots.ErrInvalidConfig)
	}

	var (
		cfg *snapshots.ConnectionConfig
		err error
	)
	switch {
	case connStringFlag != "":
		cfg, err = resolveFromConnectionString(connStringFlag, granular, env)
	case granular.IsEmpty() && env.DATABASE_URL != "":
		cfg, err = resolveFromConnectionString(env.DATABASE_URL, granular, env)
	default:
		cfg, err = resolveFromGranularParams(granular, env, file)
	}
	if err != nil {
		return nil, err
	}

	if err := applyAuth(cfg, cloud, env, file); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveFromConnectionString(connStr string, granular *GranularConnFlags, env *EnvVars) (*snapshots.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if granular.Database != "" {
		cfg.Database = granular.Database
	}
	if !strings.Contains(connStr, "sslmode") && env.PGSSLMODE != "" {
		cfg.SSLMode = env.PGSSLMODE
	}
	return cfg, nil
}

func resolveFromGranularParams(flags *GranularConnFlags, env *EnvVars, file *config.ConnectionConfig) (*snapshots.ConnectionConfig, error) {
	cfg := &snapshots.ConnectionConfig{
		AuthMethod:       snapshots.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = firstNonEmpty(flags.Host, env.PGHOST, file.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value %q, must be an integer: %w", env.PGPORT, snapshots.ErrInvalidConfig)
		}
		cfg.Port = port
	case file.Port != 0:
		cfg.Port = file.Port
	default:
		cfg.Port = 5432
	}

	cfg.Username = firstNonEmpty(flags.Username, env.PGUSER, file.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Password = env.PGPASSWORD
	cfg.Database = firstNonEmpty(flags.Database, env.PGDATABASE, file.Database, snapshots.DefaultManagementDB)
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, env.PGSSLMODE, file.SSLMode, "prefer")

	return cfg, nil
}

// applyAuth selects the authentication method and attaches its settings.
func applyAuth(cfg *snapshots.ConnectionConfig, cloud *CloudFlags, env *EnvVars, file *config.ConnectionConfig) error {
	selected := 0
	for _, on := range []bool{cloud.AWSIAM, cloud.Azure, cloud.GoogleInstance != ""} {
		if on {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("--aws-iam, --azure and --google-instance are mutually exclusive: %w", snapshots.ErrInvalidConfig)
	}

	method, err := ParseAuthMethod(file.AuthMethod)
	if err != nil {
		return err
	}
	switch {
	case cloud.AWSIAM:
		method = snapshots.AuthMethodAWSIAM
	case cloud.Azure:
		method = snapshots.AuthMethodAzureEntraID
	case cloud.GoogleInstance != "":
		method = snapshots.AuthMethodGoogleIAM
	case file.AuthMethod == "" && (env.AZURE_TENANT_ID != "" || env.AZURE_CLIENT_ID != ""):
		method = snapshots.AuthMethodAzureEntraID
	}
	cfg.AuthMethod = method

	switch method {
	case snapshots.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(cloud.AWSRegion, file.AWSRegion, env.AWS_REGION, env.AWS_DEFAULT_REGION)
	case snapshots.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(cloud.GoogleInstance, file.GoogleInstance)
	case snapshots.AuthMethodAzureEntraID:
		cfg.AzureTenantID = firstNonEmpty(cloud.AzureTenantID, file.AzureTenantID, env.AZURE_TENANT_ID)
		cfg.AzureClientID = firstNonEmpty(cloud.AzureClientID, file.AzureClientID, env.AZURE_CLIENT_ID)
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
