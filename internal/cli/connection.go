package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/xtal-snapshots/crystal-snapshots/internal/config"
	"github.com/xtal-snapshots/crystal-snapshots/internal/db"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// connectionFlags holds the connection-related flag values.
type connectionFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	aws            bool
	awsRegion      string
	azure          bool
	azureTenantID  string
	azureClientID  string
	googleInstance string
}

func addConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.connection, "connection", "", "PostgreSQL connection string (URI or key=value)")
	flags.StringVarP(&f.host, "host", "h", "", "Database server host")
	flags.IntVarP(&f.port, "port", "p", 0, "Database server port")
	flags.StringVarP(&f.username, "username", "U", "", "Database user")
	flags.StringVarP(&f.database, "database", "d", "", "Database holding the DataCollection table")
	flags.StringVar(&f.sslMode, "sslmode", "", "SSL mode (disable, require, verify-full, ...)")
	flags.BoolVar(&f.aws, "aws-iam", false, "Authenticate with AWS RDS IAM")
	flags.StringVar(&f.awsRegion, "aws-region", "", "AWS region for RDS IAM authentication")
	flags.BoolVar(&f.azure, "azure", false, "Authenticate with Azure Entra ID")
	flags.StringVar(&f.azureTenantID, "azure-tenant-id", "", "Azure tenant id for service principal authentication")
	flags.StringVar(&f.azureClientID, "azure-client-id", "", "Azure client id for service principal authentication")
	flags.StringVar(&f.googleInstance, "google-instance", "", "Cloud SQL instance (project:region:instance) for Google IAM authentication")
}

// resolveConnection combines flags, environment and the config file into the
// connection to open.
func resolveConnection(f connectionFlags, file *config.ConnectionConfig) (*snapshots.ConnectionConfig, error) {
	granular := &db.GranularConnFlags{
		Host:     f.host,
		Port:     f.port,
		Username: f.username,
		Database: f.database,
		SSLMode:  f.sslMode,
	}
	cloud := &db.CloudFlags{
		AWSIAM:         f.aws,
		AWSRegion:      f.awsRegion,
		Azure:          f.azure,
		AzureTenantID:  f.azureTenantID,
		AzureClientID:  f.azureClientID,
		GoogleInstance: f.googleInstance,
	}
	return db.ResolveConnectionParams(f.connection, granular, cloud, db.LoadFromEnvironment(), file)
}

func logConnection(logger zerolog.Logger, cfg *snapshots.ConnectionConfig) {
	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("user", cfg.Username).
		Str("database", cfg.Database).
		Str("sslmode", cfg.SSLMode).
		Stringer("auth", cfg.AuthMethod).
		Msg("connecting to database")
}
