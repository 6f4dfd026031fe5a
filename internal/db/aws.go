package db

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// rdsTokenLifetime is how long an RDS IAM authentication token is accepted.
const rdsTokenLifetime = 15 * time.Minute

// AWSIAMTokenProvider builds RDS IAM authentication tokens from the default
// AWS credential chain.
type AWSIAMTokenProvider struct {
	endpoint string
	region   string
	username string
}

// NewAWSIAMTokenProvider validates its arguments. endpoint is host:port.
func NewAWSIAMTokenProvider(endpoint, region, username string) (*AWSIAMTokenProvider, error) {
	switch {
	case endpoint == "":
		return nil, fmt.Errorf("AWS IAM auth requires an endpoint (host:port): %w", snapshots.ErrInvalidConfig)
	case region == "":
		return nil, fmt.Errorf("AWS IAM auth requires a region (use --aws-region or $AWS_REGION): %w", snapshots.ErrInvalidConfig)
	case username == "":
		return nil, fmt.Errorf("AWS IAM auth requires a database username: %w", snapshots.ErrInvalidConfig)
	}
	return &AWSIAMTokenProvider{endpoint: endpoint, region: region, username: username}, nil
}

func (p *AWSIAMTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	token, err := auth.BuildAuthToken(ctx, p.endpoint, p.region, p.username, cfg.Credentials)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build RDS auth token: %w", err)
	}
	return token, time.Now().Add(rdsTokenLifetime), nil
}

func (p *AWSIAMTokenProvider) String() string {
	return fmt.Sprintf("AWS IAM (endpoint=%s, region=%s, user=%s)", p.endpoint, p.region, p.username)
}

func newAWSConnector(cfg *snapshots.ConnectionConfig, logger snapshots.Logger) (snapshots.Connector, error) {
	provider, err := NewAWSIAMTokenProvider(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), cfg.AWSRegion, cfg.Username)
	if err != nil {
		return nil, err
	}
	return NewTokenConnector(cfg, provider, logger), nil
}
