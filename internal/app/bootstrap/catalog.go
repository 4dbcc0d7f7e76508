package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/clinic-concierge/internal/catalog"
	appconfig "github.com/wolfman30/clinic-concierge/internal/config"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// CatalogSource picks where replies, FAQ and prompt files come from: the embedded defaults when
// CATALOG_SOURCE is empty, an S3 prefix for s3:// URIs, otherwise a local directory.
func CatalogSource(cfg *appconfig.Config, awsCfg aws.Config) (catalog.Source, error) {
	raw := strings.TrimSpace(cfg.CatalogSource)
	switch {
	case raw == "":
		return catalog.EmbeddedSource(), nil
	case strings.HasPrefix(raw, "s3://"):
		bucket, prefix, err := catalog.ParseS3URI(raw)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: catalog source: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.AWSEndpointOverride != "" {
				o.UsePathStyle = true
			}
		})
		return catalog.NewS3Source(client, bucket, prefix), nil
	default:
		return catalog.DirSource(raw), nil
	}
}

// LoadCatalog resolves the source and loads the bundle.
func LoadCatalog(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*catalog.Bundle, error) {
	if logger == nil {
		logger = logging.Default()
	}
	src, err := CatalogSource(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	bundle, err := catalog.Load(ctx, src, cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load catalog from %s: %w", src, err)
	}
	logger.Info("catalog loaded", "source", src.String(), "faq_languages", len(bundle.FAQ))
	return bundle, nil
}
