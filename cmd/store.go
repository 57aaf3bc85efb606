package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/connect-cli/internal/config"
	"github.com/sells-group/connect-cli/internal/imageurl"
	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/store"
)

// initStore opens the configured backend. mode selects which settings are
// validated first.
func initStore(ctx context.Context, c *config.Config, mode string) (store.Store, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initMatcher builds the duplicate checker over st.
func initMatcher(c *config.Config, st store.Store) *match.Matcher {
	return match.New(st, c.MatcherConfig())
}

// initImages builds the image URL resolver for the configured storage mode.
func initImages(ctx context.Context, c *config.Config) (*imageurl.Resolver, error) {
	var signer imageurl.Signer
	switch c.Storage.Mode {
	case "s3":
		s3, err := imageurl.NewS3Signer(ctx, c.Storage.Bucket, c.Storage.Region)
		if err != nil {
			return nil, err
		}
		signer = s3
	default:
		signer = imageurl.Local{BaseURL: c.Storage.LocalBaseURL}
	}
	return imageurl.NewResolver(signer, c.URLTTL(), c.RetryPolicy()), nil
}
