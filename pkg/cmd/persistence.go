package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mbellotti/exitflow/pkg/persistence"
	"github.com/mbellotti/exitflow/pkg/persistence/file"
	"github.com/mbellotti/exitflow/pkg/persistence/postgresql"
	"github.com/mbellotti/exitflow/pkg/persistence/redis"
)

// NewPersistence selects the persistence backend from the database URL
// scheme: postgres://, redis://, or file:// (the default for anything else).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
