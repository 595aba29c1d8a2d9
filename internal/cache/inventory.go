package cache

import (
	"context"
	"fmt"
	"time"

	"bbs/internal/middleware"
	"bbs/internal/models"
)

const (
	ListGenerationKey  = "bbs:list:gen"
	ListCountKeyPrefix = "bbs:list:%d:count:%s:%s"
	ListPageKeyPrefix  = "bbs:list:%d:page:%s:%s:%d:%d"
)

// ListTTL bounds how long a superseded generation lingers in Redis.
const ListTTL = 2 * time.Minute

// ListCountKey is the cached match count for a criteria within one list generation.
func ListCountKey(gen int64, c models.SearchCriteria) string {
	return fmt.Sprintf(ListCountKeyPrefix, gen, c.Type, c.Term())
}

// ListPageKey is the cached page slice for a criteria within one list generation.
func ListPageKey(gen int64, c models.SearchCriteria, offset, size int) string {
	return fmt.Sprintf(ListPageKeyPrefix, gen, c.Type, c.Term(), offset, size)
}

// ListGeneration returns the current list generation. It is 0 until the first bump.
func ListGeneration(ctx context.Context) (int64, error) {
	if client == nil {
		return 0, nil
	}
	gen, err := client.Get(ctx, ListGenerationKey).Int64()
	if err == nil || isMiss(err) {
		return gen, nil
	}
	return 0, err
}

// BumpListGeneration moves every cached list key out of reach. Old keys expire on their own.
func BumpListGeneration(ctx context.Context) {
	if client == nil {
		return
	}
	if err := client.Incr(ctx, ListGenerationKey).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to bump list generation", "error", err)
	}
}
