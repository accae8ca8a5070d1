package interfaces

import "context"

type DedupFilter interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}
