package main

import (
	"context"
	"os"
	"strings"

	"github.com/mumuon/pixetl-go/internal/storage"
)

// dispatchFetcher resolves a manifest URI through the object storage client
// when it names a remote scheme, or straight off local disk otherwise.
type dispatchFetcher struct {
	s3 *storage.Client
}

func (f dispatchFetcher) Get(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "s3://") || strings.HasPrefix(uri, "r2://") {
		return f.s3.Get(ctx, strings.TrimPrefix(uri, "r2://"))
	}
	return os.ReadFile(uri)
}

// stringSliceFlag implements flag.Value so `--subset` can be given more than
// once (`--subset 10N_010E --subset 20N_010E`), matching the CLI contract's
// repeatable subset option.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func subsetSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
