package resource

import (
	"context"

	"github.com/viant/afs"
)

// Fetcher reads descriptor bytes addressed by an absolute locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
	Exists(ctx context.Context, locator string) (bool, error)
}

type afsFetcher struct {
	fs afs.Service
}

// NewAFSFetcher returns a Fetcher backed by an afs service, which understands
// file://, mem:// and the other storage schemes registered with afs.
func NewAFSFetcher(fs afs.Service) Fetcher {
	if fs == nil {
		fs = afs.New()
	}
	return &afsFetcher{fs: fs}
}

func (f *afsFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f.fs.DownloadWithURL(ctx, locator)
}

func (f *afsFetcher) Exists(ctx context.Context, locator string) (bool, error) {
	return f.fs.Exists(ctx, locator)
}
