package resource

import (
	"context"
)

// NameProvider is consulted for by-name imports after the data path has been
// searched without success.
type NameProvider interface {
	FindResource(ctx context.Context, filename string) (string, bool, error)
}

// FuncProvider adapts a function to NameProvider.
type FuncProvider func(ctx context.Context, filename string) (string, bool, error)

func (f FuncProvider) FindResource(ctx context.Context, filename string) (string, bool, error) {
	return f(ctx, filename)
}

// DirProvider searches a fixed list of directory locators with its own fetcher.
type DirProvider struct {
	Dirs    []string
	Fetcher Fetcher
}

func (p *DirProvider) FindResource(ctx context.Context, filename string) (string, bool, error) {
	fetcher := p.Fetcher
	if fetcher == nil {
		fetcher = NewAFSFetcher(nil)
	}
	for _, dir := range p.Dirs {
		candidate := JoinDir(dir, filename)
		ok, err := fetcher.Exists(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if ok {
			return candidate, true, nil
		}
	}
	return "", false, nil
}
