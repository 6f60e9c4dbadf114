package resource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type mapFetcher struct {
	mu      sync.Mutex
	files   map[string][]byte
	fetches map[string]*int64
	delay   time.Duration
}

func newMapFetcher(files map[string]string) *mapFetcher {
	f := &mapFetcher{files: make(map[string][]byte), fetches: make(map[string]*int64)}
	for k, v := range files {
		f.files[k] = []byte(v)
		var n int64
		f.fetches[k] = &n
	}
	return f
}

func (f *mapFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	data, ok := f.files[locator]
	counter := f.fetches[locator]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", locator)
	}
	atomic.AddInt64(counter, 1)
	return data, nil
}

func (f *mapFetcher) Exists(ctx context.Context, locator string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[locator]
	return ok, nil
}

func (f *mapFetcher) count(locator string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.fetches[locator]; ok {
		return atomic.LoadInt64(c)
	}
	return 0
}
