package generator

import (
	"net"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/tracing"
)

// DefaultClientCacheSize is used when Options.ClientCacheSize is not positive.
const DefaultClientCacheSize = 64

// newHTTPClient returns the pooled client shared by every vendor SDK
// client. It has no overall timeout; the request context bounds each call.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{Transport: &tracing.Transport{Base: transport}}
}

// clientKey identifies a vendor client. A rotated key or base URL yields a
// new client.
type clientKey struct {
	providerID int64
	apiKey     string
	baseURL    string
}

func keyFor(cfg *provider.Config) clientKey {
	return clientKey{providerID: cfg.ID, apiKey: cfg.APIKey, baseURL: cfg.BaseURL}
}

// clientCache memoizes SDK clients. Entries are stateless handles, so
// concurrent callers may share one.
type clientCache[T any] struct {
	lru *lru.Cache[clientKey, T]
}

func newClientCache[T any](size int) *clientCache[T] {
	if size <= 0 {
		size = DefaultClientCacheSize
	}
	c, err := lru.New[clientKey, T](size)
	if err != nil {
		// Only returned for a non-positive size, which is guarded above.
		panic(err)
	}
	return &clientCache[T]{lru: c}
}

// getOrCreate returns the cached client for k or builds one with build.
// Two concurrent misses may both build; the last one wins, which is
// harmless for stateless clients.
func (c *clientCache[T]) getOrCreate(k clientKey, build func() (T, error)) (T, error) {
	if v, ok := c.lru.Get(k); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return v, err
	}
	c.lru.Add(k, v)
	return v, nil
}

// Len reports the number of cached clients.
func (c *clientCache[T]) Len() int {
	return c.lru.Len()
}
