/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

package gce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"

	"github.com/adobe/aquarium-gce/lib/build"
	"github.com/adobe/aquarium-gce/lib/log"
)

// Account is the identity and connection settings the api clients are built for
type Account struct {
	ProjectID    string
	ClientEmail  string
	PrivateKey   string
	PrivateKeyID string
	TokenURI     string

	ProxyHost         string
	ProxyPort         int
	RequestsPerSecond float64

	ComputeEndpoint string
	StorageEndpoint string
	AdminEndpoint   string
	Anonymous       bool
}

// key identifies the account in the cache, the private key is hashed to not keep it twice
func (a Account) key() string {
	h := sha256.New()
	for _, v := range []string{
		a.ProjectID, a.ClientEmail, a.PrivateKey, a.PrivateKeyID, a.TokenURI,
		a.ProxyHost, strconv.Itoa(a.ProxyPort), strconv.FormatFloat(a.RequestsPerSecond, 'f', -1, 64),
		a.ComputeEndpoint, a.StorageEndpoint, a.AdminEndpoint, strconv.FormatBool(a.Anonymous),
	} {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ClientFactory builds the api clients once per account and api surface
// Read-mostly: concurrent requests for a new account could build the client twice,
// only one of them will be stored and used later
type ClientFactory struct {
	mu      sync.RWMutex
	http    map[string]*http.Client
	compute map[string]*compute.Service
	storage map[string]*storage.Service
	admin   map[string]*cloudresourcemanager.Service
}

var defaultClientFactory = NewClientFactory()

// DefaultClientFactory is shared by all the driver instances of the process
func DefaultClientFactory() *ClientFactory {
	return defaultClientFactory
}

// NewClientFactory creates the empty factory
func NewClientFactory() *ClientFactory {
	return &ClientFactory{
		http:    make(map[string]*http.Client),
		compute: make(map[string]*compute.Service),
		storage: make(map[string]*storage.Service),
		admin:   make(map[string]*cloudresourcemanager.Service),
	}
}

// Compute returns the compute api client for the account
func (f *ClientFactory) Compute(ctx context.Context, acc Account) (*compute.Service, error) {
	return memoize(f, f.compute, acc, func(opts []option.ClientOption) (*compute.Service, error) {
		if acc.ComputeEndpoint != "" {
			opts = append(opts, option.WithEndpoint(acc.ComputeEndpoint))
		}
		return compute.NewService(ctx, opts...)
	})
}

// Storage returns the object storage api client for the account
func (f *ClientFactory) Storage(ctx context.Context, acc Account) (*storage.Service, error) {
	return memoize(f, f.storage, acc, func(opts []option.ClientOption) (*storage.Service, error) {
		if acc.StorageEndpoint != "" {
			opts = append(opts, option.WithEndpoint(acc.StorageEndpoint))
		}
		return storage.NewService(ctx, opts...)
	})
}

// Admin returns the resource manager api client used to verify the project access
func (f *ClientFactory) Admin(ctx context.Context, acc Account) (*cloudresourcemanager.Service, error) {
	return memoize(f, f.admin, acc, func(opts []option.ClientOption) (*cloudresourcemanager.Service, error) {
		if acc.AdminEndpoint != "" {
			opts = append(opts, option.WithEndpoint(acc.AdminEndpoint))
		}
		return cloudresourcemanager.NewService(ctx, opts...)
	})
}

// Invalidate drops the cached clients of the account, next call will build the new ones
func (f *ClientFactory) Invalidate(acc Account) {
	key := acc.key()
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.http, key)
	delete(f.compute, key)
	delete(f.storage, key)
	delete(f.admin, key)
}

func memoize[T any](f *ClientFactory, cache map[string]T, acc Account, newService func([]option.ClientOption) (T, error)) (T, error) {
	key := acc.key()

	f.mu.RLock()
	svc, ok := cache[key]
	f.mu.RUnlock()
	if ok {
		return svc, nil
	}

	client, err := f.httpClient(acc, key)
	if err != nil {
		var empty T
		return empty, err
	}
	svc, err = newService([]option.ClientOption{
		option.WithHTTPClient(client),
		option.WithUserAgent("aquarium-gce/" + build.Version),
	})
	if err != nil {
		var empty T
		return empty, fmt.Errorf("GCE: Unable to create api client: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := cache[key]; ok {
		return existing, nil
	}
	cache[key] = svc
	return svc, nil
}

// httpClient is shared by all the api surfaces of the account to share the token & rate limit
func (f *ClientFactory) httpClient(acc Account, key string) (*http.Client, error) {
	f.mu.RLock()
	client, ok := f.http[key]
	f.mu.RUnlock()
	if ok {
		return client, nil
	}

	logger := log.WithFunc("gce", "httpClient").With("project", acc.ProjectID)

	base := http.DefaultTransport.(*http.Transport).Clone()
	if acc.ProxyHost != "" {
		base.Proxy = http.ProxyURL(&url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(acc.ProxyHost, strconv.Itoa(acc.ProxyPort)),
		})
		logger.Debug("Using proxy", "proxy", base.Proxy)
	}

	var rt http.RoundTripper = otelhttp.NewTransport(base)
	if acc.RequestsPerSecond > 0 {
		rt = newRateLimitedTransport(rt, acc.RequestsPerSecond)
	}

	if !acc.Anonymous {
		// Token endpoint is not rate limited & not authorized
		ts, err := newTokenSource(acc, &http.Client{Transport: otelhttp.NewTransport(base)})
		if err != nil {
			return nil, err
		}
		rt = &oauth2.Transport{Source: ts, Base: rt}
	}

	client = &http.Client{Transport: rt}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.http[key]; ok {
		return existing, nil
	}
	f.http[key] = client
	return client, nil
}

// rateLimitedTransport waits for the limiter before every request
type rateLimitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func newRateLimitedTransport(next http.RoundTripper, rps float64) *rateLimitedTransport {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedTransport{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		next:    next,
	}
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
