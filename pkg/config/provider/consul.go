// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
)

// consulWatchWait bounds each blocking query; shorter waits react to
// context cancellation sooner at the cost of more round trips.
const consulWatchWait = 5 * time.Minute

// ConsulProvider loads configuration from a Consul KV key and watches
// it via blocking queries on the key's modify index.
type ConsulProvider struct {
	kv  *api.KV
	key string
}

// NewConsulProvider connects to the Consul agent and reads the given
// KV key. The first endpoint is used as the agent address; an empty
// endpoint list falls back to the client's defaults.
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}

	cfg := api.DefaultConfig()
	if len(endpoints) > 0 {
		cfg.Address = endpoints[0]
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulProvider{kv: client.KV(), key: key}, nil
}

// Type returns the provider type.
func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

// Load reads the key's current value.
func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, _, err := p.kv.Get(p.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch signals whenever the key's modify index advances.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)

		var lastIndex uint64
		for {
			opts := &api.QueryOptions{
				WaitIndex: lastIndex,
				WaitTime:  consulWatchWait,
			}
			pair, meta, err := p.kv.Get(p.key, opts.WithContext(ctx))
			if ctx.Err() != nil {
				return
			}
			if err != nil || meta == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			if pair != nil && meta.LastIndex != lastIndex && lastIndex != 0 {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
			lastIndex = meta.LastIndex
		}
	}()

	return ch, nil
}

// Close releases resources. The Consul client holds only pooled HTTP
// connections.
func (p *ConsulProvider) Close() error {
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
