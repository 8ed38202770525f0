// Package registry provides sink discovery backed by etcd.
//
// Sinks publish themselves under a stream name; sources look the name up and dial one
// of the listed addresses:
//
//	Key:   /pixelpipe/{stream}/{addr}
//	Value: JSON-encoded SinkInstance
//
// Registration uses TTL-based leases: if a sink crashes, the lease expires and the
// entry disappears without anyone deregistering it.
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/pixelpipe/"

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client  *clientv3.Client // safe for concurrent use
	timeout time.Duration    // per-request timeout for Put/Get/Delete
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c, timeout: 5 * time.Second}, nil
}

func streamPrefix(stream string) string {
	return keyPrefix + stream + "/"
}

// Register publishes a sink with a TTL lease and keeps the lease alive in the background.
// The lease ID stays local so one EtcdRegistry can be shared by several sinks.
func (r *EtcdRegistry) Register(stream string, instance SinkInstance, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, streamPrefix(stream)+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// KeepAlive must outlive the request context above
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return err
	}

	// Drain responses so the channel never fills up
	go func() {
		for range ch {
		}
		log.Debug().Str("stream", stream).Str("addr", instance.Addr).Msg("registry lease keepalive stopped")
	}()
	return nil
}

// Deregister removes a sink. Called during graceful shutdown before the listener closes.
func (r *EtcdRegistry) Deregister(stream string, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_, err := r.client.Delete(ctx, streamPrefix(stream)+addr)
	return err
}

// Watch emits the full sink list for stream every time it changes.
func (r *EtcdRegistry) Watch(stream string) <-chan []SinkInstance {
	ch := make(chan []SinkInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(context.Background(), streamPrefix(stream), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch instead of applying individual events
			instances, err := r.Discover(stream)
			if err != nil {
				log.Warn().Err(err).Str("stream", stream).Msg("registry refresh failed")
				continue
			}
			ch <- instances
		}
	}()

	return ch
}

// Discover returns every sink currently registered for stream.
func (r *EtcdRegistry) Discover(stream string) ([]SinkInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp, err := r.client.Get(ctx, streamPrefix(stream), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]SinkInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance SinkInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			log.Warn().Err(err).Bytes("key", kv.Key).Msg("skipping malformed sink entry")
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close releases the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
