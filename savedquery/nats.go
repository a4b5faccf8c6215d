package savedquery

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream KV bucket used when none is configured.
const DefaultBucket = "SPARQLGATE_QUERIES"

// bucket is the part of jetstream.KeyValue NATSKV uses.
type bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// NATSKV stores values in a NATS JetStream key-value bucket.
type NATSKV struct {
	kv bucket
	nc *nats.Conn
}

// NewNATSKV opens bucket in js, creating it if needed.
func NewNATSKV(ctx context.Context, js jetstream.JetStream, bucketName string) (*NATSKV, error) {
	kv, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (jetstream.KeyValue, error) {
		return getOrCreateBucket(ctx, js, bucketName)
	})
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketName, err)
	}
	return &NATSKV{kv: kv}, nil
}

// ConnectNATSKV dials the NATS server at url and opens bucket. Close releases
// the connection.
func ConnectNATSKV(ctx context.Context, url, bucketName string) (*NATSKV, error) {
	nc, err := nats.Connect(url, nats.Name("sparqlgate"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	store, err := NewNATSKV(ctx, js, bucketName)
	if err != nil {
		nc.Close()
		return nil, err
	}
	store.nc = nc
	return store, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "sparqlgate saved queries",
		History:     5,
	})
}

// Get implements KV.
func (n *NATSKV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put implements KV.
func (n *NATSKV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Close releases the NATS connection opened by ConnectNATSKV.
func (n *NATSKV) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}
