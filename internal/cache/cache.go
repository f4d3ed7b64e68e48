// Package cache stores serialized aggregation results with a time-to-live.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// DefaultTTL applies when a caller does not pick its own.
const DefaultTTL = 5 * time.Minute

const keyRoot = "health:"

// Store is a shared key-value store. Writes to the same key are
// last-writer-wins; there are no merge semantics.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
}

// DayLayout renders a calendar day together with its zone offset. The same
// date in two zones covers different instants, so keys must not collide.
const DayLayout = "2006-01-02Z07:00"

// Key builds the composite key for one aggregation query. The metric comes
// first so a per-metric clear is a prefix delete.
func Key(queryKind string, kind metric.Kind, params string, asOf time.Time) string {
	var b strings.Builder
	b.WriteString(MetricPrefix(kind))
	b.WriteString(queryKind)
	b.WriteByte(':')
	b.WriteString(params)
	b.WriteByte(':')
	b.WriteString(asOf.Format(DayLayout))
	return b.String()
}

func MetricPrefix(kind metric.Kind) string {
	return keyRoot + string(kind) + ":"
}

// Namespaced scopes every key of inner under ns, so Clear only touches ns.
func Namespaced(inner Store, ns string) Store {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return inner
	}
	return &namespaced{inner: inner, prefix: "ns:" + ns + ":"}
}

type namespaced struct {
	inner  Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.inner.Set(ctx, n.prefix+key, value, ttl)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *namespaced) DeletePrefix(ctx context.Context, prefix string) error {
	return n.inner.DeletePrefix(ctx, n.prefix+prefix)
}

func (n *namespaced) Clear(ctx context.Context) error {
	return n.inner.DeletePrefix(ctx, n.prefix)
}
