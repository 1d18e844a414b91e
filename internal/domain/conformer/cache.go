package conformer

import (
	"context"

	pool "github.com/jolestar/go-commons-pool/v2"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// DefaultCacheSize is the number of idle objects a Cache keeps by default.
const DefaultCacheSize = 1000

// Cache is a bounded pool of reusable objects. Objects are handed out with
// Acquire and must come back through Release; at most maxIdle released objects
// are retained, the rest are dropped for the garbage collector.
//
// T must be a pointer type: the backing pool tracks objects by identity.
// A Cache has a single owner and is not meant for concurrent use.
type Cache[T any] struct {
	ctx   context.Context
	pool  *pool.ObjectPool
	reset func(T)
}

// NewCache creates a cache that builds objects with create and restores them
// with reset (may be nil) before reuse.
func NewCache[T any](maxIdle int, create func() T, reset func(T)) *Cache[T] {
	if maxIdle <= 0 {
		maxIdle = DefaultCacheSize
	}
	ctx := context.Background()
	factory := pool.NewPooledObjectFactorySimple(func(context.Context) (interface{}, error) {
		return create(), nil
	})
	cfg := pool.NewDefaultPoolConfig()
	cfg.MaxTotal = -1
	cfg.MaxIdle = maxIdle
	cfg.BlockWhenExhausted = false
	return &Cache[T]{ctx: ctx, pool: pool.NewObjectPool(ctx, factory, cfg), reset: reset}
}

// NewRecordCache returns a cache of records sized for numAtoms atoms.
func NewRecordCache(numAtoms, maxIdle int) *Cache[*Record] {
	return NewCache(maxIdle,
		func() *Record { return NewRecord(numAtoms) },
		func(r *Record) { r.Reset() })
}

// Acquire returns an object, reusing an idle one when available.
func (c *Cache[T]) Acquire() T {
	obj, err := c.pool.BorrowObject(c.ctx)
	if err != nil {
		// Only possible if the pool was closed; that is an ownership bug.
		panic(errors.Wrap(err, errors.ErrCodeConfGenCacheMisuse, "acquire from cache"))
	}
	return obj.(T)
}

// Release returns obj to the cache after resetting it.
func (c *Cache[T]) Release(obj T) {
	if c.reset != nil {
		c.reset(obj)
	}
	if err := c.pool.ReturnObject(c.ctx, obj); err != nil {
		panic(errors.Wrap(err, errors.ErrCodeConfGenCacheMisuse, "release to cache"))
	}
}

// ReleaseAll releases every object in objs.
func (c *Cache[T]) ReleaseAll(objs []T) {
	for _, o := range objs {
		c.Release(o)
	}
}

// Scoped acquires an object, runs fn with it and releases it afterwards, also
// when fn panics.
func (c *Cache[T]) Scoped(fn func(T) error) error {
	obj := c.Acquire()
	defer c.Release(obj)
	return fn(obj)
}

// Outstanding returns the number of acquired, not yet released objects.
func (c *Cache[T]) Outstanding() int {
	return c.pool.GetNumActive()
}

// Idle returns the number of retained idle objects.
func (c *Cache[T]) Idle() int {
	return c.pool.GetNumIdle()
}

// Close shuts the cache down. It fails if objects are still outstanding.
func (c *Cache[T]) Close() error {
	if n := c.Outstanding(); n > 0 {
		return errors.New(errors.ErrCodeConfGenCacheMisuse, "cache closed with outstanding objects").
			WithDetailf("%d outstanding", n)
	}
	c.pool.Close(c.ctx)
	return nil
}

//Personal.AI order the ending
