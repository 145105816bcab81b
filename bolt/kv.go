package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opentracing/opentracing-go"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/volaas/volauth/kv"
)

// KVStore is a kv.Store backed by boltdb.
type KVStore struct {
	path   string
	db     *bolt.DB
	logger *zap.Logger
	noSync bool
}

// KVOption configures a KVStore.
type KVOption func(*KVStore)

// WithNoSync skips fsync on every commit. Useful for tests, unsafe for
// production data.
func WithNoSync(s *KVStore) {
	s.noSync = true
}

// NewKVStore returns an instance of KVStore with the file at
// the provided path.
func NewKVStore(logger *zap.Logger, path string, opts ...KVOption) *KVStore {
	store := &KVStore{
		path:   path,
		logger: logger,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Open creates the boltDB file if it doesn't exist and opens it otherwise.
func (s *KVStore) Open(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "KVStore.Open")
	defer span.Finish()

	// Ensure the required directory structure exists.
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("unable to create directory %s: %v", filepath.Dir(s.path), err)
	}

	if _, err := os.Stat(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 1 * time.Second, NoSync: s.noSync})
	if err != nil {
		return fmt.Errorf("unable to open boltdb file %v", err)
	}
	s.db = db

	s.logger.Info("Resources opened", zap.String("path", s.path))
	return nil
}

// Close the connection to the bolt database.
func (s *KVStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// View opens up a view transaction against the store.
func (s *KVStore) View(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "KVStore.View")
	defer span.Finish()

	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Update opens up an update transaction against the store.
func (s *KVStore) Update(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "KVStore.Update")
	defer span.Finish()

	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Tx is a light wrapper around a boltdb transaction.
type Tx struct {
	tx  *bolt.Tx
	ctx context.Context
}

// Context returns the context for the transaction.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// WithContext sets the context for the transaction.
func (tx *Tx) WithContext(ctx context.Context) {
	tx.ctx = ctx
}

// Bucket retrieves the bucket named b. In a writable transaction the
// bucket is created when absent; in a read-only transaction an absent
// bucket reads as empty.
func (tx *Tx) Bucket(b []byte) (kv.Bucket, error) {
	if tx.tx.Writable() {
		bkt, err := tx.tx.CreateBucketIfNotExists(b)
		if err != nil {
			return nil, err
		}
		return &Bucket{bucket: bkt}, nil
	}

	bkt := tx.tx.Bucket(b)
	if bkt == nil {
		return &Bucket{}, nil
	}
	return &Bucket{bucket: bkt}, nil
}

// Bucket implements kv.Bucket.
type Bucket struct {
	bucket *bolt.Bucket
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	if b.bucket == nil {
		return nil, kv.ErrKeyNotFound
	}
	val := b.bucket.Get(key)
	if len(val) == 0 {
		return nil, kv.ErrKeyNotFound
	}

	return val, nil
}

// Put sets the value at the provided key.
func (b *Bucket) Put(key []byte, value []byte) error {
	if b.bucket == nil {
		return kv.ErrTxNotWritable
	}
	err := b.bucket.Put(key, value)
	if err == bolt.ErrTxNotWritable {
		return kv.ErrTxNotWritable
	}
	return err
}

// Delete removes the provided key.
func (b *Bucket) Delete(key []byte) error {
	if b.bucket == nil {
		return kv.ErrTxNotWritable
	}
	err := b.bucket.Delete(key)
	if err == bolt.ErrTxNotWritable {
		return kv.ErrTxNotWritable
	}
	return err
}

// ForwardCursor returns a cursor positioned at the first key at or after
// seek.
func (b *Bucket) ForwardCursor(seek []byte) (kv.ForwardCursor, error) {
	if b.bucket == nil {
		return &Cursor{}, nil
	}

	cursor := b.bucket.Cursor()
	var k, v []byte
	if seek == nil {
		k, v = cursor.First()
	} else {
		k, v = cursor.Seek(seek)
	}

	return &Cursor{
		cursor: cursor,
		k:      k,
		v:      v,
	}, nil
}

// Cursor is a forward cursor over a bolt bucket.
type Cursor struct {
	cursor  *bolt.Cursor
	k, v    []byte
	started bool
}

// Next returns the next key/value pair, or nils when exhausted.
func (c *Cursor) Next() ([]byte, []byte) {
	if c.cursor == nil {
		return nil, nil
	}
	if !c.started {
		c.started = true
		return c.k, c.v
	}
	k, v := c.cursor.Next()
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}

// Close releases the cursor. Bolt cursors are freed with their
// transaction, so this is a no-op.
func (c *Cursor) Close() error {
	return nil
}
