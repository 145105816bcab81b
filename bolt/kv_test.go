package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/volaas/volauth/bolt"
	"github.com/volaas/volauth/kv"
)

// NewTestKVStore returns an open bolt store backed by a temp file.
func NewTestKVStore(t *testing.T) (*bolt.KVStore, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "volauth.bolt")
	s := bolt.NewKVStore(zaptest.NewLogger(t), path, bolt.WithNoSync)
	require.NoError(t, s.Open(context.Background()))

	return s, func() {
		s.Close()
	}
}

func TestKVStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, closeFn := NewTestKVStore(t)
	defer closeFn()

	bucket := []byte("testv1")

	err := s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte("k1"), []byte("v1"))
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		v, err := b.Get([]byte("k1"))
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("v1"), v)

		_, err = b.Get([]byte("missing"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
		return nil
	})
	require.NoError(t, err)

	err = s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		return b.Delete([]byte("k1"))
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		_, err = b.Get([]byte("k1"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestKVStore_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s, closeFn := NewTestKVStore(t)
	defer closeFn()

	err := s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("testv1"))
		if err != nil {
			return err
		}
		return b.Put([]byte("k"), []byte("v"))
	})
	assert.ErrorIs(t, err, kv.ErrTxNotWritable)
}

func TestKVStore_ForwardCursor(t *testing.T) {
	ctx := context.Background()
	s, closeFn := NewTestKVStore(t)
	defer closeFn()

	bucket := []byte("testv1")
	err := s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := b.Put([]byte(k), []byte("v-"+k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var keys []string
	err = s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		cursor, err := b.ForwardCursor([]byte("b"))
		if err != nil {
			return err
		}
		defer cursor.Close()

		for k, _ := cursor.Next(); k != nil; k, _ = cursor.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, keys)
}

func TestKVStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "volauth.bolt")

	s := bolt.NewKVStore(zaptest.NewLogger(t), path)
	require.NoError(t, s.Open(ctx))
	err := s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("testv1"))
		if err != nil {
			return err
		}
		return b.Put([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Data survives a restart.
	s = bolt.NewKVStore(zaptest.NewLogger(t), path)
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	err = s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("testv1"))
		if err != nil {
			return err
		}
		v, err := b.Get([]byte("k"))
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("v"), v)
		return nil
	})
	require.NoError(t, err)
}
