package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volaas/volauth/inmem"
	"github.com/volaas/volauth/kv"
)

func TestKVStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewKVStore()

	bucket := []byte("testv1")
	err := s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		if err := b.Put([]byte("k1"), []byte("v1")); err != nil {
			return err
		}
		return b.Put([]byte("k2"), []byte("v2"))
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

func TestKVStore_ForwardCursorSeek(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewKVStore()

	bucket := []byte("testv1")
	err := s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		for _, k := range []string{"t1/a", "t1/b", "t2/a"} {
			if err := b.Put([]byte(k), []byte(k)); err != nil {
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
		cursor, err := b.ForwardCursor([]byte("t1/"))
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
	// The cursor starts at the seek prefix and runs to the bucket end;
	// prefix filtering is the caller's concern.
	assert.Equal(t, []string{"t1/a", "t1/b", "t2/a"}, keys)
}
