// Package localfs implements the storage backend on a local directory
// tree: one subdirectory per datastore, one sparse file per volume.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
)

// Backend stores volumes as sparse files under root/<datastore>/<name>.vmdk.
type Backend struct {
	root string
	log  *zap.Logger
}

var _ volauth.StorageBackend = (*Backend)(nil)

// New returns a backend rooted at dir.
func New(dir string, log *zap.Logger) *Backend {
	return &Backend{
		root: dir,
		log:  log,
	}
}

func (b *Backend) path(ds volauth.DatastoreID, name string) string {
	return filepath.Join(b.root, string(ds), name+".vmdk")
}

// CreateVolume creates a sparse file of the requested size. Creating a
// name that already exists on the datastore fails.
func (b *Backend) CreateVolume(ctx context.Context, ds volauth.DatastoreID, name string, size uint64) error {
	path := b.path(ds, name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &errors.Error{
			Code: errors.EInternal,
			Msg:  "failed to prepare datastore directory",
			Err:  err,
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if os.IsExist(err) {
		return &errors.Error{
			Code: errors.EConflict,
			Msg:  fmt.Sprintf("volume %q already exists on datastore %q", name, ds),
		}
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		os.Remove(path)
		return err
	}

	b.log.Debug("volume created",
		zap.String("datastore", string(ds)),
		zap.String("volume", name),
		zap.Uint64("size", size))
	return nil
}

// DeleteVolume removes the volume file. An absent volume reports
// volauth.ErrVolumeNotFound so removal cascades stay idempotent.
func (b *Backend) DeleteVolume(ctx context.Context, ds volauth.DatastoreID, name string) error {
	err := os.Remove(b.path(ds, name))
	if os.IsNotExist(err) {
		return volauth.ErrVolumeNotFound
	}
	if err != nil {
		return err
	}

	b.log.Debug("volume deleted",
		zap.String("datastore", string(ds)),
		zap.String("volume", name))
	return nil
}

// MountVolume verifies the volume exists. Attaching is left to the host
// integration; the backend only vouches for presence.
func (b *Backend) MountVolume(ctx context.Context, ds volauth.DatastoreID, name string, vm volauth.VMID) error {
	_, err := os.Stat(b.path(ds, name))
	if os.IsNotExist(err) {
		return volauth.ErrVolumeNotFound
	}
	return err
}

// ListDatastores reports the datastore subdirectories under root.
func (b *Backend) ListDatastores(ctx context.Context) ([]volauth.Datastore, error) {
	entries, err := os.ReadDir(b.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ds := []volauth.Datastore{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ds = append(ds, volauth.Datastore{
			ID:   volauth.DatastoreID(e.Name()),
			Name: e.Name(),
		})
	}
	return ds, nil
}
