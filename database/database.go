// Package database is the engine's top-level entry point: one Database
// wraps a recordmanager.Manager (one physical file) and lazily opens
// named, typed BTree handles against it, wiring each tree's transaction
// registry into the shared free-page reclamation loop. Grounded on the
// teacher's KV type (kv-store/define.go, btree/database.go): Open/Close
// plus thin Get/Set/Del convenience wrappers.
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/govetachun/mvccbtree/btree"
	"github.com/govetachun/mvccbtree/codec"
	engerrors "github.com/govetachun/mvccbtree/errors"
	"github.com/govetachun/mvccbtree/recordmanager"
)

// ReclaimInterval is how often the background reclamation loop checks
// for superseded pages it can now free.
const ReclaimInterval = 30 * time.Second

// Database owns one backing file and every tree opened against it.
type Database struct {
	rm *recordmanager.Manager

	mu    sync.Mutex
	trees map[string]openTree

	ctx    context.Context
	cancel context.CancelFunc
}

type openTree struct {
	oldestPinned func() uint64
	closeFn      func()
}

// Open creates or attaches to the file at path. pageSize governs the
// physical page size (spec §4.2); it only applies on first creation.
func Open(path string, pageSize int) (*Database, error) {
	rm, err := recordmanager.Open(path, pageSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	db := &Database{rm: rm, trees: make(map[string]openTree), ctx: ctx, cancel: cancel}
	rm.StartMaintenance(ctx, db.oldestPinnedAcrossTrees, func() <-chan struct{} {
		ticker := time.NewTicker(ReclaimInterval)
		ch := make(chan struct{})
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					select {
					case ch <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return ch
	})
	return db, nil
}

func (db *Database) oldestPinnedAcrossTrees() uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	oldest := ^uint64(0)
	for _, t := range db.trees {
		if p := t.oldestPinned(); p < oldest {
			oldest = p
		}
	}
	return oldest
}

// Close stops maintenance, every open tree's sweeper, and the backing file.
func (db *Database) Close() error {
	db.cancel()
	db.mu.Lock()
	for _, t := range db.trees {
		t.closeFn()
	}
	db.mu.Unlock()
	return db.rm.Close()
}

// Table is the typed handle a Database hands back: Get/Set/Del plus
// Browse/BrowseFrom/Stats/Revision passed through to its BTree. Every
// Set/Del syncs the tree's header record (revision, element count, root
// offset) so a reopen observes the mutation (spec §4.2 "tree header
// record").
type Table[K any, V any] struct {
	rm   *recordmanager.Manager
	meta *recordmanager.TreeMeta
	tree *btree.BTree[K, V]
}

func (t *Table[K, V]) Get(key K) (V, bool, error) { return t.tree.Find(key) }

func (t *Table[K, V]) Set(key K, value V) error {
	if _, err := t.tree.Insert(key, value); err != nil {
		return err
	}
	return t.syncMeta()
}

func (t *Table[K, V]) Del(key K) (bool, error) {
	_, ok, err := t.tree.Delete(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return true, t.syncMeta()
}

func (t *Table[K, V]) syncMeta() error {
	t.meta.Revision = t.tree.Revision()
	t.meta.NbElems = uint64(t.tree.NbElems())
	if root := t.tree.Root(); root != nil {
		t.meta.RootPageOffset = root.Offset()
	} else {
		t.meta.RootPageOffset = -1
	}
	return t.rm.UpdateTreeMeta(t.meta)
}

func (t *Table[K, V]) Browse() (*btree.Cursor[K, V], error)          { return t.tree.Browse() }
func (t *Table[K, V]) BrowseFrom(key K) (*btree.Cursor[K, V], error) { return t.tree.BrowseFrom(key) }
func (t *Table[K, V]) Stats() (btree.Stats, error)                   { return t.tree.ComputeStats() }
func (t *Table[K, V]) Revision() uint64                              { return t.tree.Revision() }

// OpenTable opens (creating if absent) a named tree with the given codecs
// and comparator, returning a typed handle. pageSize is normalized by
// btree.Open (spec §4.4 "Page-size normalization").
func OpenTable[K any, V any](db *Database, name string, keyCodec codec.KeyCodec[K], valCodec codec.ValueCodec[V], cmp codec.Comparator[K], pageSize int, readTimeout time.Duration) (*Table[K, V], error) {
	meta, ok := db.rm.Tree(name)
	if !ok {
		var err error
		meta, err = db.rm.RegisterTree(name, keyCodec.Name(), valCodec.Name())
		if err != nil {
			return nil, err
		}
	} else if meta.KeyCodecName != keyCodec.Name() || meta.ValueCodecName != valCodec.Name() {
		return nil, engerrors.InvalidArgument(fmt.Sprintf("tree %q was registered with codecs %s/%s, not %s/%s", name, meta.KeyCodecName, meta.ValueCodecName, keyCodec.Name(), valCodec.Name()))
	}

	store := btree.NewPageStore[K, V](db.rm, keyCodec, valCodec)

	var root btree.Page[K, V]
	if meta.RootPageOffset != -1 {
		var err error
		root, err = store.LoadPage(meta.RootPageOffset)
		if err != nil {
			return nil, err
		}
	}

	tree := btree.Open[K, V](cmp, pageSize, store, root, meta.Revision, int(meta.NbElems), readTimeout)

	db.mu.Lock()
	db.trees[name] = openTree{
		oldestPinned: tree.OldestPinnedRevision,
		closeFn:      tree.Close,
	}
	db.mu.Unlock()

	return &Table[K, V]{rm: db.rm, meta: meta, tree: tree}, nil
}
