package btree

import (
	"container/list"
	"context"
	"sync"
	"time"

	engerrors "github.com/govetachun/mvccbtree/errors"
)

// DefaultReadTimeout is the sweeper's default idle-transaction lifetime
// (spec §4.5). Zero or negative disables the sweeper entirely.
const DefaultReadTimeout = 10 * time.Second

// Transaction pins one revision's root so its reachable pages survive
// reclamation for as long as the transaction stays open (spec §4.5).
type Transaction[K any, V any] struct {
	mu       sync.Mutex
	root     Page[K, V]
	revision uint64
	created  time.Time
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc

	elem *list.Element // this transaction's node in the registry FIFO
}

func (tx *Transaction[K, V]) Revision() uint64 { return tx.revision }

// Context is cancelled when the transaction closes, whether by an explicit
// Close or by the sweeper force-closing it on expiry, so a caller mid-scan
// can select on it instead of only discovering TransactionClosed on the
// next cursor call.
func (tx *Transaction[K, V]) Context() context.Context { return tx.ctx }

func (tx *Transaction[K, V]) Root() Page[K, V] {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.root
}

func (tx *Transaction[K, V]) Closed() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.closed
}

// Close releases the pinned root. Idempotent.
func (tx *Transaction[K, V]) Close() {
	tx.mu.Lock()
	tx.root = nil
	tx.closed = true
	tx.mu.Unlock()
	tx.cancel()
}

// TxRegistry tracks every open transaction of one BTree, so its sweeper
// can expire idle transactions and the tree can report its oldest pinned
// revision; database.Database takes the minimum across its trees for
// recordmanager's Reclaim (spec §4.5, §4.2 "Free-page reclamation").
type TxRegistry[K any, V any] struct {
	mu          sync.Mutex
	fifo        *list.List // front = oldest
	readTimeout time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewTxRegistry[K any, V any](readTimeout time.Duration) *TxRegistry[K, V] {
	return &TxRegistry[K, V]{fifo: list.New(), readTimeout: readTimeout}
}

// Begin pins root/revision and enqueues the transaction at the FIFO tail.
func (r *TxRegistry[K, V]) Begin(root Page[K, V], revision uint64) *Transaction[K, V] {
	ctx, cancel := context.WithCancel(context.Background())
	tx := &Transaction[K, V]{root: root, revision: revision, created: nowFunc(), ctx: ctx, cancel: cancel}
	r.mu.Lock()
	tx.elem = r.fifo.PushBack(tx)
	r.mu.Unlock()
	return tx
}

// OldestPinnedRevision reports the lowest revision any open transaction
// still pins, or math.MaxUint64 if none are open (nothing to protect).
func (r *TxRegistry[K, V]) OldestPinnedRevision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := r.fifo.Front(); e != nil; e = e.Next() {
		tx := e.Value.(*Transaction[K, V])
		if !tx.Closed() {
			return tx.Revision()
		}
	}
	return ^uint64(0)
}

// sweepOnce closes and dequeues every closed-or-expired transaction at
// the head of the FIFO, stopping at the first still-fresh one (spec
// §4.5's "peek the head" sweeper algorithm).
func (r *TxRegistry[K, V]) sweepOnce() {
	if r.readTimeout <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		e := r.fifo.Front()
		if e == nil {
			return
		}
		tx := e.Value.(*Transaction[K, V])
		tx.mu.Lock()
		alreadyClosed := tx.closed
		expired := alreadyClosed || nowFunc().Sub(tx.created) > r.readTimeout
		if expired {
			tx.root = nil
			tx.closed = true
		}
		tx.mu.Unlock()
		if !expired {
			return
		}
		if !alreadyClosed {
			tx.cancel()
		}
		r.fifo.Remove(e)
	}
}

// Start launches the sweeper goroutine; it runs until Stop is called.
// No-op if readTimeout <= 0 (spec §4.5).
func (r *TxRegistry[K, V]) Start() {
	if r.readTimeout <= 0 {
		return
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.readTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.sweepOnce()
			}
		}
	}()
}

func (r *TxRegistry[K, V]) Stop() {
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
	<-r.doneCh
	r.stopCh = nil
}

// nowFunc is the clock used for transaction creation times and expiry
// checks.
var nowFunc = time.Now

func errTransactionClosed() error {
	return engerrors.TransactionClosed("cursor operation on a closed transaction")
}
