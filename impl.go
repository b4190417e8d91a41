package cardtable

import (
	"errors"
	"math/rand"

	"github.com/lib/pq"
)

type rng interface {
	Intn(n int) int
}

type realrng struct{}

func (realrng) Intn(n int) int {
	return rand.Intn(n)
}

// Impl implements the card table's state synchronization core: batched
// action reconciliation on the write path, visible snapshots on the read
// path, and the broadcast that follows every effective batch.
type Impl struct {
	db      *DB
	hub     *Hub
	rng     rng
	metrics Recorder
}

// NewImpl creates a new Impl.
func NewImpl(db *DB, hub *Hub, metrics Recorder) *Impl {
	return &Impl{
		db:      db,
		hub:     hub,
		rng:     realrng{},
		metrics: metrics,
	}
}

// NewImplSeed creates a new Impl with the given pseudorandom seed, so that
// shuffles are reproducible under test.
func NewImplSeed(db *DB, hub *Hub, metrics Recorder, seed int64) *Impl {
	impl := NewImpl(db, hub, metrics)
	impl.rng = rand.New(rand.NewSource(seed))
	return impl
}

// ApplyBatch runs one user's action batch: fetch the touched cards under a
// single transaction, reconcile, write back, commit, then broadcast the
// resulting deltas to every connected session.
//
// The transaction brackets the whole read-reconcile-write cycle, with the
// fetched rows locked, so concurrent batches touching the same cards
// serialize and the loser re-reads the winner's committed ownership. The
// broadcast is queued strictly after commit, in commit order.
//
// Per-entry problems inside the batch (unknown IDs, cards someone else
// holds, half a coordinate) are skipped silently; only a store failure
// makes the batch fail, and then it fails whole.
func (i *Impl) ApplyBatch(userID string, batch *Batch) ([]Delta, error) {
	ids := batch.IDs()
	if len(ids) == 0 {
		return []Delta{}, nil
	}

	deltas, err := i.applyBatch(userID, batch, ids)
	if err != nil {
		i.metrics.BatchFailed()
		return nil, err
	}

	i.metrics.BatchApplied(len(deltas))

	if len(deltas) > 0 {
		// Queued here, on the committing goroutine, so sessions see
		// batches in commit order; the hub's publisher does the actual
		// socket writes.
		i.hub.Publish(CardUpdate{
			Type:    "cardUpdate",
			From:    userID,
			Updates: deltas,
		})
	}

	return deltas, nil
}

func (i *Impl) applyBatch(userID string, batch *Batch, ids []int) ([]Delta, error) {
	tx, err := i.db.NewTX(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Close()

	// The locking read is where deadlocks would surface, so it maps
	// through the conflict taxonomy like the writes do.
	cards, err := tx.GetCards(ids)
	if err != nil {
		return nil, storeErr(err)
	}

	changes := reconcile(cards, batch, userID, i.rng)

	now := nowUTC()
	for _, ch := range changes {
		ch.card.UpdatedAt = now

		if ch.replace {
			newID, err := tx.ReplaceCard(ch.old.ID, ch.card)
			if err != nil {
				return nil, storeErr(err)
			}
			ch.card.ID = newID
		} else {
			if err := tx.UpdateCard(ch.card); err != nil {
				return nil, storeErr(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}

	return buildDeltas(changes), nil
}

// GetCards returns every card visible to the user, ordered by ID: the full
// snapshot a client bootstraps or reconnects from. It reads under its own
// transaction, so it observes the board either before or after any given
// batch, never mid-batch.
func (i *Impl) GetCards(userID string) ([]*Card, error) {
	tx, err := i.db.NewTX(userID)
	if err != nil {
		return nil, err
	}
	defer tx.Close()

	cards, err := tx.GetAllCards()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return cards, nil
}

// NewCard places a brand-new card on the table, returning its ID. Table
// setup only; there is no user-facing delete to match.
func (i *Impl) NewCard(card *Card) (int, error) {
	card.URL = card.Face()
	return i.db.InsertCard(card)
}

// storeErr maps transaction-level failures onto the API error taxonomy.
// Serialization losses and deadlocks are retryable conflicts; anything else
// surfaces as-is.
func storeErr(err error) error {
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code.Name() {
		case "serialization_failure", "deadlock_detected":
			return ErrBatchConflict
		}
	}
	return err
}
