package storage

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/tidwall/buntdb"

	"github.com/novalune/tradeengine/model"
)

// keyspace prefixes used inside the flat buntdb keyspace, grounded on
// the teacher's storage/buntdb.go "update_index" layout.
const (
	prefixOpen    = "open:"
	prefixClosed  = "closed:"
	prefixHistory = "history:"
	prefixStatus  = "status"
)

// Bunt is a Storage backed by tidwall/buntdb: the lightweight embedded
// backend that the live command falls back to (in memory) when no SQL
// database is configured, and the backend the tests run against.
type Bunt struct {
	lastID int64
	db     *buntdb.DB
}

// FromMemory opens an in-memory BuntDB instance, useful for tests and
// short-lived backtest runs.
func FromMemory() (Storage, error) {
	return newBunt(":memory:")
}

// FromFile opens (creating if absent) a BuntDB instance persisted at
// file.
func FromFile(file string) (Storage, error) {
	return newBunt(file)
}

func newBunt(sourceFile string) (Storage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, err
	}

	err = db.CreateIndex("history_index", prefixHistory+"*", buntdb.IndexInt)
	if err != nil && err != buntdb.ErrIndexExists {
		return nil, err
	}

	return &Bunt{db: db}, nil
}

func (b *Bunt) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

func (b *Bunt) SyncTraderState() ([]model.OpenOrder, []model.ClosedOrder, error) {
	open := make([]model.OpenOrder, 0)
	closed := make([]model.ClosedOrder, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.AscendKeys(prefixOpen+"*", func(key, value string) bool {
			var o model.OpenOrder
			if err := json.Unmarshal([]byte(value), &o); err == nil {
				open = append(open, o)
			}
			return true
		})
		if err != nil {
			return err
		}

		return tx.AscendKeys(prefixClosed+"*", func(key, value string) bool {
			var c model.ClosedOrder
			if err := json.Unmarshal([]byte(value), &c); err == nil {
				closed = append(closed, c)
			}
			return true
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return open, closed, nil
}

func (b *Bunt) NewOpenOrder(order model.OpenOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(fmt.Sprintf("%s%d", prefixOpen, order.BuyOrderID), string(payload), nil)
		return err
	})
}

func (b *Bunt) NewClosedOrder(order model.ClosedOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(fmt.Sprintf("%s%d", prefixClosed, order.BuyOrderID), string(payload), nil)
		return err
	})
}

func (b *Bunt) EditOpenOrder(order model.OpenOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%d", prefixOpen, order.BuyOrderID)
	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(key); err != nil {
			return err
		}
		_, _, err := tx.Set(key, string(payload), nil)
		return err
	})
}

// DeleteOpenOrders removes every open order whose Asset matches,
// preserving the asset-keyed deletion quirk documented in DESIGN.md.
func (b *Bunt) DeleteOpenOrders(asset string) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		var toDelete []string
		err := tx.AscendKeys(prefixOpen+"*", func(key, value string) bool {
			var o model.OpenOrder
			if err := json.Unmarshal([]byte(value), &o); err == nil && o.Asset == asset {
				toDelete = append(toDelete, key)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range toDelete {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteOpenOrder removes the single open order keyed by buyOrderID,
// used when a settled position must be destroyed without disturbing
// any other open position on the same asset.
func (b *Bunt) DeleteOpenOrder(buyOrderID int64) error {
	key := fmt.Sprintf("%s%d", prefixOpen, buyOrderID)
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func (b *Bunt) AddHistory(rows map[int64]model.Row) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		for ts, row := range rows {
			payload, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(fmt.Sprintf("%s%d", prefixHistory, ts), string(payload), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bunt) GetLocalCandleTimestamp(position CandlePosition) (int64, error) {
	var result int64

	err := b.db.View(func(tx *buntdb.Tx) error {
		iter := func(key, value string) bool {
			var ts int64
			if _, err := fmt.Sscanf(key, prefixHistory+"%d", &ts); err == nil {
				result = ts
			}
			return false
		}

		var err error
		if position == PositionOldest {
			err = tx.AscendIndex("history_index", iter)
		} else {
			err = tx.DescendIndex("history_index", iter)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

func (b *Bunt) UpdateStatus(budget float64) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(prefixStatus, fmt.Sprintf("%f", budget), nil)
		return err
	})
}
