package storage

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/novalune/tradeengine/model"
)

// candleHistoryRow is the gorm-mapped row persisted for each historical
// candle timestamp; the row itself is stored JSON-encoded since its
// width (one column per traded asset) is not known at schema time.
type candleHistoryRow struct {
	TimestMs int64 `gorm:"primaryKey"`
	Payload  []byte
}

type statusRow struct {
	ID     uint `gorm:"primaryKey"`
	Budget float64
}

// SQL is a Storage backed by any gorm.Dialector, grounded on the
// teacher's storage/sql.go. It is the default persistent backend for
// live trading (spec §11 domain stack: glebarez/sqlite).
type SQL struct {
	db *gorm.DB
}

// FromSQL opens a gorm connection against dialect and migrates the
// schema for open orders, closed orders, candle history and trader
// status.
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (Storage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(&model.OpenOrder{}, &model.ClosedOrder{}, &candleHistoryRow{}, &statusRow{})
	if err != nil {
		return nil, err
	}

	return &SQL{db: db}, nil
}

func (s *SQL) SyncTraderState() ([]model.OpenOrder, []model.ClosedOrder, error) {
	open := make([]model.OpenOrder, 0)
	if result := s.db.Find(&open); result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, nil, result.Error
	}

	closed := make([]model.ClosedOrder, 0)
	if result := s.db.Find(&closed); result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, nil, result.Error
	}

	return open, closed, nil
}

func (s *SQL) NewOpenOrder(order model.OpenOrder) error {
	return s.db.Create(&order).Error
}

func (s *SQL) NewClosedOrder(order model.ClosedOrder) error {
	return s.db.Create(&order).Error
}

func (s *SQL) EditOpenOrder(order model.OpenOrder) error {
	var existing model.OpenOrder
	result := s.db.Where("buy_order_id = ?", order.BuyOrderID).First(&existing)
	if result.Error != nil {
		return result.Error
	}
	existing = order
	return s.db.Save(&existing).Error
}

// DeleteOpenOrders removes every open order for asset, preserving the
// asset-keyed deletion quirk documented in DESIGN.md.
func (s *SQL) DeleteOpenOrders(asset string) error {
	return s.db.Where("asset = ?", asset).Delete(&model.OpenOrder{}).Error
}

// DeleteOpenOrder removes the single open order keyed by buyOrderID,
// used when a settled position must be destroyed without disturbing
// any other open position on the same asset.
func (s *SQL) DeleteOpenOrder(buyOrderID int64) error {
	return s.db.Where("buy_order_id = ?", buyOrderID).Delete(&model.OpenOrder{}).Error
}

func (s *SQL) AddHistory(rows map[int64]model.Row) error {
	for ts, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}
		rec := candleHistoryRow{TimestMs: ts, Payload: payload}
		if err := s.db.Save(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *SQL) GetLocalCandleTimestamp(position CandlePosition) (int64, error) {
	var rec candleHistoryRow
	order := "timest_ms desc"
	if position == PositionOldest {
		order = "timest_ms asc"
	}

	result := s.db.Order(order).First(&rec)
	if result.Error == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if result.Error != nil {
		return 0, result.Error
	}
	return rec.TimestMs, nil
}

func (s *SQL) UpdateStatus(budget float64) error {
	var rec statusRow
	result := s.db.First(&rec)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return result.Error
	}
	rec.Budget = budget
	return s.db.Save(&rec).Error
}

// QueryOpen filters a set of open orders already loaded in memory
// against the supplied predicates, mirroring the teacher's lo.Filter
// composition in storage/sql.go's Orders method.
func QueryOpen(orders []model.OpenOrder, filters ...OpenOrderFilter) []model.OpenOrder {
	return lo.Filter(orders, func(order model.OpenOrder, _ int) bool {
		for _, filter := range filters {
			if !filter(order) {
				return false
			}
		}
		return true
	})
}
