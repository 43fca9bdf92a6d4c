package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Item is one tradable catalog entry. Prices on chain are authoritative;
// the catalog row is the off-chain description plus the last known prices.
type Item struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Symbol       string    `json:"symbol"`
	Address      string    `gorm:"index" json:"address,omitempty"`
	BasePrice    int64     `json:"base_price"`
	CurrentPrice int64     `json:"current_price"`
	Rarity       string    `json:"rarity"`
	Supply       int64     `json:"supply"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

type Store struct {
	db *gorm.DB
}

// Open connects to postgres when databaseURL is set, otherwise to a local
// sqlite file, and migrates the schema.
func Open(databaseURL, sqlitePath string) (*Store, error) {
	var dialector gorm.Dialector
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	} else {
		if dir := filepath.Dir(sqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		dialector = sqlite.Open(sqlitePath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	if err := db.AutoMigrate(&Item{}); err != nil {
		return nil, fmt.Errorf("migrate catalog schema: %w", err)
	}

	log.Info().Msg("💾 Catalog database ready")
	return &Store{db: db}, nil
}

// List returns all catalog items.
func (s *Store) List() ([]Item, error) {
	var items []Item
	if err := s.db.Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Create appends a new item and fills in its assigned id.
func (s *Store) Create(item *Item) error {
	return s.db.Create(item).Error
}

// Addresses returns the on-chain addresses of all catalog items that
// have one. Used as the item universe for the update/loop modes.
func (s *Store) Addresses() ([]common.Address, error) {
	var rows []Item
	if err := s.db.Where("address <> ''").Find(&rows).Error; err != nil {
		return nil, err
	}

	var out []common.Address
	for _, row := range rows {
		if common.IsHexAddress(row.Address) {
			out = append(out, common.HexToAddress(row.Address))
		}
	}
	return out, nil
}

// NameOf resolves an item address to its catalog name, falling back to
// the hex address for items the catalog does not know.
func (s *Store) NameOf(item common.Address) string {
	var row Item
	if err := s.db.Where("address = ?", item.Hex()).First(&row).Error; err == nil && row.Name != "" {
		return row.Name
	}
	return item.Hex()
}
