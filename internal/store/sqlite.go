// Package store persists administrative VLAN bindings.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/topology"
)

// Binding is one row of the bindings table.
type Binding struct {
	ID        uint   `gorm:"primaryKey"`
	VLAN      string `gorm:"index;not null"`
	Port      uint32
	SwitchID  int64 // sqlite integers are signed; stored as the bit pattern of core.SwitchID
	CreatedAt time.Time
}

// SQLiteBindings is a topology.BindingStore backed by a sqlite file.
type SQLiteBindings struct {
	db *gorm.DB
}

// OpenSQLite opens or creates the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLiteBindings, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bindings database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Binding{}); err != nil {
		return nil, fmt.Errorf("bindings migration failed: %w", err)
	}
	return &SQLiteBindings{db: db}, nil
}

func (s *SQLiteBindings) Add(ctx context.Context, vlan core.VLANID, m topology.Member) error {
	if vlan == "" {
		return fmt.Errorf("%w: empty vlan id", core.ErrTopologyInvalid)
	}
	row := Binding{VLAN: string(vlan), Port: uint32(m.Port), SwitchID: int64(m.Switch)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	return nil
}

func (s *SQLiteBindings) RemoveVLAN(ctx context.Context, vlan core.VLANID) error {
	res := s.db.WithContext(ctx).Where("vlan = ?", string(vlan)).Delete(&Binding{})
	if res.Error != nil {
		return fmt.Errorf("remove vlan %s: %w", vlan, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("remove vlan %s: %w", vlan, core.ErrVLANNotFound)
	}
	return nil
}

// List groups rows by VLAN. Buckets and members keep insertion order.
func (s *SQLiteBindings) List(ctx context.Context) ([]topology.VLANDef, error) {
	var rows []Binding
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}

	index := make(map[string]int)
	defs := make([]topology.VLANDef, 0)
	for _, r := range rows {
		i, ok := index[r.VLAN]
		if !ok {
			i = len(defs)
			index[r.VLAN] = i
			defs = append(defs, topology.VLANDef{ID: core.VLANID(r.VLAN)})
		}
		defs[i].Members = append(defs[i].Members, topology.Member{
			Port:   core.PortNo(r.Port),
			Switch: core.SwitchID(r.SwitchID),
		})
	}
	return defs, nil
}

func (s *SQLiteBindings) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Open returns the binding store selected by cfg.
func Open(cfg config.BindingsConfig) (topology.BindingStore, error) {
	switch cfg.Store {
	case "", "memory":
		return topology.NewMemoryBindings(), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: unknown bindings store %q", core.ErrConfigInvalid, cfg.Store)
	}
}
