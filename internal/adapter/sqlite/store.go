// Package sqlite exports pipeline artifacts into a SQLite database through gorm
// and serves them back to the read-only API.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

const (
	batchSize   = 500
	monthLayout = "2006-01-02"
)

type monthlyRow struct {
	Location     string   `gorm:"primaryKey"`
	Year         int      `gorm:"primaryKey;autoIncrement:false"`
	Month        string   `gorm:"primaryKey"`
	TemperatureC *float64 `gorm:"column:temperature_c"`
	Humidity     *float64 `gorm:"column:humidity"`
	PrecipMM     *float64 `gorm:"column:precip_mm"`
	WindMPS      *float64 `gorm:"column:wind_mps"`
	RunID        string   `gorm:"index"`
}

func (monthlyRow) TableName() string { return "monthly_aggregates" }

type seasonalRow struct {
	Location     string   `gorm:"primaryKey"`
	Year         int      `gorm:"primaryKey;autoIncrement:false"`
	Season       string   `gorm:"primaryKey"`
	TemperatureC *float64 `gorm:"column:temperature_c"`
	Humidity     *float64 `gorm:"column:humidity"`
	PrecipMM     *float64 `gorm:"column:precip_mm"`
	WindMPS      *float64 `gorm:"column:wind_mps"`
	RunID        string   `gorm:"index"`
}

func (seasonalRow) TableName() string { return "seasonal_aggregates" }

type extremeRow struct {
	Location     string   `gorm:"primaryKey"`
	Year         int      `gorm:"primaryKey;autoIncrement:false"`
	Month        string   `gorm:"primaryKey"`
	TemperatureC *float64 `gorm:"column:temperature_c"`
	Humidity     *float64 `gorm:"column:humidity"`
	PrecipMM     *float64 `gorm:"column:precip_mm"`
	WindMPS      *float64 `gorm:"column:wind_mps"`
	TempZ        *float64 `gorm:"column:temp_z"`
	PrecipPctile *float64 `gorm:"column:precip_pctile"`
	Reason       string
	RunID        string `gorm:"index"`
}

func (extremeRow) TableName() string { return "extreme_events" }

type runRow struct {
	RunID        string `gorm:"primaryKey"`
	ExportedAt   time.Time
	MonthlyRows  int
	SeasonalRows int
	ExtremeRows  int
}

func (runRow) TableName() string { return "export_runs" }

// Store is a gorm-backed artifact database. Each export replaces the previous
// run's rows; it is a query cache for the API, not a history.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at dsn and migrates its schema.
// Use ":memory:" for an ephemeral store.
func Open(dsn string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers, and each ":memory:" connection is its own database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&monthlyRow{}, &seasonalRow{}, &extremeRow{}, &runRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &Store{db: db, logger: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Export replaces the stored artifacts with those of a in one transaction and
// returns the number of rows written.
func (s *Store) Export(ctx context.Context, a domain.Artifacts) (int, error) {
	monthly := make([]monthlyRow, len(a.Monthly))
	for i, m := range a.Monthly {
		monthly[i] = monthlyRow{
			Location: m.Location, Year: m.Year, Month: m.Month.Format(monthLayout),
			TemperatureC: m.TemperatureC, Humidity: m.Humidity, PrecipMM: m.PrecipMM, WindMPS: m.WindMPS,
			RunID: a.RunID,
		}
	}
	seasonal := make([]seasonalRow, len(a.Seasonal))
	for i, sa := range a.Seasonal {
		seasonal[i] = seasonalRow{
			Location: sa.Location, Year: sa.Year, Season: string(sa.Season),
			TemperatureC: sa.TemperatureC, Humidity: sa.Humidity, PrecipMM: sa.PrecipMM, WindMPS: sa.WindMPS,
			RunID: a.RunID,
		}
	}
	extremes := make([]extremeRow, len(a.Extremes))
	for i, e := range a.Extremes {
		extremes[i] = extremeRow{
			Location: e.Location, Year: e.Year, Month: e.Month.Format(monthLayout),
			TemperatureC: e.TemperatureC, Humidity: e.Humidity, PrecipMM: e.PrecipMM, WindMPS: e.WindMPS,
			TempZ: e.TempZ, PrecipPctile: e.PrecipPctile, Reason: e.Reason,
			RunID: a.RunID,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&monthlyRow{}, &seasonalRow{}, &extremeRow{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		if err := createAll(tx, monthly); err != nil {
			return err
		}
		if err := createAll(tx, seasonal); err != nil {
			return err
		}
		if err := createAll(tx, extremes); err != nil {
			return err
		}
		return tx.Create(&runRow{
			RunID:        a.RunID,
			ExportedAt:   a.GeneratedAt.UTC(),
			MonthlyRows:  len(monthly),
			SeasonalRows: len(seasonal),
			ExtremeRows:  len(extremes),
		}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("export run %s: %w", a.RunID, err)
	}

	total := len(monthly) + len(seasonal) + len(extremes)
	s.logger.Info("artifacts exported to sqlite",
		"run_id", a.RunID, "monthly", len(monthly), "seasonal", len(seasonal), "extremes", len(extremes))
	return total, nil
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("insert %T: %w", rows, err)
	}
	return nil
}

// CheckReadiness returns nil once at least one run has been exported.
func (s *Store) CheckReadiness(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&runRow{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no artifacts exported yet")
	}
	return nil
}

// Locations lists the distinct locations with monthly aggregates.
func (s *Store) Locations(ctx context.Context) ([]string, error) {
	var locations []string
	err := s.db.WithContext(ctx).Model(&monthlyRow{}).
		Distinct("location").Order("location").Pluck("location", &locations).Error
	return locations, err
}

func filtered(db *gorm.DB, q domain.Query) *gorm.DB {
	if q.Location != "" {
		db = db.Where("location = ?", q.Location)
	}
	if q.FromYear != 0 {
		db = db.Where("year >= ?", q.FromYear)
	}
	if q.ToYear != 0 {
		db = db.Where("year <= ?", q.ToYear)
	}
	return db
}

// Monthly returns monthly aggregates matching q, ordered by location and month.
func (s *Store) Monthly(ctx context.Context, q domain.Query) ([]domain.MonthlyAggregate, error) {
	var rows []monthlyRow
	if err := filtered(s.db.WithContext(ctx), q).Order("location, month").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.MonthlyAggregate, 0, len(rows))
	for _, r := range rows {
		m, err := toMonthly(r.Location, r.Year, r.Month, domain.Measures{
			TemperatureC: r.TemperatureC, Humidity: r.Humidity, PrecipMM: r.PrecipMM, WindMPS: r.WindMPS,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Seasonal returns seasonal aggregates matching q in DJF, MAM, JJA, SON order.
func (s *Store) Seasonal(ctx context.Context, q domain.Query) ([]domain.SeasonalAggregate, error) {
	var rows []seasonalRow
	order := "location, year, CASE season WHEN 'DJF' THEN 0 WHEN 'MAM' THEN 1 WHEN 'JJA' THEN 2 ELSE 3 END"
	if err := filtered(s.db.WithContext(ctx), q).Order(order).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SeasonalAggregate, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SeasonalAggregate{
			Location: r.Location,
			Year:     r.Year,
			Season:   domain.Season(r.Season),
			Measures: domain.Measures{
				TemperatureC: r.TemperatureC, Humidity: r.Humidity, PrecipMM: r.PrecipMM, WindMPS: r.WindMPS,
			},
		})
	}
	return out, nil
}

// Extremes returns flagged months matching q, ordered by location and month.
func (s *Store) Extremes(ctx context.Context, q domain.Query) ([]domain.ExtremeEvent, error) {
	var rows []extremeRow
	if err := filtered(s.db.WithContext(ctx), q).Order("location, month").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ExtremeEvent, 0, len(rows))
	for _, r := range rows {
		m, err := toMonthly(r.Location, r.Year, r.Month, domain.Measures{
			TemperatureC: r.TemperatureC, Humidity: r.Humidity, PrecipMM: r.PrecipMM, WindMPS: r.WindMPS,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ExtremeEvent{
			MonthlyAggregate: m,
			TempZ:            r.TempZ,
			PrecipPctile:     r.PrecipPctile,
			Reason:           r.Reason,
		})
	}
	return out, nil
}

func toMonthly(location string, year int, month string, m domain.Measures) (domain.MonthlyAggregate, error) {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return domain.MonthlyAggregate{}, fmt.Errorf("stored month %q: %w", month, err)
	}
	return domain.MonthlyAggregate{Location: location, Year: year, Month: t, Measures: m}, nil
}
