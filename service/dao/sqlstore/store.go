package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/service/dao"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var columns = map[string]string{
	dao.ID:                   "id",
	dao.ProcessInstanceID:    "process_instance_id",
	dao.ProcessDefinitionID:  "process_definition_id",
	dao.ParentID:             "parent_id",
	dao.ExecutionID:          "execution_id",
	dao.EventType:            "event_type",
	dao.ActivityID:           "activity_id",
	dao.Configuration:        "configuration",
	dao.Type:                 "type",
	dao.Dead:                 "dead",
	dao.IsEnded:              "is_ended",
	dao.CurrentFlowElementID: "current_flow_element_id",
}

// Store implements dao.Store on top of GORM.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Compile-time check that Store implements the DAO interface.
var _ dao.Store = (*Store)(nil)

// Dialector returns the GORM dialector for a driver name.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported store driver: %v", driver)
}

// Open connects to the database and migrates the engine tables.
func Open(driver, dsn string, log *zap.Logger) (*Store, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %v store: %w", driver, err)
	}
	if driver == DriverSQLite {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err = Migrate(db); err != nil {
		return nil, err
	}
	return New(db, log), nil
}

// Migrate creates or updates the engine tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&executionRecord{}, &subscriptionRecord{}, &jobRecord{}); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

// New wraps an opened database; tables are expected to exist.
func New(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, logger: log.With(zap.String("component", "sqlstore"))}
}

func where(db *gorm.DB, parameters []*dao.Parameter) (*gorm.DB, error) {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		column, ok := columns[parameter.Name]
		if !ok {
			return nil, fmt.Errorf("unsupported parameter: %v", parameter.Name)
		}
		switch value := parameter.Value.(type) {
		case []string:
			db = db.Where(column+" IN ?", value)
		default:
			db = db.Where(column+" = ?", value)
		}
	}
	return db, nil
}

func (s *Store) Execution(ctx context.Context, id string) (*entity.Execution, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var record executionRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		return nil, notFound(err)
	}
	return record.entity()
}

func (s *Store) Executions(ctx context.Context, parameters ...*dao.Parameter) ([]*entity.Execution, error) {
	db, err := where(s.db.WithContext(ctx), parameters)
	if err != nil {
		return nil, err
	}
	var records []*executionRecord
	if err = db.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	result := make([]*entity.Execution, 0, len(records))
	for _, record := range records {
		e, err := record.entity()
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) Subscription(ctx context.Context, id string) (*entity.EventSubscription, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var record subscriptionRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		return nil, notFound(err)
	}
	return record.entity(), nil
}

func (s *Store) Subscriptions(ctx context.Context, parameters ...*dao.Parameter) ([]*entity.EventSubscription, error) {
	db, err := where(s.db.WithContext(ctx), parameters)
	if err != nil {
		return nil, err
	}
	var records []*subscriptionRecord
	if err = db.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	result := make([]*entity.EventSubscription, 0, len(records))
	for _, record := range records {
		result = append(result, record.entity())
	}
	return result, nil
}

func (s *Store) Job(ctx context.Context, id string) (*entity.Job, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var record jobRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		return nil, notFound(err)
	}
	return record.entity(), nil
}

func (s *Store) Jobs(ctx context.Context, parameters ...*dao.Parameter) ([]*entity.Job, error) {
	db, err := where(s.db.WithContext(ctx), parameters)
	if err != nil {
		return nil, err
	}
	var records []*jobRecord
	if err = db.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return jobEntities(records), nil
}

func (s *Store) DueJobs(ctx context.Context, now time.Time, limit int) ([]*entity.Job, error) {
	now = now.UTC()
	db := s.db.WithContext(ctx).
		Where("dead = ? AND due_date <= ?", false, now).
		Where("(lock_owner = ? OR lock_expiration < ?)", "", now).
		Order("due_date").Order("id")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var records []*jobRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, err
	}
	return jobEntities(records), nil
}

func (s *Store) AcquireJob(ctx context.Context, job *entity.Job, owner string, expiration time.Time) (bool, error) {
	if job == nil {
		return false, dao.ErrNilEntity
	}
	result := s.db.WithContext(ctx).Model(&jobRecord{}).
		Where("id = ? AND rev = ?", job.ID, job.Rev).
		Updates(map[string]interface{}{
			"lock_owner":      owner,
			"lock_expiration": expiration.UTC(),
			"rev":             job.Rev + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *Store) Flush(ctx context.Context, batch *dao.Batch) error {
	if batch == nil || batch.IsEmpty() {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.flushExecutions(tx, &batch.Executions); err != nil {
			return err
		}
		if err := s.flushSubscriptions(tx, &batch.Subscriptions); err != nil {
			return err
		}
		return s.flushJobs(tx, &batch.Jobs)
	})
	if errors.Is(err, dao.ErrOptimisticLock) {
		s.logger.Debug("flush conflict", zap.Error(err))
	}
	return err
}

func (s *Store) flushExecutions(tx *gorm.DB, changes *dao.Changes[entity.Execution]) error {
	for _, e := range changes.Inserted {
		record, err := newExecutionRecord(e)
		if err != nil {
			return err
		}
		record.Rev = 1
		if err = tx.Create(record).Error; err != nil {
			return err
		}
	}
	for _, e := range changes.Updated {
		record, err := newExecutionRecord(e)
		if err != nil {
			return err
		}
		if err = conditional(tx.Model(&executionRecord{}).Where("id = ? AND rev = ?", e.ID, e.Rev).Updates(record.columns()), "execution", e.ID); err != nil {
			return err
		}
	}
	for _, e := range changes.Deleted {
		if err := conditional(tx.Where("id = ? AND rev = ?", e.ID, e.Rev).Delete(&executionRecord{}), "execution", e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) flushSubscriptions(tx *gorm.DB, changes *dao.Changes[entity.EventSubscription]) error {
	for _, e := range changes.Inserted {
		record := newSubscriptionRecord(e)
		record.Rev = 1
		if err := tx.Create(record).Error; err != nil {
			return err
		}
	}
	for _, e := range changes.Updated {
		record := newSubscriptionRecord(e)
		if err := conditional(tx.Model(&subscriptionRecord{}).Where("id = ? AND rev = ?", e.ID, e.Rev).Updates(record.columns()), "subscription", e.ID); err != nil {
			return err
		}
	}
	for _, e := range changes.Deleted {
		if err := conditional(tx.Where("id = ? AND rev = ?", e.ID, e.Rev).Delete(&subscriptionRecord{}), "subscription", e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) flushJobs(tx *gorm.DB, changes *dao.Changes[entity.Job]) error {
	for _, e := range changes.Inserted {
		record := newJobRecord(e)
		record.Rev = 1
		if err := tx.Create(record).Error; err != nil {
			return err
		}
	}
	for _, e := range changes.Updated {
		record := newJobRecord(e)
		if err := conditional(tx.Model(&jobRecord{}).Where("id = ? AND rev = ?", e.ID, e.Rev).Updates(record.columns()), "job", e.ID); err != nil {
			return err
		}
	}
	for _, e := range changes.Deleted {
		if err := conditional(tx.Where("id = ? AND rev = ?", e.ID, e.Rev).Delete(&jobRecord{}), "job", e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// conditional turns a zero-row update or delete into an optimistic lock error.
func conditional(result *gorm.DB, kind, id string) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%v %v: %w", kind, id, dao.ErrOptimisticLock)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dao.ErrNotFound
	}
	return err
}

func jobEntities(records []*jobRecord) []*entity.Job {
	result := make([]*entity.Job, 0, len(records))
	for _, record := range records {
		result = append(result, record.entity())
	}
	return result
}
