// Package postgres implements the repositories on PostgreSQL through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/hospital-core/internal/config"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/pkg/logger"
	"github.com/jwalitptl/hospital-core/pkg/metrics"
)

// dbtx is the query surface shared by *sqlx.DB and *sqlx.Tx.
type dbtx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type txKey struct{}

// Store is the persistence context: one pool, opened once and handed to
// every repository.
type Store struct {
	db      *sqlx.DB
	logger  *logger.Logger
	metrics *metrics.Metrics
}

var _ repository.TxRunner = (*Store)(nil)

// Open connects to PostgreSQL and applies the pool settings.
func Open(cfg config.DatabaseConfig, log *logger.Logger, m *metrics.Metrics) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	log.Info("Connected to database", "host", cfg.Host, "name", cfg.Name)
	return NewStore(db, log, m), nil
}

// NewStore wraps an existing pool.
func NewStore(db *sqlx.DB, log *logger.Logger, m *metrics.Metrics) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{db: db, logger: log, metrics: m}
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn in a transaction carried by the context. Nested calls join
// the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error(rbErr, "Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querier returns the transaction in ctx, or the pool.
func (s *Store) querier(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

// Repositories bundles every repository built on one Store.
type Repositories struct {
	Users             repository.UserRepository
	Departments       repository.DepartmentRepository
	Doctors           repository.DoctorRepository
	Patients          repository.PatientRepository
	Appointments      repository.AppointmentRepository
	MedicalRecords    repository.MedicalRecordRepository
	Medications       repository.MedicationRepository
	OmaeraMedications repository.OmaeraMedicationRepository
	Prescriptions     repository.PrescriptionRepository
	LabTestTemplates  repository.LabTestTemplateRepository
	TestResults       repository.TestResultRepository
	Inventory         repository.InventoryRepository
	Bills             repository.BillRepository
	Audit             repository.AuditRepository
	Outbox            repository.OutboxRepository
	Associations      repository.Associations
}

func NewRepositories(store *Store) *Repositories {
	base := NewBaseRepository(store)
	assoc := NewAssociations(base)
	return &Repositories{
		Users:             NewUserRepository(base),
		Departments:       NewDepartmentRepository(base),
		Doctors:           NewDoctorRepository(base, assoc),
		Patients:          NewPatientRepository(base, assoc),
		Appointments:      NewAppointmentRepository(base),
		MedicalRecords:    NewMedicalRecordRepository(base),
		Medications:       NewMedicationRepository(base),
		OmaeraMedications: NewOmaeraMedicationRepository(base),
		Prescriptions:     NewPrescriptionRepository(base, assoc),
		LabTestTemplates:  NewLabTestTemplateRepository(base),
		TestResults:       NewTestResultRepository(base),
		Inventory:         NewInventoryRepository(base),
		Bills:             NewBillRepository(base),
		Audit:             NewAuditRepository(base),
		Outbox:            NewOutboxRepository(base),
		Associations:      assoc,
	}
}
