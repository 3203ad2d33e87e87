package migration

import (
	"database/sql"
	"io/fs"
	"os"

	"github.com/clinic/backend/migrations"
	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Source is a set of migration files. The zero value reads the files
// compiled into the binary.
type Source struct {
	fsys fs.FS
	name string
}

// EmbeddedSource returns the migrations shipped with the binary.
func EmbeddedSource() Source {
	return Source{fsys: migrations.FS, name: "embedded"}
}

// DirSource reads migrations from a directory on disk.
func DirSource(dir string) Source {
	return Source{fsys: os.DirFS(dir), name: dir}
}

func (s Source) resolve() (fs.FS, string) {
	if s.fsys == nil {
		return EmbeddedSource().resolve()
	}
	return s.fsys, s.name
}

// Migrator applies the ledger schema with golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// Status is the schema version recorded in schema_migrations.
type Status struct {
	Version uint
	Dirty   bool
	Applied bool
}

// New creates a Migrator for db reading files from src.
func New(db *sql.DB, src Source, logger *zap.Logger) (*Migrator, error) {
	fsys, name := src.resolve()
	sourceDriver, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, errors.Wrapf(err, "open migration source %s", name)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "create postgres migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return nil, errors.Wrap(err, "create migrate instance")
	}

	return &Migrator{
		migrate: m,
		logger:  logger.With(zap.String("migration_source", name)),
	}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls back every applied migration.
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative.
func (m *Migrator) Steps(n int) error {
	return m.run("steps", func() error { return m.migrate.Steps(n) })
}

// GoTo migrates up or down to version.
func (m *Migrator) GoTo(version uint) error {
	return m.run("goto", func() error { return m.migrate.Migrate(version) })
}

// Force records version as clean without running anything. It is the way
// out of a dirty state after a failed migration was repaired by hand.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return errors.Wrapf(err, "force version %d", version)
	}
	return nil
}

// Status reports the current version. Applied is false on an empty database.
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, errors.Wrap(err, "read migration version")
	}
	return Status{Version: version, Dirty: dirty, Applied: true}, nil
}

// Close releases the source and database drivers.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return errors.Wrap(sourceErr, "close migration source")
	}
	if dbErr != nil {
		return errors.Wrap(dbErr, "close migration database")
	}
	return nil
}

func (m *Migrator) run(op string, fn func() error) error {
	m.logger.Info("Running migrations", zap.String("op", op))

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("Schema already up to date", zap.String("op", op))
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "migration %s", op)
	}

	status, err := m.Status()
	if err != nil {
		return err
	}
	m.logger.Info("Migrations completed",
		zap.String("op", op),
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty),
	)
	return nil
}
