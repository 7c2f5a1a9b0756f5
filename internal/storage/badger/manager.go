package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	records interfaces.JobRecordStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		records: NewRecordStorage(db, logger),
		logger:  logger,
	}

	logger.Debug().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// JobRecordStorage returns the job history storage
func (m *Manager) JobRecordStorage() interfaces.JobRecordStorage {
	return m.records
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
