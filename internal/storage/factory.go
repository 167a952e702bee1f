package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/storage/badger"
)

// NewStorageManager creates the embedded storage manager. Badger backs the
// KV store, the model-call audit log, and generation run records; the
// invoice read model lives in Postgres and is wired separately.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &config.Storage.Badger)
}
