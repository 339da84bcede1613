package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateLog(_ context.Context, lg audit.Log, _ ...core.DBExecutor) (audit.Log, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	lg.ID = newID()
	repo.db.auditLogs = append(repo.db.auditLogs, lg)
	return lg, nil
}

func (repo *auditRepository) QueryLogs(_ context.Context, limit int, _ ...core.DBExecutor) ([]audit.Log, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	logs := make([]audit.Log, 0, limit)
	for i := len(repo.db.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, repo.db.auditLogs[i])
	}
	return logs, nil
}

func (repo *auditRepository) DeleteLogsBefore(_ context.Context, t time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	logs := repo.db.auditLogs[:0]
	for _, lg := range repo.db.auditLogs {
		if !lg.CreatedAt.Before(t) {
			logs = append(logs, lg)
		}
	}
	cnt := len(repo.db.auditLogs) - len(logs)
	repo.db.auditLogs = logs
	return cnt, nil
}
