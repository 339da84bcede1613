package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
)

type auditLogRecord struct {
	ID        string    `db:"id"`
	Action    string    `db:"action"`
	User      string    `db:"user"`
	CreatedAt time.Time `db:"created_at"`
}

type auditRepository struct {
	repository
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(exec core.DBExecutor) *auditRepository {
	return &auditRepository{repository{exec: exec}}
}

func (repo auditRepository) CreateLog(ctx context.Context, lg audit.Log, exec ...core.DBExecutor) (audit.Log, error) {
	lg.ID = newID()
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO audit_logs (id, action, "user", created_at) VALUES (?, ?, ?, ?)`,
		lg.ID, lg.Action, lg.User, lg.CreatedAt.UTC(),
	)
	if err != nil {
		return audit.Log{}, errors.Wrap(err, "inserting audit log")
	}
	return lg, nil
}

func (repo auditRepository) QueryLogs(ctx context.Context, limit int, exec ...core.DBExecutor) ([]audit.Log, error) {
	var recs []auditLogRecord
	q := `SELECT id, action, "user", created_at FROM audit_logs ORDER BY created_at DESC LIMIT ?`
	if err := repo.selectContext(ctx, exec, &recs, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying audit logs")
	}
	logs := make([]audit.Log, 0, len(recs))
	for _, rec := range recs {
		logs = append(logs, audit.Log{ID: rec.ID, Action: rec.Action, User: rec.User, CreatedAt: rec.CreatedAt.UTC()})
	}
	return logs, nil
}

func (repo auditRepository) DeleteLogsBefore(ctx context.Context, t time.Time, exec ...core.DBExecutor) (int, error) {
	cnt, err := repo.execContext(ctx, exec, `DELETE FROM audit_logs WHERE created_at < ?`, t.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting audit logs")
	}
	return cnt, nil
}
