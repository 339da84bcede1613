// Package audit records the actions performed from the power-user console.
package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

// SystemActor is recorded when no authenticated user performed the action.
const SystemActor = "system"

const (
	DefaultListLimit  = 50
	OverviewListLimit = 5
)

type (
	Log struct {
		ID        string    `json:"id"`
		Action    string    `json:"action"`
		User      string    `json:"user"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	Repository interface {
		CreateLog(ctx context.Context, lg Log, exec ...core.DBExecutor) (Log, error)
		// QueryLogs returns the latest logs, newest first.
		QueryLogs(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Log, error)
		DeleteLogsBefore(ctx context.Context, t time.Time, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Record(ctx context.Context, action, actor string, exec ...core.DBExecutor) error
		Latest(ctx context.Context, limit int) ([]Log, error)
		PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Record(ctx context.Context, action, actor string, exec ...core.DBExecutor) error {
	if actor = core.CleanString(actor, true /* lower */); actor == "" {
		actor = SystemActor
	}
	_, err := svc.repo.CreateLog(ctx, Log{
		Action:    action,
		User:      actor,
		CreatedAt: time.Now().UTC(),
	}, exec...)
	return errors.Wrap(err, "recording audit log")
}

func (svc *service) Latest(ctx context.Context, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return svc.repo.QueryLogs(ctx, limit)
}

func (svc *service) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	return svc.repo.DeleteLogsBefore(ctx, time.Now().UTC().Add(-age))
}
