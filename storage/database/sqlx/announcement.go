package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/announcement"
)

type announcementRecord struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

func (rec announcementRecord) announcement() announcement.Announcement {
	return announcement.Announcement{ID: rec.ID, SchoolID: rec.SchoolID, Message: rec.Message, CreatedAt: rec.CreatedAt.UTC()}
}

type announcementRepository struct {
	repository
}

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(exec core.DBExecutor) *announcementRepository {
	return &announcementRepository{repository{exec: exec}}
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, ann announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	ann.ID = newID()
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO announcements (id, school_id, message, created_at) VALUES (?, ?, ?, ?)`,
		ann.ID, ann.SchoolID, ann.Message, ann.CreatedAt.UTC(),
	)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return ann, nil
}

func (repo announcementRepository) QueryAnnouncements(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	if !validID(schoolID) {
		return []announcement.Announcement{}, nil
	}
	var recs []announcementRecord
	q := `SELECT id, school_id, message, created_at FROM announcements WHERE school_id = ? ORDER BY created_at DESC`
	if err := repo.selectContext(ctx, exec, &recs, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	anns := make([]announcement.Announcement, 0, len(recs))
	for _, rec := range recs {
		anns = append(anns, rec.announcement())
	}
	return anns, nil
}

func (repo announcementRepository) GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	if !validID(id) {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	var recs []announcementRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT id, school_id, message, created_at FROM announcements WHERE id = ?`, id); err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "finding announcement")
	}
	if len(recs) == 0 {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	return recs[0].announcement(), nil
}

func (repo announcementRepository) DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return announcement.ErrNotFound
	}
	if _, err := repo.execContext(ctx, exec, `DELETE FROM announcements WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return nil
}
