package inmemdb

import (
	"context"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/announcement"
)

type announcementRepository struct {
	db *DB
}

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, ann announcement.Announcement, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ann.ID = newID()
	repo.db.announcements = append(repo.db.announcements, ann)
	return ann, nil
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]announcement.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	anns := make([]announcement.Announcement, 0)
	for i := len(repo.db.announcements) - 1; i >= 0; i-- {
		if ann := repo.db.announcements[i]; ann.SchoolID == schoolID {
			anns = append(anns, ann)
		}
	}
	return anns, nil
}

func (repo *announcementRepository) GetAnnouncement(_ context.Context, id string, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ann := range repo.db.announcements {
		if ann.ID == id {
			return ann, nil
		}
	}
	return announcement.Announcement{}, announcement.ErrNotFound
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	anns := repo.db.announcements[:0]
	for _, ann := range repo.db.announcements {
		if ann.ID != id {
			anns = append(anns, ann)
		}
	}
	repo.db.announcements = anns
	return nil
}
