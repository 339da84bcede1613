// Package inmemdb implements the core repositories in memory. It backs the tests and the API's -inmem mode.
package inmemdb

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/core/announcement"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/curriculum"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/school"
	"github.com/trezcool/gradebook/core/schoolyear"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
)

// DB holds every table, in insertion order. A single lock guards them all so that
// cascades spanning tables stay consistent.
type DB struct {
	mutex sync.RWMutex

	users         []user.User
	schools       []school.School
	teachers      []teacher.Teacher
	schoolYears   []schoolyear.SchoolYear
	curriculums   []curriculum.Curriculum
	sections      []section.Section
	assignments   []section.SubjectAssignment
	students      []student.Student
	scores        []grading.Score
	grades        []grading.Grade
	weights       map[string]grading.Weights // by school ID
	announcements []announcement.Announcement
	auditLogs     []audit.Log
}

func NewDB() *DB {
	return &DB{weights: make(map[string]grading.Weights)}
}

func newID() string {
	return uuid.New().String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func stringSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
