package services

import (
	"context"
	"ideafeed/internal/models"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ago(d time.Duration) time.Time { return testNow.Add(-d) }

func uintPtr(v uint) *uint { return &v }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func mustCreate(t *testing.T, gdb *gorm.DB, value interface{}) {
	t.Helper()
	if err := gdb.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func seedPost(t *testing.T, gdb *gorm.DB, p models.Post) *models.Post {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ago(time.Hour)
	}
	if p.ViralityTier == "" {
		p.ViralityTier = models.TierLocal
	}
	mustCreate(t, gdb, &p)
	return &p
}

func loadPost(t *testing.T, gdb *gorm.DB, id uint) models.Post {
	t.Helper()
	var p models.Post
	if err := gdb.First(&p, id).Error; err != nil {
		t.Fatalf("load post %d: %v", id, err)
	}
	return p
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []uint
}

func (r *recordingScheduler) ScheduleUpdate(postID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, postID)
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

type publishedMsg struct {
	queue string
	body  []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []publishedMsg
}

func (r *recordingPublisher) Publish(_ context.Context, queue string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, publishedMsg{queue: queue, body: body})
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}
