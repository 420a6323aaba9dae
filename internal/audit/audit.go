// Package audit records who did what to which resource. Recording is
// fire-and-forget: a failed write is logged and never fails the mutation
// that triggered it.
package audit

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"
)

type Event struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ActorID    int64     `gorm:"column:actor_id" json:"actor_id"`
	Action     string    `gorm:"column:action" json:"action"`
	ResourceID int64     `gorm:"column:resource_id" json:"resource_id"`
	IP         string    `gorm:"column:ip" json:"ip"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Event) TableName() string { return "audit_events" }

type Recorder interface {
	Record(ctx context.Context, e Event)
}

type gormRecorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) Recorder {
	return &gormRecorder{db: db}
}

func (r *gormRecorder) Record(ctx context.Context, e Event) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		log.Printf("audit_write_failed action=%s resource_id=%d actor_id=%d error=%q",
			e.Action, e.ResourceID, e.ActorID, err)
	}
}
