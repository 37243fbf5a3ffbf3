package repository

import (
	"context"
	"errors"
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrBookingNotFound is returned when a booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")
)

type BookingRepository struct {
	*pg.DB
}

func NewBookingRepository(db *pg.DB) *BookingRepository {
	return &BookingRepository{
		db,
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	entity := toBookingEntity(b)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toBookingModel(entity), nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	var entity BookingEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return toBookingModel(&entity), nil
}

// StampSent records a successful dispatch. audioGuide additionally stamps
// audio_guide_sent_at; both writes are idempotent overwrites.
func (r *BookingRepository) StampSent(ctx context.Context, id int64, at time.Time, audioGuide bool) error {
	updates := map[string]interface{}{"tickets_sent_at": at}
	if audioGuide {
		updates["audio_guide_sent_at"] = at
	}
	res := r.Write(ctx).WithContext(ctx).Model(&BookingEntity{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBookingNotFound
	}
	return nil
}
