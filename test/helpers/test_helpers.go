package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/pkg/pg"
	"github.com/voxtour/ticket-gateway/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Single connection so the pool never opens a second, empty in-memory DB
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&repository.BookingEntity{},
		&repository.AttachmentEntity{},
		&repository.MessageEntity{},
		&repository.MessageAttachmentEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestBooking(t *testing.T, db *pg.DB, reference, phone, email string) *repository.BookingEntity {
	ctx := context.Background()
	booking := &repository.BookingEntity{
		ReferenceNumber: reference,
		CustomerName:    "Test Customer",
		CustomerPhone:   phone,
		CustomerEmail:   email,
		Language:        "en",
		TourDate:        time.Now().Add(48 * time.Hour),
		Pax:             2,
		CreatedAt:       time.Now(),
	}
	err := db.Write(ctx).Create(booking).Error
	require.NoError(t, err)
	return booking
}

func CreateTestAttachment(t *testing.T, db *pg.DB, bookingID int64, fileName string) *repository.AttachmentEntity {
	ctx := context.Background()
	att := &repository.AttachmentEntity{
		BookingID:   bookingID,
		FileName:    fileName,
		StoragePath: "bookings/" + fileName,
		ContentType: "application/pdf",
		Size:        2048,
		CreatedAt:   time.Now(),
	}
	err := db.Write(ctx).Create(att).Error
	require.NoError(t, err)
	return att
}

func CreateTestMessage(t *testing.T, db *pg.DB, bookingID int64, channel, status string) *repository.MessageEntity {
	ctx := context.Background()
	msg := &repository.MessageEntity{
		BookingID: bookingID,
		Channel:   channel,
		Direction: "outbound",
		Recipient: "+15550001111",
		Content:   "Your tickets are attached.",
		Status:    status,
		CreatedAt: time.Now(),
	}
	err := db.Write(ctx).Create(msg).Error
	require.NoError(t, err)
	return msg
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomReference() string {
	return "VT-" + time.Now().Format("20060102150405")
}

func Ptr[T any](v T) *T {
	return &v
}
