// Package store implements the durable message log and room catalog
// on SQLite via GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// ErrRoomExists is returned when creating a room whose id is taken.
var ErrRoomExists = errors.New("room already exists")

type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&roomRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("module", "store").Str("path", path).Msg("database connected and migrated")
	return &Store{db: db}, nil
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

// Append stores the message exactly once per MessageID. A retry returns
// the originally stored sequence and timestamp, never a second row.
func (s *Store) Append(ctx context.Context, req core.AppendRequest) (core.StoredMessage, error) {
	var out core.StoredMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing messageRecord
		err := tx.First(&existing, "message_id = ?", req.MessageID).Error
		if err == nil {
			out = storedFrom(existing)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		rec := messageRecord{
			MessageID: req.MessageID,
			RoomID:    string(req.RoomID),
			Sequence:  req.Sequence,
			SenderID:  string(req.SenderID),
			Content:   req.Content,
			ParentID:  req.ParentID,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			// Concurrent retry with the same message id: the first
			// writer won, return its row.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if ferr := tx.First(&existing, "message_id = ?", req.MessageID).Error; ferr == nil {
					out = storedFrom(existing)
					return nil
				}
			}
			return err
		}
		out = storedFrom(rec)
		return nil
	})
	if err != nil {
		return core.StoredMessage{}, fmt.Errorf("append message: %w", err)
	}
	return out, nil
}

// Lookup reports whether a message id has already been stored.
func (s *Store) Lookup(ctx context.Context, messageID string) (core.StoredMessage, bool, error) {
	var rec messageRecord
	err := s.db.WithContext(ctx).First(&rec, "message_id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.StoredMessage{}, false, nil
	}
	if err != nil {
		return core.StoredMessage{}, false, fmt.Errorf("lookup message: %w", err)
	}
	return storedFrom(rec), true, nil
}

func storedFrom(rec messageRecord) core.StoredMessage {
	return core.StoredMessage{
		RoomID:    domain.RoomID(rec.RoomID),
		Sequence:  rec.Sequence,
		CreatedAt: rec.CreatedAt,
	}
}

// List returns messages with sequence > afterSeq in ascending order.
func (s *Store) List(ctx context.Context, roomID domain.RoomID, afterSeq int64, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []messageRecord
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND sequence > ?", string(roomID), afterSeq).
		Order("sequence ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]domain.ChatMessage, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.ChatMessage{
			MessageID: r.MessageID,
			RoomID:    domain.RoomID(r.RoomID),
			SenderID:  domain.UserID(r.SenderID),
			Content:   r.Content,
			ParentID:  r.ParentID,
			Sequence:  r.Sequence,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// MaxSequence reports the highest stored sequence for a room, -1 when
// the room has no messages. It seeds the in-memory counter when a
// room's live state is materialized.
func (s *Store) MaxSequence(ctx context.Context, roomID domain.RoomID) (int64, error) {
	var max int64
	err := s.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("room_id = ?", string(roomID)).
		Select("COALESCE(MAX(sequence), -1)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("max sequence: %w", err)
	}
	return max, nil
}

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room) error {
	rec := roomRecord{
		ID:        string(room.ID),
		Name:      room.Name,
		IsPrivate: room.IsPrivate,
		CreatedAt: room.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var rec roomRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &domain.Room{
		ID:        domain.RoomID(rec.ID),
		Name:      rec.Name,
		IsPrivate: rec.IsPrivate,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var recs []roomRecord
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]domain.Room, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.Room{
			ID:        domain.RoomID(r.ID),
			Name:      r.Name,
			IsPrivate: r.IsPrivate,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
