package memory

import (
	"sync"

	"github.com/qrave1/FocusRoom/internal/application/metric"
	"github.com/qrave1/FocusRoom/internal/domain/room"
)

// RoomRegistry хранит живые комнаты процесса
type RoomRegistry interface {
	// GetOrCreate возвращает комнату, создавая ее при первом обращении
	GetOrCreate(roomID string) *room.Room

	// Get возвращает комнату, если она существует
	Get(roomID string) (*room.Room, bool)

	// EvictIfEmpty удаляет комнату, если в ней не осталось соединений
	EvictIfEmpty(roomID string) bool

	// Range обходит снимок списка комнат
	Range(fn func(r *room.Room))

	Count() int

	// CloseAll закрывает все комнаты при остановке сервера
	CloseAll()
}

// RoomFactory создает комнату с нужным хранилищем и планировщиком
type RoomFactory func(roomID string) *room.Room

type roomRegistry struct {
	rooms   map[string]*room.Room
	factory RoomFactory
	mu      sync.RWMutex
}

func NewRoomRegistry(factory RoomFactory) RoomRegistry {
	return &roomRegistry{
		rooms:   make(map[string]*room.Room),
		factory: factory,
	}
}

func (r *roomRegistry) GetOrCreate(roomID string) *room.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomID]; ok {
		return rm
	}

	rm := r.factory(roomID)
	r.rooms[roomID] = rm

	metric.SetActiveRooms(len(r.rooms))

	return rm
}

func (r *roomRegistry) Get(roomID string) (*room.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	return rm, ok
}

func (r *roomRegistry) EvictIfEmpty(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	if !rm.CloseIfEmpty() {
		return false
	}

	delete(r.rooms, roomID)

	metric.SetActiveRooms(len(r.rooms))

	return true
}

func (r *roomRegistry) Range(fn func(r *room.Room)) {
	r.mu.RLock()
	rooms := make([]*room.Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	for _, rm := range rooms {
		fn(rm)
	}
}

func (r *roomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func (r *roomRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rm := range r.rooms {
		rm.Close()
		delete(r.rooms, id)
	}

	metric.SetActiveRooms(0)
}
