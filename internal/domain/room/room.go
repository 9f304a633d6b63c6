package room

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/FocusRoom/internal/application/constant"
	"github.com/qrave1/FocusRoom/internal/domain/events"
	"github.com/qrave1/FocusRoom/internal/domain/models"
)

const (
	// MaxParticipants - мест в комнате, место занимается при подключении
	MaxParticipants = 2

	// CloseRoomFull - код закрытия после room_full
	CloseRoomFull = 4001

	DefaultResyncInterval = 5 * time.Second
	DefaultPersistTimeout = 5 * time.Second
)

type member struct {
	id   string
	conn Connection
	name string
	role models.Role

	// joinSeq - порядковый номер первого join_room, 0 до входа
	joinSeq uint64
}

func (m *member) joined() bool {
	return m.name != ""
}

// Room - комната на двух участников с общим таймером и очками.
// Все экспортируемые методы, включая пробуждения планировщика, идут под mu.
type Room struct {
	id string

	mu      sync.Mutex
	members []*member
	joinSeq uint64
	timer   models.PhaseTimer
	ledger  *models.Ledger
	loaded  bool
	closed  bool

	cancelWake func()
	lastSync   time.Time

	store          StateStore
	scheduler      Scheduler
	now            func() time.Time
	newID          func() string
	resyncInterval time.Duration
	persistTimeout time.Duration
	onPhase        func(completed models.Phase, awarded int)
}

type Option func(*Room)

func WithStore(store StateStore) Option {
	return func(r *Room) {
		if store != nil {
			r.store = store
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

func WithResyncInterval(d time.Duration) Option {
	return func(r *Room) {
		if d > 0 {
			r.resyncInterval = d
		}
	}
}

// WithPhaseHook вызывается после каждой завершенной фазы с числом начисленных очков
func WithPhaseHook(fn func(completed models.Phase, awarded int)) Option {
	return func(r *Room) { r.onPhase = fn }
}

func New(id string, scheduler Scheduler, opts ...Option) *Room {
	r := &Room{
		id:             id,
		members:        make([]*member, 0, MaxParticipants),
		timer:          models.NewPhaseTimer(),
		ledger:         models.NewLedger(),
		store:          NopStore{},
		scheduler:      scheduler,
		now:            time.Now,
		newID:          uuid.NewString,
		resyncInterval: DefaultResyncInterval,
		persistTimeout: DefaultPersistTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Room) ID() string {
	return r.id
}

// Attach занимает место для нового соединения и возвращает id сессии.
// Третье соединение получает room_full и закрывается.
func (r *Room) Attach(ctx context.Context, conn Connection) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRoomClosed
	}

	r.ensureLoaded(ctx)

	if len(r.members) >= MaxParticipants {
		r.reject(conn)
		return "", ErrRoomFull
	}

	m := &member{id: r.newID(), conn: conn}
	r.members = append(r.members, m)

	r.send(conn, events.Connected(m.id))
	r.send(conn, r.stateEvent())

	return m.id, nil
}

// Join задает имя сессии. Когда названы двое, роли раздаются по порядку входа.
func (r *Room) Join(ctx context.Context, sessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLoaded(ctx)

	m := r.member(sessionID)
	if m == nil {
		return ErrUnknownSession
	}

	if !m.joined() && len(r.namedMembers()) >= MaxParticipants {
		r.reject(m.conn)
		return ErrRoomFull
	}

	if m.joinSeq == 0 {
		r.joinSeq++
		m.joinSeq = r.joinSeq
	}
	m.name = models.NormalizeName(name)

	if r.ledger.Ensure(m.name) {
		r.persist(ctx)
	}

	named := r.namedMembers()
	switch len(named) {
	case 1:
		m.role = ""
		r.send(m.conn, events.Notice(events.TypeWaitingForPeer))
	case 2:
		named[0].role = models.RoleOfferer
		named[1].role = models.RoleAnswerer

		for _, p := range named {
			r.send(p.conn, events.Ready(p.role))
		}
	}

	r.broadcastState()

	slog.Info(
		"participant joined room",
		slog.String(constant.RoomID, r.id),
		slog.String(constant.SessionID, sessionID),
		slog.String(constant.Name, m.name),
		slog.Int(constant.Participants, len(named)),
	)

	return nil
}

// Relay пересылает кадр сигналинга второму участнику без изменений.
// Без собеседника кадр отбрасывается.
func (r *Room) Relay(sessionID string, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.member(sessionID)
	if m == nil {
		return ErrUnknownSession
	}

	if !m.joined() {
		return ErrNotJoined
	}

	for _, other := range r.members {
		if other == m || !other.joined() {
			continue
		}

		if err := other.conn.Send(raw); err != nil {
			slog.Debug(
				"relay to peer",
				slog.Any(constant.Error, err),
				slog.String(constant.RoomID, r.id),
				slog.String(constant.SessionID, other.id),
			)
		}
	}

	return nil
}

// Leave удаляет сессию, таймер и очки не трогает.
// Возвращает false, если сессии в комнате не было.
func (r *Room) Leave(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.members, func(m *member) bool { return m.id == sessionID })
	if idx < 0 {
		return false
	}

	left := r.members[idx]
	r.members = slices.Delete(r.members, idx, idx+1)

	if !left.joined() {
		return true
	}

	for _, m := range r.members {
		m.role = ""
	}

	r.broadcast(events.Notice(events.TypePeerLeft))
	r.broadcastState()

	slog.Info(
		"participant left room",
		slog.String(constant.RoomID, r.id),
		slog.String(constant.SessionID, sessionID),
		slog.String(constant.Name, left.name),
	)

	return true
}

// Len - число занятых мест, с именем или без
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

// Close останавливает комнату: пробуждения отменяются, новые соединения
// получают ErrRoomClosed.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.stopWake()
}

// CloseIfEmpty закрывает комнату, только если мест не занято. Атомарно с Attach.
func (r *Room) CloseIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) > 0 {
		return false
	}

	r.closed = true
	r.stopWake()

	return true
}

func (r *Room) member(sessionID string) *member {
	for _, m := range r.members {
		if m.id == sessionID {
			return m
		}
	}

	return nil
}

// namedMembers - вошедшие участники в порядке входа
func (r *Room) namedMembers() []*member {
	named := make([]*member, 0, len(r.members))

	for _, m := range r.members {
		if m.joined() {
			named = append(named, m)
		}
	}

	slices.SortFunc(named, func(a, b *member) int { return cmp.Compare(a.joinSeq, b.joinSeq) })

	return named
}

func (r *Room) reject(conn Connection) {
	r.send(conn, events.Notice(events.TypeRoomFull))

	if err := conn.Close(CloseRoomFull, "room full"); err != nil {
		slog.Debug("close rejected connection", slog.Any(constant.Error, err), slog.String(constant.RoomID, r.id))
	}
}
