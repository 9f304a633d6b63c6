package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/qrave1/FocusRoom/internal/domain/models"
)

// Типы сообщений клиент -> сервер
const (
	TypeJoinRoom      = "join_room"
	TypeWebrtcOffer   = "webrtc_offer"
	TypeWebrtcAnswer  = "webrtc_answer"
	TypeWebrtcIce     = "webrtc_ice"
	TypePomodoroStart = "pomodoro_start"
	TypePomodoroReset = "pomodoro_reset"
)

// Типы сообщений сервер -> клиент
const (
	TypeConnected      = "connected"
	TypeRoomFull       = "room_full"
	TypeWaitingForPeer = "waiting_for_peer"
	TypeReady          = "ready"
	TypeRoomState      = "room_state"
	TypePeerLeft       = "peer_left"
)

// Envelope - общая часть любого сообщения
type Envelope struct {
	Type string `json:"type"`
}

// JoinRoomEvent - вход в комнату под отображаемым именем.
// Поля приходят любого JSON типа и приводятся к строке через Text.
type JoinRoomEvent struct {
	Name   json.RawMessage `json:"name"`
	RoomID json.RawMessage `json:"roomId"`
}

// DisplayName - имя как его прислал клиент, до нормализации
func (e JoinRoomEvent) DisplayName() string {
	return Text(e.Name)
}

func (e JoinRoomEvent) Room() string {
	return Text(e.RoomID)
}

// Text приводит JSON значение к строке: строка как есть, ненулевое число и true
// текстом. Пустые и ложные значения, объекты и массивы дают "".
func Text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}

		return s
	case 't':
		if string(raw) == "true" {
			return "true"
		}

		return ""
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || f == 0 || math.IsInf(f, 0) {
			return ""
		}

		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return ""
	}
}

// NoticeEvent - сообщение без полей (room_full, waiting_for_peer, peer_left)
type NoticeEvent struct {
	Type string `json:"type"`
}

// ConnectedEvent - выданный соединению идентификатор сессии
type ConnectedEvent struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

// ReadyEvent - роль участника при согласовании WebRTC
type ReadyEvent struct {
	Type string      `json:"type"`
	Role models.Role `json:"role"`
}

// RoomStateEvent - полный снимок комнаты
type RoomStateEvent struct {
	Type         string               `json:"type"`
	Participants []models.Participant `json:"participants"`
	Pomodoro     models.PhaseTimer    `json:"pomodoro"`
}

// IsRelay сообщает, пересылается ли сообщение второму участнику без изменений
func IsRelay(msgType string) bool {
	switch msgType {
	case TypeWebrtcOffer, TypeWebrtcAnswer, TypeWebrtcIce:
		return true
	default:
		return false
	}
}

// Decode разбирает тип входящего кадра
func Decode(raw []byte) (Envelope, error) {
	var env Envelope

	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	if env.Type == "" {
		return Envelope{}, fmt.Errorf("missing message type")
	}

	return env, nil
}

func Notice(msgType string) NoticeEvent {
	return NoticeEvent{Type: msgType}
}

func Connected(clientID string) ConnectedEvent {
	return ConnectedEvent{Type: TypeConnected, ClientID: clientID}
}

func Ready(role models.Role) ReadyEvent {
	return ReadyEvent{Type: TypeReady, Role: role}
}

func RoomState(participants []models.Participant, pomodoro models.PhaseTimer) RoomStateEvent {
	if participants == nil {
		participants = []models.Participant{}
	}

	return RoomStateEvent{Type: TypeRoomState, Participants: participants, Pomodoro: pomodoro}
}
