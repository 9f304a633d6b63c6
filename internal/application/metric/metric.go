package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - количество ошибок
	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Общее количество HTTP ошибок",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	activeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Количество комнат в памяти",
		},
	)

	roomFullTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_full_rejections_total",
			Help: "Сколько соединений получили room_full",
		},
	)

	droppedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_dropped_messages_total",
			Help: "Входящие сообщения, отброшенные без ответа",
		},
		[]string{"reason"},
	)

	phaseCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pomodoro_phases_completed_total",
			Help: "Завершенные фазы помодоро",
		},
		[]string{"phase"},
	)

	pointsAwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pomodoro_points_awarded_total",
			Help: "Начисленные очки",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	// Записываем ошибки (статус >= 400)
	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func SetActiveRooms(count int) {
	activeRooms.Set(float64(count))
}

func IncrementRoomFull() {
	roomFullTotal.Inc()
}

func IncrementDroppedMessages(reason string) {
	droppedMessagesTotal.WithLabelValues(reason).Inc()
}

// RecordPhaseCompleted учитывает завершенную фазу и выданные за нее очки
func RecordPhaseCompleted(phase string, awarded int) {
	phaseCompletedTotal.WithLabelValues(phase).Inc()
	pointsAwardedTotal.Add(float64(awarded))
}
