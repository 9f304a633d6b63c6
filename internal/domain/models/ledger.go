package models

// Ledger хранит очки участников комнаты по отображаемому имени.
// Записи не удаляются, пока жива комната.
type Ledger struct {
	points map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{points: make(map[string]int)}
}

// LedgerFrom восстанавливает таблицу очков из сохраненного снимка
func LedgerFrom(points map[string]int) *Ledger {
	l := NewLedger()

	for name, p := range points {
		if p < 0 {
			p = 0
		}
		l.points[name] = p
	}

	return l
}

// Ensure заводит запись с нулем, если имени еще нет. Возвращает true, если запись создана.
func (l *Ledger) Ensure(name string) bool {
	if _, ok := l.points[name]; ok {
		return false
	}

	l.points[name] = 0

	return true
}

// Award начисляет одно очко
func (l *Ledger) Award(name string) {
	l.Ensure(name)
	l.points[name]++
}

func (l *Ledger) Points(name string) int {
	return l.points[name]
}

// Snapshot возвращает копию таблицы очков
func (l *Ledger) Snapshot() map[string]int {
	snapshot := make(map[string]int, len(l.points))

	for name, p := range l.points {
		snapshot[name] = p
	}

	return snapshot
}
