package alerts

import (
	"time"

	"github.com/Spok95/cowin-alert-bot/internal/cadence"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
)

// Policy решает, можно ли сейчас оповестить подписчика, и с каким фильтром.
// Только читает состояние; время последней отправки двигает Dispatcher.
type Policy struct {
	gaps      map[availability.AgeBand]time.Duration
	fast      availability.AgeBand
	slow      availability.AgeBand
	favorFast bool
}

// NewPolicy берёт интервалы одиночных категорий из классов опроса.
// favorFast включает асимметрию для Any: быстрая категория приходит часто,
// медленная не чаще своего интервала.
func NewPolicy(classes []cadence.Class, favorFast bool) *Policy {
	p := &Policy{
		gaps:      make(map[availability.AgeBand]time.Duration),
		fast:      availability.Band18Plus,
		slow:      availability.Band45Plus,
		favorFast: favorFast,
	}
	for _, c := range classes {
		for _, b := range c.Bands {
			if !b.Single() {
				continue
			}
			if cur, ok := p.gaps[b]; !ok || c.MinGap < cur {
				p.gaps[b] = c.MinGap
			}
		}
	}
	g18, ok18 := p.gaps[availability.Band18Plus]
	g45, ok45 := p.gaps[availability.Band45Plus]
	if ok18 && ok45 && g45 < g18 {
		p.fast, p.slow = availability.Band45Plus, availability.Band18Plus
	}
	return p
}

// FastBand категория с меньшим интервалом оповещений.
func (p *Policy) FastBand() availability.AgeBand { return p.fast }

// ShouldNotify возвращает разрешение и категорию, по которой фильтровать снимок.
func (p *Policy) ShouldNotify(s subscribers.Subscriber, class cadence.Class, now time.Time) (bool, availability.AgeBand) {
	if !s.Eligible() || !class.Serves(s.AgeBand) {
		return false, availability.BandUnknown
	}
	elapsed := now.Sub(s.LastAlertSentAt)

	switch {
	case s.AgeBand.Single():
		return elapsed >= class.MinGap, s.AgeBand
	case s.AgeBand == availability.BandAny && !p.favorFast:
		return elapsed >= class.MinGap, availability.BandAny
	case s.AgeBand == availability.BandAny:
		if elapsed >= p.gapFor(p.slow, class) {
			return true, availability.BandAny
		}
		if elapsed >= p.gapFor(p.fast, class) {
			return true, p.fast
		}
	}
	return false, availability.BandUnknown
}

func (p *Policy) gapFor(band availability.AgeBand, class cadence.Class) time.Duration {
	if gap, ok := p.gaps[band]; ok {
		return gap
	}
	return class.MinGap
}
