package availability

import (
	"fmt"
	"strings"
	"time"
)

// AgeBand возрастная категория, по которой подписчик хочет получать слоты.
type AgeBand int16

const (
	BandUnknown AgeBand = 0
	Band18Plus  AgeBand = 1
	Band45Plus  AgeBand = 2
	BandAny     AgeBand = 3
)

// MinAge возвращает порог min_age_limit для одиночной категории.
// Для Unknown и Any порога нет.
func (b AgeBand) MinAge() (int, bool) {
	switch b {
	case Band18Plus:
		return 18, true
	case Band45Plus:
		return 45, true
	default:
		return 0, false
	}
}

// Single true для 18+ и 45+.
func (b AgeBand) Single() bool {
	_, ok := b.MinAge()
	return ok
}

func (b AgeBand) Valid() bool {
	return b >= BandUnknown && b <= BandAny
}

func (b AgeBand) String() string {
	switch b {
	case Band18Plus:
		return "18+"
	case Band45Plus:
		return "45+"
	case BandAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseAgeBand понимает значения из конфига и callback-кнопок: "18", "18+", "45", "45+", "any", "both", "0".
func ParseAgeBand(s string) (AgeBand, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "18", "18+":
		return Band18Plus, nil
	case "45", "45+":
		return Band45Plus, nil
	case "any", "both", "0":
		return BandAny, nil
	case "unknown", "":
		return BandUnknown, nil
	}
	return BandUnknown, fmt.Errorf("availability: unknown age band %q", s)
}

type Session struct {
	Date        string // DD-MM-YYYY, как отдаёт провайдер
	Capacity    int
	MinAgeLimit int
	Vaccine     string
	Slots       []string
}

func (s Session) Available() bool { return s.Capacity > 0 }

type Center struct {
	ID        int64
	Name      string
	BlockName string
	Pincode   string
	FeeType   string // "Free" | "Paid"
	Sessions  []Session
}

func (c Center) Title() string {
	if c.BlockName == "" {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.BlockName)
}

// Snapshot ответ провайдера по одному пинкоду на момент FetchedAt.
// Живёт только в пределах одной итерации цикла опроса.
type Snapshot struct {
	Pincode   string
	FetchedAt time.Time
	Centers   []Center
}

func (s Snapshot) SessionCount() int {
	n := 0
	for _, c := range s.Centers {
		n += len(c.Sessions)
	}
	return n
}

// Empty true, если нет ни одной сессии.
func (s Snapshot) Empty() bool { return s.SessionCount() == 0 }
