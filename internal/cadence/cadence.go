// Package cadence описывает классы опроса: какие категории обслуживает цикл,
// как часто он ходит к провайдеру и как часто можно беспокоить подписчика.
package cadence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
)

type Class struct {
	Name  string
	Bands []availability.AgeBand // обычно одиночная категория + Any

	PollInterval       time.Duration
	MinGap             time.Duration // минимум между двумя оповещениями одному подписчику
	BackoffOnRateLimit time.Duration
	BackoffOnError     time.Duration
}

// Serves true, если подписчики с категорией band попадают в этот цикл.
func (c Class) Serves(band availability.AgeBand) bool {
	return slices.Contains(c.Bands, band)
}

// SingleBand одиночная категория класса (18+ или 45+), если она есть.
func (c Class) SingleBand() (availability.AgeBand, bool) {
	for _, b := range c.Bands {
		if b.Single() {
			return b, true
		}
	}
	return availability.BandUnknown, false
}

func (c Class) Validate() error {
	if c.Name == "" {
		return errors.New("cadence: empty name")
	}
	if len(c.Bands) == 0 {
		return fmt.Errorf("cadence %s: no age bands", c.Name)
	}
	for _, b := range c.Bands {
		if b == availability.BandUnknown || !b.Valid() {
			return fmt.Errorf("cadence %s: unsupported age band %s", c.Name, b)
		}
	}
	for name, d := range map[string]time.Duration{
		"poll_interval":         c.PollInterval,
		"min_gap":               c.MinGap,
		"backoff_on_rate_limit": c.BackoffOnRateLimit,
		"backoff_on_error":      c.BackoffOnError,
	} {
		if d <= 0 {
			return fmt.Errorf("cadence %s: %s must be positive", c.Name, name)
		}
	}
	return nil
}

// Defaults быстрый цикл для 18+ и медленный для 45+; Any обслуживают оба.
func Defaults() []Class {
	return []Class{
		{
			Name:               "fast",
			Bands:              []availability.AgeBand{availability.Band18Plus, availability.BandAny},
			PollInterval:       time.Minute,
			MinGap:             30 * time.Minute,
			BackoffOnRateLimit: 5 * time.Minute,
			BackoffOnError:     10 * time.Second,
		},
		{
			Name:               "slow",
			Bands:              []availability.AgeBand{availability.Band45Plus, availability.BandAny},
			PollInterval:       5 * time.Minute,
			MinGap:             2 * time.Hour,
			BackoffOnRateLimit: 5 * time.Minute,
			BackoffOnError:     10 * time.Second,
		},
	}
}

// ValidateSet проверяет классы целиком: имена уникальны, Any обслуживается
// каждым классом с одиночной категорией.
func ValidateSet(classes []Class) error {
	if len(classes) == 0 {
		return errors.New("cadence: no classes configured")
	}
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("cadence %s: duplicate name", c.Name)
		}
		seen[c.Name] = struct{}{}
		if _, single := c.SingleBand(); single && !c.Serves(availability.BandAny) {
			return fmt.Errorf("cadence %s: must also serve the any band", c.Name)
		}
	}
	return nil
}
