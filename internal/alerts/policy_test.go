package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Spok95/cowin-alert-bot/internal/cadence"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
)

var now = time.Date(2021, 5, 10, 12, 0, 0, 0, time.UTC)

func subscriber(band availability.AgeBand, lastAgo time.Duration) subscribers.Subscriber {
	s := subscribers.Subscriber{ID: 1, ChatID: 100, Pincode: "560001", AgeBand: band, AlertsEnabled: true}
	if lastAgo > 0 {
		s.LastAlertSentAt = now.Add(-lastAgo)
	}
	return s
}

func TestPolicySingleBand(t *testing.T) {
	classes := cadence.Defaults()
	fast, slow := classes[0], classes[1]
	p := NewPolicy(classes, true)

	tests := []struct {
		name    string
		sub     subscribers.Subscriber
		class   cadence.Class
		allowed bool
		band    availability.AgeBand
	}{
		{name: "18+ never alerted", sub: subscriber(availability.Band18Plus, 0), class: fast, allowed: true, band: availability.Band18Plus},
		{name: "18+ gap elapsed", sub: subscriber(availability.Band18Plus, 40*time.Minute), class: fast, allowed: true, band: availability.Band18Plus},
		{name: "18+ exactly at gap", sub: subscriber(availability.Band18Plus, 30*time.Minute), class: fast, allowed: true, band: availability.Band18Plus},
		{name: "18+ too soon", sub: subscriber(availability.Band18Plus, 10*time.Minute), class: fast, allowed: false, band: availability.Band18Plus},
		{name: "45+ too soon", sub: subscriber(availability.Band45Plus, time.Hour), class: slow, allowed: false, band: availability.Band45Plus},
		{name: "45+ gap elapsed", sub: subscriber(availability.Band45Plus, 3*time.Hour), class: slow, allowed: true, band: availability.Band45Plus},
		{name: "45+ not served by fast", sub: subscriber(availability.Band45Plus, 3*time.Hour), class: fast, allowed: false},
		{name: "unknown band", sub: subscriber(availability.BandUnknown, 0), class: fast, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, band := p.ShouldNotify(tt.sub, tt.class, now)
			assert.Equal(t, tt.allowed, allowed)
			if tt.allowed {
				assert.Equal(t, tt.band, band)
			}
		})
	}
}

func TestPolicyDisabledOrDeletedNeverEligible(t *testing.T) {
	p := NewPolicy(cadence.Defaults(), true)
	fast := cadence.Defaults()[0]

	disabled := subscriber(availability.Band18Plus, 0)
	disabled.AlertsEnabled = false
	allowed, _ := p.ShouldNotify(disabled, fast, now)
	assert.False(t, allowed)

	deletedAt := now.Add(-time.Hour)
	deleted := subscriber(availability.BandAny, 0)
	deleted.DeletedAt = &deletedAt
	allowed, _ = p.ShouldNotify(deleted, fast, now)
	assert.False(t, allowed)

	noPincode := subscriber(availability.Band18Plus, 0)
	noPincode.Pincode = ""
	allowed, _ = p.ShouldNotify(noPincode, fast, now)
	assert.False(t, allowed)
}

func TestPolicyAnyBandFavorsFast(t *testing.T) {
	classes := cadence.Defaults()
	p := NewPolicy(classes, true)
	assert.Equal(t, availability.Band18Plus, p.FastBand())

	tests := []struct {
		name    string
		lastAgo time.Duration
		allowed bool
		band    availability.AgeBand
	}{
		{name: "never alerted gets everything", lastAgo: 0, allowed: true, band: availability.BandAny},
		{name: "within fast gap", lastAgo: 10 * time.Minute, allowed: false},
		{name: "fast gap elapsed only", lastAgo: 45 * time.Minute, allowed: true, band: availability.Band18Plus},
		{name: "slow gap elapsed", lastAgo: 2 * time.Hour, allowed: true, band: availability.BandAny},
	}

	for _, tt := range tests {
		for _, class := range classes {
			t.Run(tt.name+"/"+class.Name, func(t *testing.T) {
				allowed, band := p.ShouldNotify(subscriber(availability.BandAny, tt.lastAgo), class, now)
				assert.Equal(t, tt.allowed, allowed)
				if tt.allowed {
					assert.Equal(t, tt.band, band)
				}
			})
		}
	}
}

func TestPolicyAnyBandSymmetricWhenConfigured(t *testing.T) {
	classes := cadence.Defaults()
	p := NewPolicy(classes, false)

	allowed, band := p.ShouldNotify(subscriber(availability.BandAny, 45*time.Minute), classes[0], now)
	assert.True(t, allowed)
	assert.Equal(t, availability.BandAny, band)

	allowed, _ = p.ShouldNotify(subscriber(availability.BandAny, 45*time.Minute), classes[1], now)
	assert.False(t, allowed)
}

func TestPolicyFastBandFollowsGaps(t *testing.T) {
	classes := cadence.Defaults()
	classes[0].MinGap, classes[1].MinGap = 3*time.Hour, 20*time.Minute
	p := NewPolicy(classes, true)
	assert.Equal(t, availability.Band45Plus, p.FastBand())

	allowed, band := p.ShouldNotify(subscriber(availability.BandAny, time.Hour), classes[1], now)
	assert.True(t, allowed)
	assert.Equal(t, availability.Band45Plus, band)
}
