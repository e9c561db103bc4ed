// Package cowin клиент публичного API CoWin: календарь сессий по пинкоду.
package cowin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Spok95/cowin-alert-bot/internal/clock"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
)

const (
	DefaultBaseURL   = "https://cdn-api.co-vin.in"
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.93 Safari/537.36"

	calendarByPinPath = "/api/v2/appointment/sessions/public/calendarByPin"
	dateLayout        = "02-01-2006"
)

type Config struct {
	BaseURL        string
	AcceptLanguage string
	UserAgent      string
	Timeout        time.Duration
	Location       *time.Location // "сегодня" считаем в этой зоне
}

// Client без состояния, кроме http.Client; безопасен для параллельного использования.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	acceptLanguage string
	userAgent      string
	loc            *time.Location
	clock          clock.Clock
	log            *slog.Logger
}

func NewClient(cfg Config, clk clock.Clock, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = "en_US"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		acceptLanguage: cfg.AcceptLanguage,
		userAgent:      cfg.UserAgent,
		loc:            cfg.Location,
		clock:          clk,
		log:            log,
	}
}

type calendarResponse struct {
	Centers []centerJSON `json:"centers"`
}

type centerJSON struct {
	CenterID  int64         `json:"center_id"`
	Name      string        `json:"name"`
	BlockName string        `json:"block_name"`
	FeeType   string        `json:"fee_type"`
	Sessions  []sessionJSON `json:"sessions"`
}

type sessionJSON struct {
	Date              string   `json:"date"`
	AvailableCapacity int      `json:"available_capacity"`
	MinAgeLimit       int      `json:"min_age_limit"`
	Vaccine           string   `json:"vaccine"`
	Slots             []string `json:"slots"`
}

type errorResponse struct {
	ErrorCode string `json:"errorCode"`
	Error     string `json:"error"`
}

// Fetch запрашивает календарь на сегодня по пинкоду.
// Пустой список центров это валидный ответ «ничего нет», а не ошибка.
func (c *Client) Fetch(ctx context.Context, pincode string) Result {
	pincode = strings.TrimSpace(pincode)
	if pincode == "" {
		return failed(StatusInvalidInput, fmt.Errorf("%w: empty pincode", ErrInvalidInput))
	}

	now := c.clock.Now()
	params := url.Values{}
	params.Set("pincode", pincode)
	params.Set("date", now.In(c.loc).Format(dateLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+calendarByPinPath+"?"+params.Encode(), nil)
	if err != nil {
		return failed(StatusUnavailable, fmt.Errorf("%w: create request: %v", ErrUnavailable, err))
	}
	req.Header.Set("Accept-Language", c.acceptLanguage)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed(StatusUnavailable, fmt.Errorf("%w: http request: %v", ErrUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(StatusUnavailable, fmt.Errorf("%w: read body: %v", ErrUnavailable, err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		return failed(StatusInvalidInput, fmt.Errorf("%w: pincode %s: %s %s", ErrInvalidInput, pincode, e.ErrorCode, e.Error))
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return failed(StatusRateLimited, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode))
	default:
		return failed(StatusUnavailable, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(body, 200)))
	}

	var cr calendarResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return failed(StatusUnavailable, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err))
	}

	snap := availability.Snapshot{Pincode: pincode, FetchedAt: now}
	for _, cj := range cr.Centers {
		center := availability.Center{
			ID:        cj.CenterID,
			Name:      cj.Name,
			BlockName: cj.BlockName,
			Pincode:   pincode,
			FeeType:   cj.FeeType,
		}
		for _, sj := range cj.Sessions {
			center.Sessions = append(center.Sessions, availability.Session{
				Date:        sj.Date,
				Capacity:    sj.AvailableCapacity,
				MinAgeLimit: sj.MinAgeLimit,
				Vaccine:     sj.Vaccine,
				Slots:       sj.Slots,
			})
		}
		snap.Centers = append(snap.Centers, center)
	}
	c.log.Debug("cowin calendar fetched", "pincode", pincode, "centers", len(snap.Centers), "sessions", snap.SessionCount())
	return ok(snap)
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
