package subscribers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
)

var ErrNotFound = errors.New("subscribers: not found")

const columns = `id, telegram_id, chat_id, username, pincode, age_band, alerts_enabled,
	last_alert_sent_at, total_alerts_sent, deleted_at, created_at, updated_at`

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func scan(row pgx.Row) (*Subscriber, error) {
	var (
		s        Subscriber
		pincode  *string
		band     int16
		lastSent *time.Time
	)
	if err := row.Scan(&s.ID, &s.TelegramID, &s.ChatID, &s.Username, &pincode, &band, &s.AlertsEnabled,
		&lastSent, &s.TotalAlertsSent, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if pincode != nil {
		s.Pincode = *pincode
	}
	if lastSent != nil {
		s.LastAlertSentAt = *lastSent
	}
	s.AgeBand = availability.AgeBand(band)
	return &s, nil
}

func collect(rows pgx.Rows) ([]Subscriber, error) {
	defer rows.Close()
	var out []Subscriber
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func bandValues(bands []availability.AgeBand) []int16 {
	out := make([]int16, 0, len(bands))
	for _, b := range bands {
		out = append(out, int16(b))
	}
	return out
}

// GetByTelegramID nil, nil если подписчика ещё нет.
func (r *Repo) GetByTelegramID(ctx context.Context, tgID int64) (*Subscriber, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM subscribers WHERE telegram_id = $1`, tgID)
	s, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Upsert создаёт подписчика при первой настройке. Удалённая запись оживает с чистыми настройками.
func (r *Repo) Upsert(ctx context.Context, tg Telegram) (*Subscriber, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO subscribers (telegram_id, chat_id, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			chat_id    = EXCLUDED.chat_id,
			username   = EXCLUDED.username,
			deleted_at = NULL,
			updated_at = now()
		RETURNING `+columns, tg.ID, tg.ChatID, tg.Username)
	return scan(row)
}

func (r *Repo) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetPincode(ctx context.Context, id int64, pincode string) error {
	return r.exec(ctx, `UPDATE subscribers SET pincode = NULLIF($2, ''), updated_at = now() WHERE id = $1`, id, pincode)
}

func (r *Repo) SetAgeBand(ctx context.Context, id int64, band availability.AgeBand) error {
	return r.exec(ctx, `UPDATE subscribers SET age_band = $2, updated_at = now() WHERE id = $1`, id, int16(band))
}

func (r *Repo) SetAlertsEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.exec(ctx, `UPDATE subscribers SET alerts_enabled = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id, enabled)
}

// SoftDelete помечает запись удалённой; физически её удаляет отдельный процесс.
func (r *Repo) SoftDelete(ctx context.Context, id int64) error {
	return r.exec(ctx, `
		UPDATE subscribers
		SET deleted_at = now(), pincode = NULL, age_band = 0, alerts_enabled = FALSE, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
}

// DistinctPincodes пинкоды активных подписчиков с одной из категорий bands.
func (r *Repo) DistinctPincodes(ctx context.Context, bands []availability.AgeBand) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT pincode
		FROM subscribers
		WHERE alerts_enabled AND deleted_at IS NULL
		  AND pincode IS NOT NULL AND pincode <> ''
		  AND age_band = ANY($1)
		ORDER BY pincode
	`, bandValues(bands))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListEligible(ctx context.Context, pincode string, bands []availability.AgeBand) ([]Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM subscribers
		WHERE alerts_enabled AND deleted_at IS NULL
		  AND pincode = $1 AND age_band = ANY($2)
		ORDER BY id
	`, pincode, bandValues(bands))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// MarkAlertSent вызывается только после подтверждённой доставки. Время только растёт.
func (r *Repo) MarkAlertSent(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `
		UPDATE subscribers
		SET last_alert_sent_at = GREATEST(COALESCE(last_alert_sent_at, $2), $2),
		    total_alerts_sent = total_alerts_sent + 1, updated_at = now()
		WHERE id = $1
	`, id, at)
}

func (r *Repo) DisableAlerts(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE subscribers SET alerts_enabled = FALSE, updated_at = now() WHERE id = $1`, id)
}

func (r *Repo) ListAll(ctx context.Context) ([]Subscriber, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM subscribers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}
