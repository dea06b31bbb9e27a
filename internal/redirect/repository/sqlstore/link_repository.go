// Package sqlstore stores link configurations in SQLite or Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"brain-link-tracker/internal/redirect/database"
	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/usecase"
)

const (
	findByLinkIDQuery = `SELECT link_id, destination_url, tracking_enabled, campaign_id, utm_source, utm_medium, utm_campaign
FROM link_configurations WHERE link_id = ?`

	upsertLinkQuery = `INSERT INTO link_configurations
    (link_id, destination_url, tracking_enabled, campaign_id, utm_source, utm_medium, utm_campaign)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (link_id) DO UPDATE SET
    destination_url = excluded.destination_url,
    tracking_enabled = excluded.tracking_enabled,
    campaign_id = excluded.campaign_id,
    utm_source = excluded.utm_source,
    utm_medium = excluded.utm_medium,
    utm_campaign = excluded.utm_campaign,
    updated_at = CURRENT_TIMESTAMP`
)

// LinkRepository implements usecase.LinkRepository on database/sql.
type LinkRepository struct {
	db       *sql.DB
	findStmt string
	saveStmt string
}

// Ensure LinkRepository implements usecase.LinkRepository at compile time
var _ usecase.LinkRepository = (*LinkRepository)(nil)

// NewLinkRepository creates a repository for the given driver. Queries are
// written with ? placeholders and rebound for Postgres.
func NewLinkRepository(db *sql.DB, driver string) *LinkRepository {
	return &LinkRepository{
		db:       db,
		findStmt: rebind(driver, findByLinkIDQuery),
		saveStmt: rebind(driver, upsertLinkQuery),
	}
}

// FindByLinkID returns domain.ErrLinkNotFound when no row matches.
func (r *LinkRepository) FindByLinkID(ctx context.Context, linkID string) (*domain.LinkConfiguration, error) {
	var (
		link            domain.LinkConfiguration
		trackingEnabled int64
	)
	err := r.db.QueryRowContext(ctx, r.findStmt, linkID).Scan(
		&link.LinkID,
		&link.DestinationURL,
		&trackingEnabled,
		&link.CampaignID,
		&link.UTMSource,
		&link.UTMMedium,
		&link.UTMCampaign,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("find link %q: %w", linkID, err)
	}
	link.TrackingEnabled = trackingEnabled != 0
	return &link, nil
}

// Save inserts or replaces a link configuration.
func (r *LinkRepository) Save(ctx context.Context, link *domain.LinkConfiguration) error {
	if err := link.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, r.saveStmt,
		link.LinkID,
		link.DestinationURL,
		boolToInt(link.TrackingEnabled),
		link.CampaignID,
		link.UTMSource,
		link.UTMMedium,
		link.UTMCampaign,
	)
	if err != nil {
		return fmt.Errorf("save link %q: %w", link.LinkID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind replaces ? placeholders with $n for Postgres.
func rebind(driver, query string) string {
	if driver != database.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
