package storage

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/gosight/gosight/analytics/internal/config"
	"github.com/gosight/gosight/analytics/internal/timeseries"
)

// ClickHouse appends time-series rows. Tables are MergeTree and rows are
// never updated.
type ClickHouse struct {
	conn driver.Conn
}

func NewClickHouse(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &ClickHouse{conn: conn}, nil
}

func (c *ClickHouse) InsertListingRows(ctx context.Context, rows []timeseries.ListingRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO listing_analytics (
			run_id, listing_id, lister_id, lister_type, development_id,
			date, week, month, quarter, year,
			total_views, unique_views, logged_in_views, anonymous_views,
			views_from_search, views_from_direct, views_from_featured,
			views_from_recommended, views_from_social, views_from_other,
			mobile_views, desktop_views, bot_views,
			impressions, search_impressions, featured_impressions,
			recommended_impressions, map_impressions, other_impressions,
			shares, saves, unsaves, virtual_tours,
			total_leads, contact_leads, phone_leads, whatsapp_leads,
			message_leads, appointment_leads, email_leads, unique_lead_seekers,
			sales_count, sales_value,
			conversion_rate, lead_to_sale_rate, avg_sale_price,
			created_at
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		err := batch.Append(
			r.RunID, r.ListingID, r.ListerID, r.ListerType, r.DevelopmentID,
			r.Date, r.Week, r.Month, r.Quarter, r.Year,
			r.TotalViews, r.UniqueViews, r.LoggedInViews, r.AnonymousViews,
			r.ViewsSearch, r.ViewsDirect, r.ViewsFeatured,
			r.ViewsRecommend, r.ViewsSocial, r.ViewsOther,
			r.MobileViews, r.DesktopViews, r.BotViews,
			r.Impressions, r.ImprSearch, r.ImprFeatured,
			r.ImprRecommended, r.ImprMap, r.ImprOther,
			r.Shares, r.Saves, r.Unsaves, r.VirtualTours,
			r.TotalLeads, r.ContactLeads, r.PhoneLeads, r.WhatsappLeads,
			r.MessageLeads, r.AppointmentLeads, r.EmailLeads, r.UniqueSeekers,
			r.SalesCount, r.SalesValue,
			r.ConversionRate, r.LeadToSaleRate, r.AvgSalePrice,
			r.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) InsertUserRows(ctx context.Context, rows []timeseries.UserRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO user_analytics (
			run_id, user_id,
			date, week, month, quarter, year,
			profile_views, unique_profile_views, logged_in_views, anonymous_views,
			profile_impressions, listing_views, listing_impressions,
			total_leads, unique_lead_seekers, sales_count, sales_value,
			conversion_rate, lead_to_sale_rate, avg_sale_price,
			created_at
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		err := batch.Append(
			r.RunID, r.UserID,
			r.Date, r.Week, r.Month, r.Quarter, r.Year,
			r.ProfileViews, r.UniqueProfileViews, r.LoggedInViews, r.AnonymousViews,
			r.ProfileImpressions, r.ListingViews, r.ListingImpressions,
			r.TotalLeads, r.UniqueSeekers, r.SalesCount, r.SalesValue,
			r.ConversionRate, r.LeadToSaleRate, r.AvgSalePrice,
			r.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) InsertDevelopmentRows(ctx context.Context, rows []timeseries.DevelopmentRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO development_analytics (
			run_id, development_id,
			date, week, month, quarter, year,
			views, unique_views, impressions, listing_views,
			total_leads, unique_lead_seekers, sales_count, sales_value,
			conversion_rate, lead_to_sale_rate, avg_sale_price,
			created_at
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		err := batch.Append(
			r.RunID, r.DevelopmentID,
			r.Date, r.Week, r.Month, r.Quarter, r.Year,
			r.Views, r.UniqueViews, r.Impressions, r.ListingViews,
			r.TotalLeads, r.UniqueSeekers, r.SalesCount, r.SalesValue,
			r.ConversionRate, r.LeadToSaleRate, r.AvgSalePrice,
			r.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
