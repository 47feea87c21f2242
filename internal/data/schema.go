package data

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	linksTable          = "links"
	analyticsTable      = "analytics_events"
	monthlyCounterTable = "monthly_counters"
	organizationsTable  = "organizations"
	blacklistTable      = "destination_blacklist"
)

var (
	// LinksColumns holds the columns for the "links" table.
	LinksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "org_id", Type: field.TypeString, Size: 64},
		{Name: "short_code", Type: field.TypeString, Unique: true, Size: 10},
		{Name: "destination_url", Type: field.TypeString, Size: 2048},
		{Name: "title", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "created_by", Type: field.TypeString, Size: 64},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime, Nullable: true},
		{Name: "expires_at", Type: field.TypeTime, Nullable: true},
		{Name: "deleted_at", Type: field.TypeTime, Nullable: true},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"active", "disabled", "blocked", "deleted"}, Default: "active"},
		{Name: "click_count", Type: field.TypeInt64, Default: 0},
		{Name: "tags", Type: field.TypeJSON, Nullable: true},
	}
	// LinksTable holds the schema information for the "links" table.
	LinksTable = &schema.Table{
		Name:       linksTable,
		Columns:    LinksColumns,
		PrimaryKey: []*schema.Column{LinksColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "link_org_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{LinksColumns[1], LinksColumns[6]},
			},
		},
	}
	// AnalyticsEventsColumns holds the columns for the "analytics_events" table.
	AnalyticsEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "link_id", Type: field.TypeString, Size: 36},
		{Name: "org_id", Type: field.TypeString, Size: 64},
		{Name: "occurred_at", Type: field.TypeTime},
		{Name: "referrer", Type: field.TypeString, Nullable: true, Size: 2048},
		{Name: "user_agent", Type: field.TypeString, Nullable: true, Size: 512},
		{Name: "country", Type: field.TypeString, Nullable: true, Size: 8},
	}
	// AnalyticsEventsTable holds the schema information for the "analytics_events" table.
	AnalyticsEventsTable = &schema.Table{
		Name:       analyticsTable,
		Columns:    AnalyticsEventsColumns,
		PrimaryKey: []*schema.Column{AnalyticsEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "analyticsevent_link_id_occurred_at",
				Unique:  false,
				Columns: []*schema.Column{AnalyticsEventsColumns[1], AnalyticsEventsColumns[3]},
			},
		},
	}
	// MonthlyCountersColumns holds the columns for the "monthly_counters" table.
	MonthlyCountersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "org_id", Type: field.TypeString, Size: 64},
		{Name: "year_month", Type: field.TypeString, Size: 7},
		{Name: "links_created", Type: field.TypeInt64, Default: 0},
	}
	// MonthlyCountersTable holds the schema information for the "monthly_counters" table.
	MonthlyCountersTable = &schema.Table{
		Name:       monthlyCounterTable,
		Columns:    MonthlyCountersColumns,
		PrimaryKey: []*schema.Column{MonthlyCountersColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "monthlycounter_org_id_year_month",
				Unique:  true,
				Columns: []*schema.Column{MonthlyCountersColumns[1], MonthlyCountersColumns[2]},
			},
		},
	}
	// OrganizationsColumns holds the columns for the "organizations" table.
	OrganizationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 64},
		{Name: "tier", Type: field.TypeString, Size: 32, Default: "free"},
		{Name: "monthly_link_limit", Type: field.TypeInt64, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// OrganizationsTable holds the schema information for the "organizations" table.
	OrganizationsTable = &schema.Table{
		Name:       organizationsTable,
		Columns:    OrganizationsColumns,
		PrimaryKey: []*schema.Column{OrganizationsColumns[0]},
	}
	// DestinationBlacklistColumns holds the columns for the "destination_blacklist" table.
	DestinationBlacklistColumns = []*schema.Column{
		{Name: "domain", Type: field.TypeString, Size: 253},
		{Name: "reason", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "created_at", Type: field.TypeTime},
	}
	// DestinationBlacklistTable holds the schema information for the "destination_blacklist" table.
	DestinationBlacklistTable = &schema.Table{
		Name:       blacklistTable,
		Columns:    DestinationBlacklistColumns,
		PrimaryKey: []*schema.Column{DestinationBlacklistColumns[0]},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		LinksTable,
		AnalyticsEventsTable,
		MonthlyCountersTable,
		OrganizationsTable,
		DestinationBlacklistTable,
	}
)

// Migrate creates or upgrades every table of the relational store.
func Migrate(ctx context.Context, drv dialect.Driver, opts ...schema.MigrateOption) error {
	m, err := schema.NewMigrate(drv, opts...)
	if err != nil {
		return fmt.Errorf("data: migrate: %w", err)
	}
	return m.Create(ctx, Tables...)
}
