package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot dispatch-path operations.
var preparedStatements = map[string]string{
	"get_campaign":        `SELECT id, name, business_type, postcode, location_id, status, created_at FROM campaigns WHERE id = $1`,
	"set_campaign_status": `UPDATE campaigns SET status = $1 WHERE id = $2`,
	"get_business":        `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`,
	"count_in_flight":     `SELECT COUNT(*) FROM campaign_businesses WHERE campaign_id = $1 AND in_flight`,
	"find_by_call_id":     `SELECT campaign_id, business_id, position, attempts, in_flight, last_outcome, last_call_id, last_attempted_at FROM campaign_businesses WHERE last_call_id = $1`,
	"mark_dispatched":     `UPDATE campaign_businesses SET last_call_id = $1 WHERE campaign_id = $2 AND business_id = $3 AND in_flight`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; tests pass pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for bulk lead import.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS locations (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft'
);

CREATE TABLE IF NOT EXISTS campaigns (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name          TEXT NOT NULL,
	business_type TEXT NOT NULL,
	postcode      TEXT NOT NULL,
	location_id   TEXT NOT NULL REFERENCES locations(id),
	status        TEXT NOT NULL DEFAULT 'created',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS businesses (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name              TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	postcode          TEXT NOT NULL DEFAULT '',
	types             JSONB,
	primary_email     TEXT NOT NULL DEFAULT '',
	primary_phone     TEXT NOT NULL DEFAULT '',
	all_emails        JSONB,
	all_phones        JSONB,
	contact_people    JSONB,
	social_links      JSONB,
	business_details  TEXT NOT NULL DEFAULT '',
	site_data         TEXT NOT NULL DEFAULT '',
	enrichment_status TEXT NOT NULL DEFAULT 'not_enriched',
	enriched_at       TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_businesses (
	campaign_id       TEXT NOT NULL REFERENCES campaigns(id),
	business_id       TEXT NOT NULL REFERENCES businesses(id),
	position          INTEGER NOT NULL,
	attempts          INTEGER NOT NULL DEFAULT 0,
	in_flight         BOOLEAN NOT NULL DEFAULT false,
	last_outcome      TEXT,
	last_call_id      TEXT,
	last_attempted_at TIMESTAMPTZ,
	PRIMARY KEY (campaign_id, business_id)
);

CREATE TABLE IF NOT EXISTS voice_config (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	api_key         TEXT NOT NULL DEFAULT '',
	assistant_id    TEXT NOT NULL DEFAULT '',
	phone_number_id TEXT NOT NULL DEFAULT '',
	webhook_secret  TEXT NOT NULL DEFAULT '',
	calling_enabled BOOLEAN NOT NULL DEFAULT false,
	max_concurrent  INTEGER NOT NULL DEFAULT 1,
	max_attempts    INTEGER NOT NULL DEFAULT 3,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_campaigns_location ON campaigns(location_id);
CREATE INDEX IF NOT EXISTS idx_cb_campaign_position ON campaign_businesses(campaign_id, position);
CREATE INDEX IF NOT EXISTS idx_cb_call_id ON campaign_businesses(last_call_id);
CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(enrichment_status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Locations

func (s *PostgresStore) UpsertLocation(ctx context.Context, loc model.Location) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO locations (id, name, status) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status`,
		loc.ID, loc.Name, string(loc.Status),
	)
	return eris.Wrap(err, "postgres: upsert location")
}

func (s *PostgresStore) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	var loc model.Location
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status FROM locations WHERE id = $1`, id,
	).Scan(&loc.ID, &loc.Name, &loc.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "location %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get location")
	}
	return &loc, nil
}

// Campaigns

func (s *PostgresStore) CreateCampaign(ctx context.Context, camp model.Campaign) (*model.Campaign, error) {
	if camp.ID == "" {
		camp.ID = uuid.New().String()
	}
	if camp.Status == "" {
		camp.Status = model.CampaignCreated
	}
	camp.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, business_type, postcode, location_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		camp.ID, camp.Name, camp.BusinessType, camp.Postcode, camp.LocationID, string(camp.Status), camp.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert campaign")
	}
	return &camp, nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, business_type, postcode, location_id, status, created_at FROM campaigns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.BusinessType, &c.Postcode, &c.LocationID, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "campaign %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get campaign")
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.Campaign, error) {
	query := `SELECT id, name, business_type, postcode, location_id, status, created_at FROM campaigns WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.BusinessType, &c.Postcode, &c.LocationID, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "postgres: list campaigns iterate")
}

func (s *PostgresStore) SetCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set campaign status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "campaign %s", id)
	}
	return nil
}

// Businesses

func (s *PostgresStore) InsertBusinesses(ctx context.Context, campaignID string, businesses []model.Business) (int, error) {
	if len(businesses) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(businesses))
	ids := make([]string, 0, len(businesses))
	for _, biz := range businesses {
		if biz.ID == "" {
			biz.ID = uuid.New().String()
		}
		if biz.EnrichmentStatus == "" {
			biz.EnrichmentStatus = model.EnrichmentNotEnriched
		}
		ids = append(ids, biz.ID)
		rows = append(rows, []any{
			biz.ID, biz.Name, biz.Phone, biz.Website, biz.Address, biz.Postcode,
			marshalJSONB(biz.Types), string(biz.EnrichmentStatus), now,
		})
	}

	// Business rows go through the bulk COPY upsert; contact fields are not
	// touched on conflict so a re-import never clobbers enrichment.
	_, err := db.Upsert{
		Table:        "businesses",
		Columns:      []string{"id", "name", "phone", "website", "address", "postcode", "types", "enrichment_status", "created_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"name", "phone", "website", "address", "postcode", "types"},
	}.Run(ctx, s.pool, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert businesses")
	}

	// Linking runs in its own transaction; it is ON CONFLICT DO NOTHING, so a
	// retry after a partial failure converges.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin link businesses")
	}
	defer tx.Rollback(ctx)

	var position int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM campaign_businesses WHERE campaign_id = $1`,
		campaignID,
	).Scan(&position)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: next position")
	}

	inserted := 0
	for _, id := range ids {
		position++
		tag, err := tx.Exec(ctx,
			`INSERT INTO campaign_businesses (campaign_id, business_id, position)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (campaign_id, business_id) DO NOTHING`,
			campaignID, id, position,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: link business %s", id)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		} else {
			position--
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit link businesses")
	}
	return inserted, nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id,
	)
	biz, err := scanPgBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "business %s", id)
	}
	return biz, err
}

func (s *PostgresStore) ListCampaignBusinesses(ctx context.Context, campaignID string) ([]model.Business, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+prefixedBusinessColumns("b")+`
		 FROM businesses b
		 JOIN campaign_businesses cb ON cb.business_id = b.id
		 WHERE cb.campaign_id = $1
		 ORDER BY cb.position`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaign businesses")
	}
	defer rows.Close()
	return collectPgBusinesses(rows)
}

func (s *PostgresStore) ListEnrichable(ctx context.Context, campaignID string) ([]model.Business, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+prefixedBusinessColumns("b")+`
		 FROM businesses b
		 JOIN campaign_businesses cb ON cb.business_id = b.id
		 WHERE cb.campaign_id = $1 AND b.enrichment_status != $2 AND b.website != ''
		 ORDER BY cb.position`,
		campaignID, string(model.EnrichmentEnriched),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichable")
	}
	defer rows.Close()
	return collectPgBusinesses(rows)
}

func (s *PostgresStore) ApplyContactUpdate(ctx context.Context, upd model.ContactUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE businesses SET
		   primary_email = $1, primary_phone = $2, all_emails = $3, all_phones = $4,
		   contact_people = $5, social_links = $6, business_details = $7, site_data = $8,
		   enrichment_status = $9, enriched_at = $10
		 WHERE id = $11`,
		upd.Contacts.PrimaryEmail, upd.Contacts.PrimaryPhone,
		marshalJSONB(upd.Contacts.AllEmails), marshalJSONB(upd.Contacts.AllPhones),
		marshalJSONB(upd.Contacts.ContactPeople), marshalJSONB(upd.SocialLinks),
		upd.BusinessDetails, upd.SiteData,
		string(upd.Status), upd.EnrichedAt,
		upd.BusinessID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply contact update %s", upd.BusinessID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "business %s", upd.BusinessID)
	}
	return nil
}

func (s *PostgresStore) ApplyStatusUpdate(ctx context.Context, upd model.StatusUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE businesses SET enrichment_status = $1, enriched_at = $2 WHERE id = $3`,
		string(upd.Status), upd.EnrichedAt, upd.BusinessID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply status update %s", upd.BusinessID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "business %s", upd.BusinessID)
	}
	return nil
}

// Voice configuration

func (s *PostgresStore) GetVoiceConfig(ctx context.Context) (*model.VoiceConfig, error) {
	var vc model.VoiceConfig
	err := s.pool.QueryRow(ctx,
		`SELECT api_key, assistant_id, phone_number_id, webhook_secret,
		        calling_enabled, max_concurrent, max_attempts, updated_at
		 FROM voice_config WHERE id = 1`,
	).Scan(&vc.APIKey, &vc.AssistantID, &vc.PhoneNumberID, &vc.WebhookSecret,
		&vc.CallingEnabled, &vc.MaxConcurrent, &vc.MaxAttempts, &vc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get voice config")
	}
	return &vc, nil
}

func (s *PostgresStore) SetVoiceConfig(ctx context.Context, vc model.VoiceConfig) error {
	vc.Clamp()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO voice_config (id, api_key, assistant_id, phone_number_id, webhook_secret,
		                           calling_enabled, max_concurrent, max_attempts, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   api_key = EXCLUDED.api_key, assistant_id = EXCLUDED.assistant_id,
		   phone_number_id = EXCLUDED.phone_number_id, webhook_secret = EXCLUDED.webhook_secret,
		   calling_enabled = EXCLUDED.calling_enabled, max_concurrent = EXCLUDED.max_concurrent,
		   max_attempts = EXCLUDED.max_attempts, updated_at = EXCLUDED.updated_at`,
		vc.APIKey, vc.AssistantID, vc.PhoneNumberID, vc.WebhookSecret,
		vc.CallingEnabled, vc.MaxConcurrent, vc.MaxAttempts, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set voice config")
}

// Dispatch bookkeeping

func (s *PostgresStore) ReserveCallable(ctx context.Context, campaignID string, maxConcurrent, maxAttempts, limit int) ([]model.CampaignBusiness, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin reserve")
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent reservations for the same campaign.
	var inFlight int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_businesses WHERE campaign_id = $1 AND in_flight`,
		campaignID,
	).Scan(&inFlight)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count in-flight")
	}

	slots := maxConcurrent - inFlight
	if limit > 0 && limit < slots {
		slots = limit
	}
	if slots <= 0 {
		return nil, eris.Wrap(tx.Commit(ctx), "postgres: commit reserve")
	}

	rows, err := tx.Query(ctx,
		`SELECT campaign_id, business_id, position, attempts, in_flight, last_outcome, last_call_id, last_attempted_at
		 FROM campaign_businesses
		 WHERE campaign_id = $1 AND NOT in_flight AND attempts < $2
		   AND (last_outcome IS NULL OR last_outcome != ALL($3))
		 ORDER BY position
		 LIMIT $4
		 FOR UPDATE`,
		campaignID, maxAttempts, terminalOutcomeStrings(), slots,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: select eligible")
	}
	links, err := collectPgLinks(rows)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range links {
		links[i].Attempts++
		links[i].InFlight = true
		links[i].LastAttemptedAt = &now
		_, err := tx.Exec(ctx,
			`UPDATE campaign_businesses
			 SET in_flight = true, attempts = attempts + 1, last_attempted_at = $1
			 WHERE campaign_id = $2 AND business_id = $3`,
			now, links[i].CampaignID, links[i].BusinessID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: reserve %s", links[i].BusinessID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit reserve")
	}
	return links, nil
}

func (s *PostgresStore) ReleaseInFlight(ctx context.Context, campaignID, businessID string, outcome model.CallOutcome, refundAttempt bool) error {
	sets := []string{"in_flight = false"}
	args := []any{}
	argIdx := 1

	if outcome != model.OutcomeNone {
		sets = append(sets, fmt.Sprintf("last_outcome = $%d", argIdx))
		args = append(args, string(outcome))
		argIdx++
	}
	if refundAttempt {
		sets = append(sets, "attempts = GREATEST(attempts - 1, 0)")
	}

	query := fmt.Sprintf(
		`UPDATE campaign_businesses SET %s WHERE campaign_id = $%d AND business_id = $%d`,
		strings.Join(sets, ", "), argIdx, argIdx+1,
	)
	args = append(args, campaignID, businessID)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: release %s", businessID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "campaign_business %s", businessID)
	}
	return nil
}

func (s *PostgresStore) MarkDispatched(ctx context.Context, campaignID, businessID, callID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaign_businesses SET last_call_id = $1
		 WHERE campaign_id = $2 AND business_id = $3 AND in_flight`,
		callID, campaignID, businessID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark dispatched %s", businessID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "campaign_business %s", businessID)
	}
	return nil
}

func (s *PostgresStore) CountInFlight(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_businesses WHERE campaign_id = $1 AND in_flight`,
		campaignID,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count in-flight")
}

func (s *PostgresStore) CountEligible(ctx context.Context, campaignID string, maxAttempts int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_businesses
		 WHERE campaign_id = $1 AND NOT in_flight AND attempts < $2
		   AND (last_outcome IS NULL OR last_outcome != ALL($3))`,
		campaignID, maxAttempts, terminalOutcomeStrings(),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count eligible")
}

func (s *PostgresStore) FindByCallID(ctx context.Context, callID string) (*model.CampaignBusiness, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT campaign_id, business_id, position, attempts, in_flight, last_outcome, last_call_id, last_attempted_at
		 FROM campaign_businesses WHERE last_call_id = $1`,
		callID,
	)
	link, err := scanPgLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "call %s", callID)
	}
	return link, err
}

// helpers

func terminalOutcomeStrings() []string {
	out := make([]string, len(terminalOutcomes))
	for i, o := range terminalOutcomes {
		out[i] = string(o)
	}
	return out
}

// marshalJSONB stores nil collections as SQL NULL rather than the JSON text
// "null".
func marshalJSONB(v any) any {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return b
}

func prefixedBusinessColumns(alias string) string {
	cols := strings.Split(businessColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func scanPgBusiness(row pgx.Row) (*model.Business, error) {
	var b model.Business
	var types, allEmails, allPhones, people, socials []byte
	var enrichedAt *time.Time

	err := row.Scan(&b.ID, &b.Name, &b.Phone, &b.Website, &b.Address, &b.Postcode, &types,
		&b.PrimaryEmail, &b.PrimaryPhone, &allEmails, &allPhones, &people,
		&socials, &b.BusinessDetails, &b.SiteData, &b.EnrichmentStatus, &enrichedAt, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan business")
	}

	for _, f := range []struct {
		col []byte
		dst any
	}{
		{types, &b.Types},
		{allEmails, &b.AllEmails},
		{allPhones, &b.AllPhones},
		{people, &b.ContactPeople},
		{socials, &b.SocialLinks},
	} {
		if len(f.col) == 0 {
			continue
		}
		if err := json.Unmarshal(f.col, f.dst); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal business field")
		}
	}
	b.EnrichedAt = enrichedAt
	return &b, nil
}

func collectPgBusinesses(rows pgx.Rows) ([]model.Business, error) {
	var out []model.Business
	for rows.Next() {
		b, err := scanPgBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate businesses")
}

func scanPgLink(row pgx.Row) (*model.CampaignBusiness, error) {
	var cb model.CampaignBusiness
	var outcome, callID *string
	var attemptedAt *time.Time

	err := row.Scan(&cb.CampaignID, &cb.BusinessID, &cb.Position, &cb.Attempts, &cb.InFlight,
		&outcome, &callID, &attemptedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan link")
	}

	if outcome != nil {
		cb.LastOutcome = model.CallOutcome(*outcome)
	}
	if callID != nil {
		cb.LastCallID = *callID
	}
	cb.LastAttemptedAt = attemptedAt
	return &cb, nil
}

func collectPgLinks(rows pgx.Rows) ([]model.CampaignBusiness, error) {
	defer rows.Close()
	var out []model.CampaignBusiness
	for rows.Next() {
		cb, err := scanPgLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cb)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate links")
}
