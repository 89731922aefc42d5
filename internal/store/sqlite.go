package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// A single connection serializes the reserve transaction against itself.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS locations (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft'
);

CREATE TABLE IF NOT EXISTS campaigns (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	business_type TEXT NOT NULL,
	postcode      TEXT NOT NULL,
	location_id   TEXT NOT NULL REFERENCES locations(id),
	status        TEXT NOT NULL DEFAULT 'created',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS businesses (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	postcode          TEXT NOT NULL DEFAULT '',
	types             TEXT,
	primary_email     TEXT NOT NULL DEFAULT '',
	primary_phone     TEXT NOT NULL DEFAULT '',
	all_emails        TEXT,
	all_phones        TEXT,
	contact_people    TEXT,
	social_links      TEXT,
	business_details  TEXT NOT NULL DEFAULT '',
	site_data         TEXT NOT NULL DEFAULT '',
	enrichment_status TEXT NOT NULL DEFAULT 'not_enriched',
	enriched_at       DATETIME,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaign_businesses (
	campaign_id       TEXT NOT NULL REFERENCES campaigns(id),
	business_id       TEXT NOT NULL REFERENCES businesses(id),
	position          INTEGER NOT NULL,
	attempts          INTEGER NOT NULL DEFAULT 0,
	in_flight         INTEGER NOT NULL DEFAULT 0,
	last_outcome      TEXT,
	last_call_id      TEXT,
	last_attempted_at DATETIME,
	PRIMARY KEY (campaign_id, business_id)
);

CREATE TABLE IF NOT EXISTS voice_config (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	api_key         TEXT NOT NULL DEFAULT '',
	assistant_id    TEXT NOT NULL DEFAULT '',
	phone_number_id TEXT NOT NULL DEFAULT '',
	webhook_secret  TEXT NOT NULL DEFAULT '',
	calling_enabled INTEGER NOT NULL DEFAULT 0,
	max_concurrent  INTEGER NOT NULL DEFAULT 1,
	max_attempts    INTEGER NOT NULL DEFAULT 3,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_campaigns_location ON campaigns(location_id);
CREATE INDEX IF NOT EXISTS idx_cb_campaign_position ON campaign_businesses(campaign_id, position);
CREATE INDEX IF NOT EXISTS idx_cb_call_id ON campaign_businesses(last_call_id);
CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(enrichment_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Locations

func (s *SQLiteStore) UpsertLocation(ctx context.Context, loc model.Location) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (id, name, status) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, status = excluded.status`,
		loc.ID, loc.Name, string(loc.Status),
	)
	return eris.Wrap(err, "sqlite: upsert location")
}

func (s *SQLiteStore) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	var loc model.Location
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status FROM locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.Name, &loc.Status)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "location %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get location")
	}
	return &loc, nil
}

// Campaigns

func (s *SQLiteStore) CreateCampaign(ctx context.Context, camp model.Campaign) (*model.Campaign, error) {
	if camp.ID == "" {
		camp.ID = uuid.New().String()
	}
	if camp.Status == "" {
		camp.Status = model.CampaignCreated
	}
	camp.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, business_type, postcode, location_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		camp.ID, camp.Name, camp.BusinessType, camp.Postcode, camp.LocationID, string(camp.Status), camp.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert campaign")
	}
	return &camp, nil
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, business_type, postcode, location_id, status, created_at
		 FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.BusinessType, &c.Postcode, &c.LocationID, &c.Status, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "campaign %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get campaign")
	}
	return &c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.Campaign, error) {
	query := `SELECT id, name, business_type, postcode, location_id, status, created_at FROM campaigns WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.BusinessType, &c.Postcode, &c.LocationID, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "sqlite: list campaigns iterate")
}

func (s *SQLiteStore) SetCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set campaign status %s", id)
	}
	return checkRowsAffected(res, "campaign", id)
}

// Businesses

const businessColumns = `id, name, phone, website, address, postcode, types,
	primary_email, primary_phone, all_emails, all_phones, contact_people,
	social_links, business_details, site_data, enrichment_status, enriched_at, created_at`

func (s *SQLiteStore) InsertBusinesses(ctx context.Context, campaignID string, businesses []model.Business) (int, error) {
	if len(businesses) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert businesses")
	}
	defer tx.Rollback()

	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM campaign_businesses WHERE campaign_id = ?`,
		campaignID,
	).Scan(&position)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: next position")
	}

	now := time.Now().UTC()
	inserted := 0
	for _, biz := range businesses {
		if biz.ID == "" {
			biz.ID = uuid.New().String()
		}
		if biz.EnrichmentStatus == "" {
			biz.EnrichmentStatus = model.EnrichmentNotEnriched
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO businesses (id, name, phone, website, address, postcode, types, enrichment_status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   name = excluded.name, phone = excluded.phone, website = excluded.website,
			   address = excluded.address, postcode = excluded.postcode, types = excluded.types`,
			biz.ID, biz.Name, biz.Phone, biz.Website, biz.Address, biz.Postcode,
			marshalJSON(biz.Types), string(biz.EnrichmentStatus), now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert business %s", biz.ID)
		}

		position++
		res, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_businesses (campaign_id, business_id, position)
			 VALUES (?, ?, ?)
			 ON CONFLICT (campaign_id, business_id) DO NOTHING`,
			campaignID, biz.ID, position,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: link business %s", biz.ID)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		} else {
			position--
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert businesses")
	}
	return inserted, nil
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id,
	)
	biz, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "business %s", id)
	}
	return biz, err
}

func (s *SQLiteStore) ListCampaignBusinesses(ctx context.Context, campaignID string) ([]model.Business, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.phone, b.website, b.address, b.postcode, b.types,
		        b.primary_email, b.primary_phone, b.all_emails, b.all_phones, b.contact_people,
		        b.social_links, b.business_details, b.site_data, b.enrichment_status, b.enriched_at, b.created_at
		 FROM businesses b
		 JOIN campaign_businesses cb ON cb.business_id = b.id
		 WHERE cb.campaign_id = ?
		 ORDER BY cb.position`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaign businesses")
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

func (s *SQLiteStore) ListEnrichable(ctx context.Context, campaignID string) ([]model.Business, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.phone, b.website, b.address, b.postcode, b.types,
		        b.primary_email, b.primary_phone, b.all_emails, b.all_phones, b.contact_people,
		        b.social_links, b.business_details, b.site_data, b.enrichment_status, b.enriched_at, b.created_at
		 FROM businesses b
		 JOIN campaign_businesses cb ON cb.business_id = b.id
		 WHERE cb.campaign_id = ? AND b.enrichment_status != ? AND b.website != ''
		 ORDER BY cb.position`,
		campaignID, string(model.EnrichmentEnriched),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichable")
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

func (s *SQLiteStore) ApplyContactUpdate(ctx context.Context, upd model.ContactUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET
		   primary_email = ?, primary_phone = ?, all_emails = ?, all_phones = ?,
		   contact_people = ?, social_links = ?, business_details = ?, site_data = ?,
		   enrichment_status = ?, enriched_at = ?
		 WHERE id = ?`,
		upd.Contacts.PrimaryEmail, upd.Contacts.PrimaryPhone,
		marshalJSON(upd.Contacts.AllEmails), marshalJSON(upd.Contacts.AllPhones),
		marshalJSON(upd.Contacts.ContactPeople), marshalJSON(upd.SocialLinks),
		upd.BusinessDetails, upd.SiteData,
		string(upd.Status), upd.EnrichedAt,
		upd.BusinessID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply contact update %s", upd.BusinessID)
	}
	return checkRowsAffected(res, "business", upd.BusinessID)
}

func (s *SQLiteStore) ApplyStatusUpdate(ctx context.Context, upd model.StatusUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET enrichment_status = ?, enriched_at = ? WHERE id = ?`,
		string(upd.Status), upd.EnrichedAt, upd.BusinessID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply status update %s", upd.BusinessID)
	}
	return checkRowsAffected(res, "business", upd.BusinessID)
}

// Voice configuration

func (s *SQLiteStore) GetVoiceConfig(ctx context.Context) (*model.VoiceConfig, error) {
	var vc model.VoiceConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT api_key, assistant_id, phone_number_id, webhook_secret,
		        calling_enabled, max_concurrent, max_attempts, updated_at
		 FROM voice_config WHERE id = 1`,
	).Scan(&vc.APIKey, &vc.AssistantID, &vc.PhoneNumberID, &vc.WebhookSecret,
		&vc.CallingEnabled, &vc.MaxConcurrent, &vc.MaxAttempts, &vc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get voice config")
	}
	return &vc, nil
}

func (s *SQLiteStore) SetVoiceConfig(ctx context.Context, vc model.VoiceConfig) error {
	vc.Clamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO voice_config (id, api_key, assistant_id, phone_number_id, webhook_secret,
		                           calling_enabled, max_concurrent, max_attempts, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   api_key = excluded.api_key, assistant_id = excluded.assistant_id,
		   phone_number_id = excluded.phone_number_id, webhook_secret = excluded.webhook_secret,
		   calling_enabled = excluded.calling_enabled, max_concurrent = excluded.max_concurrent,
		   max_attempts = excluded.max_attempts, updated_at = excluded.updated_at`,
		vc.APIKey, vc.AssistantID, vc.PhoneNumberID, vc.WebhookSecret,
		vc.CallingEnabled, vc.MaxConcurrent, vc.MaxAttempts, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set voice config")
}

// Dispatch bookkeeping

func (s *SQLiteStore) ReserveCallable(ctx context.Context, campaignID string, maxConcurrent, maxAttempts, limit int) ([]model.CampaignBusiness, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin reserve")
	}
	defer tx.Rollback()

	var inFlight int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_businesses WHERE campaign_id = ? AND in_flight = 1`,
		campaignID,
	).Scan(&inFlight)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count in-flight")
	}

	slots := maxConcurrent - inFlight
	if limit > 0 && limit < slots {
		slots = limit
	}
	if slots <= 0 {
		return nil, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT campaign_id, business_id, position, attempts, in_flight, last_outcome, last_call_id, last_attempted_at
		 FROM campaign_businesses
		 WHERE campaign_id = ? AND in_flight = 0 AND attempts < ?
		   AND (last_outcome IS NULL OR last_outcome NOT IN (`+terminalPlaceholders()+`))
		 ORDER BY position LIMIT ?`,
		reserveArgs(campaignID, maxAttempts, slots)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select eligible")
	}
	links, err := collectLinks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range links {
		links[i].Attempts++
		links[i].InFlight = true
		links[i].LastAttemptedAt = &now
		_, err := tx.ExecContext(ctx,
			`UPDATE campaign_businesses
			 SET in_flight = 1, attempts = attempts + 1, last_attempted_at = ?
			 WHERE campaign_id = ? AND business_id = ?`,
			now, links[i].CampaignID, links[i].BusinessID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: reserve %s", links[i].BusinessID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit reserve")
	}
	return links, nil
}

func (s *SQLiteStore) ReleaseInFlight(ctx context.Context, campaignID, businessID string, outcome model.CallOutcome, refundAttempt bool) error {
	query := `UPDATE campaign_businesses SET in_flight = 0`
	var args []any

	if outcome != model.OutcomeNone {
		query += `, last_outcome = ?`
		args = append(args, string(outcome))
	}
	if refundAttempt {
		query += `, attempts = MAX(attempts - 1, 0)`
	}
	query += ` WHERE campaign_id = ? AND business_id = ?`
	args = append(args, campaignID, businessID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: release %s", businessID)
	}
	return checkRowsAffected(res, "campaign_business", businessID)
}

func (s *SQLiteStore) MarkDispatched(ctx context.Context, campaignID, businessID, callID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaign_businesses SET last_call_id = ?
		 WHERE campaign_id = ? AND business_id = ? AND in_flight = 1`,
		callID, campaignID, businessID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark dispatched %s", businessID)
	}
	return checkRowsAffected(res, "campaign_business", businessID)
}

func (s *SQLiteStore) CountInFlight(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_businesses WHERE campaign_id = ? AND in_flight = 1`,
		campaignID,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count in-flight")
}

func (s *SQLiteStore) CountEligible(ctx context.Context, campaignID string, maxAttempts int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_businesses
		 WHERE campaign_id = ? AND in_flight = 0 AND attempts < ?
		   AND (last_outcome IS NULL OR last_outcome NOT IN (`+terminalPlaceholders()+`))`,
		reserveArgs(campaignID, maxAttempts, -1)...,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count eligible")
}

func (s *SQLiteStore) FindByCallID(ctx context.Context, callID string) (*model.CampaignBusiness, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT campaign_id, business_id, position, attempts, in_flight, last_outcome, last_call_id, last_attempted_at
		 FROM campaign_businesses WHERE last_call_id = ?`,
		callID,
	)
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "call %s", callID)
	}
	return link, err
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

// marshalJSON stores nil collections as SQL NULL rather than "null".
func marshalJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return string(b)
}

func unmarshalJSON(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

// terminalPlaceholders returns "?, ?, ?, ?" matching terminalOutcomes.
func terminalPlaceholders() string {
	return strings.TrimSuffix(strings.Repeat("?, ", len(terminalOutcomes)), ", ")
}

// reserveArgs builds the argument list for the eligibility predicate. A
// negative limit omits the LIMIT argument.
func reserveArgs(campaignID string, maxAttempts, limit int) []any {
	args := []any{campaignID, maxAttempts}
	for _, o := range terminalOutcomes {
		args = append(args, string(o))
	}
	if limit >= 0 {
		args = append(args, limit)
	}
	return args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBusiness(row scannable) (*model.Business, error) {
	var b model.Business
	var types, allEmails, allPhones, people, socials sql.NullString
	var enrichedAt sql.NullTime

	err := row.Scan(&b.ID, &b.Name, &b.Phone, &b.Website, &b.Address, &b.Postcode, &types,
		&b.PrimaryEmail, &b.PrimaryPhone, &allEmails, &allPhones, &people,
		&socials, &b.BusinessDetails, &b.SiteData, &b.EnrichmentStatus, &enrichedAt, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan business")
	}

	for _, f := range []struct {
		col sql.NullString
		dst any
	}{
		{types, &b.Types},
		{allEmails, &b.AllEmails},
		{allPhones, &b.AllPhones},
		{people, &b.ContactPeople},
		{socials, &b.SocialLinks},
	} {
		if err := unmarshalJSON(f.col, f.dst); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal business field")
		}
	}
	if enrichedAt.Valid {
		b.EnrichedAt = &enrichedAt.Time
	}
	return &b, nil
}

func collectBusinesses(rows *sql.Rows) ([]model.Business, error) {
	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate businesses")
}

func scanLink(row scannable) (*model.CampaignBusiness, error) {
	var cb model.CampaignBusiness
	var outcome, callID sql.NullString
	var attemptedAt sql.NullTime

	err := row.Scan(&cb.CampaignID, &cb.BusinessID, &cb.Position, &cb.Attempts, &cb.InFlight,
		&outcome, &callID, &attemptedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan link")
	}

	cb.LastOutcome = model.CallOutcome(outcome.String)
	cb.LastCallID = callID.String
	if attemptedAt.Valid {
		cb.LastAttemptedAt = &attemptedAt.Time
	}
	return &cb, nil
}

func collectLinks(rows *sql.Rows) ([]model.CampaignBusiness, error) {
	var out []model.CampaignBusiness
	for rows.Next() {
		cb, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cb)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate links")
}
