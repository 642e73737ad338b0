package sqlstore

// schema is applied in order; every statement is idempotent. {{ts}} is the
// dialect's timestamp type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		source TEXT NOT NULL,
		portal_lead_id TEXT,
		listing_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		project_phase TEXT NOT NULL DEFAULT '',
		required_skills TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		assigned_user_id TEXT NOT NULL DEFAULT '',
		sla_status TEXT NOT NULL DEFAULT 'on_track',
		first_response_at {{ts}},
		tags TEXT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS leads_source_portal_lead_id ON leads (source, portal_lead_id)`,
	`CREATE INDEX IF NOT EXISTS leads_source_email ON leads (source, email, listing_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS leads_source_phone ON leads (source, phone, listing_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS leads_assignee_status ON leads (assigned_user_id, status)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL UNIQUE REFERENCES leads (id),
		project_id TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		channel_overridden BOOLEAN NOT NULL DEFAULT FALSE,
		assignee_user_id TEXT NOT NULL DEFAULT '',
		last_msg_at {{ts}},
		unread_count INTEGER NOT NULL DEFAULT 0,
		message_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		sla_status TEXT NOT NULL DEFAULT 'on_track',
		sla_deadline {{ts}},
		version BIGINT NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conv_id TEXT NOT NULL REFERENCES conversations (id),
		direction TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		html TEXT NOT NULL DEFAULT '',
		attachments TEXT,
		sender TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		sla_impact BOOLEAN NOT NULL DEFAULT FALSE,
		external_id TEXT,
		template_id TEXT NOT NULL DEFAULT '',
		seq BIGINT NOT NULL,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conv_order ON messages (conv_id, created_at, seq)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS messages_conv_external_id ON messages (conv_id, external_id)`,

	`CREATE TABLE IF NOT EXISTS sla_trackers (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL UNIQUE,
		project_id TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		first_response_deadline {{ts}} NOT NULL,
		at_risk_at {{ts}} NOT NULL,
		first_response_at {{ts}},
		sla_status TEXT NOT NULL,
		escalation_level INTEGER NOT NULL DEFAULT 0,
		escalation_history TEXT,
		business_hours_only BOOLEAN NOT NULL DEFAULT FALSE,
		last_escalation_at {{ts}},
		computation_error TEXT NOT NULL DEFAULT '',
		version BIGINT NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sla_trackers_open ON sla_trackers (first_response_at, first_response_deadline)`,

	`CREATE TABLE IF NOT EXISTS sla_configs (
		project_id TEXT PRIMARY KEY,
		first_response_minutes INTEGER NOT NULL,
		at_risk_fraction DOUBLE PRECISION NOT NULL DEFAULT 0,
		business_hours TEXT,
		escalation_levels TEXT,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS assignment_rules (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		conditions TEXT,
		assignment TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS assignment_rules_project ON assignment_rules (project_id, priority)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		severity TEXT NOT NULL,
		occurred_at {{ts}} NOT NULL,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_entity ON audit_logs (entity_type, entity_id, occurred_at)`,
}
