package postgresql

// migrations returns the schema migrations, keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS lease_exits (
				id TEXT PRIMARY KEY,
				lease_id TEXT NOT NULL,
				lease_type TEXT NOT NULL DEFAULT '',
				property_details JSONB NOT NULL DEFAULT '{}',
				status TEXT NOT NULL,
				current_step_id TEXT NOT NULL DEFAULT '',
				steps JSONB NOT NULL DEFAULT '[]',
				transitions JSONB NOT NULL DEFAULT '[]',
				approval_chain JSONB NOT NULL DEFAULT '[]',
				forms JSONB NOT NULL DEFAULT '{}',
				step_history JSONB NOT NULL DEFAULT '[]',
				exit_date TIMESTAMP WITH TIME ZONE,
				created_by TEXT NOT NULL DEFAULT '',
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				revision BIGINT NOT NULL DEFAULT 1
			);

			CREATE INDEX IF NOT EXISTS idx_lease_exits_status ON lease_exits(status);
			CREATE INDEX IF NOT EXISTS idx_lease_exits_lease_id ON lease_exits(lease_id);

			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				lease_exit_id TEXT NOT NULL,
				recipient_role TEXT NOT NULL,
				recipient_email TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				sent_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_notifications_lease_exit ON notifications(lease_exit_id);
			CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);

			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				full_name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE
			);

			CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
		`,
	}
}
