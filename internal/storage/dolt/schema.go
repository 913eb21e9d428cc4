package dolt

// migrations run in order on every open. Each is idempotent.
var migrations = []struct {
	name string
	stmt string
}{
	{"tasks", `CREATE TABLE IF NOT EXISTS tasks (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(500) NOT NULL,
    description TEXT,
    deadline VARCHAR(255) NOT NULL DEFAULT '',
    priority VARCHAR(32) NOT NULL DEFAULT 'Low',
    status VARCHAR(32) NOT NULL DEFAULT 'Pending',
    owner_id VARCHAR(64) NOT NULL,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    INDEX idx_tasks_owner_created (owner_id, created_at)
)`},
	{"users", `CREATE TABLE IF NOT EXISTS users (
    uid VARCHAR(64) PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    name VARCHAR(255) NOT NULL DEFAULT '',
    username VARCHAR(255) NOT NULL DEFAULT '',
    phone_number VARCHAR(64) NOT NULL DEFAULT '',
    profile_picture_url VARCHAR(1024) NOT NULL DEFAULT '',
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL
)`},
	// email_key is the lower-cased email.
	{"accounts", `CREATE TABLE IF NOT EXISTS accounts (
    uid VARCHAR(64) PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    email_key VARCHAR(255) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    UNIQUE INDEX idx_accounts_email_key (email_key)
)`},
}
