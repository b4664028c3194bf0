package postgres

// Migrations: схема MiniPoints. Встроена в код для упрощения деплоя,
// применяется при старте бота и командой minipointsctl migrate.
var Migrations = []Migration{
	{1, "users", migration001Users},
	{2, "catalog", migration002Catalog},
	{3, "transactions", migration003Transactions},
	{4, "rules", migration004Rules},
	{5, "missions", migration005Missions},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(64) UNIQUE NOT NULL,
    display_name VARCHAR(255) NOT NULL,
    avatar_color VARCHAR(32) NOT NULL DEFAULT '#6366f1',
    balance BIGINT NOT NULL DEFAULT 0 CONSTRAINT users_balance_non_negative CHECK (balance >= 0),
    external_id VARCHAR(64) UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Строка с id = -1 зарезервирована под пометку "steal" в транзакциях.
// Все выборки каталога фильтруют id > 0.
var migration002Catalog = `
CREATE TABLE IF NOT EXISTS catalog_items (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    price BIGINT NOT NULL CHECK (price > 0),
    slug VARCHAR(128) UNIQUE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

INSERT INTO catalog_items (id, name, description, price, slug)
VALUES (-1, 'Steal', 'Reserved marker for steal transactions', 1, '__steal__')
ON CONFLICT (id) DO NOTHING;
`

var migration003Transactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    sender_id BIGINT NOT NULL REFERENCES users(id),
    receiver_id BIGINT NOT NULL REFERENCES users(id),
    amount BIGINT NOT NULL CHECK (amount > 0),
    item_id BIGINT REFERENCES catalog_items(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (sender_id <> receiver_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(sender_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(receiver_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_item ON transactions(item_id);
`

var migration004Rules = `
CREATE TABLE IF NOT EXISTS rules (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    type VARCHAR(64) NOT NULL,
    parameters JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration005Missions = `
CREATE TABLE IF NOT EXISTS missions (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    reward BIGINT NOT NULL DEFAULT 0 CHECK (reward >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS active_missions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    mission_id BIGINT NOT NULL REFERENCES missions(id),
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    assigned_on DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ,
    UNIQUE (user_id, assigned_on)
);

CREATE INDEX IF NOT EXISTS idx_active_missions_day ON active_missions(assigned_on);
`
