package models

// InternalSchema holds the DDL for the analytics database, applied by
// the init command. Statements are ordered so foreign key references
// resolve.
var InternalSchema = []string{
	`CREATE TABLE IF NOT EXISTS stores (
		store_id    INTEGER PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		address     TEXT NOT NULL,
		city        VARCHAR(100) NOT NULL,
		postal_code VARCHAR(20) NOT NULL,
		phone       VARCHAR(20)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id  INTEGER PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		category_id VARCHAR(100) NOT NULL,
		price       DOUBLE PRECISION NOT NULL,
		description TEXT,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id        INTEGER PRIMARY KEY,
		first_name         VARCHAR(100) NOT NULL,
		last_name          VARCHAR(100) NOT NULL,
		email              VARCHAR(255) UNIQUE,
		phone              VARCHAR(20),
		address            TEXT,
		registration_date  TIMESTAMP NOT NULL,
		last_purchase_date TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		sale_id       SERIAL PRIMARY KEY,
		bill_id       VARCHAR(50) NOT NULL UNIQUE,
		product_id    INTEGER NOT NULL REFERENCES products (product_id),
		customer_id   INTEGER NOT NULL REFERENCES customers (customer_id),
		store_id      INTEGER NOT NULL REFERENCES stores (store_id),
		quantity      INTEGER NOT NULL,
		unit_price    DOUBLE PRECISION NOT NULL,
		total_price   DOUBLE PRECISION NOT NULL,
		purchase_date TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_purchase_date ON sales (purchase_date)`,
	`CREATE TABLE IF NOT EXISTS sync_logs (
		log_id           SERIAL PRIMARY KEY,
		sync_start       TIMESTAMP NOT NULL,
		sync_end         TIMESTAMP,
		table_name       VARCHAR(100) NOT NULL,
		records_fetched  INTEGER NOT NULL DEFAULT 0,
		records_inserted INTEGER NOT NULL DEFAULT 0,
		records_updated  INTEGER NOT NULL DEFAULT 0,
		records_failed   INTEGER NOT NULL DEFAULT 0,
		status           VARCHAR(20) NOT NULL,
		error_message    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_table_status ON sync_logs (table_name, status)`,
}

// SyncOrder lists the tables in foreign-key-safe sync order. Stores are
// always synced first so sales rows can reference them.
var SyncOrder = []string{"stores", "products", "customers", "sales"}
