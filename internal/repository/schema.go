package repository

import "strings"

// Table definitions shared by both drivers. {{PK}} expands to the
// driver's auto-increment primary key column type.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id {{PK}},
		seller_id BIGINT NOT NULL DEFAULT 0,
		name VARCHAR(200) NOT NULL,
		base_price DECIMAL(12,2) NOT NULL,
		sku VARCHAR(100) NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		UNIQUE (sku)
	)`,
	`CREATE TABLE IF NOT EXISTS product_variants (
		id {{PK}},
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		color VARCHAR(50) NOT NULL DEFAULT '',
		size VARCHAR(50) NOT NULL DEFAULT '',
		price DECIMAL(12,2) NOT NULL,
		sku VARCHAR(100) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (sku),
		UNIQUE (product_id, color, size)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		target_kind VARCHAR(16) NOT NULL,
		target_id BIGINT NOT NULL,
		available_stock INTEGER NOT NULL DEFAULT 0 CHECK (available_stock >= 0),
		reserved_stock INTEGER NOT NULL DEFAULT 0 CHECK (reserved_stock >= 0),
		low_stock_threshold INTEGER NOT NULL DEFAULT 10,
		warehouse_location VARCHAR(200) NOT NULL DEFAULT '',
		last_restocked DATETIME NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (target_kind, target_id)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_logs (
		id {{PK}},
		target_kind VARCHAR(16) NOT NULL,
		target_id BIGINT NOT NULL,
		change_type VARCHAR(20) NOT NULL,
		quantity_change INTEGER NOT NULL,
		previous_quantity INTEGER NOT NULL,
		new_quantity INTEGER NOT NULL,
		reserved_change INTEGER NOT NULL DEFAULT 0,
		reason VARCHAR(255) NOT NULL DEFAULT '',
		reference_id VARCHAR(100) NOT NULL DEFAULT '',
		actor VARCHAR(100) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		token VARCHAR(36) NOT NULL PRIMARY KEY,
		target_kind VARCHAR(16) NOT NULL,
		target_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		status VARCHAR(16) NOT NULL,
		reference VARCHAR(100) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id {{PK}},
		user_id VARCHAR(64) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id {{PK}},
		cart_id BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		target_kind VARCHAR(16) NOT NULL,
		target_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		added_at DATETIME NOT NULL,
		UNIQUE (cart_id, target_kind, target_id)
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id {{PK}},
		code VARCHAR(50) NOT NULL,
		discount_type VARCHAR(20) NOT NULL,
		discount_value DECIMAL(12,2) NOT NULL,
		start_date DATETIME NOT NULL,
		expiry_date DATETIME NOT NULL,
		max_uses INTEGER NULL,
		used_count INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (code)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id {{PK}},
		user_id VARCHAR(64) NOT NULL,
		order_number VARCHAR(100) NOT NULL,
		shipping_address_id BIGINT NULL,
		billing_address_id BIGINT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		discount_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		shipping_cost DECIMAL(12,2) NOT NULL DEFAULT 0,
		tax_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		total_amount DECIMAL(12,2) NOT NULL,
		coupon_id BIGINT NULL REFERENCES coupons(id),
		status VARCHAR(20) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (order_number)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id {{PK}},
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		target_kind VARCHAR(16) NOT NULL,
		target_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price DECIMAL(12,2) NOT NULL,
		total_price DECIMAL(12,2) NOT NULL,
		discount_applied DECIMAL(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
		id {{PK}},
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL,
		notes VARCHAR(255) NOT NULL DEFAULT '',
		actor VARCHAR(100) NOT NULL DEFAULT '',
		changed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id {{PK}},
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		method VARCHAR(50) NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		transaction_id VARCHAR(200) NULL,
		payment_gateway VARCHAR(100) NOT NULL DEFAULT '',
		payment_date DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (order_id),
		UNIQUE (transaction_id)
	)`,
	`CREATE TABLE IF NOT EXISTS wishlist_items (
		id {{PK}},
		user_id VARCHAR(64) NOT NULL,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, product_id)
	)`,
}

var indexes = []string{
	`CREATE INDEX {{IFNE}} idx_inventory_logs_target ON inventory_logs (target_kind, target_id, id)`,
	`CREATE INDEX {{IFNE}} idx_reservations_expiry ON reservations (status, expires_at)`,
	`CREATE INDEX {{IFNE}} idx_reservations_reference ON reservations (reference, status)`,
	`CREATE INDEX {{IFNE}} idx_orders_user ON orders (user_id, created_at)`,
	`CREATE INDEX {{IFNE}} idx_order_items_order ON order_items (order_id)`,
	`CREATE INDEX {{IFNE}} idx_order_history_order ON order_status_history (order_id)`,
}

func schemaFor(driver string) []string {
	pk, ifne := "INTEGER PRIMARY KEY AUTOINCREMENT", "IF NOT EXISTS"
	if driver == DriverMySQL {
		pk, ifne = "BIGINT PRIMARY KEY AUTO_INCREMENT", ""
	}
	r := strings.NewReplacer("{{PK}}", pk, "{{IFNE}}", ifne)

	stmts := make([]string, 0, len(tables)+len(indexes))
	for _, s := range tables {
		stmts = append(stmts, r.Replace(s))
	}
	for _, s := range indexes {
		stmts = append(stmts, r.Replace(s))
	}
	return stmts
}
