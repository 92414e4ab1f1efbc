// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"
	"time"

	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/cart"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/coupon"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/inventory"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/order"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Define all models that need migration in dependency order
	models := []interface{}{
		// Catalog domain - Base tables
		&product.Category{},
		&product.Brand{},
		&product.Product{},
		&product.ProductVariant{},

		// Coupon domain
		&coupon.Coupon{},

		// Cart domain
		&cart.Item{},

		// Order domain - Dependent tables
		&order.Order{},
		&order.OrderItem{},
		&order.PaymentTransaction{},
		&order.OrderStatusHistory{},
		&order.StockReleaseJob{},

		// Inventory audit trail
		&inventory.StockMovement{},
	}

	// Run auto-migration for each model
	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_category_active ON products(category_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)",
		"CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku)",
		"CREATE INDEX IF NOT EXISTS idx_products_slug ON products(slug)",

		// Product variant indexes
		"CREATE INDEX IF NOT EXISTS idx_product_variants_product_active ON product_variants(product_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_product_variants_sku ON product_variants(sku)",

		// Coupon indexes
		"CREATE INDEX IF NOT EXISTS idx_coupons_code_active ON coupons(code, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_coupons_ends_at ON coupons(ends_at)",

		// Cart indexes
		"CREATE INDEX IF NOT EXISTS idx_cart_items_user_product ON cart_items(user_id, product_id)",
		"CREATE INDEX IF NOT EXISTS idx_cart_items_created_at ON cart_items(created_at DESC)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_payment_status ON orders(payment_status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_order_number ON orders(order_number)",
		"CREATE INDEX IF NOT EXISTS idx_orders_email ON orders(email)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)",

		// Order items indexes
		"CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)",

		// Payment transaction indexes
		"CREATE INDEX IF NOT EXISTS idx_payment_transactions_order_id ON payment_transactions(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_payment_transactions_gateway_ref ON payment_transactions(gateway_ref)",
		"CREATE INDEX IF NOT EXISTS idx_payment_transactions_status ON payment_transactions(status)",
		"CREATE INDEX IF NOT EXISTS idx_payment_transactions_order_status ON payment_transactions(order_id, status)",

		// Order status history indexes
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_status ON order_status_history(status)",

		// Stock movement indexes
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_product ON stock_movements(product_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_reference ON stock_movements(reference_type, reference_id)",

		// Stock release job indexes
		"CREATE INDEX IF NOT EXISTS idx_stock_release_jobs_due ON stock_release_jobs(status, next_run_at)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts initial data into the database
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	if err := m.seedTestProducts(); err != nil {
		return fmt.Errorf("failed to seed test products: %w", err)
	}

	if err := m.seedTestCoupons(); err != nil {
		return fmt.Errorf("failed to seed test coupons: %w", err)
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

// seedCategories creates default product categories
func (m *Migration) seedCategories() error {
	log.Println("🏷️ Seeding categories...")

	categories := []product.Category{
		{
			Name:        "Scrub Sets",
			Slug:        "scrub-sets",
			Description: "Matching scrub tops and pants for medical professionals",
			SortOrder:   1,
			IsActive:    true,
		},
		{
			Name:        "Lab Coats",
			Slug:        "lab-coats",
			Description: "Professional lab coats in classic and modern fits",
			SortOrder:   2,
			IsActive:    true,
		},
		{
			Name:        "Scrub Tops",
			Slug:        "scrub-tops",
			Description: "Individual scrub tops in a range of colors and cuts",
			SortOrder:   3,
			IsActive:    true,
		},
		{
			Name:        "Scrub Pants",
			Slug:        "scrub-pants",
			Description: "Comfortable scrub pants with practical pocket layouts",
			SortOrder:   4,
			IsActive:    true,
		},
		{
			Name:        "Footwear & Accessories",
			Slug:        "footwear-accessories",
			Description: "Clogs, compression socks, badge reels and more",
			SortOrder:   5,
			IsActive:    true,
		},
	}

	for _, category := range categories {
		var existing product.Category
		result := m.db.Where("slug = ?", category.Slug).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&category).Error; err != nil {
				return err
			}
			log.Printf("✅ Created category: %s", category.Name)
		} else {
			log.Printf("⏭️ Category already exists: %s", category.Name)
		}
	}

	return nil
}

// seedTestProducts creates test products for checkout testing
func (m *Migration) seedTestProducts() error {
	log.Println("🛍️ Seeding test products...")

	var productCount int64
	m.db.Model(&product.Product{}).Count(&productCount)
	if productCount >= 3 {
		log.Println("⏭️ Test products already exist")
		return nil
	}

	testProducts := []product.Product{
		{
			SKU:            "SCRUB-SET-CLASSIC",
			Name:           "Classic Scrub Set",
			Slug:           "classic-scrub-set",
			Description:    "Two-piece scrub set in durable poly-cotton blend. V-neck top with chest pocket and straight-leg pants with drawstring waist.",
			Price:          4599, // $45.99
			CategoryID:     1,
			IsActive:       true,
			Quantity:       120,
			AllowBackorder: false,
		},
		{
			SKU:            "LAB-COAT-PRO",
			Name:           "Professional Lab Coat",
			Slug:           "professional-lab-coat",
			Description:    "Full-length lab coat with three pockets, notched lapel and side access slits. Wrinkle-resistant fabric.",
			Price:          3899, // $38.99
			CategoryID:     2,
			IsActive:       true,
			Quantity:       80,
			AllowBackorder: false,
		},
		{
			SKU:            "SCRUB-TOP-FLEX",
			Name:           "Flex Scrub Top",
			Slug:           "flex-scrub-top",
			Description:    "Four-way stretch scrub top with two front pockets and side vents for ease of movement.",
			Price:          2499, // $24.99
			CategoryID:     3,
			IsActive:       true,
			Quantity:       200,
			AllowBackorder: true,
		},
	}

	for _, prod := range testProducts {
		var existing product.Product
		result := m.db.Where("sku = ?", prod.SKU).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&prod).Error; err != nil {
				log.Printf("⚠️ Failed to create test product %s: %v", prod.SKU, err)
			} else {
				log.Printf("✅ Created test product: %s", prod.Name)
			}
		} else {
			log.Printf("⏭️ Product already exists: %s", prod.Name)
		}
	}

	return nil
}

// seedTestCoupons creates sample coupons for checkout testing
func (m *Migration) seedTestCoupons() error {
	log.Println("🎟️ Seeding test coupons...")

	usageLimit := 1000
	endsAt := time.Now().UTC().AddDate(1, 0, 0)

	testCoupons := []coupon.Coupon{
		{
			Code:          "WELCOME10",
			Type:          coupon.DiscountTypePercentage,
			Value:         10,
			MinimumAmount: 2000, // $20.00
			StartsAt:      time.Now().UTC().AddDate(0, 0, -1),
			EndsAt:        &endsAt,
			UsageLimit:    &usageLimit,
			IsActive:      true,
		},
		{
			Code:          "SAVE5",
			Type:          coupon.DiscountTypeFixedAmount,
			Value:         500, // $5.00 off
			MinimumAmount: 2500,
			StartsAt:      time.Now().UTC().AddDate(0, 0, -1),
			IsActive:      true,
		},
	}

	for _, c := range testCoupons {
		var existing coupon.Coupon
		result := m.db.Where("code = ?", c.Code).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&c).Error; err != nil {
				log.Printf("⚠️ Failed to create test coupon %s: %v", c.Code, err)
			} else {
				log.Printf("✅ Created test coupon: %s", c.Code)
			}
		} else {
			log.Printf("⏭️ Coupon already exists: %s", c.Code)
		}
	}

	return nil
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	log.Println("⚠️ WARNING: Dropping all database tables...")

	// Define tables in reverse dependency order
	tables := []string{
		"stock_release_jobs",
		"stock_movements",
		"order_status_history",
		"payment_transactions",
		"order_items",
		"orders",
		"cart_items",
		"coupons",
		"product_variants",
		"products",
		"brands",
		"categories",
	}

	for _, table := range tables {
		if err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			log.Printf("⚠️ Failed to drop table %s: %v", table, err)
		} else {
			log.Printf("🗑️ Dropped table: %s", table)
		}
	}

	log.Println("✅ All tables dropped successfully")
	return nil
}

// GetTableInfo returns information about database tables
func (m *Migration) GetTableInfo() error {
	var tables []string

	if err := m.db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename").Scan(&tables).Error; err != nil {
		return err
	}

	log.Println("📊 Database Tables Information:")
	log.Println("================================")

	totalRecords := int64(0)
	for _, table := range tables {
		var count int64
		m.db.Table(table).Count(&count)
		totalRecords += count

		status := "✅"
		if count == 0 {
			status = "📭"
		}

		log.Printf("%s %-25s | %d records", status, table, count)
	}

	log.Println("================================")
	log.Printf("📈 Total records across all tables: %d", totalRecords)
	log.Printf("🗂️ Total tables: %d", len(tables))

	return nil
}
