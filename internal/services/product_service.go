package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// ProductService owns the product catalog, purchases and the daily
// earnings accrual. Accrual is idempotent per user product per calendar
// day: each row carries a last_accrual_date and the day's credit only
// happens when a conditional update on that date wins.
type ProductService struct {
	db        *sql.DB
	ledger    *LedgerService
	referrals *ReferralService
	validator *ValidationHelper
}

func NewProductService(db *sql.DB, ledger *LedgerService, referrals *ReferralService) *ProductService {
	return &ProductService{
		db:        db,
		ledger:    ledger,
		referrals: referrals,
		validator: NewValidationHelper(),
	}
}

// GetProduct fetches one catalog entry.
func (s *ProductService) GetProduct(productID string) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRow(`
		SELECT id, name, price, daily_earning, duration_days, COALESCE(image_url, ''), status, created_at, updated_at
		FROM products
		WHERE id = $1`, productID).Scan(
		&p.ID, &p.Name, &p.Price, &p.DailyEarning, &p.DurationDays, &p.ImageURL, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProducts returns catalog entries; activeOnly hides inactive ones
// from non-admin callers.
func (s *ProductService) ListProducts(activeOnly bool) ([]models.Product, error) {
	query := `
		SELECT id, name, price, daily_earning, duration_days, COALESCE(image_url, ''), status, created_at, updated_at
		FROM products`
	if activeOnly {
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DailyEarning, &p.DurationDays, &p.ImageURL, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateProduct adds a catalog entry (admin).
func (s *ProductService) CreateProduct(p *models.Product) error {
	if p.Price <= 0 || p.DailyEarning <= 0 {
		return ErrInvalidAmount
	}
	p.ID = uuid.New().String()
	if p.Status == "" {
		p.Status = models.ProductStatusActive
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO products (id, name, price, daily_earning, duration_days, image_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		p.ID, p.Name, p.Price, p.DailyEarning, p.DurationDays, p.ImageURL, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

// UpdateProduct updates mutable catalog fields (admin). Existing user
// products keep the daily earning they were purchased with.
func (s *ProductService) UpdateProduct(p *models.Product) error {
	if p.Price <= 0 || p.DailyEarning <= 0 {
		return ErrInvalidAmount
	}
	result, err := s.db.Exec(`
		UPDATE products
		SET name = $1, price = $2, daily_earning = $3, duration_days = $4, image_url = NULLIF($5, ''), status = $6, updated_at = $7
		WHERE id = $8`,
		p.Name, p.Price, p.DailyEarning, p.DurationDays, p.ImageURL, p.Status, time.Now(), p.ID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Purchase debits the price, creates the ownership row and fires the
// one-time purchase commission, all in one transaction.
func (s *ProductService) Purchase(accountID, productID string) (*models.UserProduct, error) {
	product, err := s.GetProduct(productID)
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductStatusActive {
		return nil, ErrProductNotFound
	}

	account, err := s.ledger.GetAccount(accountID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = s.ledger.ApplyTx(tx, accountID, Mutation{
		BalanceDelta: -product.Price,
		Type:         models.TxTypeProductPurchase,
		Reference:    product.ID,
	})
	if err != nil {
		return nil, err
	}

	up := &models.UserProduct{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		ProductID:     product.ID,
		DailyEarning:  product.DailyEarning,
		DaysRemaining: product.DurationDays,
		IsActive:      true,
		PurchasedAt:   time.Now(),
	}

	_, err = tx.Exec(`
		INSERT INTO user_products (id, account_id, product_id, daily_earning, days_remaining, total_earned, is_active, purchased_at)
		VALUES ($1, $2, $3, $4, $5, 0, TRUE, $6)`,
		up.ID, up.AccountID, up.ProductID, up.DailyEarning, up.DaysRemaining, up.PurchasedAt)
	if err != nil {
		return nil, err
	}

	if err := s.referrals.CreditCommissionTx(tx, account.ReferredBy, accountID, product.Price, s.referrals.PurchaseRate); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[PRODUCT] Account %s purchased product %s for %d", accountID, productID, product.Price)
	return up, nil
}

// AccrueDaily credits one day of earnings to every active user product
// that has not yet accrued for today. Safe to invoke any number of times
// per day: the per-row date guard makes the second pass a no-op. Returns
// the number of rows credited.
func (s *ProductService) AccrueDaily(ctx context.Context, now time.Time) (int, error) {
	today := now.Truncate(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM user_products
		WHERE is_active = TRUE AND (last_accrual_date IS NULL OR last_accrual_date < $1)
		ORDER BY id`, today)
	if err != nil {
		return 0, err
	}

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	credited := 0
	for _, id := range ids {
		ok, err := s.accrueOne(id, today)
		if err != nil {
			// One bad row must not starve the rest of the run.
			log.Printf("[ACCRUAL] Failed to accrue user product %s: %v", id, err)
			continue
		}
		if ok {
			credited++
		}
	}

	log.Printf("[ACCRUAL] Run for %s credited %d of %d candidates", today.Format("2006-01-02"), credited, len(ids))
	return credited, nil
}

// accrueOne processes a single user product for the given day. The
// conditional update on last_accrual_date is the idempotence guard: a
// concurrent or repeated run loses the update and backs off without
// crediting.
func (s *ProductService) accrueOne(userProductID string, today time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var up models.UserProduct
	err = tx.QueryRow(`
		UPDATE user_products
		SET last_accrual_date = $1,
		    days_remaining = days_remaining - 1,
		    total_earned = total_earned + daily_earning,
		    is_active = (days_remaining - 1 > 0)
		WHERE id = $2
		  AND is_active = TRUE
		  AND (last_accrual_date IS NULL OR last_accrual_date < $1)
		RETURNING id, account_id, product_id, daily_earning, days_remaining, total_earned, is_active`,
		today, userProductID).Scan(
		&up.ID, &up.AccountID, &up.ProductID, &up.DailyEarning, &up.DaysRemaining, &up.TotalEarned, &up.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			// Lost the guard: someone else accrued today already.
			return false, nil
		}
		return false, err
	}

	_, err = s.ledger.ApplyTx(tx, up.AccountID, Mutation{
		BalanceDelta:      up.DailyEarning,
		WithdrawableDelta: up.DailyEarning,
		EarningsDelta:     up.DailyEarning,
		Type:              models.TxTypeProductEarning,
		Reference:         up.ID,
	})
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(`
		INSERT INTO daily_earnings (id, account_id, user_product_id, amount, earning_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), up.AccountID, up.ID, up.DailyEarning, today, time.Now())
	if err != nil {
		return false, err
	}

	var referredBy *string
	if err := tx.QueryRow(`SELECT referred_by FROM accounts WHERE id = $1`, up.AccountID).Scan(&referredBy); err != nil {
		return false, err
	}
	if err := s.referrals.CreditCommissionTx(tx, referredBy, up.AccountID, up.DailyEarning, s.referrals.EarningRate); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// ListUserProducts returns an account's owned products, newest first.
func (s *ProductService) ListUserProducts(accountID string, activeOnly bool) ([]models.UserProduct, error) {
	query := `
		SELECT id, account_id, product_id, daily_earning, days_remaining, total_earned, is_active, last_accrual_date, purchased_at
		FROM user_products
		WHERE account_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY purchased_at DESC`

	rows, err := s.db.Query(query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userProducts := []models.UserProduct{}
	for rows.Next() {
		var up models.UserProduct
		if err := rows.Scan(&up.ID, &up.AccountID, &up.ProductID, &up.DailyEarning, &up.DaysRemaining,
			&up.TotalEarned, &up.IsActive, &up.LastAccrualDate, &up.PurchasedAt); err != nil {
			return nil, err
		}
		userProducts = append(userProducts, up)
	}
	return userProducts, rows.Err()
}

// ListEarnings returns an account's accrual history, newest first.
func (s *ProductService) ListEarnings(accountID string, limit int) ([]models.DailyEarning, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, user_product_id, amount, earning_date, created_at
		FROM daily_earnings
		WHERE account_id = $1
		ORDER BY earning_date DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	earnings := []models.DailyEarning{}
	for rows.Next() {
		var e models.DailyEarning
		if err := rows.Scan(&e.ID, &e.AccountID, &e.UserProductID, &e.Amount, &e.EarningDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		earnings = append(earnings, e)
	}
	return earnings, rows.Err()
}

// HTTP surface

// ListCatalog lists active products
// @Summary List products
// @Tags products
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{products=[]models.Product,count=int}
// @Router /products [get]
func (s *ProductService) ListCatalog(w http.ResponseWriter, r *http.Request) {
	products, err := s.ListProducts(true)
	if err != nil {
		log.Printf("[PRODUCT] Failed to list products: %v", err)
		SendErrorResponse(w, "Failed to fetch products", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// PurchaseProduct buys a product for the authenticated user
// @Summary Purchase product
// @Description Debit the product price and start daily earnings
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Success 201 {object} models.UserProduct
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /products/{productId}/purchase [post]
func (s *ProductService) PurchaseProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	productID := chi.URLParam(r, "productId")
	up, err := s.Purchase(userID, productID)
	if err != nil {
		SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(up)
}

// ListMyProducts lists the caller's owned products
// @Summary List owned products
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active products"
// @Success 200 {object} object{userProducts=[]models.UserProduct,count=int}
// @Router /user-products [get]
func (s *ProductService) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	userProducts, err := s.ListUserProducts(userID, activeOnly)
	if err != nil {
		log.Printf("[PRODUCT] Failed to list user products for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch user products", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"userProducts": userProducts,
		"count":        len(userProducts),
	})
}

// ListMyEarnings lists the caller's accrual history
// @Summary List earnings history
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of rows (default 30, max 100)"
// @Success 200 {object} object{earnings=[]models.DailyEarning,count=int}
// @Router /earnings [get]
func (s *ProductService) ListMyEarnings(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 30, 100)
	earnings, err := s.ListEarnings(userID, limit)
	if err != nil {
		log.Printf("[PRODUCT] Failed to list earnings for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch earnings", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"earnings": earnings,
		"count":    len(earnings),
	})
}

// Admin HTTP surface

// AdminCreateProduct creates a catalog entry
// @Summary Create product (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param product body object{name=string,price=int64,dailyEarning=int64,durationDays=int,imageUrl=string} true "Product"
// @Success 201 {object} models.Product
// @Failure 400 {object} ErrorResponse
// @Router /admin/products [post]
func (s *ProductService) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name" validate:"required,max=100"`
		Price        int64  `json:"price" validate:"required,gt=0"`
		DailyEarning int64  `json:"dailyEarning" validate:"required,gt=0"`
		DurationDays int    `json:"durationDays" validate:"required,gt=0"`
		ImageURL     string `json:"imageUrl" validate:"omitempty,max=500"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	product := &models.Product{
		Name:         req.Name,
		Price:        req.Price,
		DailyEarning: req.DailyEarning,
		DurationDays: req.DurationDays,
		ImageURL:     req.ImageURL,
	}
	if err := s.CreateProduct(product); err != nil {
		SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(product)
}

// AdminUpdateProduct updates a catalog entry
// @Summary Update product (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Param product body object{name=string,price=int64,dailyEarning=int64,durationDays=int,imageUrl=string,status=string} true "Product"
// @Success 200 {object} models.Product
// @Failure 404 {object} ErrorResponse
// @Router /admin/products/{productId} [put]
func (s *ProductService) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req struct {
		Name         string `json:"name" validate:"required,max=100"`
		Price        int64  `json:"price" validate:"required,gt=0"`
		DailyEarning int64  `json:"dailyEarning" validate:"required,gt=0"`
		DurationDays int    `json:"durationDays" validate:"required,gt=0"`
		ImageURL     string `json:"imageUrl" validate:"omitempty,max=500"`
		Status       string `json:"status" validate:"required,oneof=active inactive"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	product := &models.Product{
		ID:           productID,
		Name:         req.Name,
		Price:        req.Price,
		DailyEarning: req.DailyEarning,
		DurationDays: req.DurationDays,
		ImageURL:     req.ImageURL,
		Status:       req.Status,
	}
	if err := s.UpdateProduct(product); err != nil {
		SendEngineError(w, err)
		return
	}

	updated, err := s.GetProduct(productID)
	if err != nil {
		SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// AdminListProducts lists the full catalog including inactive entries
// @Summary List all products (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{products=[]models.Product,count=int}
// @Router /admin/products [get]
func (s *ProductService) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.ListProducts(false)
	if err != nil {
		log.Printf("[PRODUCT] Failed to list products: %v", err)
		SendErrorResponse(w, "Failed to fetch products", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}
