package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/restopos/internal/config"
	"github.com/example/restopos/internal/database"
	"github.com/example/restopos/internal/handlers"
	"github.com/example/restopos/internal/middleware"
	"github.com/example/restopos/internal/models"
	"github.com/example/restopos/internal/services"
	"github.com/example/restopos/internal/utils"
)

const (
	adminEmail    = "admin@restopos.test"
	adminPassword = "admin-secret"
)

type apiClient struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()

	db, err := database.Open(":memory:", logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := zap.NewNop()
	require.NoError(t, database.SeedAdmin(db, adminEmail, adminPassword, log))

	cfg := &config.Config{
		JWTSecret:         "test-secret",
		TokenExpires:      time.Hour,
		CacheTTL:          time.Minute,
		RateLimitMax:      500,
		LoginRateLimitMax: 10,
		RateLimitWindow:   15 * time.Minute,
	}
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	app.Use(middleware.RequestLogger(log))
	Register(app, db, cfg, services.NopCache{}, services.NopNotifier{}, log)

	return &apiClient{t: t, app: app, db: db}
}

func (a *apiClient) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (a *apiClient) login(email, password string) string {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, status, body)
	return body["token"].(string)
}

func (a *apiClient) staff(adminToken, name, role, password string) string {
	a.t.Helper()
	email := role + "@restopos.test"
	status, body := a.do(http.MethodPost, "/api/users", adminToken, fiber.Map{
		"name": name, "email": email, "password": password, "role": role,
	})
	require.Equal(a.t, http.StatusCreated, status, body)
	return a.login(email, password)
}

func data(body map[string]any) map[string]any {
	return body["data"].(map[string]any)
}

func errorBody(body map[string]any) map[string]any {
	return body["error"].(map[string]any)
}

func TestHealthAndAuthentication(t *testing.T) {
	api := newAPI(t)

	status, body := api.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = api.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = api.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": adminEmail, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(services.KindInvalidCredentials), errorBody(body)["kind"])

	token := api.login(adminEmail, adminPassword)
	status, body = api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.RoleAdmin, body["user"].(map[string]any)["role"])

	status, body = api.do(http.MethodPost, "/api/users", token, fiber.Map{
		"name": "Dup", "email": adminEmail, "password": "whatever", "role": models.RoleWaiter,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.KindDuplicateEmail), errorBody(body)["kind"])
}

func TestRolesGateRoutes(t *testing.T) {
	api := newAPI(t)
	admin := api.login(adminEmail, adminPassword)
	cook := api.staff(admin, "Carla", models.RoleCook, "cook-pass")

	status, _ := api.do(http.MethodPost, "/api/orders", cook, fiber.Map{"kind": models.OrderKindCounter})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodGet, "/api/payments", cook, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodGet, "/api/kitchen", cook, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestOrderToSettlementOverHTTP(t *testing.T) {
	api := newAPI(t)
	admin := api.login(adminEmail, adminPassword)
	waiter := api.staff(admin, "Walt", models.RoleWaiter, "waiter-pass")
	cashier := api.staff(admin, "Cass", models.RoleCashier, "cashier-pass")

	status, body := api.do(http.MethodPost, "/api/tables", admin, fiber.Map{"number": 8})
	require.Equal(t, http.StatusCreated, status, body)
	tableID := data(body)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/tables", admin, fiber.Map{"number": 8})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.KindDuplicateTableNumber), errorBody(body)["kind"])

	status, body = api.do(http.MethodPost, "/api/products", admin, fiber.Map{
		"name": "Feijoada", "price": "50.00", "stock_quantity": 3, "stock_minimum": 1,
	})
	require.Equal(t, http.StatusCreated, status, body)
	productID := data(body)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/orders", waiter, fiber.Map{"table_id": tableID})
	require.Equal(t, http.StatusCreated, status, body)
	orderID := data(body)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/orders", waiter, fiber.Map{"table_id": tableID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, orderID, errorBody(body)["order_id"])

	status, body = api.do(http.MethodPost, "/api/orders/"+orderID+"/items", waiter, fiber.Map{"product_id": productID, "quantity": 5})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.KindInsufficientStock), errorBody(body)["kind"])
	assert.EqualValues(t, 3, errorBody(body)["available"])

	status, body = api.do(http.MethodPost, "/api/orders/"+orderID+"/items", waiter, fiber.Map{"product_id": productID, "quantity": 2})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = api.do(http.MethodGet, "/api/tables/"+tableID, waiter, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.TableStatusOccupied, data(body)["status"])

	status, body = api.do(http.MethodPost, "/api/payments", cashier, fiber.Map{"order_id": orderID, "method": "pix", "amount": 80})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "20.00", data(body)["restante"])
	assert.Equal(t, false, data(body)["pagamento_completo"])

	status, body = api.do(http.MethodPost, "/api/payments", cashier, fiber.Map{"order_id": orderID, "method": "cash", "amount": 30})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.KindOverpayment), errorBody(body)["kind"])
	assert.Equal(t, "20.00", errorBody(body)["valor_restante"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/close", cashier, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.KindIncompletePayment), errorBody(body)["kind"])

	status, body = api.do(http.MethodPost, "/api/payments", cashier, fiber.Map{"order_id": orderID, "method": "cash", "amount": "20"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, data(body)["pagamento_completo"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/close", cashier, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, models.OrderStatusPaid, data(body)["status"])

	status, body = api.do(http.MethodGet, "/api/tables/"+tableID, waiter, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.TableStatusFree, data(body)["status"])

	status, body = api.do(http.MethodGet, "/api/payments/summary", cashier, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, data(body)["orders"])

	status, _ = api.do(http.MethodGet, "/api/reports/products", cashier, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodGet, "/api/reports/products", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Feijoada", rows[0].(map[string]any)["product_name"])
	assert.EqualValues(t, 2, rows[0].(map[string]any)["quantity"])

	status, body = api.do(http.MethodGet, "/api/reports/sales?from="+time.Now().UTC().Format(time.DateOnly), admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, data(body)["totals"].(map[string]any)["orders"])

	status, _ = api.do(http.MethodGet, "/api/reports/waiters?to=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAddItemQuantityDefaultsToOne(t *testing.T) {
	api := newAPI(t)
	admin := api.login(adminEmail, adminPassword)

	status, body := api.do(http.MethodPost, "/api/products", admin, fiber.Map{"name": "Espresso", "price": "7.50"})
	require.Equal(t, http.StatusCreated, status, body)
	productID := data(body)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/orders", admin, fiber.Map{"kind": models.OrderKindCounter})
	require.Equal(t, http.StatusCreated, status, body)
	orderID := data(body)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/orders/"+orderID+"/items", admin, fiber.Map{"product_id": productID})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, data(body)["quantity"])

	status, body = api.do(http.MethodPost, "/api/orders/"+orderID+"/items", admin, fiber.Map{"product_id": productID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(services.KindInvalidQuantity), errorBody(body)["kind"])
}

func TestCancelOverHTTP(t *testing.T) {
	api := newAPI(t)
	admin := api.login(adminEmail, adminPassword)
	waiter := api.staff(admin, "Walt", models.RoleWaiter, "waiter-pass")

	status, body := api.do(http.MethodPost, "/api/orders", waiter, fiber.Map{"kind": models.OrderKindCounter, "customer_name": "Bia"})
	require.Equal(t, http.StatusCreated, status, body)
	orderID := data(body)["id"].(string)

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", waiter, fiber.Map{"password": "waiter-pass"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(services.KindForbiddenRole), errorBody(body)["kind"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", waiter, fiber.Map{"reason": "no password"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(services.KindForbiddenRole), errorBody(body)["kind"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", admin, fiber.Map{})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(services.KindForbiddenPassword), errorBody(body)["kind"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", admin, fiber.Map{"password": "nope"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(services.KindForbiddenPassword), errorBody(body)["kind"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", admin, fiber.Map{"password": adminPassword, "reason": "test"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, models.OrderStatusCancelled, data(body)["status"])
}

func TestRequestValidation(t *testing.T) {
	api := newAPI(t)
	admin := api.login(adminEmail, adminPassword)

	status, body := api.do(http.MethodGet, "/api/orders/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid id", errorBody(body)["message"])

	status, _ = api.do(http.MethodPost, "/api/orders", admin, fiber.Map{"kind": "delivery"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(http.MethodPost, "/api/payments", admin, fiber.Map{"method": "cash", "amount": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorBody(body)["message"], "orderid")
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	api := newAPI(t)

	var admin models.User
	require.NoError(t, api.db.First(&admin, "email = ?", adminEmail).Error)
	forged, err := utils.GenerateToken("other-secret", admin.ID, admin.Role, time.Hour)
	require.NoError(t, err)

	status, _ := api.do(http.MethodGet, "/api/auth/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUpdateUserRevokesSupervisorRights(t *testing.T) {
	api := newAPI(t)
	admin := api.login(adminEmail, adminPassword)
	manager := api.staff(admin, "Mia", models.RoleManager, "manager-pass")

	status, body := api.do(http.MethodGet, "/api/auth/me", manager, nil)
	require.Equal(t, http.StatusOK, status)
	managerID := body["user"].(map[string]any)["id"].(string)

	status, _ = api.do(http.MethodPut, "/api/users/"+managerID, manager, fiber.Map{"role": models.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodPut, "/api/users/"+managerID, admin, fiber.Map{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, status, body)

	status, body = api.do(http.MethodPut, "/api/users/00000000-0000-0000-0000-000000000001", admin, fiber.Map{"active": false})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(services.KindUserNotFound), errorBody(body)["kind"])

	status, body = api.do(http.MethodPost, "/api/orders", manager, fiber.Map{"kind": models.OrderKindCounter})
	require.Equal(t, http.StatusCreated, status, body)
	orderID := data(body)["id"].(string)

	// The manager's token still says manager; the stored role decides.
	status, body = api.do(http.MethodPut, "/api/users/"+managerID, admin, fiber.Map{"role": models.RoleWaiter, "name": "Mia R."})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, models.RoleWaiter, body["user"].(map[string]any)["role"])
	assert.Equal(t, "Mia R.", body["user"].(map[string]any)["name"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", manager, fiber.Map{"password": "manager-pass"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(services.KindForbiddenRole), errorBody(body)["kind"])

	status, body = api.do(http.MethodPut, "/api/users/"+managerID, admin, fiber.Map{"role": models.RoleManager, "active": false})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["user"].(map[string]any)["active"])

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", manager, fiber.Map{"password": "manager-pass"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(services.KindForbiddenRole), errorBody(body)["kind"])

	status, _ = api.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": models.RoleManager + "@restopos.test", "password": "manager-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = api.do(http.MethodPut, "/api/users/"+managerID, admin, fiber.Map{"active": true, "password": "fresh-pass"})
	require.Equal(t, http.StatusOK, status, body)
	fresh := api.login(models.RoleManager+"@restopos.test", "fresh-pass")

	status, body = api.do(http.MethodPut, "/api/orders/"+orderID+"/cancel", fresh, fiber.Map{"password": "fresh-pass"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, models.OrderStatusCancelled, data(body)["status"])
}

func TestLoginAttemptsAreRateLimited(t *testing.T) {
	api := newAPI(t)

	for i := 0; i < 10; i++ {
		status, _ := api.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": adminEmail, "password": "guess"})
		require.Equal(t, http.StatusUnauthorized, status, "attempt %d", i+1)
	}

	status, body := api.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": adminEmail, "password": adminPassword})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, errorBody(body)["message"], "too many login attempts")

	// Other routes keep their own, larger budget.
	status, _ = api.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}
