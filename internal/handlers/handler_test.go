package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sales-ledger/internal/auth"
	"sales-ledger/internal/database"
	"sales-ledger/internal/ledger"
	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "handler-test-secret"

type server struct {
	t      *testing.T
	h      *Handler
	router *gin.Engine
	admin  string
	sales  string
	market string
}

type fakeAssistant struct{ got ledger.Actor }

func (f *fakeAssistant) Ask(_ context.Context, message string, actor ledger.Actor) (string, error) {
	f.got = actor
	return "echo: " + message, nil
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hub := notify.NewHub(zap.NewNop())
	t.Cleanup(hub.Shutdown)
	accounts := auth.NewAccounts(db, secret, time.Hour)
	h := New(ledger.New(db, zap.NewNop(), hub), accounts, hub, &fakeAssistant{}, zap.NewNop())

	r := gin.New()
	h.Routes(r, accounts.Secret, true)

	s := &server{t: t, h: h, router: r}
	s.admin = s.signup("root", auth.RoleAdmin)
	s.sales = s.signup("sami", auth.RoleSales)
	s.market = s.signup("mona", auth.RoleMarketer)
	return s
}

func (s *server) signup(username string, role auth.Role) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/register", "", gin.H{
		"name": strings.ToUpper(username[:1]) + username[1:], "username": username, "password": "secret-1", "role": role,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/login", "", gin.H{"username": username, "password": "secret-1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var session auth.Session
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.Token
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/login", "", gin.H{"username": "root", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/login", "", gin.H{"username": "root"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
}

func TestCapabilityGuards(t *testing.T) {
	s := newServer(t)
	body := gin.H{"code": "P1", "name": "Lamp", "price": "10.00"}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/products", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/products", s.market, body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/products", s.sales, body).Code)
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/products", s.admin, body).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/products", s.sales, nil).Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/users", s.sales, nil).Code)
	users := decode[[]models.User](t, s.do(http.MethodGet, "/api/users", s.admin, nil))
	assert.Len(t, users, 3)
}

func TestUpdatePermissionsGrantsCapability(t *testing.T) {
	s := newServer(t)
	users := decode[[]models.User](t, s.do(http.MethodGet, "/api/users", s.admin, nil))
	var salesID uint
	for _, u := range users {
		if u.Username == "sami" {
			salesID = u.ID
		}
	}

	w := s.do(http.MethodPut, fmt.Sprintf("/api/users/%d/permissions", salesID), s.admin, gin.H{"permissions": gin.H{"addStore": true}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"addStore":true`)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/users/%d/permissions", salesID), s.admin, gin.H{"permissions": gin.H{"flyPlane": true}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The old token still carries the old capabilities until the next login.
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/products", s.sales, gin.H{"code": "X", "name": "X", "price": "1"}).Code)
	fresh := s.do(http.MethodPost, "/login", "", gin.H{"username": "sami", "password": "secret-1"})
	token := decode[auth.Session](t, fresh).Token
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/products", token, gin.H{"code": "X", "name": "X", "price": "1"}).Code)
}

func TestStockEndpoints(t *testing.T) {
	s := newServer(t)
	p := decode[models.Product](t, s.do(http.MethodPost, "/api/products", s.admin, gin.H{"code": "P1", "name": "Lamp", "price": "10.00", "count": 3}))
	path := fmt.Sprintf("/api/products/%d", p.ID)

	w := s.do(http.MethodPatch, path+"/stock", s.admin, gin.H{"delta": -2, "note": "broken"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mv := decode[ledger.StockMovement](t, w)
	assert.Equal(t, 3, mv.Before)
	assert.Equal(t, 1, mv.After)

	w = s.do(http.MethodPatch, path+"/stock", s.admin, gin.H{"delta": -5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient stock")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, path+"/stock", s.admin, gin.H{"delta": 0}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, "/api/products/999/stock", s.admin, gin.H{"delta": 1}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/products/abc/history", s.admin, nil).Code)

	history := decode[[]models.ProductHistory](t, s.do(http.MethodGet, path+"/history", s.admin, nil))
	require.Len(t, history, 2)
	assert.Equal(t, -2, history[0].Delta)
}

func TestReorderEndpoint(t *testing.T) {
	s := newServer(t)
	var ids []uint
	for _, code := range []string{"A", "B", "C"} {
		p := decode[models.Product](t, s.do(http.MethodPost, "/api/products", s.admin, gin.H{"code": code, "name": code, "price": "1"}))
		ids = append(ids, p.ID)
	}

	w := s.do(http.MethodPost, fmt.Sprintf("/api/products/%d/reorder", ids[0]), s.admin, gin.H{"direction": "up"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/products/%d/reorder", ids[2]), s.admin, gin.H{"position": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	products := decode[[]models.Product](t, s.do(http.MethodGet, "/api/products", s.admin, nil))
	require.Len(t, products, 3)
	assert.Equal(t, []uint{ids[2], ids[0], ids[1]}, []uint{products[0].ID, products[1].ID, products[2].ID})

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, fmt.Sprintf("/api/products/%d/reorder", ids[0]), s.admin, gin.H{}).Code)
}

func TestSupplierAccountOverHTTP(t *testing.T) {
	s := newServer(t)
	p := decode[models.Product](t, s.do(http.MethodPost, "/api/products", s.admin, gin.H{"code": "P1", "name": "Lamp", "price": "10.00"}))
	sup := decode[models.Supplier](t, s.do(http.MethodPost, "/api/suppliers", s.admin, gin.H{"name": "Nile Trading"}))

	w := s.do(http.MethodPost, "/api/supplier-orders", s.admin, gin.H{
		"supplier_id": sup.ID,
		"date_time":   "2024-01-05T10:00:00Z",
		"details":     []gin.H{{"product_id": p.ID, "quantity": 4, "price": "25"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/supplier-payments", s.admin, gin.H{
		"supplier_id": sup.ID, "amount": "60", "date_time": "2024-01-07T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, fmt.Sprintf("/api/suppliers/%d/statement", sup.ID), s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode[ledger.Statement](t, w)
	require.Len(t, st.Entries, 2)
	assert.True(t, decimal.NewFromInt(40).Equal(st.ClosingBalance), st.ClosingBalance.String())

	w = s.do(http.MethodGet, fmt.Sprintf("/api/suppliers/%d/statement?from=2024-01-06", sup.ID), s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st = decode[ledger.Statement](t, w)
	require.Len(t, st.Entries, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(st.OpeningBalance))

	w = s.do(http.MethodGet, fmt.Sprintf("/api/suppliers/%d/statement?from=yesterday", sup.ID), s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stock := decode[models.Product](t, s.do(http.MethodGet, fmt.Sprintf("/api/products/%d", p.ID), s.admin, nil))
	assert.Equal(t, 4, stock.Count)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, fmt.Sprintf("/api/suppliers/%d", sup.ID), s.admin, nil).Code)
}

func TestOrdersAndCommissions(t *testing.T) {
	s := newServer(t)
	p := decode[models.Product](t, s.do(http.MethodPost, "/api/products", s.admin, gin.H{"code": "P1", "name": "Lamp", "price": "10.00"}))
	m := decode[models.Marketer](t, s.do(http.MethodPost, "/api/marketers", s.admin, gin.H{"name": "Hana"}))
	decode[models.Mandobe](t, s.do(http.MethodPost, "/api/mandobes", s.admin, gin.H{"name": "Karim"}))

	w := s.do(http.MethodPost, "/api/orders", s.market, gin.H{
		"order_code":    "A-100",
		"customer_name": "Laila",
		"phone":         "0100",
		"city":          "Giza",
		"marketer_id":   m.ID,
		"date_time":     "2024-02-01T12:00:00Z",
		"details":       []gin.H{{"product_id": p.ID, "quantity": 2, "price": "15"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)
	path := fmt.Sprintf("/api/orders/%d", order.ID)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, path+"/status", s.market, gin.H{"status": "accept"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, path+"/status", s.sales, gin.H{"status": "lost"}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPatch, path+"/status", s.sales, gin.H{"status": "accept"}).Code)

	w = s.do(http.MethodPatch, path+"/mandobe", s.sales, gin.H{"mandobe_name": "Karim"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, path+"/mandobe", s.sales, gin.H{"mandobe_name": "Nobody"}).Code)

	w = s.do(http.MethodPost, "/api/marketer-payments/bulk", s.admin, gin.H{"payments": []gin.H{
		{"order_id": order.ID, "marketer_id": m.ID, "commission": "5", "payment_date": "2024-02-10T09:00:00Z"},
		{"order_id": order.ID, "marketer_id": m.ID, "commission": "5", "payment_date": "2024-02-10T09:00:00Z"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bulk := decode[ledger.BulkPaymentResult](t, w)
	assert.Len(t, bulk.Results, 1)
	assert.Len(t, bulk.Errors, 1)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/marketer-payments/bulk", s.admin, gin.H{"payments": []gin.H{}}).Code)

	w = s.do(http.MethodGet, "/api/orders?paid=true&status=accept", s.sales, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[struct {
		Orders []models.Order `json:"orders"`
		Total  int64          `json:"total"`
	}](t, w)
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/orders?sort=random", s.sales, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/orders?paid=perhaps", s.sales, nil).Code)

	stats := decode[database.OrderStatistics](t, s.do(http.MethodGet, "/api/orders/statistics?year=2024&month=2", s.sales, nil))
	assert.EqualValues(t, 1, stats.Total)

	summary := decode[[]ledger.MarketerSummary](t, s.do(http.MethodGet, "/api/marketer-payments/summary", s.admin, nil))
	require.Len(t, summary, 1)
	assert.EqualValues(t, 1, summary[0].Payments)

	months := decode[[]ledger.PaymentMonth](t, s.do(http.MethodGet, "/api/marketer-payments/by-month?year=2024", s.admin, nil))
	require.Len(t, months, 1)
	assert.Equal(t, "2024-02", months[0].Month)
	assert.Equal(t, 1, months[0].Count)
	assert.Empty(t, decode[[]ledger.PaymentMonth](t, s.do(http.MethodGet, "/api/marketer-payments/by-month?year=2023", s.admin, nil)))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/marketer-payments/by-month?year=last", s.admin, nil).Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, path+"/payment", s.admin, gin.H{"paid": false}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, path, s.market, nil).Code)

	w = s.do(http.MethodPost, "/api/admin/reconcile", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"fixed":false`)
}

func TestAskUsesCaller(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodPost, "/api/ask", s.admin, gin.H{"message": "how many lamps?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"reply":"echo: how many lamps?"}`, w.Body.String())
	assert.Equal(t, "Root", s.h.Assistant.(*fakeAssistant).got.Name)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/ask", s.sales, gin.H{"message": "hi"}).Code)

	s.h.Assistant = nil
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/api/ask", s.admin, gin.H{"message": "hi"}).Code)
}

func TestStreamEvents(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/api/events?token="+s.sales, nil)
	require.NoError(t, err)

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		done <- result{resp, err}
	}()

	require.Eventually(t, func() bool { return s.h.Hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, err = s.h.Ledger.CreateProduct(context.Background(), ledger.ProductInput{Code: "EV", Name: "Event", Price: decimal.NewFromInt(1)}, ledger.Actor{Name: "Root"})
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	defer res.resp.Body.Close()
	mediaType, _, err := mime.ParseMediaType(res.resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", mediaType)

	scanner := bufio.NewScanner(res.resp.Body)
	var lines []string
	for scanner.Scan() && len(lines) < 2 {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "event:"+notify.ProductCreated, lines[0])
	assert.Contains(t, lines[1], `"code":"EV"`)
	assert.Contains(t, lines[1], `"actor_name":"Root"`)
}
