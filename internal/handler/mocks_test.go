package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/tinyshop/internal/account"
	"github.com/hitoshi/tinyshop/internal/auth"
	"github.com/hitoshi/tinyshop/internal/listing"
	"github.com/hitoshi/tinyshop/internal/middleware"
	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/moderation"
)

// --- モック定義 ---

var errMockInvalidToken = errors.New("invalid token")

// mockTokenVerifier は "token-<id>" と "admin-<id>" 形式のトークンを受け付ける。
type mockTokenVerifier struct {
	claims map[string]*model.Claim
}

func newMockTokenVerifier() *mockTokenVerifier {
	return &mockTokenVerifier{claims: map[string]*model.Claim{
		"token-1": {AccountID: 1, ExpiresAt: time.Now().Add(time.Hour)},
		"token-2": {AccountID: 2, ExpiresAt: time.Now().Add(time.Hour)},
		"admin-9": {AccountID: 9, IsAdmin: true, ExpiresAt: time.Now().Add(time.Hour)},
	}}
}

func (m *mockTokenVerifier) Verify(token string) (*model.Claim, error) {
	if c, ok := m.claims[token]; ok {
		return c, nil
	}
	return nil, errMockInvalidToken
}

type mockOwnerLookup struct {
	sellers map[int64]int64
	err     error
}

func (m *mockOwnerLookup) SellerOf(ctx context.Context, listingID int64) (int64, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	seller, ok := m.sellers[listingID]
	return seller, ok, nil
}

type mockAuthService struct {
	registerFn func(ctx context.Context, email, password string) (*model.Account, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*model.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

type mockAccountService struct {
	getSelfFn      func(ctx context.Context, accountID int64) (*model.Account, error)
	listAccountsFn func(ctx context.Context) ([]*model.Account, error)
	suspendFn      func(ctx context.Context, adminID, accountID int64) (*account.SuspendResult, error)
	creditFn       func(ctx context.Context, adminID, accountID, amount int64) (int64, error)
}

func (m *mockAccountService) GetSelf(ctx context.Context, accountID int64) (*model.Account, error) {
	if m.getSelfFn != nil {
		return m.getSelfFn(ctx, accountID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	if m.listAccountsFn != nil {
		return m.listAccountsFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Suspend(ctx context.Context, adminID, accountID int64) (*account.SuspendResult, error) {
	if m.suspendFn != nil {
		return m.suspendFn(ctx, adminID, accountID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Credit(ctx context.Context, adminID, accountID, amount int64) (int64, error) {
	if m.creditFn != nil {
		return m.creditFn(ctx, adminID, accountID, amount)
	}
	return 0, errors.New("not implemented")
}

type mockListingService struct {
	createFn      func(ctx context.Context, sellerID int64, in listing.CreateInput) (*model.Listing, error)
	listFn        func(ctx context.Context) ([]*model.Listing, error)
	getFn         func(ctx context.Context, id int64) (*model.ListingDetail, error)
	updatePriceFn func(ctx context.Context, sellerID, id, price int64) (*model.Listing, error)
	deleteFn      func(ctx context.Context, sellerID, id int64) error
}

func (m *mockListingService) Create(ctx context.Context, sellerID int64, in listing.CreateInput) (*model.Listing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, sellerID, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockListingService) List(ctx context.Context) ([]*model.Listing, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockListingService) Get(ctx context.Context, id int64) (*model.ListingDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockListingService) UpdatePrice(ctx context.Context, sellerID, id, price int64) (*model.Listing, error) {
	if m.updatePriceFn != nil {
		return m.updatePriceFn(ctx, sellerID, id, price)
	}
	return nil, errors.New("not implemented")
}

func (m *mockListingService) Delete(ctx context.Context, sellerID, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, sellerID, id)
	}
	return errors.New("not implemented")
}

type mockLedgerService struct {
	transferFn func(ctx context.Context, senderID, recipientID, amount int64) (*model.PointTransfer, error)
	historyFn  func(ctx context.Context, accountID int64, limit int) ([]*model.PointTransfer, error)
}

func (m *mockLedgerService) Transfer(ctx context.Context, senderID, recipientID, amount int64) (*model.PointTransfer, error) {
	if m.transferFn != nil {
		return m.transferFn(ctx, senderID, recipientID, amount)
	}
	return nil, errors.New("not implemented")
}

func (m *mockLedgerService) History(ctx context.Context, accountID int64, limit int) ([]*model.PointTransfer, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, accountID, limit)
	}
	return nil, errors.New("not implemented")
}

type mockReportService struct {
	fileReportFn func(ctx context.Context, reporterID int64, in moderation.ReportInput) (*model.ModerationOutcome, error)
}

func (m *mockReportService) FileReport(ctx context.Context, reporterID int64, in moderation.ReportInput) (*model.ModerationOutcome, error) {
	if m.fileReportFn != nil {
		return m.fileReportFn(ctx, reporterID, in)
	}
	return nil, errors.New("not implemented")
}

type mockChatHistory struct {
	historyFn func(ctx context.Context, accountID, peerID int64) ([]*model.ChatMessage, error)
}

func (m *mockChatHistory) History(ctx context.Context, accountID, peerID int64) ([]*model.ChatMessage, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, accountID, peerID)
	}
	return nil, errors.New("not implemented")
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// compile-time interface check
var (
	_ middleware.TokenVerifier = (*mockTokenVerifier)(nil)
	_ middleware.OwnerLookup   = (*mockOwnerLookup)(nil)
	_ AuthServiceInterface     = (*mockAuthService)(nil)
	_ AccountServiceInterface  = (*mockAccountService)(nil)
	_ ListingServiceInterface  = (*mockListingService)(nil)
	_ LedgerServiceInterface   = (*mockLedgerService)(nil)
	_ ReportServiceInterface   = (*mockReportService)(nil)
	_ ChatHistoryReader        = (*mockChatHistory)(nil)
	_ HealthChecker            = (*mockHealthChecker)(nil)
)

// --- テストヘルパー ---

// testDeps はモックで埋めたRouterDepsを返す。各テストで必要なサービスだけ差し替える。
func testDeps(t *testing.T) *RouterDeps {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)
	return &RouterDeps{
		TokenVerifier:     newMockTokenVerifier(),
		OwnerLookup:       &mockOwnerLookup{sellers: map[int64]int64{10: 1}},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		HealthChecker:     &mockHealthChecker{},
		AuthService:       &mockAuthService{},
		AccountService:    &mockAccountService{},
		ListingService:    &mockListingService{},
		LedgerService:     &mockLedgerService{},
		ReportService:     &mockReportService{},
	}
}

// doRequest はルーターにリクエストを送りレスポンスを返す。tokenが空の場合はAuthorizationを付けない。
func doRequest(t *testing.T, h http.Handler, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeErrorCode はエラーレスポンスのcodeを取り出す。
func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v (body=%s)", err, w.Body.String())
	}
	return body.Code
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, w.Body.String())
	}
}
