package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	svc, _, mock := newMockService(t)
	r := chi.NewRouter()
	NewHandler(svc).RegisterAdmin(r)
	return r, mock
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAudit(t *testing.T) {
	h, mock := adminRouter(t)
	bad := uuid.New()

	mock.ExpectQuery("HAVING COUNT").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rec := serve(h, "/ledger/audit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"balanced":true,"unbalanced_entries":[]}}`, rec.Body.String())

	mock.ExpectQuery("HAVING COUNT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bad.String()))
	rec = serve(h, "/ledger/audit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balanced":false`)
	assert.Contains(t, rec.Body.String(), bad.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccounts_SkipsUnprovisioned(t *testing.T) {
	h, mock := adminRouter(t)
	platform := uuid.New()
	cols := []string{"id", "type", "user_id", "created_at"}

	mock.ExpectQuery("FROM ledger_accounts WHERE type = \\$1 AND user_id IS NULL").
		WithArgs(AccountPlatformLiability).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(platform.String(), AccountPlatformLiability, nil, time.Now()))
	mock.ExpectQuery("SUM\\(credit_minor - debit_minor\\)").
		WithArgs(platform).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(-2500)))
	mock.ExpectQuery("FROM ledger_accounts WHERE type = \\$1 AND user_id IS NULL").
		WithArgs(AccountDepositsIncoming).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("FROM ledger_accounts WHERE type = \\$1 AND user_id IS NULL").
		WithArgs(AccountWithdrawalsOutgoing).
		WillReturnRows(sqlmock.NewRows(cols))

	rec := serve(h, "/ledger/accounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []SystemBalance `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, AccountPlatformLiability, body.Data[0].Type)
	assert.Equal(t, int64(-2500), body.Data[0].BalanceMinor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntry(t *testing.T) {
	h, mock := adminRouter(t)

	mock.ExpectQuery("FROM ledger_entries").
		WithArgs("quiz:missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "idempotency_key", "metadata", "created_at"}))
	rec := serve(h, "/ledger/entries/quiz:missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	entryID := uuid.New()
	mock.ExpectQuery("FROM ledger_entries").
		WithArgs("quiz:a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "idempotency_key", "metadata", "created_at"}).
			AddRow(entryID.String(), "quiz:a1", []byte(`{"kind":"quiz"}`), time.Now()))
	mock.ExpectQuery("FROM ledger_lines").
		WithArgs(entryID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entry_id", "account_id", "debit_minor", "credit_minor"}).
			AddRow(uuid.NewString(), entryID.String(), uuid.NewString(), int64(100), int64(0)).
			AddRow(uuid.NewString(), entryID.String(), uuid.NewString(), int64(0), int64(100)))
	rec = serve(h, "/ledger/entries/quiz:a1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"idempotency_key":"quiz:a1"`)
	assert.Contains(t, rec.Body.String(), `"debit_minor":100`)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountByType_UserWalletNeedsUser(t *testing.T) {
	svc, db, mock := newMockService(t)
	_, err := svc.GetAccountByType(context.Background(), db, AccountUserWallet, uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidAccountType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
