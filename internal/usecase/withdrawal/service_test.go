package withdrawal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"referral-service/internal/domain"
	"referral-service/internal/repository/repotest"
	"referral-service/internal/usecase/ledger"
	xerrors "referral-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubGateway scripts one InitiateTransfer outcome per test.
type stubGateway struct {
	configured bool
	result     *TransferResult
	err        error
	calls      int
}

func (g *stubGateway) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	res := *g.result
	if res.TransactionReference == "" {
		res.TransactionReference = req.Reference
	}
	return &res, nil
}

func (g *stubGateway) VerifyTransaction(ctx context.Context, reference string) (*TransferResult, error) {
	return g.result, g.err
}

func (g *stubGateway) Configured() bool { return g.configured }

// rendezvousGateway holds every transfer call until the expected number of
// callers has arrived, so each of them has already passed the status check
// before any one of them settles.
type rendezvousGateway struct {
	arrived sync.WaitGroup
}

func newRendezvousGateway(callers int) *rendezvousGateway {
	g := &rendezvousGateway{}
	g.arrived.Add(callers)
	return g
}

func (g *rendezvousGateway) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return &TransferResult{Status: "SUCCESSFUL", TransactionReference: req.Reference}, nil
}

func (g *rendezvousGateway) VerifyTransaction(ctx context.Context, reference string) (*TransferResult, error) {
	return &TransferResult{Status: "SUCCESSFUL", TransactionReference: reference}, nil
}

func (g *rendezvousGateway) Configured() bool { return true }

type wdFixture struct {
	users       *repotest.FakeUserRepo
	withdrawals *repotest.FakeWithdrawalRepo
	gateway     *stubGateway
	svc         *Service
}

func newWdFixture(t *testing.T, gateway *stubGateway, policy Policy) *wdFixture {
	t.Helper()
	users := repotest.NewFakeUserRepo()
	earnings := repotest.NewFakeEarningRepo()
	withdrawals := repotest.NewFakeWithdrawalRepo()
	ledgerSvc := ledger.New(users, earnings, withdrawals, nil, zap.NewNop())
	return &wdFixture{
		users:       users,
		withdrawals: withdrawals,
		gateway:     gateway,
		svc:         New(users, withdrawals, ledgerSvc, gateway, policy, zap.NewNop()),
	}
}

func seedFunded(f *wdFixture, balance int64) *domain.User {
	bank := "GTBank"
	account := "0123456789"
	return f.users.Seed(&domain.User{
		Username:    "payee",
		Balance:     decimal.NewFromInt(balance),
		BankName:    &bank,
		BankAccount: &account,
	})
}

func TestCreatePendingNoBalanceChange(t *testing.T) {
	f := newWdFixture(t, &stubGateway{}, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)

	assert.Equal(t, domain.WithdrawalPending, w.Status)
	assert.Equal(t, "NGN", w.Currency)
	assert.Equal(t, "GTBank", w.BankName)
	assert.Equal(t, "0123456789", w.BankAccount)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(5000)),
		"creation alone must not move the balance")
}

func TestCreateInsufficientBalance(t *testing.T) {
	f := newWdFixture(t, &stubGateway{}, Policy{})
	u := seedFunded(f, 1000)

	_, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(1001)})
	assert.ErrorIs(t, err, xerrors.ErrInsufficientBalance)
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	f := newWdFixture(t, &stubGateway{}, Policy{})
	u := seedFunded(f, 1000)

	_, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.Zero})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestCreateEnforcesKYCPolicy(t *testing.T) {
	f := newWdFixture(t, &stubGateway{}, Policy{RequireKYC: true})
	u := seedFunded(f, 5000)

	_, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, xerrors.ErrKYCRequired)

	f.users.Users[u.ID].KYCVerified = true
	_, err = f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(100)})
	assert.NoError(t, err)
}

func TestProcessSuccessDebitsOnce(t *testing.T) {
	gw := &stubGateway{configured: true, result: &TransferResult{Status: "SUCCESSFUL"}}
	f := newWdFixture(t, gw, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)

	processed, err := f.svc.Process(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, processed.Status)
	require.NotNil(t, processed.PaymentReference)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))

	// A second submission must be refused, not debited again.
	_, err = f.svc.Process(context.Background(), w.ID)
	assert.ErrorIs(t, err, xerrors.ErrInvalidStatusTransition)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))
}

func TestProcessConcurrentSubmissionsDebitOnce(t *testing.T) {
	users := repotest.NewFakeUserRepo()
	earnings := repotest.NewFakeEarningRepo()
	withdrawals := repotest.NewFakeWithdrawalRepo()
	ledgerSvc := ledger.New(users, earnings, withdrawals, nil, zap.NewNop())
	svc := New(users, withdrawals, ledgerSvc, newRendezvousGateway(2), Policy{}, zap.NewNop())

	bank := "GTBank"
	account := "0123456789"
	u := users.Seed(&domain.User{
		Username:    "payee",
		Balance:     decimal.NewFromInt(5000),
		BankName:    &bank,
		BankAccount: &account,
	})

	w, err := svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)

	// Both submissions pass the PENDING check before either settles; the
	// guarded status update must let exactly one of them through.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Process(context.Background(), w.ID)
			errs <- err
		}()
	}

	var settled, refused int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			settled++
		case errors.Is(err, xerrors.ErrInvalidStatusTransition):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, settled, "exactly one submission must settle")
	assert.Equal(t, 1, refused, "the racing submission must be refused")

	assert.True(t, users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)),
		"balance must be debited exactly once")
	stored, err := withdrawals.GetByID(context.Background(), nil, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, stored.Status)
}

func TestProcessGatewayErrorStaysPending(t *testing.T) {
	gw := &stubGateway{configured: true, err: xerrors.ErrExternalService}
	f := newWdFixture(t, gw, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)

	_, err = f.svc.Process(context.Background(), w.ID)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	stored, err := f.withdrawals.GetByID(context.Background(), nil, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPending, stored.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(5000)))
}

func TestProcessUnconfiguredGateway(t *testing.T) {
	f := newWdFixture(t, &stubGateway{configured: false}, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	_, err = f.svc.Process(context.Background(), w.ID)
	assert.ErrorIs(t, err, xerrors.ErrGatewayNotConfigured)
}

func TestAutoProcessSettlesLocally(t *testing.T) {
	f := newWdFixture(t, &stubGateway{configured: false}, Policy{AutoProcess: true})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(1500)})
	require.NoError(t, err)

	// Without a gateway, auto-processing settles as APPROVED and debits.
	assert.Equal(t, domain.WithdrawalApproved, w.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3500)))
}

func TestWebhookRedeliveryAppliesOnce(t *testing.T) {
	gw := &stubGateway{configured: true, result: &TransferResult{Status: "PENDING"}}
	f := newWdFixture(t, gw, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	processed, err := f.svc.Process(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalApproved, processed.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))

	ref := *processed.PaymentReference

	// First notification settles the transfer; no further balance movement.
	updated, err := f.svc.ApplyGatewayStatus(context.Background(), ref, "SUCCESS", "")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, updated.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))

	// Redelivery of the same verdict is a no-op.
	updated, err = f.svc.ApplyGatewayStatus(context.Background(), ref, "SUCCESS", "")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, updated.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))
}

func TestWebhookFailureRefundsOnce(t *testing.T) {
	gw := &stubGateway{configured: true, result: &TransferResult{Status: "PROCESSING"}}
	f := newWdFixture(t, gw, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	processed, err := f.svc.Process(context.Background(), w.ID)
	require.NoError(t, err)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))

	ref := *processed.PaymentReference

	updated, err := f.svc.ApplyGatewayStatus(context.Background(), ref, "FAILED", "Account blocked")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalFailed, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "Account blocked", *updated.RejectionReason)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(5000)))

	// Replaying the failure must not credit a second refund.
	_, err = f.svc.ApplyGatewayStatus(context.Background(), ref, "FAILED", "Account blocked")
	require.NoError(t, err)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(5000)))
}

func TestReconcileWithGatewaySettlesLostWebhook(t *testing.T) {
	gw := &stubGateway{configured: true, result: &TransferResult{Status: "PENDING"}}
	f := newWdFixture(t, gw, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	processed, err := f.svc.Process(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalApproved, processed.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))

	// The terminal webhook never arrived; verification reports the transfer
	// settled, which must finish the withdrawal without another debit.
	gw.result = &TransferResult{Status: "SUCCESSFUL"}
	updated, err := f.svc.ReconcileWithGateway(context.Background(), *processed.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, updated.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(3000)))
}

func TestReconcileWithGatewayFailureRefunds(t *testing.T) {
	gw := &stubGateway{configured: true, result: &TransferResult{Status: "PROCESSING"}}
	f := newWdFixture(t, gw, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	processed, err := f.svc.Process(context.Background(), w.ID)
	require.NoError(t, err)

	gw.result = &TransferResult{Status: "FAILED", Message: "Account blocked"}
	updated, err := f.svc.ReconcileWithGateway(context.Background(), *processed.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalFailed, updated.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(5000)))
}

func TestReconcileWithGatewayUnconfigured(t *testing.T) {
	f := newWdFixture(t, &stubGateway{configured: false}, Policy{})
	_, err := f.svc.ReconcileWithGateway(context.Background(), "WDL-1-deadbeef")
	assert.ErrorIs(t, err, xerrors.ErrGatewayNotConfigured)
}

func TestReconcileWithGatewayTransportError(t *testing.T) {
	gw := &stubGateway{configured: true, err: errors.New("connection reset")}
	f := newWdFixture(t, gw, Policy{})
	_, err := f.svc.ReconcileWithGateway(context.Background(), "WDL-1-deadbeef")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestWebhookUnknownStatusIgnored(t *testing.T) {
	gw := &stubGateway{configured: true, result: &TransferResult{Status: "PENDING"}}
	f := newWdFixture(t, gw, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	processed, err := f.svc.Process(context.Background(), w.ID)
	require.NoError(t, err)

	updated, err := f.svc.ApplyGatewayStatus(context.Background(), *processed.PaymentReference, "SOMETHING_ELSE", "")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalApproved, updated.Status)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(4000)))
}

func TestWebhookUnknownReference(t *testing.T) {
	f := newWdFixture(t, &stubGateway{}, Policy{})
	_, err := f.svc.ApplyGatewayStatus(context.Background(), "WDL-0-deadbeef", "SUCCESS", "")
	assert.ErrorIs(t, err, xerrors.ErrWithdrawalNotFound)
}

func TestRejectPendingOnly(t *testing.T) {
	f := newWdFixture(t, &stubGateway{}, Policy{})
	u := seedFunded(f, 5000)

	w, err := f.svc.Create(context.Background(), u.ID, CreateRequest{Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	rejected, err := f.svc.Reject(context.Background(), w.ID, "Suspicious account")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(5000)))

	_, err = f.svc.Reject(context.Background(), w.ID, "again")
	assert.ErrorIs(t, err, xerrors.ErrInvalidStatusTransition)
}

func TestMapGatewayStatus(t *testing.T) {
	cases := []struct {
		in   string
		want domain.WithdrawalStatus
	}{
		{"SUCCESS", domain.WithdrawalPaid},
		{"successful", domain.WithdrawalPaid},
		{"COMPLETED", domain.WithdrawalPaid},
		{"00", domain.WithdrawalPaid},
		{"FAILED", domain.WithdrawalFailed},
		{"declined", domain.WithdrawalFailed},
		{"REJECTED", domain.WithdrawalFailed},
		{"01", domain.WithdrawalFailed},
		{"PENDING", domain.WithdrawalApproved},
		{"processing", domain.WithdrawalApproved},
		{"02", domain.WithdrawalApproved},
		{"", ""},
		{"WHATEVER", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapGatewayStatus(tc.in), "status %q", tc.in)
	}
}
