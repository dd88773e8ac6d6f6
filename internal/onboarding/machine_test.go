package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/cretee/creteebot/internal/automation"
	"github.com/cretee/creteebot/internal/faults"
	"github.com/cretee/creteebot/internal/models"
	"github.com/cretee/creteebot/internal/vault"
)

type fakeClient struct {
	connectErr error
	requestErr error
	verifyErr  error
	secondErr  error
	exportErr  error
	outcome    automation.VerifyOutcome
	session    string

	connects    int
	requests    int
	verifies    int
	seconds     int
	disconnects int
}

func (c *fakeClient) Connect(context.Context) error { c.connects++; return c.connectErr }
func (c *fakeClient) RequestCode(context.Context) error {
	c.requests++
	return c.requestErr
}
func (c *fakeClient) VerifyCode(context.Context, string) (automation.VerifyOutcome, error) {
	c.verifies++
	return c.outcome, c.verifyErr
}
func (c *fakeClient) VerifySecondFactor(context.Context, string) error {
	c.seconds++
	return c.secondErr
}
func (c *fakeClient) ExportSession() (string, error) { return c.session, c.exportErr }
func (c *fakeClient) CreateGroup(context.Context, string) automation.CreateResult {
	return automation.CreateResult{Failed: &automation.Failed{Reason: "not signed in"}}
}
func (c *fakeClient) Disconnect() { c.disconnects++ }

type fakeStore struct {
	activeCount int64
	countErr    error
	createErr   error
	accounts    []*models.Account
}

func (s *fakeStore) CountActiveAccounts(context.Context, int64) (int64, error) {
	return s.activeCount, s.countErr
}
func (s *fakeStore) CreateAccount(_ context.Context, account *models.Account) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.accounts = append(s.accounts, account)
	return nil
}

func newTestMachine(client *fakeClient, st *fakeStore) (*Machine, *vault.Vault) {
	v := vault.New("machine-test-key")
	dialer := automation.DialerFunc(func(automation.Credentials) automation.Client { return client })
	return NewMachine(NewRegistry(), st, v, dialer, 3, 10), v
}

func begin(t *testing.T, m *Machine, userID int64) {
	t.Helper()
	user := &models.User{TelegramID: userID}
	if errBegin := m.Begin(context.Background(), user); errBegin != nil {
		t.Fatalf("begin: %v", errBegin)
	}
}

func TestBegin_QuotaGuard(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestMachine(client, &fakeStore{activeCount: 3})

	errBegin := m.Begin(context.Background(), &models.User{TelegramID: 7})
	if !faults.Is(errBegin, faults.KindQuota) {
		t.Fatalf("expected quota fault, got %v", errBegin)
	}
	if m.Active(7) {
		t.Fatal("no session should exist after a quota rejection")
	}

	// Premium tier raises the limit.
	errPremium := m.Begin(context.Background(), &models.User{TelegramID: 7, Premium: true})
	if errPremium != nil {
		t.Fatalf("premium begin: %v", errPremium)
	}
}

func TestCredentials_MalformedReprompts(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestMachine(client, &fakeStore{})
	begin(t, m, 7)

	res, errInput := m.Input(context.Background(), 7, "123456 abcdef")
	if errInput != nil {
		t.Fatalf("input: %v", errInput)
	}
	if res.Event != EventInvalidCredentials {
		t.Fatalf("expected invalid-credentials event, got %d", res.Event)
	}
	if client.connects != 0 || client.requests != 0 {
		t.Fatalf("malformed input must not touch the transport: %+v", client)
	}
	if !m.Active(7) {
		t.Fatal("session should survive a re-prompt")
	}
}

func TestCredentials_ValidRequestsCode(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestMachine(client, &fakeStore{})
	begin(t, m, 7)

	res, errInput := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890")
	if errInput != nil {
		t.Fatalf("input: %v", errInput)
	}
	if res.Event != EventCodeRequested {
		t.Fatalf("expected code-requested event, got %d", res.Event)
	}
	if client.connects != 1 || client.requests != 1 {
		t.Fatalf("expected exactly one connect and one code request: %+v", client)
	}
	if client.disconnects != 0 {
		t.Fatal("client must be retained while awaiting the code")
	}
}

func TestCredentials_ConnectFailureIsTerminal(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("dial tcp: refused")}
	m, _ := newTestMachine(client, &fakeStore{})
	begin(t, m, 7)

	_, errInput := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890")
	if !faults.Is(errInput, faults.KindTransport) {
		t.Fatalf("expected transport fault, got %v", errInput)
	}
	if m.Active(7) {
		t.Fatal("session must be discarded on transport failure")
	}
	if client.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect, got %d", client.disconnects)
	}
}

func TestCode_MalformedReprompts(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestMachine(client, &fakeStore{})
	begin(t, m, 7)
	if _, err := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890"); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	for _, bad := range []string{"abc", "1234", "123456", "12a45"} {
		res, errInput := m.Input(context.Background(), 7, bad)
		if errInput != nil {
			t.Fatalf("code %q: %v", bad, errInput)
		}
		if res.Event != EventInvalidCode {
			t.Fatalf("code %q: expected invalid-code event, got %d", bad, res.Event)
		}
	}
	if client.verifies != 0 {
		t.Fatalf("malformed codes must not be verified, got %d attempts", client.verifies)
	}
}

func TestCode_SuccessPersistsEncryptedAccount(t *testing.T) {
	client := &fakeClient{session: "exported-session-material"}
	st := &fakeStore{}
	m, v := newTestMachine(client, st)
	begin(t, m, 7)
	if _, err := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890"); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	res, errInput := m.Input(context.Background(), 7, "54321")
	if errInput != nil {
		t.Fatalf("code: %v", errInput)
	}
	if res.Event != EventCompleted || res.Account == nil {
		t.Fatalf("expected completion with account, got %+v", res)
	}
	if len(st.accounts) != 1 {
		t.Fatalf("expected one persisted account, got %d", len(st.accounts))
	}
	account := st.accounts[0]
	if account.SessionEnc == client.session {
		t.Fatal("plaintext session was persisted")
	}
	plaintext, errDecrypt := v.Decrypt(account.SessionEnc)
	if errDecrypt != nil {
		t.Fatalf("decrypt persisted session: %v", errDecrypt)
	}
	if plaintext != client.session {
		t.Fatalf("expected round-trip session, got %q", plaintext)
	}
	if client.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect, got %d", client.disconnects)
	}
	if m.Active(7) {
		t.Fatal("session must be discarded on completion")
	}
}

func TestCode_SecondFactorRetainsClient(t *testing.T) {
	client := &fakeClient{outcome: automation.VerifySecondFactorRequired, session: "s"}
	st := &fakeStore{}
	m, _ := newTestMachine(client, st)
	begin(t, m, 7)
	if _, err := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890"); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	res, errInput := m.Input(context.Background(), 7, "54321")
	if errInput != nil {
		t.Fatalf("code: %v", errInput)
	}
	if res.Event != EventSecondFactorRequired {
		t.Fatalf("expected second-factor event, got %d", res.Event)
	}
	if client.disconnects != 0 {
		t.Fatal("client must be retained for the second-factor step")
	}

	// The secret completes the flow through the same persist path.
	client.outcome = automation.VerifyOK
	res, errInput = m.Input(context.Background(), 7, "hunter2")
	if errInput != nil {
		t.Fatalf("second factor: %v", errInput)
	}
	if res.Event != EventCompleted {
		t.Fatalf("expected completion, got %d", res.Event)
	}
	if client.seconds != 1 {
		t.Fatalf("expected one second-factor attempt, got %d", client.seconds)
	}
	if client.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect, got %d", client.disconnects)
	}
}

func TestCode_AuthFailureReleasesOnce(t *testing.T) {
	client := &fakeClient{verifyErr: errors.New("PHONE_CODE_INVALID")}
	m, _ := newTestMachine(client, &fakeStore{})
	begin(t, m, 7)
	if _, err := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890"); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	_, errInput := m.Input(context.Background(), 7, "54321")
	if !faults.Is(errInput, faults.KindAuth) {
		t.Fatalf("expected auth fault, got %v", errInput)
	}
	if client.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect, got %d", client.disconnects)
	}
	if m.Active(7) {
		t.Fatal("session must be discarded on auth failure")
	}

	// A late message for the dead session is a no-op.
	res, errLate := m.Input(context.Background(), 7, "54321")
	if errLate != nil || res.Event != EventNone {
		t.Fatalf("expected none event for dead session, got %+v, %v", res, errLate)
	}
}

func TestBegin_ReplacesIncompleteSession(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestMachine(client, &fakeStore{})
	begin(t, m, 7)
	if _, err := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890"); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	// Starting over releases the old session's client.
	begin(t, m, 7)
	if client.disconnects != 1 {
		t.Fatalf("expected replaced session's client released, got %d disconnects", client.disconnects)
	}

	res, errInput := m.Input(context.Background(), 7, "54321")
	if errInput != nil {
		t.Fatalf("input: %v", errInput)
	}
	if res.Event != EventInvalidCredentials {
		t.Fatalf("fresh session should await credentials, got event %d", res.Event)
	}
}

func TestCancel(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestMachine(client, &fakeStore{})
	begin(t, m, 7)
	if _, err := m.Input(context.Background(), 7, "123456 abcdef123456 +1234567890"); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	if !m.Cancel(7) {
		t.Fatal("expected cancel to find a session")
	}
	if client.disconnects != 1 {
		t.Fatalf("expected client released on cancel, got %d disconnects", client.disconnects)
	}
	if m.Cancel(7) {
		t.Fatal("second cancel should find nothing")
	}
}

func TestStore_CountErrorIsStoreFault(t *testing.T) {
	m, _ := newTestMachine(&fakeClient{}, &fakeStore{countErr: errors.New("db down")})

	errBegin := m.Begin(context.Background(), &models.User{TelegramID: 7})
	if !faults.Is(errBegin, faults.KindStore) {
		t.Fatalf("expected store fault, got %v", errBegin)
	}
}
