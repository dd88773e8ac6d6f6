package onboarding

import (
	"context"
	"regexp"
	"strings"

	"github.com/cretee/creteebot/internal/automation"
	"github.com/cretee/creteebot/internal/faults"
	"github.com/cretee/creteebot/internal/models"
	"github.com/cretee/creteebot/internal/vault"
	log "github.com/sirupsen/logrus"
)

// codePattern matches the platform's fixed-length numeric login codes.
var codePattern = regexp.MustCompile(`^\d{5}$`)

// AccountStore is the slice of the entity store the machine needs.
type AccountStore interface {
	CountActiveAccounts(ctx context.Context, ownerID int64) (int64, error)
	CreateAccount(ctx context.Context, account *models.Account) error
}

// Event tells the front end what happened in response to one input.
type Event int

const (
	// EventNone means the user has no session; the input is not ours.
	EventNone Event = iota
	// EventInvalidCredentials re-prompts for "api_id api_hash +phone".
	EventInvalidCredentials
	// EventCodeRequested means a login code is on its way.
	EventCodeRequested
	// EventInvalidCode re-prompts for the numeric code.
	EventInvalidCode
	// EventSecondFactorRequired asks for the additional secret.
	EventSecondFactorRequired
	// EventCompleted means the account was persisted; Result.Account is set.
	EventCompleted
)

// Result is the outcome of one processed input.
type Result struct {
	Event   Event
	Account *models.Account
}

// Machine advances onboarding sessions. All methods serialize per user via
// the registry; distinct users proceed concurrently.
type Machine struct {
	registry *Registry
	store    AccountStore
	vault    *vault.Vault
	dialer   automation.Dialer

	standardQuota int
	premiumQuota  int
}

// NewMachine constructs a Machine.
func NewMachine(registry *Registry, store AccountStore, v *vault.Vault, dialer automation.Dialer, standardQuota, premiumQuota int) *Machine {
	return &Machine{
		registry:      registry,
		store:         store,
		vault:         v,
		dialer:        dialer,
		standardQuota: standardQuota,
		premiumQuota:  premiumQuota,
	}
}

// quotaFor resolves the user's active-account limit.
func (m *Machine) quotaFor(user *models.User) int {
	if user.AccountQuota > 0 {
		return user.AccountQuota
	}
	if user.Premium {
		return m.premiumQuota
	}
	return m.standardQuota
}

// Begin starts a new onboarding dialogue for the user. A user at their
// account limit is rejected before any session or remote call exists.
// Any prior incomplete session for the user is discarded and its client
// released.
func (m *Machine) Begin(ctx context.Context, user *models.User) error {
	lock := m.registry.userLock(user.TelegramID)
	lock.Lock()
	defer lock.Unlock()

	count, errCount := m.store.CountActiveAccounts(ctx, user.TelegramID)
	if errCount != nil {
		return faults.Wrap(faults.KindStore, "onboarding: quota check", errCount)
	}
	quota := m.quotaFor(user)
	if count >= int64(quota) {
		return faults.Newf(faults.KindQuota, "onboarding: account limit reached (%d of %d)", count, quota)
	}

	replaced := m.registry.put(&Session{
		UserID: user.TelegramID,
		State:  StateAwaitingCredentials,
	})
	if replaced != nil {
		replaced.releaseClient()
		log.WithField("user_id", user.TelegramID).Info("onboarding: replaced incomplete session")
	}
	return nil
}

// Cancel discards the user's session, releasing any held client. It reports
// whether a session existed.
func (m *Machine) Cancel(userID int64) bool {
	lock := m.registry.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session := m.registry.remove(userID)
	if session == nil {
		return false
	}
	session.releaseClient()
	return true
}

// Active reports whether the user has a session in flight.
func (m *Machine) Active(userID int64) bool {
	return m.registry.Active(userID)
}

// Input advances the user's session with one message. Malformed input
// re-prompts without changing state. Terminal failures destroy the session,
// release the client, and return a classified error.
func (m *Machine) Input(ctx context.Context, userID int64, text string) (Result, error) {
	lock := m.registry.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session := m.registry.get(userID)
	if session == nil {
		return Result{Event: EventNone}, nil
	}

	switch session.State {
	case StateAwaitingCredentials:
		return m.handleCredentials(ctx, session, text)
	case StateAwaitingCode:
		return m.handleCode(ctx, session, text)
	case StateAwaitingSecondFactor:
		return m.handleSecondFactor(ctx, session, text)
	default:
		m.registry.remove(userID)
		session.releaseClient()
		return Result{}, faults.Newf(faults.KindValidation, "onboarding: corrupt session state %d", session.State)
	}
}

// handleCredentials parses "api_id api_hash +phone", opens the connection,
// and requests a login code.
func (m *Machine) handleCredentials(ctx context.Context, session *Session, text string) (Result, error) {
	parts := strings.Fields(text)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "+") {
		return Result{Event: EventInvalidCredentials}, nil
	}
	session.creds = automation.Credentials{
		APIID:   parts[0],
		APIHash: parts[1],
		Phone:   parts[2],
	}

	client := m.dialer.Dial(session.creds)
	if errConnect := client.Connect(ctx); errConnect != nil {
		client.Disconnect()
		m.registry.remove(session.UserID)
		return Result{}, faults.Wrap(faults.KindTransport, "onboarding: connect", errConnect)
	}
	if errCode := client.RequestCode(ctx); errCode != nil {
		client.Disconnect()
		m.registry.remove(session.UserID)
		return Result{}, faults.Wrap(faults.KindTransport, "onboarding: request code", errCode)
	}

	session.client = client
	session.State = StateAwaitingCode
	return Result{Event: EventCodeRequested}, nil
}

// handleCode verifies the one-time code. A second-factor demand keeps the
// client; every other verification error is terminal.
func (m *Machine) handleCode(ctx context.Context, session *Session, text string) (Result, error) {
	code := strings.TrimSpace(text)
	if !codePattern.MatchString(code) {
		return Result{Event: EventInvalidCode}, nil
	}

	outcome, errVerify := session.client.VerifyCode(ctx, code)
	if errVerify != nil {
		m.fail(session)
		return Result{}, faults.Wrap(faults.KindAuth, "onboarding: verify code", errVerify)
	}
	if outcome == automation.VerifySecondFactorRequired {
		session.State = StateAwaitingSecondFactor
		return Result{Event: EventSecondFactorRequired}, nil
	}
	return m.complete(ctx, session)
}

// handleSecondFactor submits the additional secret. Any text is accepted as
// the secret.
func (m *Machine) handleSecondFactor(ctx context.Context, session *Session, text string) (Result, error) {
	if errVerify := session.client.VerifySecondFactor(ctx, text); errVerify != nil {
		m.fail(session)
		return Result{}, faults.Wrap(faults.KindAuth, "onboarding: verify second factor", errVerify)
	}
	return m.complete(ctx, session)
}

// complete exports the session, encrypts it, persists the account, and
// releases the client. The plaintext session never leaves this function.
func (m *Machine) complete(ctx context.Context, session *Session) (Result, error) {
	plaintext, errExport := session.client.ExportSession()
	if errExport != nil {
		m.fail(session)
		return Result{}, faults.Wrap(faults.KindTransport, "onboarding: export session", errExport)
	}

	sealed, errEncrypt := m.vault.Encrypt(plaintext)
	if errEncrypt != nil {
		m.fail(session)
		return Result{}, faults.Wrap(faults.KindStore, "onboarding: encrypt session", errEncrypt)
	}

	account := &models.Account{
		OwnerID:    session.UserID,
		Phone:      session.creds.Phone,
		APIID:      session.creds.APIID,
		APIHash:    session.creds.APIHash,
		SessionEnc: sealed,
	}
	if errCreate := m.store.CreateAccount(ctx, account); errCreate != nil {
		m.fail(session)
		return Result{}, faults.Wrap(faults.KindStore, "onboarding: persist account", errCreate)
	}

	m.registry.remove(session.UserID)
	session.releaseClient()
	log.WithFields(log.Fields{
		"user_id": session.UserID,
		"phone":   session.creds.Phone,
	}).Info("onboarding: account linked")
	return Result{Event: EventCompleted, Account: account}, nil
}

// fail destroys the session and releases the client on a terminal error.
func (m *Machine) fail(session *Session) {
	m.registry.remove(session.UserID)
	session.releaseClient()
}
