// Package bulk runs bounded sequential group-creation batches against one
// stored account, pacing requests and reconciling per-item outcomes.
package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cretee/creteebot/internal/automation"
	"github.com/cretee/creteebot/internal/faults"
	"github.com/cretee/creteebot/internal/models"
	"github.com/cretee/creteebot/internal/vault"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store is the slice of the entity store the runner needs.
type Store interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	CreateBulkRun(ctx context.Context, run *models.BulkRun) error
	TouchAccount(ctx context.Context, id uint64) error
}

// Progress is one snapshot emitted after each item.
type Progress struct {
	Completed int
	Total     int
	Succeeded int
	Failed    int
}

// ProgressSink receives snapshots in item order. A nil sink is allowed.
type ProgressSink func(Progress)

// ItemError records one failed item for the run's audit trail.
type ItemError struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Summary is the final tally of one run.
type Summary struct {
	RunID     string
	Requested int
	Succeeded int
	Failed    int
	Errors    []ItemError
}

// Runner orchestrates bulk creation runs. Time, sleeping, and run-identifier
// generation are injectable for tests.
type Runner struct {
	store  Store
	vault  *vault.Vault
	dialer automation.Dialer

	maxCount  int
	itemDelay time.Duration

	nowFn    func() time.Time
	sleepFn  func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

// NewRunner constructs a Runner. maxCount bounds the accepted item count and
// itemDelay paces consecutive items.
func NewRunner(store Store, v *vault.Vault, dialer automation.Dialer, maxCount int, itemDelay time.Duration) *Runner {
	return &Runner{
		store:     store,
		vault:     v,
		dialer:    dialer,
		maxCount:  maxCount,
		itemDelay: itemDelay,
		nowFn:     time.Now,
		sleepFn:   waitFor,
		newRunID:  uuid.NewString,
	}
}

// waitFor sleeps for d or until the context is done.
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run creates n groups through the account's stored session. The count is
// validated before any remote call; a connect failure aborts with zero items
// attempted. Individual item failures are counted and never abort the run.
// The client is released exactly once on every path. A cancelled context
// stops the run between items; the partial tally is still persisted and
// returned alongside the context's error.
func (r *Runner) Run(ctx context.Context, account *models.Account, n int, sink ProgressSink) (*Summary, error) {
	if n < 1 || n > r.maxCount {
		return nil, faults.Newf(faults.KindValidation, "bulk: count %d out of range 1..%d", n, r.maxCount)
	}

	client, errDial := r.dial(account)
	if errDial != nil {
		return nil, errDial
	}
	if errConnect := client.Connect(ctx); errConnect != nil {
		client.Disconnect()
		return nil, faults.Wrap(faults.KindTransport, "bulk: connect", errConnect)
	}
	defer client.Disconnect()

	startedAt := r.nowFn().UTC()
	summary := &Summary{RunID: r.newRunID(), Requested: n}
	namePrefix := fmt.Sprintf("grp-%s", startedAt.Format("20060102-150405"))

	var errRun error
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("%s-%d", namePrefix, i)
		if reason := r.createItem(ctx, client, account, summary.RunID, name); reason == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{Index: i, Name: name, Reason: reason})
		}

		if sink != nil {
			sink(Progress{Completed: i, Total: n, Succeeded: summary.Succeeded, Failed: summary.Failed})
		}
		if i == n {
			break
		}
		if errSleep := r.sleepFn(ctx, r.itemDelay); errSleep != nil {
			errRun = errSleep
			break
		}
	}

	if errPersist := r.persistRun(ctx, account, summary, startedAt); errPersist != nil {
		log.WithError(errPersist).WithField("run_id", summary.RunID).Warn("bulk: run record not persisted")
	}
	log.WithFields(log.Fields{
		"run_id":    summary.RunID,
		"owner_id":  account.OwnerID,
		"requested": summary.Requested,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("bulk: run finished")
	return summary, errRun
}

// RunOne creates a single group through the account's stored session, with no
// progress sink and no pacing delay. It returns the persisted group.
func (r *Runner) RunOne(ctx context.Context, account *models.Account) (*models.Group, error) {
	client, errDial := r.dial(account)
	if errDial != nil {
		return nil, errDial
	}
	if errConnect := client.Connect(ctx); errConnect != nil {
		client.Disconnect()
		return nil, faults.Wrap(faults.KindTransport, "bulk: connect", errConnect)
	}
	defer client.Disconnect()

	name := fmt.Sprintf("grp-%s", r.nowFn().UTC().Format("20060102-150405"))
	group, reason := r.create(ctx, client, account, name)
	if reason != "" {
		return nil, faults.New(faults.KindTransport, "bulk: create group: "+reason)
	}
	return group, nil
}

// dial decrypts the stored session and constructs a client. Integrity
// failures from the vault surface unchanged.
func (r *Runner) dial(account *models.Account) (automation.Client, error) {
	session, errDecrypt := r.vault.Decrypt(account.SessionEnc)
	if errDecrypt != nil {
		return nil, errDecrypt
	}
	return r.dialer.Dial(automation.Credentials{
		APIID:   account.APIID,
		APIHash: account.APIHash,
		Phone:   account.Phone,
		Session: session,
	}), nil
}

// create issues one remote creation and persists the Group on success. A
// persistence failure counts against the item so the tally never overstates
// durable records.
func (r *Runner) create(ctx context.Context, client automation.Client, account *models.Account, name string) (*models.Group, string) {
	result := client.CreateGroup(ctx, name)
	if result.Failed != nil {
		return nil, result.Failed.Reason
	}
	if result.Created == nil {
		return nil, "empty create result"
	}

	group := &models.Group{
		Name:        name,
		RemoteID:    result.Created.RemoteID,
		InviteLink:  result.Created.InviteLink,
		AccountID:   account.ID,
		OwnerID:     account.OwnerID,
		MemberCount: result.Created.MemberCount,
	}
	if errCreate := r.store.CreateGroup(ctx, group); errCreate != nil {
		return nil, "persist group: " + errCreate.Error()
	}
	if errTouch := r.store.TouchAccount(ctx, account.ID); errTouch != nil {
		log.WithError(errTouch).WithField("account_id", account.ID).Warn("bulk: last-used not recorded")
	}
	return group, ""
}

// createItem is the per-item step of Run.
func (r *Runner) createItem(ctx context.Context, client automation.Client, account *models.Account, runID, name string) string {
	_, reason := r.create(ctx, client, account, name)
	if reason != "" {
		log.WithFields(log.Fields{
			"run_id": runID,
			"name":   name,
			"reason": reason,
		}).Warn("bulk: item failed")
	}
	return reason
}

// persistRun writes the reconciled BulkRun record.
func (r *Runner) persistRun(ctx context.Context, account *models.Account, summary *Summary, startedAt time.Time) error {
	run := &models.BulkRun{
		RunID:      summary.RunID,
		OwnerID:    account.OwnerID,
		AccountID:  account.ID,
		Requested:  summary.Requested,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		StartedAt:  startedAt,
		FinishedAt: r.nowFn().UTC(),
	}
	if len(summary.Errors) > 0 {
		payload, errMarshal := json.Marshal(summary.Errors)
		if errMarshal != nil {
			return fmt.Errorf("bulk: marshal item errors: %w", errMarshal)
		}
		run.ItemErrors = payload
	}
	return r.store.CreateBulkRun(ctx, run)
}
