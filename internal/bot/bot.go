// Package bot is the chat front end. It translates inbound Telegram updates
// into onboarding steps and bulk runs and renders their outcomes back to the
// user. All domain rules live below; the bot only dispatches and formats.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cretee/creteebot/internal/bulk"
	"github.com/cretee/creteebot/internal/faults"
	"github.com/cretee/creteebot/internal/models"
	"github.com/cretee/creteebot/internal/onboarding"
	"github.com/cretee/creteebot/internal/ratelimit"
	"github.com/cretee/creteebot/internal/store"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Bot dispatches chat updates to the onboarding machine and bulk runner.
type Bot struct {
	api     *tgbotapi.BotAPI
	store   *store.Store
	machine *onboarding.Machine
	runner  *bulk.Runner
	limiter *ratelimit.Manager
	limit   int

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc // one live bulk run per user
}

// New constructs a Bot.
func New(api *tgbotapi.BotAPI, st *store.Store, machine *onboarding.Machine, runner *bulk.Runner, limiter *ratelimit.Manager, perUserLimit int) *Bot {
	return &Bot{
		api:     api,
		store:   st,
		machine: machine,
		runner:  runner,
		limiter: limiter,
		limit:   perUserLimit,
		cancels: make(map[int64]context.CancelFunc),
	}
}

// Run consumes updates until the context is cancelled. Each update is handled
// on its own goroutine; per-user ordering is enforced by the layers below.
func (b *Bot) Run(ctx context.Context) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)

	log.WithField("bot", b.api.Self.UserName).Info("bot: update loop started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("bot: update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	userID := msg.From.ID

	if !b.allow(ctx, userID) {
		return
	}

	user := &models.User{
		TelegramID: userID,
		FirstName:  msg.From.FirstName,
		Username:   msg.From.UserName,
	}
	// Premium and quota are operator-managed; carry them across the refresh.
	if existing, errFind := b.store.FindUser(ctx, userID); errFind == nil {
		user.Premium = existing.Premium
		user.AccountQuota = existing.AccountQuota
	}
	if errUpsert := b.store.UpsertUser(ctx, user); errUpsert != nil {
		log.WithError(errUpsert).WithField("user_id", userID).Error("bot: user upsert failed")
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}
	b.handleText(ctx, msg)
}

// allow applies the per-user inbound rate limit. Rejected updates are
// dropped silently; replying would itself amplify the flood.
func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil || b.limit <= 0 {
		return true
	}
	result, errAllow := b.limiter.Allow(ctx, ratelimit.KeyForUser(userID), b.limit)
	if errAllow != nil {
		log.WithError(errAllow).Warn("bot: rate limit check failed")
		return true
	}
	return result.Allowed
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, msgWelcome)
	case "addaccount":
		b.startOnboarding(ctx, msg.Chat.ID, user)
	case "myaccounts":
		b.listAccounts(ctx, msg.Chat.ID, user.TelegramID)
	case "removeaccount":
		b.startRemove(ctx, msg.Chat.ID, user.TelegramID)
	case "creategroup":
		b.startCreate(ctx, msg.Chat.ID, user.TelegramID, 1)
	case "creategroups":
		n, errParse := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
		if errParse != nil {
			b.reply(msg.Chat.ID, msgBadCount)
			return
		}
		b.startCreate(ctx, msg.Chat.ID, user.TelegramID, n)
	case "cancel":
		b.cancel(msg.Chat.ID, user.TelegramID)
	case "stats":
		b.stats(ctx, msg.Chat.ID, user.TelegramID)
	case "status":
		b.status(ctx, msg.Chat.ID, user.TelegramID)
	default:
		b.reply(msg.Chat.ID, msgUnknownCommand)
	}
}

// handleText feeds free text into the user's onboarding session, if any.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	result, errInput := b.machine.Input(ctx, userID, msg.Text)
	if errInput != nil {
		b.reply(msg.Chat.ID, onboardingFailureText(errInput))
		return
	}

	switch result.Event {
	case onboarding.EventNone:
		// No session; ignore chatter.
	case onboarding.EventInvalidCredentials:
		b.reply(msg.Chat.ID, msgPromptCredentials)
	case onboarding.EventCodeRequested:
		b.reply(msg.Chat.ID, msgPromptCode)
	case onboarding.EventInvalidCode:
		b.reply(msg.Chat.ID, msgPromptCodeAgain)
	case onboarding.EventSecondFactorRequired:
		b.reply(msg.Chat.ID, msgPromptSecondFactor)
	case onboarding.EventCompleted:
		b.reply(msg.Chat.ID, fmt.Sprintf(msgAccountLinked, result.Account.Phone))
	}
}

func (b *Bot) startOnboarding(ctx context.Context, chatID int64, user *models.User) {
	if errBegin := b.machine.Begin(ctx, user); errBegin != nil {
		if faults.Is(errBegin, faults.KindQuota) {
			b.reply(chatID, msgQuotaReached)
			return
		}
		log.WithError(errBegin).WithField("user_id", user.TelegramID).Error("bot: onboarding begin failed")
		b.reply(chatID, msgInternalError)
		return
	}
	b.reply(chatID, msgPromptCredentials)
}

func (b *Bot) listAccounts(ctx context.Context, chatID, userID int64) {
	accounts, errList := b.store.FindAccountsByOwner(ctx, userID, true)
	if errList != nil {
		log.WithError(errList).WithField("user_id", userID).Error("bot: account list failed")
		b.reply(chatID, msgInternalError)
		return
	}
	if len(accounts) == 0 {
		b.reply(chatID, msgNoAccounts)
		return
	}
	var sb strings.Builder
	sb.WriteString(msgAccountsHeader)
	for i, account := range accounts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, account.Phone)
	}
	b.reply(chatID, sb.String())
}

// startCreate resolves which account to run against. A single active account
// starts immediately; multiple present a selection keyboard carrying the
// requested count in the callback payload.
func (b *Bot) startCreate(ctx context.Context, chatID, userID int64, n int) {
	accounts, errList := b.store.FindAccountsByOwner(ctx, userID, true)
	if errList != nil {
		log.WithError(errList).WithField("user_id", userID).Error("bot: account list failed")
		b.reply(chatID, msgInternalError)
		return
	}
	if len(accounts) == 0 {
		b.reply(chatID, msgNoAccounts)
		return
	}
	if len(accounts) == 1 {
		b.launchRun(ctx, chatID, &accounts[0], n)
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(accounts))
	for _, account := range accounts {
		data := fmt.Sprintf("run:%d:%d", account.ID, n)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(account.Phone, data),
		))
	}
	out := tgbotapi.NewMessage(chatID, msgPickAccount)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	if !b.allow(ctx, cb.From.ID) {
		return
	}
	defer func() {
		if _, errAck := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); errAck != nil {
			log.WithError(errAck).Debug("bot: callback ack failed")
		}
	}()

	parts := strings.Split(cb.Data, ":")
	switch {
	case len(parts) == 3 && parts[0] == "run":
		accountID, errAccount := strconv.ParseUint(parts[1], 10, 64)
		n, errCount := strconv.Atoi(parts[2])
		if errAccount != nil || errCount != nil {
			return
		}
		account, errFind := b.store.FindAccount(ctx, accountID)
		if errFind != nil || account.OwnerID != cb.From.ID {
			b.reply(cb.Message.Chat.ID, msgInternalError)
			return
		}
		b.launchRun(ctx, cb.Message.Chat.ID, account, n)
	case len(parts) == 2 && parts[0] == "rm":
		accountID, errAccount := strconv.ParseUint(parts[1], 10, 64)
		if errAccount != nil {
			return
		}
		b.removeAccount(ctx, cb.Message.Chat.ID, cb.From.ID, accountID)
	}
}

// startRemove presents the user's active accounts for unlinking.
func (b *Bot) startRemove(ctx context.Context, chatID, userID int64) {
	accounts, errList := b.store.FindAccountsByOwner(ctx, userID, true)
	if errList != nil {
		log.WithError(errList).WithField("user_id", userID).Error("bot: account list failed")
		b.reply(chatID, msgInternalError)
		return
	}
	if len(accounts) == 0 {
		b.reply(chatID, msgNoAccounts)
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(accounts))
	for _, account := range accounts {
		data := fmt.Sprintf("rm:%d", account.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(account.Phone, data),
		))
	}
	out := tgbotapi.NewMessage(chatID, msgPickAccountRemove)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

// removeAccount soft-deactivates the account. The owner check lives in the
// store query, so a forged callback for someone else's account is a no-op.
func (b *Bot) removeAccount(ctx context.Context, chatID, userID int64, accountID uint64) {
	if errRemove := b.store.DeactivateAccount(ctx, accountID, userID); errRemove != nil {
		if errors.Is(errRemove, store.ErrNotFound) {
			b.reply(chatID, msgNoAccounts)
			return
		}
		log.WithError(errRemove).WithField("user_id", userID).Error("bot: account deactivate failed")
		b.reply(chatID, msgInternalError)
		return
	}
	b.reply(chatID, msgAccountRemoved)
}

// launchRun starts the creation work on its own goroutine so the update loop
// stays responsive through the run's pacing delays.
func (b *Bot) launchRun(ctx context.Context, chatID int64, account *models.Account, n int) {
	userID := account.OwnerID

	if n == 1 {
		go func() {
			group, errRun := b.runner.RunOne(ctx, account)
			if errRun != nil {
				b.reply(chatID, createFailureText(errRun))
				return
			}
			b.reply(chatID, fmt.Sprintf(msgGroupCreated, group.Name, group.InviteLink))
		}()
		return
	}

	b.mu.Lock()
	if _, busy := b.cancels[userID]; busy {
		b.mu.Unlock()
		b.reply(chatID, msgRunInProgress)
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancels[userID] = cancel
	b.mu.Unlock()

	notice := b.sendReturning(chatID, fmt.Sprintf(msgRunStarting, n))

	go func() {
		defer func() {
			cancel()
			b.mu.Lock()
			delete(b.cancels, userID)
			b.mu.Unlock()
		}()

		sink := func(p bulk.Progress) {
			b.editOrReply(chatID, notice, fmt.Sprintf(msgRunProgress, p.Completed, p.Total, p.Succeeded, p.Failed))
		}
		summary, errRun := b.runner.Run(runCtx, account, n, sink)
		if summary == nil {
			b.editOrReply(chatID, notice, createFailureText(errRun))
			return
		}
		text := fmt.Sprintf(msgRunFinished, summary.Succeeded, summary.Failed, summary.Requested)
		if errRun != nil {
			text = fmt.Sprintf(msgRunCancelled, summary.Succeeded, summary.Failed)
		}
		b.editOrReply(chatID, notice, text)
	}()
}

// cancel tears down whichever flow the user has in flight.
func (b *Bot) cancel(chatID, userID int64) {
	cancelled := false

	b.mu.Lock()
	if cancelFn, ok := b.cancels[userID]; ok {
		cancelFn()
		cancelled = true
	}
	b.mu.Unlock()

	if b.machine.Cancel(userID) {
		cancelled = true
	}
	if cancelled {
		b.reply(chatID, msgCancelled)
		return
	}
	b.reply(chatID, msgNothingToCancel)
}

// stats reports service-wide totals alongside the caller's own accounts.
// A broken store degrades to a friendly notice; the bot itself keeps going.
func (b *Bot) stats(ctx context.Context, chatID, userID int64) {
	totals, errTotals := b.store.CountTotals(ctx)
	if errTotals != nil {
		log.WithError(errTotals).Warn("bot: stats totals failed")
		b.reply(chatID, msgStatsUnavailable)
		return
	}
	yours, errYours := b.store.CountActiveAccounts(ctx, userID)
	if errYours != nil {
		log.WithError(errYours).Warn("bot: stats account count failed")
		b.reply(chatID, msgStatsUnavailable)
		return
	}
	b.reply(chatID, statsText(totals, yours))
}

func (b *Bot) status(ctx context.Context, chatID, userID int64) {
	accounts, errAccounts := b.store.CountActiveAccounts(ctx, userID)
	if errAccounts != nil {
		b.reply(chatID, msgInternalError)
		return
	}
	groups, errGroups := b.store.CountGroupsByOwner(ctx, userID)
	if errGroups != nil {
		b.reply(chatID, msgInternalError)
		return
	}
	onboardingLine := "no"
	if b.machine.Active(userID) {
		onboardingLine = "yes"
	}
	b.mu.Lock()
	_, running := b.cancels[userID]
	b.mu.Unlock()
	runLine := "no"
	if running {
		runLine = "yes"
	}
	text := fmt.Sprintf(msgStatus, accounts, groups, onboardingLine, runLine)
	if runs, errRuns := b.store.ListBulkRunsByOwner(ctx, userID, 1); errRuns == nil && len(runs) > 0 {
		last := runs[0]
		text += fmt.Sprintf(msgStatusLastRun, last.Succeeded, last.Failed, last.Requested)
	}
	b.reply(chatID, text)
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, errSend := b.api.Send(msg); errSend != nil {
		log.WithError(errSend).WithField("chat_id", msg.ChatID).Warn("bot: send failed")
	}
}

// sendReturning sends a message and returns its identifier for later edits,
// or 0 when sending failed.
func (b *Bot) sendReturning(chatID int64, text string) int {
	sent, errSend := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if errSend != nil {
		log.WithError(errSend).WithField("chat_id", chatID).Warn("bot: send failed")
		return 0
	}
	return sent.MessageID
}

// editOrReply updates the progress message in place, falling back to a fresh
// message when there is nothing to edit.
func (b *Bot) editOrReply(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.reply(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, errEdit := b.api.Request(edit); errEdit != nil {
		log.WithError(errEdit).Debug("bot: progress edit failed")
	}
}
