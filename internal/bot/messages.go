package bot

import (
	"fmt"

	"github.com/cretee/creteebot/internal/faults"
	"github.com/cretee/creteebot/internal/store"
)

const (
	msgWelcome = "Hi! I create groups from your linked accounts.\n\n" +
		"/addaccount — link an account\n" +
		"/myaccounts — list linked accounts\n" +
		"/removeaccount — unlink an account\n" +
		"/creategroup — create one group\n" +
		"/creategroups N — create N groups\n" +
		"/stats — service statistics\n" +
		"/status — what is running\n" +
		"/cancel — stop the current flow"
	msgUnknownCommand = "I don't know that command. Try /start."

	msgPromptCredentials  = "Send your credentials as: api_id api_hash +phone"
	msgPromptCode         = "Code sent. Reply with the 5-digit login code."
	msgPromptCodeAgain    = "That doesn't look like a login code. Send the 5 digits."
	msgPromptSecondFactor = "This account has two-step verification. Send the password."
	msgAccountLinked      = "Account %s linked. Use /creategroup to put it to work."
	msgQuotaReached       = "You've reached your account limit. /removeaccount one before linking another."

	msgNoAccounts        = "No linked accounts yet. Use /addaccount first."
	msgAccountsHeader    = "Your accounts:\n"
	msgPickAccount       = "Which account should I use?"
	msgPickAccountRemove = "Which account should I unlink?"
	msgAccountRemoved    = "Account unlinked. Its groups stay where they are."

	msgBadCount      = "Usage: /creategroups N"
	msgRunInProgress = "A run is already in progress. /cancel it first."
	msgRunStarting   = "Starting a run of %d groups..."
	msgRunProgress   = "Progress: %d/%d (ok %d, failed %d)"
	msgRunFinished   = "Done: %d created, %d failed of %d requested."
	msgRunCancelled  = "Stopped: %d created, %d failed before cancellation."
	msgGroupCreated  = "Group %q created.\nInvite: %s"

	msgCancelled       = "Cancelled."
	msgNothingToCancel = "Nothing to cancel."
	msgStatus          = "Accounts: %d\nGroups created: %d\nOnboarding in progress: %s\nRun in progress: %s"
	msgStatusLastRun   = "\nLast run: %d created, %d failed of %d"

	msgStatsUnavailable = "Statistics are temporarily unavailable. The bot is still working."
	msgInternalError    = "Something went wrong on my side. Try again in a bit."
)

// statsText renders service-wide totals next to the caller's own account count.
func statsText(totals store.Totals, yourAccounts int64) string {
	return fmt.Sprintf(
		"Total accounts: %d\nYour accounts: %d\nUsers: %d\nGroups created: %d",
		totals.Accounts, yourAccounts, totals.Users, totals.Groups,
	)
}

// onboardingFailureText maps a terminal onboarding error to user-facing text.
func onboardingFailureText(err error) string {
	switch faults.KindOf(err) {
	case faults.KindTransport:
		return "Couldn't reach the platform with those credentials. Start over with /addaccount."
	case faults.KindAuth:
		return "Sign-in was rejected. Check the code or password and start over with /addaccount."
	case faults.KindQuota:
		return msgQuotaReached
	default:
		return msgInternalError
	}
}

// createFailureText maps a creation-run error to user-facing text.
func createFailureText(err error) string {
	switch faults.KindOf(err) {
	case faults.KindValidation:
		return "Count must be between 1 and 20."
	case faults.KindIntegrity:
		return "This account's stored session is corrupt. Re-link it with /addaccount."
	case faults.KindTransport:
		return "The platform rejected the request. Try again later."
	default:
		return msgInternalError
	}
}
