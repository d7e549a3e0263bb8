package messages

const (
	IntroMessage = "Hi! I run prize draws and split people into groups.\n\n" +
		"Send the participant list as text (one name per line or comma separated) " +
		"or upload a .csv/.txt file, then use /draw or /group.\n\n" + HelpMessage

	HelpMessage = "Commands:\n" +
		"/roster <names> - replace the participant list\n" +
		"/sample - load a demo list\n" +
		"/clear - remove everyone\n" +
		"/stats - list size and duplicates\n" +
		"/dedupe - remove duplicate names\n" +
		"/draw - draw a winner\n" +
		"/repeat on|off - allow the same person to win again\n" +
		"/reset - put everyone back into the draw\n" +
		"/history - winners since the last reset\n" +
		"/winners - recent winners from the journal\n" +
		"/group <n> [ai] - split into n groups, optionally with AI names\n" +
		"/export - download the last groups as CSV"

	RosterUpdated   = "Participant list updated: %d names."
	RosterCleared   = "Participant list cleared."
	RosterEmpty     = "The participant list is empty. Send names or upload a file first."
	RosterDuplicate = "Found %d duplicate entries: %s\nUse /dedupe to remove them."
	RosterNoDupes   = "No duplicates."
	RosterDeduped   = "Removed %d duplicates, %d names left."
	RosterSize      = "%d participants."

	FileLoading     = "Reading %s..."
	FileUnsupported = "Only .csv and .txt files are supported."
	FileReadFailed  = "Could not read the file, the list was not changed: %v"

	DrawSpinning  = "🎰 Drawing..."
	DrawWinner    = "🏆 Winner: %s"
	DrawBusy      = "A draw is already in progress."
	DrawEmpty     = "No names remaining! Use /reset to start over."
	DrawModeOn    = "Repeat mode: the same name can win more than once."
	DrawModeOff   = "No-repeat mode: %d names remaining."
	DrawReset     = "Draw reset, %d names in the pool."
	DrawNoHistory = "Nobody has won yet."
	DrawHistory   = "Winners:\n%s"
	RepeatUsage   = "Usage: /repeat on|off"

	GroupUsage   = "Usage: /group <n> [ai], where n is between %d and %d."
	GroupTooFew  = "At least 2 participants are needed to make groups."
	GroupHeader  = "Groups:"
	GroupRenamed = "AI named the groups:"
	GroupNone    = "No groups yet. Use /group first."

	WinnersNone = "The journal has no winners for this chat."
	WinnersList = "Recent winners:\n%s"

	UnknownCommand = "Unknown command. /help lists what I can do."
)
