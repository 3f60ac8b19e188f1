package model

// Events pushed to a user's live connections.
const (
	EventSyncFinished        = "sync_finished"
	EventNewMessage          = "new_message"
	EventUnsubscribeFinished = "unsubscribe_finished"
)
