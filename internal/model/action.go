package model

// Action is the outcome recorded for one ledger row.
// Keep these values stable; they are intended for CSV output.
type Action string

const (
	ActionNone    Action = "none"
	ActionOpen    Action = "open"
	ActionFunding Action = "funding"
	ActionClose   Action = "close"
)
