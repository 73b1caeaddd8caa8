package models

// IntentType names a discrete user intent delivered to the session
type IntentType string

const (
	IntentSubmit         IntentType = "submit"
	IntentAdvance        IntentType = "advance"
	IntentRetreat        IntentType = "retreat"
	IntentGoTo           IntentType = "goto"
	IntentKey            IntentType = "key"
	IntentLogout         IntentType = "logout"
	IntentRequestSummary IntentType = "request_summary"
	IntentDismissSummary IntentType = "dismiss_summary"
)

// Intent is a renderer event. Only the fields relevant to Type are read.
type Intent struct {
	Type     IntentType `json:"type"`
	LoginID  string     `json:"loginId,omitempty"`
	Password string     `json:"password,omitempty"`
	Index    int        `json:"index,omitempty"`
	Key      string     `json:"key,omitempty"`
}
