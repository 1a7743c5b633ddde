package model

// AccessReason explains an access decision.
type AccessReason string

const (
	AccessReasonTrial     AccessReason = "trial"
	AccessReasonActivated AccessReason = "activated"
	AccessReasonExpired   AccessReason = "expired"
)

// AccessDecision is the answer to "may this user use this module now".
// TrialDaysLeft is nil for activated access.
type AccessDecision struct {
	Module        string       `json:"module"`
	Allowed       bool         `json:"allowed"`
	Reason        AccessReason `json:"reason"`
	TrialDaysLeft *int         `json:"trial_days_left"`
}

// AccessSummary is the per-user entitlement overview.
type AccessSummary struct {
	TrialDaysLeft    int      `json:"trial_days_left"`
	IsTrialActive    bool     `json:"is_trial_active"`
	ActivatedModules []string `json:"activated_modules"`
}

// CodeStats aggregates codes of one module.
type CodeStats struct {
	Total     int `json:"total"`
	Exhausted int `json:"exhausted"`
	Redeemed  int `json:"redeemed"`
}

// Stats is a point-in-time view over all ledgers.
type Stats struct {
	Users          int                  `json:"users"`
	UsersInTrial   int                  `json:"users_in_trial"`
	GrantsByModule map[string]int       `json:"grants_by_module"`
	CodesByModule  map[string]CodeStats `json:"codes_by_module"`
}
