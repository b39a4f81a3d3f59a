package dto

// ValidateTransitionRequest asks whether a status change would be legal.
type ValidateTransitionRequest struct {
	Kind    string            `json:"kind"`
	Current string            `json:"current"`
	Target  string            `json:"target"`
	Context TransitionContext `json:"context"`
}

// TransitionContext carries the related facts the guards read. Fields
// irrelevant to the requested kind are ignored.
type TransitionContext struct {
	RepairLocation      *string `json:"repair_location"`
	HasDelivery         bool    `json:"has_delivery"`
	HasReturn           bool    `json:"has_return"`
	AllRepairsCompleted *bool   `json:"all_repairs_completed"`
	HasActiveTicket     bool    `json:"has_active_ticket"`
	QCPassed            *bool   `json:"qc_passed"`
	IsReplacement       bool    `json:"is_replacement"`
	HasRepairAction     bool    `json:"has_repair_action"`
}

// AllowedStatesResponse lists the legal next states from one state.
type AllowedStatesResponse struct {
	Kind     string   `json:"kind"`
	State    string   `json:"state"`
	Allowed  []string `json:"allowed"`
	Terminal bool     `json:"terminal"`
}
