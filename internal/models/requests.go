package models

// APIResponse is the standard response envelope of the HTTP API.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// PlanningRunRequest is the body of POST /api/planning/run.
type PlanningRunRequest struct {
	BaseDate string `json:"base_date,omitempty"` // YYYY-MM-DD; defaults to tomorrow (UTC)
	Group    string `json:"group,omitempty"`
	Repair   bool   `json:"repair,omitempty"`
}
