package models

// Stats request types
const (
	StatsTypeAll     = "all"
	StatsTypeHosting = "hosting"
	StatsTypeSelf    = "self"
)

// StatsRequest is the POST /api/stats request body
type StatsRequest struct {
	Type string `json:"type" validate:"required,oneof=all hosting self"`
}

// Overview holds the site-wide counters shown on the dashboard
type Overview struct {
	Users     int64 `json:"users"`
	Sets      int64 `json:"sets"`
	OpenForms int64 `json:"openForms"`
	Downloads int64 `json:"downloads"`
}

// PingResponse answers a "self" stats request
type PingResponse struct {
	Response string `json:"response"`
}

// RollbackRequest is the POST /api/rollback request body
type RollbackRequest struct {
	VersionHash string `json:"versionHash"`
}
