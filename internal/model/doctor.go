package model

// Doctor is a full roster record as stored in the doctor database.
type Doctor struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Room           string `json:"room"`
	Fee            string `json:"fee"`
}

// RosterEntry is the minimal doctor view handed to the triage prompt.
type RosterEntry struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}
