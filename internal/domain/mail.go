package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const MailTypeRunCompleted = "run_completed"

type RunCompletedMailData struct {
	FullName        string `json:"fullName"`
	RunID           int64  `json:"runID"`
	NumSchedules    int    `json:"numSchedules"`
	NumViable       int    `json:"numViable"`
	BestFileName    string `json:"bestFileName"`
	NonViableReason string `json:"nonViableReason"`
}
