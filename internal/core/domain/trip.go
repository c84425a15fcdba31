package domain

import "time"

type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Trip struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	ProjectID  string    `json:"projectId"`
	JobID      string    `json:"jobId,omitempty"`
	Date       string    `json:"date,omitempty"`
	Purpose    string    `json:"purpose,omitempty"`
	Route      []string  `json:"route"`
	DistanceKm *float64  `json:"distanceKm,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Review is the editable state presented after a call sheet finished.
type Review struct {
	Job         ExtractionJob       `json:"job"`
	Status      JobStatus           `json:"status"`
	Result      CallSheetResult     `json:"result"`
	Locations   []LocationCandidate `json:"locations"`
	Distance    RouteDistance       `json:"distance"`
	BaseAddress string              `json:"baseAddress,omitempty"`
}

// ReviewConfirmation carries the user-edited review fields.
type ReviewConfirmation struct {
	ProjectName string   `json:"projectName"`
	Date        string   `json:"date"`
	Purpose     string   `json:"purpose,omitempty"`
	Locations   []string `json:"locations"`
	DistanceKm  *float64 `json:"distanceKm,omitempty"`
}
