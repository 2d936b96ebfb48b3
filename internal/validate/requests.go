package validate

import (
	"time"

	"audiencier/internal/model"
)

// CreateCaseRequest is the payload of POST /api/cases.
type CreateCaseRequest struct {
	Reference    string     `json:"reference"`
	Title        string     `json:"title"`
	Jurisdiction string     `json:"jurisdiction"`
	Chamber      string     `json:"chamber"`
	DecisionDate *time.Time `json:"decision_date"`
	AppealDays   int        `json:"appeal_days"`
}

var CreateCaseRules = []Rule[CreateCaseRequest]{
	{"reference", func(r CreateCaseRequest) bool { return Required(r.Reference) }, "La référence est obligatoire"},
	{"reference", func(r CreateCaseRequest) bool { return MaxLen(r.Reference, 64) }, "La référence ne doit pas dépasser 64 caractères"},
	{"title", func(r CreateCaseRequest) bool { return Required(r.Title) }, "L'intitulé est obligatoire"},
	{"title", func(r CreateCaseRequest) bool { return MaxLen(r.Title, 255) }, "L'intitulé ne doit pas dépasser 255 caractères"},
	{"jurisdiction", func(r CreateCaseRequest) bool { return Required(r.Jurisdiction) }, "La juridiction est obligatoire"},
	{"jurisdiction", func(r CreateCaseRequest) bool { return MaxLen(r.Jurisdiction, 255) }, "La juridiction ne doit pas dépasser 255 caractères"},
	{"chamber", func(r CreateCaseRequest) bool { return MaxLen(r.Chamber, 128) }, "La chambre ne doit pas dépasser 128 caractères"},
	{"appeal_days", func(r CreateCaseRequest) bool { return r.AppealDays >= 0 && r.AppealDays <= 365 }, "Le délai de recours doit être compris entre 0 et 365 jours"},
}

// UpdateCaseStatusRequest is the payload of PATCH /api/cases/{id}/status.
type UpdateCaseStatusRequest struct {
	Status string `json:"status"`
}

var UpdateCaseStatusRules = []Rule[UpdateCaseStatusRequest]{
	{"status", func(r UpdateCaseStatusRequest) bool { return model.CaseStatus(r.Status).Valid() }, "Le statut de l'affaire est invalide"},
}

// CreatePartyRequest is the payload of POST /api/cases/{id}/parties.
type CreatePartyRequest struct {
	CaseID string `json:"case_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Lawyer string `json:"lawyer"`
}

var CreatePartyRules = []Rule[CreatePartyRequest]{
	{"case_id", func(r CreatePartyRequest) bool { return IsUUID(r.CaseID) }, "L'identifiant de l'affaire doit être un UUID valide"},
	{"name", func(r CreatePartyRequest) bool { return Required(r.Name) }, "Le nom de la partie est obligatoire"},
	{"name", func(r CreatePartyRequest) bool { return MaxLen(r.Name, 255) }, "Le nom ne doit pas dépasser 255 caractères"},
	{"role", func(r CreatePartyRequest) bool { return model.PartyRole(r.Role).Valid() }, "La qualité de la partie est invalide"},
	{"lawyer", func(r CreatePartyRequest) bool { return MaxLen(r.Lawyer, 255) }, "Le nom de l'avocat ne doit pas dépasser 255 caractères"},
}

// CreateHearingRequest is the payload of POST /api/hearings.
type CreateHearingRequest struct {
	CaseID string    `json:"case_id"`
	Date   time.Time `json:"date"`
	Room   string    `json:"room"`
	Status string    `json:"status"`
	Notes  string    `json:"notes"`
}

var CreateHearingRules = []Rule[CreateHearingRequest]{
	{"case_id", func(r CreateHearingRequest) bool { return IsUUID(r.CaseID) }, "L'identifiant de l'affaire doit être un UUID valide"},
	{"date", func(r CreateHearingRequest) bool { return !r.Date.IsZero() }, "La date de l'audience est obligatoire"},
	{"room", func(r CreateHearingRequest) bool { return MaxLen(r.Room, 64) }, "La salle ne doit pas dépasser 64 caractères"},
	{"status", func(r CreateHearingRequest) bool {
		return r.Status == "" || model.HearingStatus(r.Status).Valid()
	}, "Le statut de l'audience est invalide"},
	{"notes", func(r CreateHearingRequest) bool { return MaxLen(r.Notes, 2000) }, "Les notes ne doivent pas dépasser 2000 caractères"},
}

// UpdateHearingStatusRequest is the payload of PATCH /api/hearings/{id}/status.
type UpdateHearingStatusRequest struct {
	Status string `json:"status"`
}

var UpdateHearingStatusRules = []Rule[UpdateHearingStatusRequest]{
	{"status", func(r UpdateHearingStatusRequest) bool { return model.HearingStatus(r.Status).Valid() }, "Le statut de l'audience est invalide"},
}

// Credentials are the Basic Auth settings of the config file.
type Credentials struct {
	Username string
	Password string
}

var CredentialsRules = []Rule[Credentials]{
	{"username", func(c Credentials) bool { return Required(c.Username) }, "Le nom d'utilisateur est obligatoire"},
	{"password", func(c Credentials) bool { return StrongPassword(c.Password) }, "Le mot de passe doit contenir au moins 8 caractères, une majuscule, une minuscule et un chiffre"},
}
