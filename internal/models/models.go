package models

import "fmt"

type Nomination string

const (
	NominationHipHop      Nomination = "HIP-HOP"
	NominationHipHopPro   Nomination = "HIP-HOP PRO"
	NominationHipHopKids  Nomination = "HIP-HOP KIDS"
	NominationHipHopBeg   Nomination = "HIP-HOP BEG"
	NominationBBoys16Plus Nomination = "BBOYS 16+"
	NominationBBoysUnder9 Nomination = "BBOYS ДО 9ЛЕТ"
	NominationBGirls      Nomination = "BGIRLS"
	NominationBBoys10to12 Nomination = "BBOYS 10-12 ЛЕТ"
	NominationBBoys13to15 Nomination = "BBOYS 13-15"
	NominationAllStyles   Nomination = "All styles"
)

// Nominations is the display order of the categories.
var Nominations = []Nomination{
	NominationHipHop,
	NominationHipHopPro,
	NominationHipHopKids,
	NominationHipHopBeg,
	NominationBBoys16Plus,
	NominationBBoysUnder9,
	NominationBGirls,
	NominationBBoys10to12,
	NominationBBoys13to15,
	NominationAllStyles,
}

func ParseNomination(s string) (Nomination, error) {
	for _, n := range Nominations {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown nomination: %q", s)
}

// Form field names, shared by validation errors and the JSON API.
const (
	FieldFullName   = "fullName"
	FieldCity       = "city"
	FieldNickname   = "nickname"
	FieldBirthDate  = "birthDate"
	FieldTeacher    = "teacher"
	FieldPhone      = "phone"
	FieldVKLink     = "vkLink"
	FieldNomination = "nomination"
)

type Registration struct {
	FullName    string       `json:"fullName"`
	City        string       `json:"city"`
	Nickname    string       `json:"nickname"`
	BirthDate   string       `json:"birthDate"` // YYYY-MM-DD
	Teacher     string       `json:"teacher"`
	Phone       string       `json:"phone"`
	VKLink      string       `json:"vkLink"`
	Nominations []Nomination `json:"nomination"`
}

func (r Registration) NominationLabels() []string {
	out := make([]string, 0, len(r.Nominations))
	for _, n := range r.Nominations {
		out = append(out, string(n))
	}
	return out
}

func (r Registration) HasNomination(n Nomination) bool {
	for _, have := range r.Nominations {
		if have == n {
			return true
		}
	}
	return false
}

// FieldErrors maps a field name to a human readable message. Empty means submit-ready.
type FieldErrors map[string]string

type SubmissionResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	AIMessage string `json:"aiMessage,omitempty"`
}
