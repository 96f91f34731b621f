package ledger

import (
	"strings"
	"time"

	"yolka-fest/internal/models"
	"yolka-fest/internal/workbook"
)

// Column labels of the registration sheet, in the order new rows are written.
const (
	ColFullName     = "ФИО"
	ColCity         = "Город"
	ColNickname     = "Никнейм"
	ColBirthDate    = "Дата рождения"
	ColTeacher      = "Педагог"
	ColPhone        = "Телефон"
	ColVKLink       = "Ссылка ВК"
	ColNominations  = "Номинации"
	ColRegisteredAt = "Дата регистрации"
)

var Columns = []string{
	ColFullName,
	ColCity,
	ColNickname,
	ColBirthDate,
	ColTeacher,
	ColPhone,
	ColVKLink,
	ColNominations,
	ColRegisteredAt,
}

// TimestampLayout renders the registration time the way ru-RU locales do.
const TimestampLayout = "02.01.2006, 15:04:05"

func RowFromRegistration(rec models.Registration, at time.Time) workbook.Row {
	return workbook.Row{
		ColFullName:     rec.FullName,
		ColCity:         rec.City,
		ColNickname:     rec.Nickname,
		ColBirthDate:    rec.BirthDate,
		ColTeacher:      rec.Teacher,
		ColPhone:        rec.Phone,
		ColVKLink:       rec.VKLink,
		ColNominations:  strings.Join(rec.NominationLabels(), ", "),
		ColRegisteredAt: at.Format(TimestampLayout),
	}
}

// Values lays the row out under header. Labels the record does not fill stay
// blank; a repeated label is filled at its first position only.
func Values(rec models.Registration, at time.Time, header []string) []interface{} {
	row := RowFromRegistration(rec, at)
	out := make([]interface{}, len(header))
	for i, label := range header {
		v, ok := row[label]
		if !ok {
			out[i] = ""
			continue
		}
		out[i] = v
		delete(row, label)
	}
	return out
}
