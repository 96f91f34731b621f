package registration

import (
	"strings"

	"yolka-fest/internal/models"
)

var fieldMessages = map[string]string{
	models.FieldFullName:   "Введите ФИО",
	models.FieldCity:       "Введите город",
	models.FieldNickname:   "Введите никнейм",
	models.FieldBirthDate:  "Выберите дату рождения",
	models.FieldTeacher:    "Введите педагога",
	models.FieldPhone:      "Введите номер телефона",
	models.FieldVKLink:     "Введите ссылку на ВК",
	models.FieldNomination: "Выберите хотя бы одну номинацию",
}

// Fields lists the form fields in page order.
var Fields = []string{
	models.FieldNickname,
	models.FieldBirthDate,
	models.FieldFullName,
	models.FieldCity,
	models.FieldTeacher,
	models.FieldPhone,
	models.FieldVKLink,
	models.FieldNomination,
}

// Validate only checks presence; formats are not inspected.
func Validate(rec models.Registration) models.FieldErrors {
	errs := models.FieldErrors{}
	for _, f := range Fields {
		if msg := ValidateField(f, rec); msg != "" {
			errs[f] = msg
		}
	}
	return errs
}

// ValidateField returns the message for a missing field, or "" when present.
func ValidateField(field string, rec models.Registration) string {
	var ok bool
	switch field {
	case models.FieldNomination:
		ok = len(rec.Nominations) > 0
	default:
		v, known := fieldValue(rec, field)
		ok = known && strings.TrimSpace(v) != ""
	}
	if ok {
		return ""
	}
	return fieldMessages[field]
}

func fieldValue(rec models.Registration, field string) (string, bool) {
	switch field {
	case models.FieldFullName:
		return rec.FullName, true
	case models.FieldCity:
		return rec.City, true
	case models.FieldNickname:
		return rec.Nickname, true
	case models.FieldBirthDate:
		return rec.BirthDate, true
	case models.FieldTeacher:
		return rec.Teacher, true
	case models.FieldPhone:
		return rec.Phone, true
	case models.FieldVKLink:
		return rec.VKLink, true
	}
	return "", false
}

func setFieldValue(rec *models.Registration, field, value string) bool {
	switch field {
	case models.FieldFullName:
		rec.FullName = value
	case models.FieldCity:
		rec.City = value
	case models.FieldNickname:
		rec.Nickname = value
	case models.FieldBirthDate:
		rec.BirthDate = value
	case models.FieldTeacher:
		rec.Teacher = value
	case models.FieldPhone:
		rec.Phone = value
	case models.FieldVKLink:
		rec.VKLink = value
	default:
		return false
	}
	return true
}
