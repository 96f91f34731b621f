package workbook

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, sheets map[string][][]interface{}, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecodeFirstSheetByPosition(t *testing.T) {
	data := buildXLSX(t, map[string][][]interface{}{
		"Заявки": {
			{"ФИО", "Город"},
			{"Иванов Иван", "Москва"},
			{"", ""},
			{"Петров Пётр", ""},
		},
		"Архив": {
			{"ignored"},
		},
	}, []string{"Заявки", "Архив"})

	s, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "Заявки", s.Name)
	assert.Equal(t, []string{"ФИО", "Город"}, s.Columns)
	want := []Row{
		{"ФИО": "Иванов Иван", "Город": "Москва"},
		{"ФИО": "Петров Пётр"},
	}
	if diff := cmp.Diff(want, s.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBlankAndDuplicateHeaders(t *testing.T) {
	data := buildXLSX(t, map[string][][]interface{}{
		"Sheet": {
			{"Имя", "", "Имя"},
			{"a", "b", "c", "d"},
		},
	}, []string{"Sheet"})

	s, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Имя", "__EMPTY", "Имя_1", "__EMPTY_1"}, s.Columns)
	assert.Equal(t, Row{"Имя": "a", "__EMPTY": "b", "Имя_1": "c", "__EMPTY_1": "d"}, s.Rows[0])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not a zip"))
	require.Error(t, err)
}

func TestAppendRoundTrip(t *testing.T) {
	data := buildXLSX(t, map[string][][]interface{}{
		"Регистрация": {
			{"ФИО", "Комментарий"},
			{"Иванов Иван", "оплачено"},
			{"Сидоров Сидор", ""},
		},
	}, []string{"Регистрация"})

	before, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, before.Rows, 2)

	s := before
	s.Rows = append([]Row(nil), before.Rows...)
	s.Columns = append([]string(nil), before.Columns...)
	s.Append(Row{"ФИО": "Новый Участник", "Город": "Казань"}, []string{"ФИО", "Город"})
	assert.Equal(t, []string{"ФИО", "Комментарий", "Город"}, s.Columns)

	out, err := Encode(s)
	require.NoError(t, err)

	after, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "Регистрация", after.Name)
	require.Len(t, after.Rows, 3)
	if diff := cmp.Diff(before.Rows, after.Rows[:2]); diff != "" {
		t.Fatalf("existing rows changed (-before +after):\n%s", diff)
	}
	assert.Equal(t, Row{"ФИО": "Новый Участник", "Город": "Казань"}, after.Rows[2])
}

func TestEncodeEmptySheetKeepsName(t *testing.T) {
	s := Sheet{Name: "Лист1"}
	s.Append(Row{"ФИО": "x"}, []string{"ФИО"})
	out, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "Лист1", got.Name)
	assert.Equal(t, []Row{{"ФИО": "x"}}, got.Rows)
}

func TestWriteCSV(t *testing.T) {
	s := Sheet{
		Columns: []string{"ФИО", "Номинации"},
		Rows:    []Row{{"ФИО": "Иванов", "Номинации": "HIP-HOP, BGIRLS"}},
	}
	var buf bytes.Buffer
	require.NoError(t, s.WriteCSV(&buf))
	assert.Equal(t, "ФИО,Номинации\nИванов,\"HIP-HOP, BGIRLS\"\n", buf.String())
}
