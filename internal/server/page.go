package server

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"yolka-fest/internal/models"
)

type pageField struct {
	Name        string
	Label       string
	Type        string
	Placeholder string
}

var pageFields = []pageField{
	{models.FieldNickname, "Никнейм", "text", "B-Boy Name"},
	{models.FieldBirthDate, "Дата рождения", "date", ""},
	{models.FieldFullName, "ФИО", "text", "Иванов Иван Иванович"},
	{models.FieldCity, "Город", "text", "Москва"},
	{models.FieldTeacher, "Педагог / Клуб", "text", "Имя педагога"},
	{models.FieldPhone, "Телефон", "tel", "+7 (999) 000-00-00"},
	{models.FieldVKLink, "Ссылка ВК", "text", "vk.com/id..."},
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="ru"><head><meta charset="utf-8"><title>ЙОЛКА FEST · регистрация</title>
<meta name="viewport" content="width=device-width, initial-scale=1"></head>
<body>
<h1>ЙОЛКА FEST</h1>
<p>Фестиваль уличного танца</p>
<div id="result" hidden></div>
<form id="reg">
{{range .Fields}}<label>{{.Label}} <input name="{{.Name}}" type="{{.Type}}" placeholder="{{.Placeholder}}"></label>
<small class="err" data-for="{{.Name}}"></small><br>
{{end}}<fieldset><legend>Номинации</legend>
{{range .Nominations}}<label><input type="checkbox" name="nomination" value="{{.}}"> {{.}}</label><br>
{{end}}<small class="err" data-for="nomination"></small>
</fieldset>
<button type="submit">Зарегистрироваться</button>
</form>
<script>
const form = document.getElementById("reg");
const out = document.getElementById("result");
form.addEventListener("input", e => {
  const el = form.querySelector('.err[data-for="' + e.target.name + '"]');
  if (el) el.textContent = "";
});
form.addEventListener("submit", async e => {
  e.preventDefault();
  const btn = form.querySelector("button");
  if (btn.disabled) return;
  btn.disabled = true; btn.textContent = "Регистрация...";
  const data = Object.fromEntries(new FormData(form));
  data.nomination = [...form.querySelectorAll('input[name="nomination"]:checked')].map(i => i.value);
  try {
    const res = await fetch("/api/register", {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(data)});
    const body = await res.json();
    form.querySelectorAll(".err").forEach(el => el.textContent = (body.errors || {})[el.dataset.for] || "");
    out.hidden = false;
    out.textContent = body.success ? body.message + " " + body.aiMessage : body.message;
    if (body.success) form.reset();
  } catch (err) {
    out.hidden = false; out.textContent = "Произошла ошибка при отправке данных.";
  } finally {
    btn.disabled = false; btn.textContent = "Зарегистрироваться";
  }
});
</script>
</body></html>
`))

func (h *handlers) page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pageTmpl.Execute(w, map[string]any{
		"Fields":      pageFields,
		"Nominations": models.Nominations,
	})
	if err != nil {
		h.log.Error("render page", zap.Error(err))
	}
}
