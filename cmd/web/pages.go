package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crucial707/irrigation/internal/models"
	"github.com/crucial707/irrigation/internal/validation"
	"github.com/go-chi/chi/v5"
)

// weekdays are the labels offered for recurring schedules.
var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type dashboard struct {
	api    *apiClient
	logger *slog.Logger
}

// row is one record as shown in the list view.
type row struct {
	ID       string
	When     string
	Times    string
	Duration int
	Status   models.Status
	Badge    string
	Created  string
}

// formView backs irrigation_form.html.
type formView struct {
	Title       string
	FormAction  string
	SubmitLabel string
	Dates       []string
	Times       []string
	Days        []string
	Duration    string
	Status      string
	Statuses    []models.Status
	Weekdays    []string
	Fields      map[string]string
	Error       string
}

func (d *dashboard) list(w http.ResponseWriter, r *http.Request) {
	records, err := d.api.list(r.Context())
	if err != nil {
		d.logger.ErrorContext(r.Context(), "list irrigation", "error", err)
		renderTemplate(w, http.StatusBadGateway, "list.html", map[string]interface{}{
			"Error": "Could not load irrigation schedules: " + err.Error(),
		})
		return
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	// Push ids sort by creation time; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	rows := make([]row, 0, len(ids))
	for _, id := range ids {
		rec := records[id]
		rows = append(rows, toRow(id, rec))
	}

	renderTemplate(w, http.StatusOK, "list.html", map[string]interface{}{
		"Rows":   rows,
		"Notice": r.URL.Query().Get("notice"),
	})
}

func toRow(id string, rec models.Irrigation) row {
	when := strings.Join(rec.SpecificDates, ", ")
	if rec.Recurring() {
		when = "Every " + strings.Join(rec.Days, ", ")
	}
	created := ""
	if rec.CreatedAt > 0 {
		created = time.UnixMilli(rec.CreatedAt).UTC().Format("2006-01-02 15:04")
	}
	return row{
		ID:       id,
		When:     when,
		Times:    strings.Join(rec.Times, ", "),
		Duration: rec.Duration,
		Status:   rec.Status,
		Badge:    badgeClass(rec.Status),
		Created:  created,
	}
}

func badgeClass(s models.Status) string {
	switch s {
	case models.StatusInProgress:
		return "badge-progress"
	case models.StatusCompleted:
		return "badge-done"
	}
	return "badge-pending"
}

func (d *dashboard) createForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, http.StatusOK, "irrigation_form.html", newForm("/irrigation", models.IrrigationInput{Status: models.StatusPending}))
}

func (d *dashboard) create(w http.ResponseWriter, r *http.Request) {
	in, view, ok := parseForm(r, "/irrigation")
	if !ok {
		renderTemplate(w, http.StatusBadRequest, "irrigation_form.html", view)
		return
	}

	id, err := d.api.create(r.Context(), in)
	if err != nil {
		d.formError(w, r, view, err)
		return
	}
	http.Redirect(w, r, "/?notice="+url.QueryEscape("Created irrigation "+id), http.StatusSeeOther)
}

func (d *dashboard) editForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := d.api.get(r.Context(), id)
	if err != nil {
		d.pageError(w, r, err)
		return
	}
	renderTemplate(w, http.StatusOK, "irrigation_form.html", newForm("/irrigation/"+id+"/edit", rec.Input()))
}

func (d *dashboard) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, view, ok := parseForm(r, "/irrigation/"+id+"/edit")
	if !ok {
		renderTemplate(w, http.StatusBadRequest, "irrigation_form.html", view)
		return
	}

	if err := d.api.update(r.Context(), id, in); err != nil {
		if errors.Is(err, errNotFound) {
			d.pageError(w, r, err)
			return
		}
		d.formError(w, r, view, err)
		return
	}
	http.Redirect(w, r, "/?notice="+url.QueryEscape("Updated irrigation "+id), http.StatusSeeOther)
}

func (d *dashboard) deleteConfirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := d.api.get(r.Context(), id)
	if err != nil {
		d.pageError(w, r, err)
		return
	}
	renderTemplate(w, http.StatusOK, "irrigation_delete.html", map[string]interface{}{
		"Row": toRow(id, *rec),
	})
}

func (d *dashboard) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := d.api.delete(r.Context(), id); err != nil {
		d.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/?notice="+url.QueryEscape("Deleted irrigation "+id), http.StatusSeeOther)
}

// parseForm reads the submitted form into a normalized input and validates it.
// On failure the returned view carries the submitted values and per-field messages.
func parseForm(r *http.Request, action string) (models.IrrigationInput, formView, bool) {
	if err := r.ParseForm(); err != nil {
		view := newForm(action, models.IrrigationInput{})
		view.Error = "Could not read the form"
		return models.IrrigationInput{}, view, false
	}

	in := models.IrrigationInput{
		SpecificDates: nonBlank(r.Form["dates"]),
		Times:         nonBlank(r.Form["times"]),
		Days:          nonBlank(r.Form["days"]),
		Status:        models.Status(r.FormValue("status")),
	}
	rawDuration := strings.TrimSpace(r.FormValue("duration"))
	durationErr := in.Duration.UnmarshalJSON([]byte(strconv.Quote(rawDuration)))
	in = in.Normalize()

	fields := validation.Irrigation(in)
	if durationErr != nil {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["duration"] = "duration must be a whole number of minutes"
	}

	view := newForm(action, in)
	view.Duration = rawDuration
	if len(fields) > 0 {
		view.Fields = fields
		view.Error = "Please correct the highlighted fields"
		return in, view, false
	}
	return in, view, true
}

func newForm(action string, in models.IrrigationInput) formView {
	view := formView{
		Title:       "New irrigation",
		FormAction:  action,
		SubmitLabel: "Create",
		Dates:       append(append([]string(nil), in.SpecificDates...), ""),
		Times:       append(append([]string(nil), in.Times...), ""),
		Days:        in.Days,
		Status:      string(in.Status),
		Statuses:    models.Statuses,
		Weekdays:    weekdays,
	}
	if in.Duration > 0 {
		view.Duration = strconv.Itoa(int(in.Duration))
	}
	if action != "/irrigation" {
		view.Title = "Edit irrigation"
		view.SubmitLabel = "Save"
	}
	return view
}

// formError re-renders the form with the API's error, mapping field messages when present.
func (d *dashboard) formError(w http.ResponseWriter, r *http.Request, view formView, err error) {
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusBadRequest {
		view.Fields = ae.Fields
		view.Error = ae.Message
		renderTemplate(w, http.StatusBadRequest, "irrigation_form.html", view)
		return
	}
	d.logger.ErrorContext(r.Context(), "irrigation write failed", "error", err)
	view.Error = "Save failed: " + err.Error()
	renderTemplate(w, http.StatusBadGateway, "irrigation_form.html", view)
}

func (d *dashboard) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, errNotFound) {
		status = http.StatusNotFound
	} else {
		d.logger.ErrorContext(r.Context(), "irrigation request failed", "error", err)
	}
	renderTemplate(w, status, "error.html", map[string]interface{}{"Error": err.Error()})
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
