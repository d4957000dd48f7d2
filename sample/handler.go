// Package handlers is a small rex application used as an analysis target.
package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/abiiranathan/rex"
)

// Template names shared by several handlers.
const (
	dashboardTemplate = "views/dashboard.html"
	wardTemplate      = "views/wards/show.html"
)

// Breadcrumb is one step of the navigation trail.
type Breadcrumb struct {
	Label  string
	URL    string
	IsLast bool
}

// Breadcrumbs is a navigation trail.
type Breadcrumbs []Breadcrumb

// Record carries the bookkeeping columns shared by persisted models.
type Record struct {
	ID        uint
	CreatedAt string
}

// Visit is a patient visit.
type Visit struct {
	Record
	PatientID uint
	Patient   Patient
	Doctor    Doctor
}

// Patient is a registered patient.
type Patient struct {
	Name string // Patient full name
	ID   uint   // Patient ID
}

// Doctor is an attending doctor.
type Doctor struct {
	DisplayName string
	ID          uint
}

// Drug is a stocked drug.
type Drug struct {
	Name     string // Drug name
	Quantity int
	Price    float64
}

// User is a logged in staff member.
type User struct {
	Name  string
	Roles []string
}

// PrintName prints the name of the user.
func (u *User) PrintName(name string) {
	fmt.Println(name)
}

// Prescription is a drug prescribed during a visit.
type Prescription struct {
	// Drug name
	DrugName string

	// Quantity
	Quantity int
	Dosage   string // Dosage
	Drug     Drug   // The drug object
}

// Management groups the prescriptions of one treatment plan.
type Management struct {
	Prescription Prescription
}

// Ward is a hospital ward. Wards nest, so the type refers to itself.
type Ward struct {
	Name     string
	Parent   *Ward
	Children []*Ward
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items   []T
	Total   int
	HasMore bool
}

// Notifier delivers messages to staff.
type Notifier interface {
	// Pending returns the number of undelivered messages.
	Pending() int
	Notify(user *User, msg string) error
}

// WardView is rendered directly as the template data.
type WardView struct {
	Ward      Ward
	Occupancy map[string]int
	Notifier  Notifier
}

// Handler holds service dependencies.
type Handler struct {
	notifier Notifier
}

// getAuthUser returns the logged in user.
func getAuthUser(userID int) *User {
	fmt.Println(userID)
	return &User{}
}

// dict builds a map from alternating key-value pairs.
func dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, errors.New("invalid dict call")
	}

	d := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, errors.New("dict keys must be strings")
		}
		d[key] = values[i+1]
	}
	return d, nil
}

// Funcs are the template functions registered with every view.
var Funcs = template.FuncMap{
	"dict":  dict,
	"upper": strings.ToUpper,
}

// LoadSession exposes the logged in user to every template.
func (h *Handler) LoadSession(c *rex.Context) {
	c.Set("currentUser", getAuthUser(0))
}

// RenderTreatmentChart renders the treatment chart.
func (h *Handler) RenderTreatmentChart(inpatient bool) rex.HandlerFunc {
	return func(c *rex.Context) error {
		visitID := c.ParamUint("visit_id")
		visit := &Visit{Record: Record{ID: visitID}}

		var billedDrugs []Drug
		var prescriptions []Prescription
		var management []Management

		pathPrefix := "/inpatient"
		title := "Inpatient Treatment Chart"
		label := "Inpatient"

		newuser := &User{}

		if !inpatient {
			pathPrefix = "/outpatient"
			title = "OPD Progressive Treatment Chart"
			label = "OPD"
		}

		funcMap := template.FuncMap{
			"getAuthUser": getAuthUser,
		}
		funcMap["dict"] = dict

		template.New("").Funcs(funcMap)

		c.Set("pageTitle", title)

		return c.Render("views/inpatient/treatment-chart.html", rex.Map{
			"management":    management,
			"visit":         visit,
			"Title":         title,
			"newuser":       newuser,
			"PathPrefix":    pathPrefix,
			"billedDrugs":   billedDrugs,
			"prescriptions": prescriptions,
			"doctor":        visit.Doctor.DisplayName,
			"roles":         map[string]string{"admin": "Administrator", "user": "Normal User"},
			"breadcrumbs": Breadcrumbs{
				{Label: label, URL: pathPrefix},
				{Label: visit.Patient.Name, URL: fmt.Sprintf("/patients/%d", visit.PatientID)},
				{Label: "Treatment Chart", IsLast: true},
			},
		})
	}
}

// RenderDashboard renders the inpatient or outpatient dashboard.
func (h *Handler) RenderDashboard(inpatient bool) rex.HandlerFunc {
	return func(c *rex.Context) error {
		visitID := c.ParamUint("visit_id")
		templateName := dashboardTemplate
		if !inpatient {
			templateName = "views/opd-dashboard.html"
		}

		ctx := rex.Map{"visitID": visitID}
		ctx["visits"] = Page[Visit]{}
		ctx["drugs"] = Page[Drug]{}
		ctx["notifier"] = h.notifier

		return c.Render(templateName, ctx)
	}
}

// Render renders a view struct whose fields the template reads directly.
func (h *Handler) Render(c *rex.Context, name string, view any) error {
	return c.Render(name, rex.Map{"view": view})
}

// RenderWard renders a ward with its nested sub-wards.
func (h *Handler) RenderWard() rex.HandlerFunc {
	return func(c *rex.Context) error {
		return h.Render(c, wardTemplate, WardView{Notifier: h.notifier})
	}
}
