package authoring

import (
	"sort"
	"strings"

	"yatube/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Form is the user-submitted post form. GroupID is the hex id of the chosen
// group, empty for none.
type Form struct {
	Text    string `form:"text" json:"text"`
	GroupID string `form:"group" json:"group"`
}

// FieldErrors maps a form field ("text" or "group") to its messages.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Fields returns the names of the fields with errors, sorted.
func (e FieldErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e FieldErrors) String() string {
	parts := make([]string, 0, len(e))
	for _, f := range e.Fields() {
		parts = append(parts, f+": "+strings.Join(e[f], "; "))
	}
	return strings.Join(parts, ", ")
}

// Result is the outcome of validating a Form: either Valid or Invalid.
type Result interface {
	isResult()
}

// Valid carries the normalized form values. Group is the resolved group
// when GroupID is set.
type Valid struct {
	Text    string
	GroupID *primitive.ObjectID
	Group   *models.Group
}

// Invalid carries the field errors; nothing may be persisted.
type Invalid struct {
	Errors FieldErrors
}

func (Valid) isResult()   {}
func (Invalid) isResult() {}

// FormView is everything needed to render the create or edit form.
type FormView struct {
	Form   Form            `json:"form"`
	Errors FieldErrors     `json:"errors,omitempty"`
	IsEdit bool            `json:"isEdit"`
	Post   *models.Post    `json:"post,omitempty"`
	Groups []*models.Group `json:"groups"`
}

// Outcome is the result of a submission. Exactly one of Redirect and Form is
// set: Redirect after a successful write, Form when the input was rejected.
type Outcome struct {
	Post     *models.Post `json:"post,omitempty"`
	Redirect string       `json:"redirect,omitempty"`
	Form     *FormView    `json:"form,omitempty"`
}

// Rejected reports whether the submission failed validation.
func (o *Outcome) Rejected() bool {
	return o.Form != nil
}

func formFromPost(p *models.Post) Form {
	f := Form{Text: p.Text}
	if p.GroupID != nil {
		f.GroupID = p.GroupID.Hex()
	}
	return f
}

func ProfileURL(username string) string {
	return "/profile/" + username
}

func PostURL(id primitive.ObjectID) string {
	return "/posts/" + id.Hex()
}
