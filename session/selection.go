package session

import (
	"errors"
	"fmt"
)

// ============================================================================
// SELECTION STATE — The user's four independent choices
// ============================================================================
// Each field is a reactive cell. Every write goes through Apply, which holds
// the session's writer lock across validation, the write and
// reconciliation. Values are validated against the option lists when the
// dataset is loaded; before that they are taken provisionally and
// re-checked by reconcile once the dataset is published. A value that falls
// out of the options is reset to unset, never swapped for another one.
// ============================================================================

// ErrInvalidSelection is returned for a value that is not among the
// available options.
var ErrInvalidSelection = errors.New("invalid selection")

// Field names one selection field.
type Field string

const (
	FieldCountries  Field = "countries"
	FieldCategories Field = "categories"
	FieldVariable   Field = "variable"
	FieldYearCutoff Field = "yearCutoff"
)

// SelectionError reports which field and value were rejected.
type SelectionError struct {
	Field Field
	Value string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%s: %s %q is not an available option", ErrInvalidSelection, e.Field, e.Value)
}

func (e *SelectionError) Unwrap() error { return ErrInvalidSelection }

// Selection is a snapshot of the current choices. A nil YearCutoff and an
// empty Variable mean unset.
type Selection struct {
	Countries  []string `json:"countries"`
	Categories []string `json:"categories"`
	Variable   string   `json:"variable,omitempty"`
	YearCutoff *int     `json:"yearCutoff,omitempty"`
}

// FieldStatus is the validation state of one field.
type FieldStatus int

const (
	// Unset means no value has been chosen.
	Unset FieldStatus = iota
	// Pending means the value was accepted before the options were known.
	Pending
	// Valid means the value is among the current options.
	Valid
	// InvalidPendingReset means the options moved away from the value and
	// reconciliation has not cleared it yet.
	InvalidPendingReset
)

func (s FieldStatus) String() string {
	switch s {
	case Unset:
		return "unset"
	case Pending:
		return "pending"
	case Valid:
		return "valid"
	case InvalidPendingReset:
		return "invalid_pending_reset"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON.
func (s FieldStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *FieldStatus) UnmarshalText(text []byte) error {
	for _, st := range []FieldStatus{Unset, Pending, Valid, InvalidPendingReset} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown field status %q", text)
}

// SelectionStatus is the per-field validation state.
type SelectionStatus struct {
	Countries  FieldStatus `json:"countries"`
	Categories FieldStatus `json:"categories"`
	Variable   FieldStatus `json:"variable"`
	YearCutoff FieldStatus `json:"yearCutoff"`
}

// SetCountries replaces the selected countries. Duplicates are dropped; an
// empty list unsets the field.
func (s *Session) SetCountries(countries ...string) error {
	return s.Apply(Update{Countries: &countries})
}

// SetCategories replaces the selected taxonomy categories. An empty list
// means all categories.
func (s *Session) SetCategories(categories ...string) error {
	return s.Apply(Update{Categories: &categories})
}

// SetVariable selects the variable to chart. An empty name unsets it.
func (s *Session) SetVariable(variable string) error {
	return s.Apply(Update{Variable: &variable})
}

// SetYearCutoff sets the inclusive upper year. Any year is accepted; one
// outside the dataset's bounds filters everything or nothing.
func (s *Session) SetYearCutoff(year int) error {
	return s.Apply(Update{YearCutoff: &year})
}

// ClearCountries unsets the countries.
func (s *Session) ClearCountries() { _ = s.Apply(Update{Countries: &[]string{}}) }

// ClearCategories unsets the categories.
func (s *Session) ClearCategories() { _ = s.Apply(Update{Categories: &[]string{}}) }

// ClearVariable unsets the variable.
func (s *Session) ClearVariable() { _ = s.Apply(Update{Variable: new(string)}) }

// ClearYearCutoff unsets the year cutoff.
func (s *Session) ClearYearCutoff() { _ = s.Apply(Update{ClearYearCutoff: true}) }

// Countries returns the selected countries and whether any are set.
func (s *Session) Countries() ([]string, bool) {
	c := s.countries.Get()
	return c, len(c) > 0
}

// Categories returns the selected categories and whether any are set.
func (s *Session) Categories() ([]string, bool) {
	c := s.categories.Get()
	return c, len(c) > 0
}

// Variable returns the selected variable and whether it is set.
func (s *Session) Variable() (string, bool) {
	v := s.variable.Get()
	return v, v != ""
}

// YearCutoff returns the year cutoff and whether it is set.
func (s *Session) YearCutoff() (int, bool) {
	p := s.cutoff.Get()
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Selection returns a snapshot of all four fields.
func (s *Session) Selection() Selection {
	sel := Selection{
		Countries:  append([]string{}, s.countries.Get()...),
		Categories: append([]string{}, s.categories.Get()...),
		Variable:   s.variable.Get(),
	}
	if y, ok := s.YearCutoff(); ok {
		sel.YearCutoff = &y
	}
	return sel
}

// Status reports the validation state of every field.
func (s *Session) Status() SelectionStatus {
	loaded := s.loaded()
	listStatus := func(values, options []string) FieldStatus {
		switch {
		case len(values) == 0:
			return Unset
		case !loaded:
			return Pending
		}
		if _, ok := firstMissing(values, options); !ok {
			return InvalidPendingReset
		}
		return Valid
	}

	st := SelectionStatus{
		Countries:  listStatus(s.countries.Get(), s.availableCountries.Get()),
		Categories: listStatus(s.categories.Get(), s.availableCategories.Get()),
	}

	switch v := s.variable.Get(); {
	case v == "":
		st.Variable = Unset
	case !loaded:
		st.Variable = Pending
	case contains(s.availableVariables.Get(), v):
		st.Variable = Valid
	default:
		st.Variable = InvalidPendingReset
	}

	switch _, ok := s.YearCutoff(); {
	case !ok:
		st.YearCutoff = Unset
	case !loaded:
		st.YearCutoff = Pending
	default:
		st.YearCutoff = Valid
	}
	return st
}

// Apply updates several fields at once. Nil fields are left untouched; an
// empty Variable in a non-nil pointer clears the variable.
//
// The update is all or nothing: every field is checked against the options
// the update itself would produce (a new variable against the new
// categories) before anything is written. On rejection the selection is
// unchanged.
func (s *Session) Apply(u Update) error {
	return s.write(func() error {
		next, err := s.check(u)
		if err != nil {
			return err
		}
		if u.Countries != nil {
			s.countries.Set(next.Countries)
		}
		if u.Categories != nil {
			s.categories.Set(next.Categories)
		}
		if u.Variable != nil {
			s.variable.Set(next.Variable)
		}
		if u.ClearYearCutoff || u.YearCutoff != nil {
			s.cutoff.Set(next.YearCutoff)
		}
		s.logger.Debug("selection updated",
			"countries", next.Countries,
			"categories", next.Categories,
			"variable", next.Variable)
		return nil
	})
}

// check returns the selection u would leave behind, or the first value that
// is not on offer. Before load every value is accepted provisionally. Caller
// holds s.mu.
func (s *Session) check(u Update) (Selection, error) {
	next := Selection{
		Countries:  s.countries.Get(),
		Categories: s.categories.Get(),
		Variable:   s.variable.Get(),
		YearCutoff: s.cutoff.Get(),
	}
	if u.Countries != nil {
		next.Countries = dedup(*u.Countries)
	}
	if u.Categories != nil {
		next.Categories = dedup(*u.Categories)
	}
	if u.Variable != nil {
		next.Variable = *u.Variable
	}
	switch {
	case u.ClearYearCutoff:
		next.YearCutoff = nil
	case u.YearCutoff != nil:
		y := *u.YearCutoff
		next.YearCutoff = &y
	}

	if !s.loaded() {
		return next, nil
	}
	d := s.dataset.Get()

	if u.Countries != nil {
		if bad, ok := firstMissing(next.Countries, s.availableCountries.Get()); !ok {
			return next, s.reject(FieldCountries, bad)
		}
	}
	if u.Categories != nil {
		for _, c := range next.Categories {
			if !d.Taxonomy.HasCategory(c) {
				return next, s.reject(FieldCategories, c)
			}
		}
	}
	if u.Variable != nil && next.Variable != "" {
		if !contains(d.Taxonomy.Variables(next.Categories...), next.Variable) {
			return next, s.reject(FieldVariable, next.Variable)
		}
	}
	return next, nil
}

// Update is a partial selection change.
type Update struct {
	Countries       *[]string `json:"countries,omitempty"`
	Categories      *[]string `json:"categories,omitempty"`
	Variable        *string   `json:"variable,omitempty"`
	YearCutoff      *int      `json:"yearCutoff,omitempty"`
	ClearYearCutoff bool      `json:"clearYearCutoff,omitempty"`
}

func (s *Session) reject(field Field, value string) error {
	selectionRejected.WithLabelValues(string(field)).Inc()
	s.logger.Info("selection rejected", "field", field, "value", value)
	return &SelectionError{Field: field, Value: value}
}

func dedup(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// firstMissing returns the first value not in options.
func firstMissing(values, options []string) (string, bool) {
	set := make(map[string]bool, len(options))
	for _, o := range options {
		set[o] = true
	}
	for _, v := range values {
		if !set[v] {
			return v, false
		}
	}
	return "", true
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
