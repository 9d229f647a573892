package survey

import (
	"strings"
	"time"

	"github.com/abduss/stopsurvey/internal/catalog"
)

// TimestampLayout formats the canonical event time in ledger rows.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	timestampColumn = "Timestamp"
	mediaColumn     = "Photos"
	multiSeparator  = ", "
	mediaSeparator  = "\n"
)

// FieldKind selects the completeness rule applied to a field.
type FieldKind int

const (
	// KindText is a single free-form value.
	KindText FieldKind = iota
	// KindStaff is a staff ID that must exist in the catalog.
	KindStaff
	// KindChoice is one value from an enumerated set.
	KindChoice
	// KindMultiChoice is a set of distinct values from an enumerated set.
	KindMultiChoice
	// KindFreeText is prose with a minimum word count.
	KindFreeText
)

// Field declares one question and the ledger column it fills.
type Field struct {
	Name     string
	Column   string
	Kind     FieldKind
	Optional bool
	// Options is the static allowed set for choice fields.
	Options []string
	// Allowed derives the allowed set from the catalog and earlier answers.
	Allowed  func(c *catalog.Catalog, a Answers) []string
	MinWords int
}

func (f Field) allowed(c *catalog.Catalog, a Answers) []string {
	if f.Allowed != nil {
		if c == nil {
			return nil
		}
		return f.Allowed(c, a)
	}
	return f.Options
}

// MediaRule bounds the number of attached items. Min == Max means an exact count.
type MediaRule struct {
	Min int
	Max int
}

// Variant is one survey front end's schema.
type Variant struct {
	Name   string
	Title  string
	Fields []Field
	Media  MediaRule
	// LabelField names the answer that labels media (stop or hub name).
	LabelField string
	// LedgerKey derives the ledger name from the answers.
	LedgerKey func(a Answers) string
}

// Header returns the fixed column order of this variant's ledger.
func (v Variant) Header() []string {
	header := make([]string, 0, len(v.Fields)+2)
	header = append(header, timestampColumn)
	for _, f := range v.Fields {
		header = append(header, f.Column)
	}
	return append(header, mediaColumn)
}

// Label returns the capture context used for stamping and naming.
func (v Variant) Label(a Answers) string {
	return a.Get(v.LabelField)
}

// Row assembles the ledger row in header order.
func (v Variant) Row(a Answers, eventTime time.Time, mediaLinks []string) []string {
	row := make([]string, 0, len(v.Fields)+2)
	row = append(row, eventTime.Format(TimestampLayout))
	for _, f := range v.Fields {
		row = append(row, strings.Join(a[f.Name], multiSeparator))
	}
	return append(row, strings.Join(mediaLinks, mediaSeparator))
}

var (
	staffField = Field{Name: "staff_id", Column: "StaffID", Kind: KindStaff}
	depotField = Field{
		Name: "depot", Column: "Depot", Kind: KindChoice,
		Allowed: func(c *catalog.Catalog, _ Answers) []string { return c.Depots() },
	}
	routeField = Field{
		Name: "route", Column: "Route", Kind: KindChoice,
		Allowed: func(c *catalog.Catalog, a Answers) []string { return c.Routes(a.Get("depot")) },
	}
	stopField = Field{
		Name: "stop", Column: "Stop", Kind: KindChoice,
		Allowed: func(c *catalog.Catalog, a Answers) []string {
			return c.Stops(a.Get("depot"), a.Get("route"))
		},
	}
)

func byDepot(a Answers) string { return a.Get("depot") }

var builtin = []Variant{
	{
		Name:  "bus_stop",
		Title: "Bus stop condition survey",
		Fields: []Field{
			staffField, depotField, routeField, stopField,
			{Name: "condition", Column: "Condition", Kind: KindChoice,
				Options: []string{"Good", "Fair", "Poor", "Damaged"}},
			{Name: "activity", Column: "Activity", Kind: KindChoice,
				Options: []string{"Routine inspection", "Post-repair check", "Complaint follow-up", "New installation"}},
			{Name: "conditions", Column: "Conditions", Kind: KindMultiChoice,
				Options: []string{"Shelter damaged", "Seating broken", "No signage", "Poor lighting",
					"Garbage", "Waterlogging", "Encroachment", "Footpath damaged", "None"}},
		},
		Media:      MediaRule{Min: 1, Max: 5},
		LabelField: "stop",
		LedgerKey:  byDepot,
	},
	{
		Name:  "complaint",
		Title: "Passenger complaint survey",
		Fields: []Field{
			staffField, depotField, routeField, stopField,
			{Name: "category", Column: "Category", Kind: KindChoice,
				Options: []string{"Bus did not stop", "Overcrowding", "Staff behaviour", "Infrastructure", "Cleanliness", "Other"}},
			{Name: "description", Column: "Description", Kind: KindFreeText, MinWords: 5},
		},
		Media:      MediaRule{Min: 1, Max: 5},
		LabelField: "stop",
		LedgerKey:  byDepot,
	},
	{
		Name:  "hub_profile",
		Title: "Hub profiling survey",
		Fields: []Field{
			staffField,
			{Name: "hub", Column: "Hub", Kind: KindChoice,
				Allowed: func(c *catalog.Catalog, _ Answers) []string { return c.Hubs() }},
			{Name: "facilities", Column: "Facilities", Kind: KindMultiChoice,
				Options: []string{"Toilets", "Drinking water", "Seating", "Ticket counter", "Parking", "CCTV", "Lighting", "Food stalls"}},
			{Name: "footfall", Column: "Footfall", Kind: KindChoice,
				Options: []string{"Below 1000", "1000-5000", "5000-20000", "Above 20000"}},
			{Name: "remarks", Column: "Remarks", Kind: KindFreeText, MinWords: 3},
		},
		Media:      MediaRule{Min: 3, Max: 3},
		LabelField: "hub",
		LedgerKey:  func(Answers) string { return "Hubs" },
	},
}

// Lookup returns a registered variant by name.
func Lookup(name string) (Variant, bool) {
	for _, v := range builtin {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// All returns the registered variants in declaration order.
func All() []Variant {
	return append([]Variant(nil), builtin...)
}
