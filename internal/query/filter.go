// Package query describes candidate retrieval as a driver-agnostic list of
// predicates. Store packages translate a Filter into their native query.
package query

import (
	"time"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
)

// Field names an announcement attribute a predicate can constrain.
type Field string

const (
	FieldID       Field = "id"
	FieldType     Field = "type"
	FieldSpecies  Field = "species"
	FieldStatus   Field = "status"
	FieldBreed    Field = "breed"
	FieldLastSeen Field = "lastSeenDate"
)

// Predicate is one conjunct of a Filter.
type Predicate interface {
	isPredicate()
}

type Equals struct {
	Field Field
	Value string
}

type NotEquals struct {
	Field Field
	Value string
}

type In struct {
	Field  Field
	Values []string
}

// WithinRadius keeps announcements whose location lies within Meters of
// Center.
type WithinRadius struct {
	Center features.Point
	Meters float64
}

// Between is an inclusive time range.
type Between struct {
	Field Field
	From  time.Time
	To    time.Time
}

// ContainsAny is a case-insensitive substring match against any of Terms.
type ContainsAny struct {
	Field Field
	Terms []string
}

func (Equals) isPredicate()       {}
func (NotEquals) isPredicate()    {}
func (In) isPredicate()           {}
func (WithinRadius) isPredicate() {}
func (Between) isPredicate()      {}
func (ContainsAny) isPredicate()  {}

// Filter is a conjunction of predicates with a result cap. No predicates
// means no constraint.
type Filter struct {
	Predicates []Predicate
	Limit      int
}
