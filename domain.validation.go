package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Bounds enforced on every book before it is stored.
const (
	MaxTextLength    = 99
	MinYearPublished = 1
	MaxYearPublished = 9999
)

// ErrConstraintFailed is the kind shared by every rejected write: a field
// value violating the rules, a duplicate book or a missing record.
var ErrConstraintFailed = errors.New("constraint failed")

// ErrBookNotFound is returned when the targeted book does not exist.
var ErrBookNotFound = fmt.Errorf("%w: book not found", ErrConstraintFailed)

// Violation names the rule a rejected value broke.
type Violation string

const (
	ViolationNameRequired   Violation = "name_required"
	ViolationNameTooLong    Violation = "name_too_long"
	ViolationAuthorRequired Violation = "author_required"
	ViolationAuthorTooLong  Violation = "author_too_long"
	ViolationYearNotInteger Violation = "year_not_integer"
	ViolationYearOutOfRange Violation = "year_out_of_range"
	ViolationTypeRequired   Violation = "type_required"
	ViolationTypeTooLong    Violation = "type_too_long"
	ViolationStatusRequired Violation = "status_required"
	ViolationStatusTooLong  Violation = "status_too_long"
	ViolationInvalidType    Violation = "invalid_type"
	ViolationDuplicateBook  Violation = "duplicate_book"
	ViolationUnknownField   Violation = "unknown_field"
)

var violationMessages = map[Violation]string{
	ViolationNameRequired:   "must be provided",
	ViolationNameTooLong:    fmt.Sprintf("must not exceed %d characters", MaxTextLength),
	ViolationAuthorRequired: "must be provided",
	ViolationAuthorTooLong:  fmt.Sprintf("must not exceed %d characters", MaxTextLength),
	ViolationYearNotInteger: "must be an integer",
	ViolationYearOutOfRange: fmt.Sprintf("must be between %d and %d", MinYearPublished, MaxYearPublished),
	ViolationTypeRequired:   "must be provided",
	ViolationTypeTooLong:    fmt.Sprintf("must not exceed %d characters", MaxTextLength),
	ViolationStatusRequired: "must be provided",
	ViolationStatusTooLong:  fmt.Sprintf("must not exceed %d characters", MaxTextLength),
	ViolationInvalidType:    "must be a string",
	ViolationDuplicateBook:  "a book with the same name, author, year and type already exists",
	ViolationUnknownField:   "is not a known book field",
}

// Message returns the human readable form of the violation.
func (v Violation) Message() string {
	if msg, ok := violationMessages[v]; ok {
		return msg
	}
	return string(v)
}

// ValidationError reports the field and the rule which rejected a write.
// It matches ErrConstraintFailed under errors.Is.
type ValidationError struct {
	Field  string    `json:"field"`
	Reason Violation `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrConstraintFailed, e.Field, e.Reason.Message())
}

func (e *ValidationError) Unwrap() error {
	return ErrConstraintFailed
}

// Message is the error text without the kind prefix.
func (e *ValidationError) Message() string {
	return e.Field + " " + e.Reason.Message()
}

func newValidationError(field string, reason Violation) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func duplicateBookError() *ValidationError {
	return newValidationError("book", ViolationDuplicateBook)
}

// IsDuplicateBook reports whether err was caused by the uniqueness rule.
func IsDuplicateBook(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Reason == ViolationDuplicateBook
}

// ViolationOf extracts the violation carried by err, if any.
func ViolationOf(err error) (Violation, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}

type textRule struct {
	field    string
	value    string
	required Violation
	tooLong  Violation
}

func (b Book) textRules() []textRule {
	return []textRule{
		{FieldName, b.Name, ViolationNameRequired, ViolationNameTooLong},
		{FieldAuthor, b.Author, ViolationAuthorRequired, ViolationAuthorTooLong},
		{FieldBookType, b.BookType, ViolationTypeRequired, ViolationTypeTooLong},
		{FieldStatus, b.Status, ViolationStatusRequired, ViolationStatusTooLong},
	}
}

func (b Book) checkText() error {
	rules := b.textRules()
	for _, r := range rules {
		if strings.TrimSpace(r.value) == "" {
			return newValidationError(r.field, r.required)
		}
	}
	for _, r := range rules {
		if utf8.RuneCountInString(r.value) > MaxTextLength {
			return newValidationError(r.field, r.tooLong)
		}
	}
	return nil
}

func (b Book) checkYear() error {
	if b.YearPublished < MinYearPublished || b.YearPublished > MaxYearPublished {
		return newValidationError(FieldYearPublished, ViolationYearOutOfRange)
	}
	return nil
}

// Validate checks every field rule against the book. Presence is checked
// first for all text fields, then lengths, then the year range.
func (b Book) Validate() error {
	if err := b.checkText(); err != nil {
		return err
	}
	return b.checkYear()
}

// ValidateBook turns caller input into a candidate book ready to be stored
// or reports the first broken rule. It does not look at stored records:
// uniqueness is settled by the storage within the write itself.
func ValidateBook(in BookInput) (Book, error) {
	book := Book{
		Name:     in.Name,
		Author:   in.Author,
		BookType: in.BookType,
		Status:   StatusAvailable,
	}
	if err := book.checkText(); err != nil {
		return Book{}, err
	}
	year, err := ParseYear(in.YearPublished)
	if err != nil {
		return Book{}, err
	}
	book.YearPublished = year
	if err := book.checkYear(); err != nil {
		return Book{}, err
	}
	return book, nil
}

// ParseYear accepts any integer value, including an integral float or a
// json.Number holding an integer literal. Strings, booleans, nil, fractional
// numbers and JSON literals with a fraction or an exponent are rejected.
// Integral values beyond the int range are reported as out of range rather
// than as non integers.
func ParseYear(v any) (int, error) {
	notInteger := newValidationError(FieldYearPublished, ViolationYearNotInteger)
	outOfRange := newValidationError(FieldYearPublished, ViolationYearOutOfRange)

	switch y := v.(type) {
	case int:
		return y, nil
	case int8:
		return int(y), nil
	case int16:
		return int(y), nil
	case int32:
		return int(y), nil
	case int64:
		if y > math.MaxInt || y < math.MinInt {
			return 0, outOfRange
		}
		return int(y), nil
	case uint:
		if uint64(y) > math.MaxInt {
			return 0, outOfRange
		}
		return int(y), nil
	case uint8:
		return int(y), nil
	case uint16:
		return int(y), nil
	case uint32:
		return int(y), nil
	case uint64:
		if y > math.MaxInt {
			return 0, outOfRange
		}
		return int(y), nil
	case float32:
		return yearFromFloat(float64(y))
	case float64:
		return yearFromFloat(y)
	case json.Number:
		// a JSON integer is written without fraction nor exponent.
		if strings.ContainsAny(y.String(), ".eE") {
			return 0, notInteger
		}
		if i, err := y.Int64(); err == nil {
			return ParseYear(i)
		}
		if _, err := y.Float64(); err == nil {
			return 0, outOfRange
		}
		return 0, notInteger
	default:
		return 0, notInteger
	}
}

func yearFromFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, newValidationError(FieldYearPublished, ViolationYearNotInteger)
	}
	if f > float64(math.MaxInt32) || f < float64(math.MinInt32) {
		return 0, newValidationError(FieldYearPublished, ViolationYearOutOfRange)
	}
	return int(f), nil
}

// Apply sets a single field on the book without validating the whole record.
// A nil text value counts as missing. Unknown fields are rejected.
func (b *Book) Apply(field string, value any) error {
	switch field {
	case FieldName:
		return setText(&b.Name, field, value, ViolationNameRequired)
	case FieldAuthor:
		return setText(&b.Author, field, value, ViolationAuthorRequired)
	case FieldBookType:
		return setText(&b.BookType, field, value, ViolationTypeRequired)
	case FieldStatus:
		return setText(&b.Status, field, value, ViolationStatusRequired)
	case FieldYearPublished:
		year, err := ParseYear(value)
		if err != nil {
			return err
		}
		b.YearPublished = year
		return nil
	default:
		return newValidationError(field, ViolationUnknownField)
	}
}

// ApplyChanges sets every field of changes in name order so that the
// first reported violation does not depend on map iteration.
func (b *Book) ApplyChanges(changes BookChanges) error {
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if err := b.Apply(f, changes[f]); err != nil {
			return err
		}
	}
	return nil
}

func setText(dst *string, field string, value any, missing Violation) error {
	switch v := value.(type) {
	case nil:
		return newValidationError(field, missing)
	case string:
		*dst = v
		return nil
	default:
		return newValidationError(field, ViolationInvalidType)
	}
}
