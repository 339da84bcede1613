package student

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
)

// Genders
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// Roster sort orders
const (
	SortNameAsc  = "name_asc"
	SortNameDesc = "name_desc"
	SortLRN      = "lrn"
)

type Student struct {
	ID            string    `json:"id"`
	SectionID     string    `json:"section_id"`
	LRN           string    `json:"lrn"`
	Name          string    `json:"name"`
	Gender        string    `json:"gender"`
	DateOfBirth   string    `json:"date_of_birth"` // YYYY-MM-DD
	ContactNumber string    `json:"contact_number"`
	Address       string    `json:"address"`
	FatherName    string    `json:"father_name"`
	FatherContact string    `json:"father_contact"`
	MotherName    string    `json:"mother_name"`
	MotherContact string    `json:"mother_contact"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// Form is the manual student form, used both to create and to edit a Student.
type Form struct {
	LRN           string `json:"lrn" validate:"required,lrn"`
	Name          string `json:"name" validate:"required,personname"`
	Gender        string `json:"gender" validate:"required,oneof=Male Female"`
	DateOfBirth   string `json:"date_of_birth" validate:"required,isodate"`
	ContactNumber string `json:"contact_number" validate:"omitempty,phoneph"`
	Address       string `json:"address" validate:"max=255"`
	FatherName    string `json:"father_name" validate:"omitempty,personname"`
	FatherContact string `json:"father_contact" validate:"omitempty,phoneph"`
	MotherName    string `json:"mother_name" validate:"omitempty,personname"`
	MotherContact string `json:"mother_contact" validate:"omitempty,phoneph"`
}

// Validate cleans & validates the form. orig is the edited Student, if any.
func (f *Form) Validate(ctx context.Context, validate *validator.Validate, svc Service, orig ...Student) error {
	f.LRN = core.CleanString(f.LRN)
	f.Name = core.CleanName(f.Name)
	f.Gender = NormalizeGender(f.Gender)
	f.DateOfBirth = core.CleanString(f.DateOfBirth)
	f.ContactNumber = core.CleanString(f.ContactNumber)
	f.Address = core.CleanString(f.Address)
	f.FatherName = core.CleanName(f.FatherName)
	f.FatherContact = core.CleanString(f.FatherContact)
	f.MotherName = core.CleanName(f.MotherName)
	f.MotherContact = core.CleanString(f.MotherContact)

	if err := validate.Struct(f); err != nil {
		return err
	}
	return svc.CheckLRNUniqueness(ctx, f.LRN, orig...)
}

func (f Form) apply(st Student) Student {
	st.LRN = f.LRN
	st.Name = f.Name
	st.Gender = f.Gender
	st.DateOfBirth = f.DateOfBirth
	st.ContactNumber = f.ContactNumber
	st.Address = f.Address
	st.FatherName = f.FatherName
	st.FatherContact = f.FatherContact
	st.MotherName = f.MotherName
	st.MotherContact = f.MotherContact
	return st
}

// NormalizeGender maps the usual spellings of a gender to Male or Female. Unknown values are returned trimmed.
func NormalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "m", "male":
		return GenderMale
	case "f", "female":
		return GenderFemale
	}
	return strings.TrimSpace(g)
}

type QueryFilter struct {
	SectionID  string   `query:"-"`
	SectionIDs []string `query:"-"`
	// Search does a case-insensitive match on one of Student.Name or Student.LRN.
	Search string `query:"search"`
	Gender string `query:"gender"`
	Sort   string `query:"sort"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.Gender != "" {
		qf.Gender = NormalizeGender(qf.Gender)
	}
	switch qf.Sort {
	case SortNameAsc, SortNameDesc, SortLRN:
	default:
		qf.Sort = SortNameAsc
	}
}

// Matches reports whether the student matches the search & gender filters.
func (qf *QueryFilter) Matches(name, lrn, gender string) bool {
	if qf.Gender != "" && gender != qf.Gender {
		return false
	}
	if qf.Search == "" {
		return true
	}
	search := strings.ToLower(qf.Search)
	return strings.Contains(strings.ToLower(name), search) || strings.Contains(lrn, search)
}

// SortBy sorts n items in the roster order, given their names & LRNs.
func SortBy(order string, n int, swap func(i, j int), name, lrn func(i int) string) {
	sort.Sort(rosterSorter{order: order, n: n, swap: swap, name: name, lrn: lrn})
}

type rosterSorter struct {
	order     string
	n         int
	swap      func(i, j int)
	name, lrn func(i int) string
}

func (rs rosterSorter) Len() int      { return rs.n }
func (rs rosterSorter) Swap(i, j int) { rs.swap(i, j) }
func (rs rosterSorter) Less(i, j int) bool {
	switch rs.order {
	case SortLRN:
		return rs.lrn(i) < rs.lrn(j)
	case SortNameDesc:
		return strings.ToLower(rs.name(i)) > strings.ToLower(rs.name(j))
	default:
		return strings.ToLower(rs.name(i)) < strings.ToLower(rs.name(j))
	}
}

// SortStudents sorts students in place in the roster order.
func SortStudents(students []Student, order string) {
	SortBy(order, len(students),
		func(i, j int) { students[i], students[j] = students[j], students[i] },
		func(i int) string { return students[i].Name },
		func(i int) string { return students[i].LRN },
	)
}

type DeleteRequest struct {
	IDs []string `query:"id"`
}
