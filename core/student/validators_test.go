package student

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/gradebook/core"
)

func TestFormValidation(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	valid := Form{
		LRN:           "123456789012",
		Name:          "Juan Dela Cruz",
		Gender:        GenderMale,
		DateOfBirth:   "2012-03-07",
		ContactNumber: "09171234567",
		MotherName:    "Niña Dela Cruz",
	}

	tests := []struct {
		name      string
		mutate    func(f *Form)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(f *Form) {}},
		{name: "short LRN", mutate: func(f *Form) { f.LRN = "12345" }, wantField: "lrn", wantMsg: lrnText},
		{name: "alpha LRN", mutate: func(f *Form) { f.LRN = "12345678901a" }, wantField: "lrn", wantMsg: lrnText},
		{name: "name with digits", mutate: func(f *Form) { f.Name = "Juan 2" }, wantField: "name", wantMsg: "name can only contain letters and spaces"},
		{name: "missing gender", mutate: func(f *Form) { f.Gender = "" }, wantField: "gender", wantMsg: "this field is required"},
		{name: "missing birth date", mutate: func(f *Form) { f.DateOfBirth = "" }, wantField: "date_of_birth", wantMsg: "this field is required"},
		{
			name: "contact not 09", mutate: func(f *Form) { f.ContactNumber = "08171234567" }, wantField: "contact_number",
			wantMsg: "contact_number must contain digits only, start with 09 and be at most 11 digits long",
		},
		{
			name: "contact too long", mutate: func(f *Form) { f.ContactNumber = "091712345678" }, wantField: "contact_number",
			wantMsg: "contact_number must contain digits only, start with 09 and be at most 11 digits long",
		},
		{
			name: "father contact with dashes", mutate: func(f *Form) { f.FatherContact = "0917-123-45" }, wantField: "father_contact",
			wantMsg: "father_contact must contain digits only, start with 09 and be at most 11 digits long",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid
			tt.mutate(&form)
			err := validate.Struct(form)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok || len(vErrs) != 1 {
				t.Fatalf("validate.Struct() error = %v, want one %s error", err, tt.wantField)
			}
			assert.Equal(t, tt.wantField, vErrs[0].Field())
			assert.Equal(t, tt.wantMsg, vErrs[0].Translate(translator))
		})
	}
}

func TestNormalizeGender(t *testing.T) {
	tests := map[string]string{"m": GenderMale, " MALE ": GenderMale, "F": GenderFemale, "female": GenderFemale, "x": "x", "": ""}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeGender(in), in)
	}
}

func TestSortStudents(t *testing.T) {
	students := []Student{
		{LRN: "3", Name: "bea"},
		{LRN: "1", Name: "Carlo"},
		{LRN: "2", Name: "Ana"},
	}
	SortStudents(students, SortNameAsc)
	assert.Equal(t, []string{"Ana", "bea", "Carlo"}, names(students))
	SortStudents(students, SortNameDesc)
	assert.Equal(t, []string{"Carlo", "bea", "Ana"}, names(students))
	SortStudents(students, SortLRN)
	assert.Equal(t, []string{"Carlo", "Ana", "bea"}, names(students))
}

func names(students []Student) []string {
	out := make([]string, 0, len(students))
	for _, st := range students {
		out = append(out, st.Name)
	}
	return out
}
