package schoolyear

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/gradebook/core"
)

func TestNewSchoolYear_Validate(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	tests := []struct {
		name    string
		data    NewSchoolYear
		wantErr bool
	}{
		{name: "missing label", data: NewSchoolYear{StartDate: "2024-06-03", EndDate: "2025-04-11"}, wantErr: true},
		{name: "bad date", data: NewSchoolYear{Label: "2024-2025", StartDate: "06/03/2024", EndDate: "2025-04-11"}, wantErr: true},
		{name: "end before start", data: NewSchoolYear{Label: "2024-2025", StartDate: "2025-04-11", EndDate: "2024-06-03"}, wantErr: true},
		{name: "same day", data: NewSchoolYear{Label: "2024-2025", StartDate: "2024-06-03", EndDate: "2024-06-03"}, wantErr: true},
		{name: "valid", data: NewSchoolYear{Label: " 2024-2025 ", StartDate: "2024-06-03", EndDate: "2025-04-11"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "2024-2025", tt.data.Label)
		})
	}
}
