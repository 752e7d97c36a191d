package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/validation"
)

type venue struct {
	Name string `json:"name" validate:"required,min=2"`
}

type request struct {
	Title string `json:"title" validate:"required,min=2,max=200"`
	Kind  string `json:"type"  validate:"required,oneof=wedding engagement"`
	Date  string `json:"eventDate" validate:"required,datetime=2006-01-02"`
	Venue venue  `json:"venue"`
}

func TestStruct_Valid(t *testing.T) {
	req := request{Title: "Our Wedding", Kind: "wedding", Date: "2027-06-12", Venue: venue{Name: "Barn"}}
	assert.Nil(t, validation.Struct(&req))
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	req := request{Title: "A", Kind: "party", Date: "12/06/2027", Venue: venue{Name: ""}}

	errs := validation.Struct(&req)
	require.Len(t, errs, 4)

	assert.Equal(t, "title", errs[0].Field)
	assert.Equal(t, "min", errs[0].Code)
	assert.Equal(t, "title must be at least 2 characters", errs[0].Message)

	assert.Equal(t, "type", errs[1].Field)
	assert.Equal(t, "type must be one of: wedding, engagement", errs[1].Message)

	assert.Equal(t, "eventDate", errs[2].Field)
	assert.Equal(t, "datetime", errs[2].Code)

	assert.Equal(t, "venue.name", errs[3].Field)
	assert.Equal(t, "required", errs[3].Code)
}
