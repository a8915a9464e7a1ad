package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type lineDTO struct {
	Description string  `json:"description"`
	ItemCode    *string `json:"item_code"`
}

type invoiceDTO struct {
	Currency string    `json:"currency"`
	Notes    *string   `json:"notes"`
	Lines    []lineDTO `json:"line_items"`
}

func TestNormalizeDTO(t *testing.T) {
	blank := "   "
	code := " A-1 "
	in := invoiceDTO{Currency: " aed ", Notes: &blank, Lines: []lineDTO{{Description: " Placement fee ", ItemCode: &code}}}

	NormalizeDTO(&in)

	assert.Equal(t, "aed", in.Currency)
	assert.Nil(t, in.Notes)
	assert.Equal(t, "Placement fee", in.Lines[0].Description)
	assert.Equal(t, "A-1", *in.Lines[0].ItemCode)
}
