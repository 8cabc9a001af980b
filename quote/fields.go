package quote

import (
	"strings"

	"github.com/warp/quote-engine/calendar"
)

// FieldGate says which parts of the form are unlocked.
type FieldGate struct {
	Complete           bool     `json:"complete"`
	Missing            []string `json:"missing"`
	CanAddProducts     bool     `json:"can_add_products"`
	CanContactProvider bool     `json:"can_contact_provider"`
	CanSeeTotals       bool     `json:"can_see_totals"`
	CanUsePayment      bool     `json:"can_use_payment"`
	CanUseCoupons      bool     `json:"can_use_coupons"`
	Message            string   `json:"message,omitempty"`
}

// fieldState is the subset of a session that the gate looks at.
type fieldState struct {
	contact  Contact
	extra    map[string]string
	date     calendar.Day
	cityID   string
	template Template
	fields   []ExtraField
}

// missingFields lists, in form order, every required field left blank:
// name, email and phone; the date when seasonal pricing is on; the city when
// geo pricing is on; and required extra fields.
func missingFields(st fieldState) []string {
	var missing []string
	if strings.TrimSpace(st.contact.Name) == "" {
		missing = append(missing, "Name")
	}
	if strings.TrimSpace(st.contact.Email) == "" {
		missing = append(missing, "Email")
	}
	if strings.TrimSpace(st.contact.Phone) == "" {
		missing = append(missing, "Phone")
	}
	if st.template.SeasonalPricing && st.date.IsZero() {
		missing = append(missing, "Date")
	}
	if st.template.GeoPricing && st.cityID == "" {
		missing = append(missing, "City")
	}
	for _, f := range st.fields {
		if !f.Required {
			continue
		}
		if strings.TrimSpace(st.extra[f.ID]) == "" {
			label := f.Label
			if label == "" {
				label = "Custom field"
			}
			missing = append(missing, label)
		}
	}
	return missing
}

// gateFields computes the unlock state. Templates that do not require
// contact fields unlock everything up front.
func gateFields(st fieldState) FieldGate {
	if !st.template.RequireContactFields {
		return FieldGate{
			Complete:           true,
			Missing:            []string{},
			CanAddProducts:     true,
			CanContactProvider: true,
			CanSeeTotals:       true,
			CanUsePayment:      true,
			CanUseCoupons:      true,
		}
	}

	missing := missingFields(st)
	ok := len(missing) == 0
	g := FieldGate{
		Complete:           ok,
		Missing:            missing,
		CanAddProducts:     ok,
		CanContactProvider: ok,
		CanSeeTotals:       ok,
		CanUsePayment:      ok,
		CanUseCoupons:      ok,
	}
	if g.Missing == nil {
		g.Missing = []string{}
	}
	if !ok {
		g.Message = "Fill in the required fields to unlock the rest of the form: " + strings.Join(missing, ", ")
	}
	return g
}
