// Package iso27001 provides constraints for ISO/IEC 27001 Annex A controls.
package iso27001

import "github.com/roach88/honors/constraint"

// Controls is the ISO 27001 Annex A control group.
var Controls = constraint.NewEnum("ISO27001Controls",
	`Enumeration of ISO 27001 controls.

Using the definitions from
http://gender.govmu.org/English/Documents/activities/gender%20infsys/AnnexIX1302.pdf`,
	constraint.Member{Name: "A_7_2_2", Value: "Information labelling and handling"},
	constraint.Member{Name: "A_15_2_1", Value: "Compliance with security policies and standards"},
)

var (
	// A_7_2_2 is "Information labelling and handling".
	A_7_2_2 = Controls.Must("A_7_2_2")
	// A_15_2_1 is "Compliance with security policies and standards".
	A_15_2_1 = Controls.Must("A_15_2_1")
)
