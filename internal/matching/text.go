package matching

import (
	"fmt"
	"strings"

	"github.com/vijay-prabhu/jobrank/internal/database"
)

// ProfileText renders a profile as the multi-line block sent to the models
func ProfileText(p *database.UserProfile) string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.Name)

	if len(p.Skills) > 0 {
		b.WriteString("Skills:\n")
		for _, s := range p.Skills {
			if s.Level != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", s.Name, s.Level)
			} else {
				fmt.Fprintf(&b, "- %s\n", s.Name)
			}
		}
	}

	if len(p.Experiences) > 0 {
		b.WriteString("Experience:\n")
		for _, e := range p.Experiences {
			fmt.Fprintf(&b, "- %s", e.Position)
			if e.Company != "" {
				fmt.Fprintf(&b, " at %s", e.Company)
			}
			if e.StartDate != "" || e.EndDate != "" {
				end := e.EndDate
				if end == "" {
					end = "present"
				}
				fmt.Fprintf(&b, " (%s - %s)", e.StartDate, end)
			}
			b.WriteString("\n")
			if e.Description != "" {
				fmt.Fprintf(&b, "  %s\n", e.Description)
			}
		}
	}

	if len(p.Education) > 0 {
		b.WriteString("Education:\n")
		for _, e := range p.Education {
			b.WriteString("- ")
			switch {
			case e.Degree != "" && e.Field != "":
				fmt.Fprintf(&b, "%s in %s, ", e.Degree, e.Field)
			case e.Degree != "":
				fmt.Fprintf(&b, "%s, ", e.Degree)
			}
			b.WriteString(e.Institution)
			if e.StartDate != "" || e.EndDate != "" {
				fmt.Fprintf(&b, " (%s - %s)", e.StartDate, e.EndDate)
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String())
}

// OfferText renders an offer as the multi-line block sent to the models
func OfferText(o *database.Offer) string {
	if o == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", o.Title)

	lines := []struct{ label, value string }{
		{"Company", o.Company},
		{"Location", o.Location},
		{"Job type", o.JobType},
		{"Salary", formatSalary(o)},
	}
	for _, l := range lines {
		if l.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", l.label, l.value)
		}
	}

	if o.Description != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", o.Description)
	}
	if len(o.Skills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(o.Skills, ", "))
	}

	return strings.TrimSpace(b.String())
}

func formatSalary(o *database.Offer) string {
	var s string
	switch {
	case o.SalaryMin != nil && o.SalaryMax != nil:
		s = fmt.Sprintf("%.0f - %.0f", *o.SalaryMin, *o.SalaryMax)
	case o.SalaryMin != nil:
		s = fmt.Sprintf("from %.0f", *o.SalaryMin)
	case o.SalaryMax != nil:
		s = fmt.Sprintf("up to %.0f", *o.SalaryMax)
	default:
		return ""
	}
	if o.Currency != "" {
		s += " " + o.Currency
	}
	return s
}
