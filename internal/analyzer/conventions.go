package analyzer

import "regexp"

// Conventions describe how one API surface names its schemas. The zero value
// is not useful; start from DefaultConventions.
type Conventions struct {
	// TypesAlias is the identifier the raw schema types are imported as.
	TypesAlias string

	SummarySuffix string
	DetailSuffix  string
	QuerySuffix   string

	// SummaryPattern and DetailPattern rank candidate schema names during
	// structural inference.
	SummaryPattern *regexp.Regexp
	DetailPattern  *regexp.Regexp

	// QueryFromOperation makes the query type fall back to the collection
	// GET's generated operation parameters instead of {}.
	QueryFromOperation bool
}

var (
	defaultSummaryPattern = regexp.MustCompile(`(?i)Summary(Response)?$`)
	defaultDetailPattern  = regexp.MustCompile(`(?i)Detail(Response)?$`)
)

func DefaultConventions() Conventions {
	return Conventions{
		TypesAlias:     "Data",
		SummarySuffix:  "SummaryResponse",
		DetailSuffix:   "DetailResponse",
		QuerySuffix:    "QueryParameters",
		SummaryPattern: defaultSummaryPattern,
		DetailPattern:  defaultDetailPattern,
	}
}

// withDefaults fills empty fields from DefaultConventions.
func (c Conventions) withDefaults() Conventions {
	d := DefaultConventions()
	if c.TypesAlias == "" {
		c.TypesAlias = d.TypesAlias
	}
	if c.SummarySuffix == "" {
		c.SummarySuffix = d.SummarySuffix
	}
	if c.DetailSuffix == "" {
		c.DetailSuffix = d.DetailSuffix
	}
	if c.QuerySuffix == "" {
		c.QuerySuffix = d.QuerySuffix
	}
	if c.SummaryPattern == nil {
		c.SummaryPattern = d.SummaryPattern
	}
	if c.DetailPattern == nil {
		c.DetailPattern = d.DetailPattern
	}
	return c
}
