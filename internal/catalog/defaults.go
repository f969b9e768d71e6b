package catalog

// Well-known view identifiers of the built-in dashboard.
const (
	ViewCountryGraph   = 0
	ViewStateGraph     = 10
	ViewStateComposite = 11
	ViewCountyGraph    = 20
)

//nolint:gochecknoglobals // Static built-in option tables.
var (
	countryOptions = []Option{
		{Value: "US", Label: "United States"},
		{Value: "CA", Label: "Canada"},
		{Value: "MX", Label: "Mexico"},
		{Value: "GB", Label: "United Kingdom"},
		{Value: "DE", Label: "Germany"},
		{Value: "FR", Label: "France"},
		{Value: "IT", Label: "Italy"},
		{Value: "ES", Label: "Spain"},
		{Value: "BR", Label: "Brazil"},
		{Value: "IN", Label: "India"},
	}
	stateOptions = []Option{
		{Value: "US", Label: "All states"},
		{Value: "NY", Label: "New York"},
		{Value: "CA", Label: "California"},
		{Value: "TX", Label: "Texas"},
		{Value: "FL", Label: "Florida"},
		{Value: "WA", Label: "Washington"},
		{Value: "IL", Label: "Illinois"},
	}
	countyOptions = []Option{
		{Value: "Kings County", Label: "Kings County, NY"},
		{Value: "Queens County", Label: "Queens County, NY"},
		{Value: "Los Angeles County", Label: "Los Angeles County, CA"},
		{Value: "Cook County", Label: "Cook County, IL"},
		{Value: "Harris County", Label: "Harris County, TX"},
	}
	modeOptions = []Option{
		{Value: "D", Label: "Daily"},
		{Value: "C", Label: "Cumulative"},
		{Value: "W", Label: "7-day average"},
	}
	compositeOptions = []Option{
		{Value: "VB", Label: "Vaccinated vs boosted"},
		{Value: "CD", Label: "Cases vs deaths"},
		{Value: "HT", Label: "Hospitalized vs tested"},
	}
)

// DefaultControls returns the controls of the built-in dashboard.
func DefaultControls() []Control {
	return []Control{
		{Name: "selcountry", Param: "code", Label: "Country", Default: "US", Options: countryOptions},
		{Name: "selstate", Param: "code", Label: "State", Default: "US", Options: stateOptions},
		{Name: "modestate", Param: "mode", Label: "Mode", Default: "D", Options: modeOptions},
		{Name: "modecompstate", Param: "mode", Label: "Composite", Default: "VB", Options: compositeOptions},
		{Name: "selcounty", Param: "code", Label: "County", Default: "Kings County", Options: countyOptions},
		{Name: "modecounty", Param: "mode", Label: "Mode", Default: "D", Options: modeOptions},
	}
}

// DefaultViews returns the views of the built-in dashboard.
func DefaultViews() []View {
	return []View{
		{
			ID: ViewCountryGraph, Name: "country", Title: "Country graph",
			Endpoint: "/api/country/graph", Controls: []string{"selcountry"},
		},
		{
			ID: ViewStateGraph, Name: "state", Title: "State graph",
			Endpoint: "/api/state/graph", Controls: []string{"selstate", "modestate"},
		},
		{
			ID: ViewStateComposite, Name: "composite", Title: "State composite",
			Endpoint: "/api/state/composite", Controls: []string{"selstate", "modecompstate"},
		},
		{
			ID: ViewCountyGraph, Name: "county", Title: "County graph",
			Endpoint: "/api/county/graph", Controls: []string{"selcounty", "modecounty"},
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultViews(), DefaultControls())
	if err != nil {
		// The built-in tables are covered by tests.
		panic(err)
	}
	return c
}
