package core

func init() {
	Register(FormatDefinition{
		Name:  "rendspec",
		Label: "Rendering provider specialty code to description",
		Derive: func(r CleanedRow) (string, string, bool) {
			return r.Clean[ColSpecialtyCode], r.Clean[ColSpecialtyDesc], true
		},
	})

	// taxrend uses the carry-forward values: a taxonomy code listed under a
	// blank specialty cell belongs to the specialty above it.
	Register(FormatDefinition{
		Name:  "taxrend",
		Label: "Provider taxonomy code to rendering specialty code",
		Derive: func(r CleanedRow) (string, string, bool) {
			return r.Filled[ColTaxonomyCode], r.Filled[ColSpecialtyCode], true
		},
	})

	Register(FormatDefinition{
		Name:  "taxtype",
		Label: "Provider taxonomy code to taxonomy description",
		Derive: func(r CleanedRow) (string, string, bool) {
			code := r.Clean[ColTaxonomyCode]
			return code, r.Clean[ColTaxonomyDesc], r.Split || code != Sentinel
		},
	})
}
