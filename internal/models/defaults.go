package models

import "math"

// Parameter field names. They double as the abstract labels understood by the
// calculator link tables.
const (
	FieldSLD         = "sld"
	FieldISLD        = "isld"
	FieldThickness   = "thickness"
	FieldRoughness   = "roughness"
	FieldRepetitions = "repetitions"
	FieldScale       = "scale"
	FieldBackground  = "background"
	FieldResolution  = "resolution"
)

// Default element names.
const (
	DefaultMaterialName  = "EasyMaterial"
	DefaultLayerName     = "EasyLayer"
	DefaultLayersName    = "EasyLayers"
	DefaultItemName      = "EasyItem"
	DefaultStructureName = "easyStructure"
	DefaultModelName     = "easyModel"
)

const sldURL = "https://www.ncnr.nist.gov/resources/activation/"

var defaults = map[string]ParameterDefault{
	FieldSLD: {
		Description: "The real scattering length density for a material in e-6 per squared angstrom.",
		URL:         sldURL,
		Value:       4.186,
		Unit:        "1 / angstrom ** 2",
		Min:         math.Inf(-1),
		Max:         math.Inf(1),
		Fixed:       true,
	},
	FieldISLD: {
		Description: "The imaginary scattering length density for a material in e-6 per squared angstrom.",
		URL:         sldURL,
		Value:       0.0,
		Unit:        "1 / angstrom ** 2",
		Min:         math.Inf(-1),
		Max:         math.Inf(1),
		Fixed:       true,
	},
	FieldThickness: {
		Description: "The thickness of the layer in angstroms",
		URL:         "https://github.com/reflectivity/edu_outreach/blob/master/refl_maths/paper.tex",
		Value:       10.0,
		Unit:        "angstrom",
		Min:         0.0,
		Max:         math.Inf(1),
		Fixed:       true,
	},
	FieldRoughness: {
		Description: "The interfacial roughness, Nevot-Croce, for the layer in angstroms.",
		URL:         "https://doi.org/10.1051/rphysap:01980001503076100",
		Value:       3.3,
		Unit:        "angstrom",
		Min:         0.0,
		Max:         math.Inf(1),
		Fixed:       true,
	},
	FieldRepetitions: {
		Description: "Number of times the layers of an item are repeated.",
		URL:         "https://github.com/refnx/refnx/blob/master/refnx/reflect/structure.py",
		Value:       1.0,
		Unit:        "dimensionless",
		Min:         1.0,
		Max:         9999.0,
		Fixed:       true,
	},
	FieldScale: {
		Description: "Scaling of the reflectomety profile",
		URL:         "https://github.com/reflectivity/edu_outreach/blob/master/refl_maths/paper.tex",
		Value:       1.0,
		Unit:        "dimensionless",
		Min:         0.0,
		Max:         math.Inf(1),
		Fixed:       true,
	},
	FieldBackground: {
		Description: "Linear background to include in reflectometry data",
		URL:         "https://github.com/reflectivity/edu_outreach/blob/master/refl_maths/paper.tex",
		Value:       1e-7,
		Unit:        "dimensionless",
		Min:         0.0,
		Max:         math.Inf(1),
		Fixed:       true,
	},
	FieldResolution: {
		Description: "Percentage dq/q full width at half maximum of the resolution function",
		URL:         "https://github.com/reflectivity/edu_outreach/blob/master/refl_maths/paper.tex",
		Value:       5.0,
		Unit:        "%",
		Min:         0.0,
		Max:         math.Inf(1),
		Fixed:       true,
	},
}

// Default returns the built-in metadata of a named parameter.
func Default(field string) (ParameterDefault, bool) {
	d, ok := defaults[field]
	return d, ok
}
