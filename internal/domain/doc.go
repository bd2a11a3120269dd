// Package domain models the shared raster, scenario descriptors and results of
// the multi-hazard simulation engine.
//
// # Grid Conventions
//
// The grid is a north-up raster of square cells:
//
//	index = y*Width + x
//	x grows eastward from the western edge (column 0)
//	y grows southward from the northern edge (row 0)
//
// Cell centres are geo-referenced with an equirectangular projection around
// the domain centre (GeoRef), which is accurate to well under a cell over a
// few kilometres.
//
// Obstacle heights are metres above local terrain. Any positive height marks
// a building footprint. Footprints are impermeable to water, block wind and
// cast shadows. 4-connected footprint cells form one building.
//
// # Vector Conventions
//
// Every exported vector quantity (wind velocity, flood discharge) is expressed
// as east and north components. Wind directions are meteorological: the
// direction the wind blows from, clockwise from north, so a westerly is 270°
// and flows toward +east.
//
// # Validated Ranges
//
// Scenario forcing is rejected before any solver work when outside:
//
//	Flood:   rainfall 15–220 mm/h, duration 0.1–48 h
//	Wind:    speed 5–35 m/s at 10 m, direction 0–360°
//	Thermal: air temperature −5–38 °C, humidity 0–100 %, solar 0–1200 W/m²
//
// Bounds are inclusive. NaN is always rejected.
//
// # Classification
//
//	Flood risk (depth):       <0.05 m minimal | <0.15 low | <0.40 moderate | <0.80 high | ≥0.80 critical
//	Wind comfort (Lawson, pedestrian speed):
//	                          <4 m/s comfortable | <6 acceptable | <8 uncomfortable | <12 dangerous | ≥12 extreme
//	Thermal stress (UTCI):    the ten standard assessment bands from extreme cold (<−40 °C)
//	                          to extreme heat (>46 °C), no stress 9–26 °C
//
// # Failure Semantics
//
// Scenario failures are local. Validation and missing-dependency errors
// (ErrOutOfRange, ErrInvalidScenario, ErrMissingWindField) reject a scenario
// before it runs. Numerical failures surface as *InstabilityError wrapping
// ErrUnstable with the step and cell that triggered them. A failed scenario
// never reports default values.
package domain
