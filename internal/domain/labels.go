package domain

import (
	"fmt"
	"math"
)

// Label is how a tag value is presented to riders.
type Label struct {
	Text  string
	Color string
}

var surfaceLabels = map[string]Label{
	"asphalt":            {"Asphalt", "#4682B4"},
	"concrete":           {"Fest/Betoniert", "#336187"},
	"paved":              {"Befestigt", "#385a75"},
	"concrete:lanes":     {"Asphaltweg", "#ADD8E6"},
	"concrete:plates":    {"Asphaltplatten", "#B0C4DE"},
	"paving_stones":      {"Ebener Pflasterstein", "#C0C0C0"},
	"sett":               {"Pflasterstein", "#A9A9A9"},
	"cobblestone":        {"Rundlicher Pflasterstein", "#A9A9A9"},
	"unhewn_cobblestone": {"Kopfsteinpflaster", "#808080"},
	"unpaved":            {"Uneben", "#FFA07A"},
	"compacted":          {"Guter Waldweg", "#006400"},
	"fine_gravel":        {"Feiner Kies", "#708090"},
	"pebblestone":        {"Kies", "#708090"},
	"gravel":             {"Schotter", "#696969"},
	"earth":              {"Erde", "#CD853F"},
	"dirt":               {"Lockere Erde", "#CD853F"},
	"ground":             {"Erdboden", "#CD853F"},
	"grass":              {"Gras", "#228B22"},
	"grass_paver":        {"Betonstein auf Gras", "#8FBC8F"},
	"mud":                {"Matsch", "#BDB76B"},
	"sand":               {"Sand", "#F4A460"},
	"woodchips":          {"Holzschnitzel", "#DEB887"},
}

var litLabels = map[string]Label{
	"yes": {"Beleuchtet", "yellow"},
	"no":  {"Nicht beleuchtet", "black"},
}

var bicycleClassLabels = map[string]Label{
	"-3": {"Unter allen Umständen vermeiden", "black"},
	"-2": {"Nur wenn unbedingt nötig", "black"},
	"-1": {"Wenn möglich vermeiden", "red"},
	"1":  {"In Ordnung", "yellow"},
	"2":  {"Sehr schöner Weg", "green"},
	"3":  {"Einen Umweg wert", "green"},
}

// LabelFor returns the display label of a tag value. Values without a known
// label fall back to the dimension's "unknown" presentation.
func LabelFor(d TagDimension, value string) Label {
	switch d {
	case DimensionSurface:
		if l, ok := surfaceLabels[value]; ok {
			return l
		}
		return Label{"Unbekannt", "lightgrey"}
	case DimensionIllumination:
		if l, ok := litLabels[value]; ok {
			return l
		}
		return Label{"Unbekannt", "grey"}
	case DimensionBicycleClass:
		if l, ok := bicycleClassLabels[value]; ok {
			return l
		}
		return Label{"Nicht bewertet", "lightgrey"}
	}
	return Label{Text: value, Color: "lightgrey"}
}

// FormatDistance renders meters for display: whole meters up to 1 km,
// kilometers with two decimals (comma separated) above.
func FormatDistance(meters float64) string {
	if meters > 1000 {
		hundredths := int64(math.Round(meters / 10))
		return fmt.Sprintf("%d,%02d km", hundredths/100, hundredths%100)
	}
	return fmt.Sprintf("%d m", int64(math.Round(meters)))
}
