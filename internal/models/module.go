package models

import "strings"

// ModuleType is a sport/competition category filter.
type ModuleType string

const (
	ModuleNone          ModuleType = "NONE"
	ModuleGeneral       ModuleType = "GENERAL"
	ModuleNBA           ModuleType = "NBA"
	ModuleNFL           ModuleType = "NFL"
	ModuleMLB           ModuleType = "MLB"
	ModuleLMB           ModuleType = "LMB"
	ModuleSoccerEurope  ModuleType = "SOCCER_EUROPE"
	ModuleSoccerAmerica ModuleType = "SOCCER_AMERICAS"
	ModuleTennis        ModuleType = "TENNIS"
	ModuleNCAA          ModuleType = "NCAA"
)

var knownModules = map[ModuleType]bool{
	ModuleNone:          true,
	ModuleGeneral:       true,
	ModuleNBA:           true,
	ModuleNFL:           true,
	ModuleMLB:           true,
	ModuleLMB:           true,
	ModuleSoccerEurope:  true,
	ModuleSoccerAmerica: true,
	ModuleTennis:        true,
	ModuleNCAA:          true,
}

func ParseModule(raw string) (ModuleType, bool) {
	m := ModuleType(strings.ToUpper(strings.TrimSpace(raw)))
	if m == "" {
		return ModuleNone, false
	}
	return m, knownModules[m]
}

// IsScoped reports whether the module narrows a ticket query. NONE and
// GENERAL mean "everything".
func (m ModuleType) IsScoped() bool {
	return m != ModuleNone && m != ModuleGeneral && m != ""
}

// SystemState is the process-wide UI-facing mode. It is owned by the
// state manager; transitions happen on user actions and on completion or
// failure of async operations, never on background timers alone.
type SystemState string

const (
	StateStandby        SystemState = "STANDBY"
	StateScanning       SystemState = "SCANNING"
	StateAnalysisActive SystemState = "ANALYSIS_ACTIVE"
	StateAutoPilot      SystemState = "AUTO_PILOT"
)
