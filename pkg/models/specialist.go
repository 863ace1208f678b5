package models

import "strings"

// SpecialistType identifies one bounded-scope health domain agent.
type SpecialistType string

const (
	SpecialistCardiology         SpecialistType = "cardiology"
	SpecialistEndocrinology      SpecialistType = "endocrinology"
	SpecialistNutrition          SpecialistType = "nutrition"
	SpecialistSleepMedicine      SpecialistType = "sleep_medicine"
	SpecialistExercisePhysiology SpecialistType = "exercise_physiology"
	SpecialistLaboratoryMedicine SpecialistType = "laboratory_medicine"
	SpecialistPharmacy           SpecialistType = "pharmacy"
	SpecialistGeneralPractice    SpecialistType = "general_practice"
	SpecialistInternalMedicine   SpecialistType = "internal_medicine"
	SpecialistMentalHealth       SpecialistType = "mental_health"
	SpecialistPreventiveMedicine SpecialistType = "preventive_medicine"
	SpecialistDataVisualization  SpecialistType = "data_visualization"
)

// AllSpecialists lists every recognized specialist type.
func AllSpecialists() []SpecialistType {
	return []SpecialistType{
		SpecialistCardiology,
		SpecialistEndocrinology,
		SpecialistNutrition,
		SpecialistSleepMedicine,
		SpecialistExercisePhysiology,
		SpecialistLaboratoryMedicine,
		SpecialistPharmacy,
		SpecialistGeneralPractice,
		SpecialistInternalMedicine,
		SpecialistMentalHealth,
		SpecialistPreventiveMedicine,
		SpecialistDataVisualization,
	}
}

// Valid returns true if the specialist type is a known value.
func (s SpecialistType) Valid() bool {
	for _, known := range AllSpecialists() {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSpecialist parses a specialist name case-insensitively, accepting
// spaces or hyphens in place of underscores. The second return value reports
// whether the input named a known specialist.
func ParseSpecialist(s string) (SpecialistType, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	st := SpecialistType(norm)
	return st, st.Valid()
}
