package schema

import "github.com/MrWong99/surveyscribe/pkg/notes"

// DefaultEntries returns the built-in section definitions.
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "Boiler", Description: "Existing appliance, the replacement and where it goes."},
		{Name: "Flue", Description: "Flue route, terminal position and plume management."},
		{Name: "Pipe work", Description: "Gas, water and condensate pipe routes."},
		{Name: "Controls", Description: "Thermostats, programmers and radiator valves."},
		{Name: "Disruption", Description: "Loss of heating or hot water during the job."},
		{Name: "Working at heights", Description: "Ladders, scaffolding and loft work."},
		{Name: "Restrictions to work", Description: "Access, parking, pets and other site constraints."},
		{Name: "Assistance", Description: "Extra hands or lifting equipment needed."},
		{Name: "Office notes", Description: "Booking, paperwork and follow-ups for the office."},
		{Name: notes.FuturePlans, Description: FuturePlansDescription},
	}
}

// Default returns the built-in canonical schema.
func Default() *Schema {
	return Resolve(DefaultEntries())
}
