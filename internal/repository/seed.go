package repository

import "github.com/seatsync/seatsync/internal/model"

// Reference is the static lookup data the ledger consults.
type Reference struct {
	Institutions []model.Institution
	Users        []model.User
	Venues       []model.Venue
}

// DefaultReference returns the demo campus directory.
func DefaultReference() Reference {
	return Reference{
		Institutions: []model.Institution{
			{ID: "inst-ccu", Name: "Central Campus University", ShortName: "CCU", Code: "CCU01"},
			{ID: "inst-lsp", Name: "Lakeside Polytechnic", ShortName: "LSP", Code: "LSP02"},
		},
		Users: []model.User{
			{ID: "u1", Name: "Dr. James Mwangi", Email: "james@campus.edu", Role: model.RoleLecturer, InstitutionID: "inst-ccu"},
			{ID: "u2", Name: "Sarah Chen", Email: "sarah@student.edu", Role: model.RoleClassRep, InstitutionID: "inst-ccu"},
			{ID: "u3", Name: "Admin Root", Email: "admin@campus.edu", Role: model.RoleAdmin, InstitutionID: "inst-ccu"},
			{ID: "u4", Name: "Mark Otieno", Email: "mark@student.edu", Role: model.RoleStudent, InstitutionID: "inst-ccu"},
			{ID: "u5", Name: "Grace Njeri", Email: "grace@lakeside.ac", Role: model.RoleAdmin, InstitutionID: "inst-lsp"},
			{ID: "u6", Name: "Peter Kamau", Email: "peter@lakeside.ac", Role: model.RoleLecturer, InstitutionID: "inst-lsp"},
		},
		Venues: []model.Venue{
			{ID: "v1", InstitutionID: "inst-ccu", Name: "Lecture Hall A1", Capacity: 120, Location: "Science Block", Floor: 1, Amenities: []string{"Projector", "AC", "PA System"}},
			{ID: "v2", InstitutionID: "inst-ccu", Name: "Computer Lab 3", Capacity: 45, Location: "IT Wing", Floor: 3, Amenities: []string{"PCs", "High-Speed Internet", "Whiteboard"}},
			{ID: "v3", InstitutionID: "inst-ccu", Name: "Seminar Room 204", Capacity: 30, Location: "Arts Complex", Floor: 2, Amenities: []string{"Modular Seating", "Smart Board"}},
			{ID: "v4", InstitutionID: "inst-ccu", Name: "Main Auditorium", Capacity: 500, Location: "Central Admin", Floor: 1, Amenities: []string{"Stage", "Sound System", "Lighting Rig"}},
			{ID: "v5", InstitutionID: "inst-lsp", Name: "Workshop Bay 1", Capacity: 25, Location: "Engineering Yard", Floor: 0, Amenities: []string{"Workbenches", "Extraction"}},
			{ID: "v6", InstitutionID: "inst-lsp", Name: "Boardroom", Capacity: 16, Location: "Admin Block", Floor: 2, Amenities: []string{"Video Conferencing"}},
		},
	}
}
