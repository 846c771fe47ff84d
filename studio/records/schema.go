package records

// Collection names a persisted table together with its header row.
type Collection struct {
	Name   string
	Header []string
}

// Width reports the number of columns in the collection.
func (c Collection) Width() int { return len(c.Header) }

// Column returns the 1-based index of field, or 0 when absent.
func (c Collection) Column(field string) int {
	for i, h := range c.Header {
		if h == field {
			return i + 1
		}
	}
	return 0
}

var (
	Users = Collection{
		Name:   "users",
		Header: []string{"user_id", "language", "last_activity"},
	}
	YogaRegistrations = Collection{
		Name:   "yoga_registrations",
		Header: []string{"id", "name", "email", "date", "class_type", "comment", "registered_at"},
	}
	Events = Collection{
		Name: "events",
		Header: []string{
			"id", "title_uk", "title_en", "title_de", "date", "time", "location", "price",
			"description_uk", "description_en", "description_de",
		},
	}
	Schedule = Collection{
		Name:   "schedule",
		Header: []string{"day", "time", "class_uk", "class_en", "class_de", "notes"},
	}
	Content = Collection{
		Name:   "content",
		Header: []string{"id", "title", "description", "content", "created_by"},
	}
)

// All lists every collection the bot ensures at startup.
func All() []Collection {
	return []Collection{Users, YogaRegistrations, Events, Schedule, Content}
}
