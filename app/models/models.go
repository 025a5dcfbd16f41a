package models

// All returns every persisted model in foreign-key order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Requester{},
		&Location{},
		&TextAnalysis{},
		&Incident{},
		&Multimedia{},
		&ImageAnalysis{},
		&StateHistory{},
	}
}
