package enrich

import "github.com/amishk599/jobscout/internal/model"

// YearsOfExperience is the field every deployment resolves.
var YearsOfExperience = model.FieldDescriptor{
	Name:   "years_of_experience",
	Type:   model.FieldSmallint,
	Prompt: "How many years of experiences does the job require? Answer a number only.",
}

// DefaultFields is used when configuration names no fields.
func DefaultFields() []model.FieldDescriptor {
	return []model.FieldDescriptor{YearsOfExperience}
}

// FindField returns the descriptor called name.
func FindField(fields []model.FieldDescriptor, name string) (model.FieldDescriptor, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.FieldDescriptor{}, false
}
