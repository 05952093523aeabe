package models

// EmailRecord is one distinct developer email collected from the metadata files.
type EmailRecord struct {
	Email  string `json:"email"`
	Source string `json:"-"` // metadata file the email was first seen in
}
