package models

import (
	"fmt"
	"strings"
	"time"
)

// DOBLayout is the layout profiles store their date of birth in.
const DOBLayout = "02/01/2006"

// AdultAge is the age from which a profile is no longer treated as a minor.
const AdultAge = 18

type Profile struct {
	UserID          string       `json:"user_id" yaml:"user_id" dynamodbav:"user_id"`
	Name            string       `json:"name,omitempty" yaml:"name,omitempty" dynamodbav:"name,omitempty"`
	DOB             string       `json:"dob,omitempty" yaml:"dob,omitempty" dynamodbav:"dob,omitempty"`
	AgeRange        *AgeRange    `json:"age_range,omitempty" yaml:"age_range,omitempty" dynamodbav:"age_range,omitempty"`
	PhoneNumber     *PhoneNumber `json:"phone_number,omitempty" yaml:"phone_number,omitempty" dynamodbav:"phone_number,omitempty"`
	Gender          string       `json:"gender,omitempty" yaml:"gender,omitempty" dynamodbav:"gender,omitempty"`
	Orientation     []string     `json:"orientation,omitempty" yaml:"orientation,omitempty" dynamodbav:"orientation,omitempty"`
	ProfileImage    string       `json:"profile_image,omitempty" yaml:"profile_image,omitempty" dynamodbav:"profile_image,omitempty"`
	Location        *Location    `json:"location,omitempty" yaml:"location,omitempty" dynamodbav:"location,omitempty"`
	DistanceRangeKm *int         `json:"distance_range_km,omitempty" yaml:"distance_range_km,omitempty" dynamodbav:"distance_range_km,omitempty"`
}

// AgeRange is an inclusive [lo, hi] range of acceptable partner ages.
type AgeRange [2]int

func (r AgeRange) Contains(age int) bool {
	return r[0] <= age && age <= r[1]
}

type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude" dynamodbav:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude" dynamodbav:"longitude"`
	Consent   bool    `json:"consent" yaml:"consent" dynamodbav:"consent"`
	Name      string  `json:"name,omitempty" yaml:"name,omitempty" dynamodbav:"name,omitempty"`
}

// Usable reports whether the location may take part in distance checks.
func (l *Location) Usable() bool {
	return l != nil && l.Consent
}

type PhoneNumber struct {
	CountryISOCode string `json:"countryISOCode" yaml:"countryISOCode" dynamodbav:"countryISOCode"`
	CountryCode    string `json:"countryCode" yaml:"countryCode" dynamodbav:"countryCode"`
	Number         string `json:"number" yaml:"number" dynamodbav:"number"`
}

// Age derives the age at now from the date of birth.
// The second value is false when the date of birth is absent or unparsable.
func (p *Profile) Age(now time.Time) (int, bool) {
	dob := strings.TrimSpace(p.DOB)
	if dob == "" {
		return 0, false
	}

	born, err := time.Parse(DOBLayout, dob)
	if err != nil {
		return 0, false
	}

	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}

	return age, true
}

// IsMinor is false for profiles with an unknown age.
func (p *Profile) IsMinor(now time.Time) bool {
	age, ok := p.Age(now)
	return ok && age < AdultAge
}

// Describe renders the profile for the compatibility prompt.
// Identity, contact and image fields are never included.
func (p *Profile) Describe(now time.Time) string {
	var lines []string
	add := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", name, value))
		}
	}

	add("Name", p.Name)
	if p.DOB != "" {
		if age, ok := p.Age(now); ok {
			add("Date of Birth", fmt.Sprintf("%s (%d)", p.DOB, age))
		} else {
			add("Date of Birth", p.DOB)
		}
	}
	if p.AgeRange != nil {
		add("Age range", fmt.Sprintf("%d-%d", p.AgeRange[0], p.AgeRange[1]))
	}
	add("Gender", p.Gender)
	add("Interested in", strings.Join(p.Orientation, ", "))
	if p.Location != nil && p.Location.Consent {
		add("Location", p.Location.Name)
	}
	if p.DistanceRangeKm != nil {
		add("Preferred Max. Distance (KM)", fmt.Sprintf("%d", *p.DistanceRangeKm))
	}

	return strings.Join(lines, "\n")
}

type Persona struct {
	UserID         string         `json:"user_id" yaml:"user_id" dynamodbav:"user_id"`
	Description    string         `json:"description" yaml:"description" dynamodbav:"description"`
	CategoryScores map[string]int `json:"profile_category_scores,omitempty" yaml:"profile_category_scores,omitempty" dynamodbav:"profile_category_scores,omitempty"`
}
