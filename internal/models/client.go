package models

import (
	"strings"
	"time"

	"github.com/diewo77/invoicing/validation"
)

// Client is a billed party. Invoices reference clients but do not own them.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Contact
	Name          string `gorm:"size:255;not null" json:"name"`
	ContactPerson string `gorm:"size:255" json:"contact_person,omitempty"`
	Email         string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone         string `gorm:"size:50" json:"phone,omitempty"`

	// Address
	Address    string `gorm:"size:500" json:"address,omitempty"`
	City       string `gorm:"size:100" json:"city,omitempty"`
	State      string `gorm:"size:100" json:"state,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	Country    string `gorm:"size:100" json:"country,omitempty"`

	// Tax information
	GSTNumber string `gorm:"size:50" json:"gst_number,omitempty"`
}

// Normalize trims contact fields and lower-cases the email so uniqueness is case-insensitive.
func (c *Client) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
}

// Validate checks the required contact fields.
func (c *Client) Validate() error {
	v := validation.Violations{}
	validation.Required("name", c.Name, v)
	validation.MaxLen("name", c.Name, 255, v)
	validation.Required("email", c.Email, v)
	validation.Email("email", c.Email, v)
	return v.Err()
}

// FullAddress returns the formatted full address.
func (c *Client) FullAddress() string {
	lines := make([]string, 0, 3)
	if c.Address != "" {
		lines = append(lines, c.Address)
	}
	locality := strings.TrimSpace(strings.Join(nonEmpty(c.City, c.State, c.PostalCode), ", "))
	if locality != "" {
		lines = append(lines, locality)
	}
	if c.Country != "" {
		lines = append(lines, c.Country)
	}
	return strings.Join(lines, "\n")
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, s := range values {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
