package models

// InvoiceSequence is the storage-owned counter behind invoice numbering,
// one row per number prefix.
type InvoiceSequence struct {
	Prefix    string `gorm:"primaryKey;size:20"`
	LastValue int64  `gorm:"not null;default:0"`
}
