package models

import "time"

// SideEffectStatus is the outcome metadata persisted back onto a source record.
// Only the dispatch status writer mutates these columns, and only through
// conditional field-scoped updates.
type SideEffectStatus struct {
	SideEffectSent      bool       `gorm:"column:side_effect_sent;not null;default:false" json:"sideEffectSent"`
	SideEffectSentAt    *time.Time `gorm:"column:side_effect_sent_at;type:timestamptz" json:"sideEffectSentAt"`
	SideEffectReference *string    `gorm:"column:side_effect_reference;type:text" json:"sideEffectReference"`
	SideEffectError     *string    `gorm:"column:side_effect_error;type:text" json:"sideEffectError"`
	SideEffectErrorAt   *time.Time `gorm:"column:side_effect_error_at;type:timestamptz" json:"sideEffectErrorAt"`
}

// InFlight reports whether no attempt has completed yet.
func (s SideEffectStatus) InFlight() bool {
	return !s.SideEffectSent && s.SideEffectError == nil
}
