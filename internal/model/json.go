package model

import (
	"encoding/json"
	"math"
)

// MarshalJSON writes an unset (NaN) order as null; encoding/json rejects NaN.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	aux := struct {
		plain
		Order *float64 `json:"order"`
	}{plain: plain(it)}
	if !math.IsNaN(it.Order) && !math.IsInf(it.Order, 0) {
		o := it.Order
		aux.Order = &o
	}
	return json.Marshal(aux)
}

// UnmarshalJSON reads a null or missing order back as NaN.
func (it *Item) UnmarshalJSON(b []byte) error {
	type plain Item
	aux := struct {
		*plain
		Order *float64 `json:"order"`
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Order == nil {
		it.Order = math.NaN()
	} else {
		it.Order = *aux.Order
	}
	return nil
}
