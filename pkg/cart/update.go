package cart

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemUpdate lists the only item fields a client may change. Nil fields are left alone.
type ItemUpdate struct {
	Comments       *string
	ScheduledDate  *string
	ScheduledTime  *string
	Duration       *int
	SelectedAddOns *[]string
	BasePrice      *decimal.Decimal
	AddOnsPrice    *decimal.Decimal
	Subtotal       *decimal.Decimal
	ServiceDetails *json.RawMessage
}

// mutableFields maps accepted JSON keys to decoders. Keys outside it are dropped.
var mutableFields = map[string]func(update *ItemUpdate, raw json.RawMessage) error{
	"comments": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.Comments)
	},
	"scheduledDate": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.ScheduledDate)
	},
	"scheduledTime": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.ScheduledTime)
	},
	"duration": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.Duration)
	},
	"selectedAddOns": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.SelectedAddOns)
	},
	"basePrice": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.BasePrice)
	},
	"addOnsPrice": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.AddOnsPrice)
	},
	"subtotal": func(update *ItemUpdate, raw json.RawMessage) error {
		return decodeInto(raw, &update.Subtotal)
	},
	"serviceDetails": func(update *ItemUpdate, raw json.RawMessage) error {
		details := append(json.RawMessage(nil), raw...)
		update.ServiceDetails = &details
		return nil
	},
}

// DecodeItemUpdate builds an ItemUpdate from a JSON object, ignoring keys that are not mutable.
func DecodeItemUpdate(payload []byte) (ItemUpdate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ItemUpdate{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	var update ItemUpdate
	for key, raw := range fields {
		decode, ok := mutableFields[key]
		if !ok {
			continue
		}
		if err := decode(&update, raw); err != nil {
			return ItemUpdate{}, fmt.Errorf("%w: field %s: %v", ErrInvalidItem, key, err)
		}
	}
	return update, nil
}

func decodeInto[T any](raw json.RawMessage, target **T) error {
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return err
	}
	*target = &value
	return nil
}

// IsEmpty reports whether the update changes nothing.
func (update ItemUpdate) IsEmpty() bool {
	return update.Comments == nil &&
		update.ScheduledDate == nil &&
		update.ScheduledTime == nil &&
		update.Duration == nil &&
		update.SelectedAddOns == nil &&
		update.BasePrice == nil &&
		update.AddOnsPrice == nil &&
		update.Subtotal == nil &&
		update.ServiceDetails == nil
}

// Validate checks every present field.
func (update ItemUpdate) Validate() error {
	if update.ScheduledDate != nil {
		if err := validateScheduledDate(*update.ScheduledDate); err != nil {
			return err
		}
	}
	if update.ScheduledTime != nil {
		if err := validateScheduledTime(*update.ScheduledTime); err != nil {
			return err
		}
	}
	if update.Duration != nil && *update.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidItem)
	}
	for _, price := range []*decimal.Decimal{update.BasePrice, update.AddOnsPrice, update.Subtotal} {
		if price != nil {
			if err := validatePrices(*price); err != nil {
				return err
			}
		}
	}
	if update.ServiceDetails != nil {
		return validateDetails(*update.ServiceDetails)
	}
	return nil
}

// Apply returns item with the present fields replaced.
func (update ItemUpdate) Apply(item Item) Item {
	if update.Comments != nil {
		item.Comments = *update.Comments
	}
	if update.ScheduledDate != nil {
		item.ScheduledDate = *update.ScheduledDate
	}
	if update.ScheduledTime != nil {
		item.ScheduledTime = *update.ScheduledTime
	}
	if update.Duration != nil {
		item.Duration = *update.Duration
	}
	if update.SelectedAddOns != nil {
		item.SelectedAddOns = append([]string(nil), (*update.SelectedAddOns)...)
	}
	if update.BasePrice != nil {
		item.BasePrice = *update.BasePrice
	}
	if update.AddOnsPrice != nil {
		item.AddOnsPrice = *update.AddOnsPrice
	}
	if update.Subtotal != nil {
		item.Subtotal = *update.Subtotal
	}
	if update.ServiceDetails != nil {
		item.ServiceDetails = append(json.RawMessage(nil), (*update.ServiceDetails)...)
	}
	return item
}
