package normalize

import (
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/transport"
)

func (n Normalizer) bookingItems(payload transport.Payload) ([]acquire.Record, error) {
	var records []acquire.Record
	for _, page := range payload.Pages {
		items, err := graphqlData(acquire.TargetBookingItems, page, "bizItems")
		if err != nil {
			return nil, err
		}
		if !items.IsArray() {
			return nil, acquire.NewSchemaMismatch(acquire.TargetBookingItems, "bizItems is not a list", nil)
		}
		for _, item := range items.Array() {
			id := item.Get("bizItemId")
			if !id.Exists() {
				return nil, acquire.NewSchemaMismatch(acquire.TargetBookingItems, "bizItem without bizItemId", nil)
			}
			records = append(records, acquire.Record{
				acquire.FieldBizItemID:   id.String(),
				acquire.FieldBizItemName: item.Get("name").String(),
			})
		}
	}
	return records, nil
}
