package tracking

import "deliverytrack/internal/model"

const fallbackDescription = "Order status is being updated"

var descriptions = map[model.Status]string{
	model.StatusCreated:   "Your order has been placed and is waiting for a courier",
	model.StatusAssigned:  "A courier has accepted your order and is heading to the pickup point",
	model.StatusPickedUp:  "The courier has picked up your package",
	model.StatusInTransit: "Your package is on its way to the delivery address",
	model.StatusDelivered: "Your package has been delivered",
	model.StatusCancelled: "This order has been cancelled",
}

// Description maps a status to user-facing text. Unknown values get a
// generic message so schema drift on the backend never breaks rendering.
func Description(s model.Status) string {
	if d, ok := descriptions[s]; ok {
		return d
	}
	return fallbackDescription
}
