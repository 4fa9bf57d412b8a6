package handlers

import (
	"time"

	domain "github.com/noirthread/storefront-api/internal/domain"
)

type addressJSON struct {
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

type customerJSON struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	LoginMethod string `json:"loginMethod,omitempty"`
}

type totalsJSON struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type itemJSON struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"lineTotal"`
}

type paymentRecordJSON struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type eventJSON struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type refundJSON struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason,omitempty"`
	ProcessedBy string    `json:"processedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ownerNoteJSON struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type shipmentEventJSON struct {
	Status     string         `json:"status"`
	OccurredAt time.Time      `json:"occurredAt"`
	Details    map[string]any `json:"details,omitempty"`
}

type shipmentJSON struct {
	ID              string              `json:"id"`
	Carrier         string              `json:"carrier,omitempty"`
	TrackingNumbers []string            `json:"trackingNumbers,omitempty"`
	Status          string              `json:"status"`
	Events          []shipmentEventJSON `json:"events,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type orderJSON struct {
	ID                string              `json:"id"`
	OrderNumber       string              `json:"orderNumber"`
	TransactionID     string              `json:"transactionId"`
	Customer          customerJSON        `json:"customer"`
	Currency          string              `json:"currency"`
	Totals            totalsJSON          `json:"totals"`
	PaymentStatus     string              `json:"paymentStatus"`
	FulfillmentStatus string              `json:"fulfillmentStatus"`
	Status            string              `json:"status"`
	PaymentProvider   string              `json:"paymentProvider,omitempty"`
	ShippingAddress   *addressJSON        `json:"shippingAddress,omitempty"`
	BillingAddress    *addressJSON        `json:"billingAddress,omitempty"`
	Items             []itemJSON          `json:"items"`
	PaymentTimeline   []paymentRecordJSON `json:"paymentTimeline,omitempty"`
	Events            []eventJSON         `json:"events,omitempty"`
	Refunds           []refundJSON        `json:"refunds,omitempty"`
	OwnerNotes        []ownerNoteJSON     `json:"ownerNotes,omitempty"`
	Shipments         []shipmentJSON      `json:"shipments,omitempty"`
	TrackingNumbers   []string            `json:"trackingNumbers,omitempty"`
	Metadata          map[string]any      `json:"metadata,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	PaidAt            *time.Time          `json:"paidAt,omitempty"`
	DeliveredAt       *time.Time          `json:"deliveredAt,omitempty"`
	RefundedAt        *time.Time          `json:"refundedAt,omitempty"`
	CancelledAt       *time.Time          `json:"cancelledAt,omitempty"`
}

type paginationJSON struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// presentOrder renders the full aggregate for the admin surface.
func presentOrder(order domain.Order) orderJSON {
	return present(order, true)
}

// presentCustomerOrder renders the customer-facing view. Owner notes and the
// operational event timeline stay internal.
func presentCustomerOrder(order domain.Order) orderJSON {
	return present(order, false)
}

func present(order domain.Order, internal bool) orderJSON {
	out := orderJSON{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		TransactionID: order.TransactionID,
		Customer: customerJSON{
			ID:          order.Customer.ID,
			Email:       order.Customer.Email,
			Name:        order.Customer.Name,
			LoginMethod: order.Customer.LoginMethod,
		},
		Currency: order.Currency,
		Totals: totalsJSON{
			Subtotal: order.Totals.Subtotal,
			Shipping: order.Totals.Shipping,
			Tax:      order.Totals.Tax,
			Discount: order.Totals.Discount,
			Total:    order.Totals.Total,
		},
		PaymentStatus:     string(order.PaymentStatus),
		FulfillmentStatus: string(order.FulfillmentStatus),
		Status:            string(order.Status),
		PaymentProvider:   order.PaymentProvider,
		ShippingAddress:   presentAddress(order.ShippingAddress),
		BillingAddress:    presentAddress(order.BillingAddress),
		Items:             make([]itemJSON, 0, len(order.Items)),
		TrackingNumbers:   order.TrackingNumbers,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
		PaidAt:            order.PaidAt,
		DeliveredAt:       order.DeliveredAt,
		RefundedAt:        order.RefundedAt,
		CancelledAt:       order.CancelledAt,
	}

	for _, item := range order.Items {
		out.Items = append(out.Items, itemJSON{
			SKU:       item.SKU,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}
	for _, shipment := range order.Shipments {
		events := make([]shipmentEventJSON, 0, len(shipment.Events))
		for _, event := range shipment.Events {
			events = append(events, shipmentEventJSON{
				Status:     event.Status,
				OccurredAt: event.OccurredAt,
				Details:    event.Details,
			})
		}
		out.Shipments = append(out.Shipments, shipmentJSON{
			ID:              shipment.ID,
			Carrier:         shipment.Carrier,
			TrackingNumbers: shipment.TrackingNumbers,
			Status:          string(shipment.Status),
			Events:          events,
			CreatedAt:       shipment.CreatedAt,
			UpdatedAt:       shipment.UpdatedAt,
		})
	}
	for _, refund := range order.Refunds {
		out.Refunds = append(out.Refunds, refundJSON{
			ID:          refund.ID,
			Amount:      refund.Amount,
			Reason:      refund.Reason,
			ProcessedBy: refund.ProcessedBy,
			CreatedAt:   refund.CreatedAt,
		})
	}

	if !internal {
		return out
	}

	out.Metadata = order.Metadata
	for _, record := range order.PaymentTimeline {
		out.PaymentTimeline = append(out.PaymentTimeline, paymentRecordJSON{
			ID:            record.ID,
			Provider:      record.Provider,
			TransactionID: record.TransactionID,
			Status:        string(record.Status),
			Amount:        record.Amount,
			Currency:      record.Currency,
			OccurredAt:    record.OccurredAt,
		})
	}
	for _, event := range order.Events {
		out.Events = append(out.Events, eventJSON{
			ID:        event.ID,
			Type:      event.Type,
			Actor:     event.Actor,
			Message:   event.Message,
			Metadata:  event.Metadata,
			CreatedAt: event.CreatedAt,
		})
	}
	for _, note := range order.OwnerNotes {
		out.OwnerNotes = append(out.OwnerNotes, ownerNoteJSON{
			ID:        note.ID,
			Content:   note.Content,
			CreatedBy: note.CreatedBy,
			CreatedAt: note.CreatedAt,
			UpdatedAt: note.UpdatedAt,
		})
	}
	return out
}

func presentAddress(addr *domain.Address) *addressJSON {
	if addr == nil {
		return nil
	}
	return &addressJSON{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func presentOrders(orders []domain.Order, internal bool) []orderJSON {
	out := make([]orderJSON, 0, len(orders))
	for _, order := range orders {
		out = append(out, present(order, internal))
	}
	return out
}

func presentPagination(info domain.PageInfo) paginationJSON {
	return paginationJSON{
		Page:       info.Page,
		Limit:      info.Limit,
		Total:      info.Total,
		TotalPages: info.TotalPages,
	}
}
