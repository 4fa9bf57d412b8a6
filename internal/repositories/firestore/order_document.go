package firestore

import (
	"strings"
	"time"

	domain "github.com/noirthread/storefront-api/internal/domain"
)

type orderDocument struct {
	ID                string                  `firestore:"id"`
	OrderNumber       string                  `firestore:"orderNumber"`
	TransactionID     string                  `firestore:"transactionId"`
	Customer          customerDocument        `firestore:"customer"`
	Currency          string                  `firestore:"currency"`
	Totals            totalsDocument          `firestore:"totals"`
	PaymentStatus     string                  `firestore:"paymentStatus"`
	FulfillmentStatus string                  `firestore:"fulfillmentStatus"`
	Status            string                  `firestore:"status"`
	PaymentProvider   string                  `firestore:"paymentProvider,omitempty"`
	PaymentIntentID   string                  `firestore:"paymentIntentId,omitempty"`
	ShippingAddress   *addressDocument        `firestore:"shippingAddress,omitempty"`
	BillingAddress    *addressDocument        `firestore:"billingAddress,omitempty"`
	Items             []orderItemDocument     `firestore:"items"`
	PaymentTimeline   []paymentRecordDocument `firestore:"paymentTimeline,omitempty"`
	Events            []orderEventDocument    `firestore:"events,omitempty"`
	Refunds           []refundDocument        `firestore:"refunds,omitempty"`
	OwnerNotes        []ownerNoteDocument     `firestore:"ownerNotes,omitempty"`
	Shipments         []shipmentDocument      `firestore:"shipments,omitempty"`
	TrackingNumbers   []string                `firestore:"trackingNumbers,omitempty"`
	Metadata          map[string]any          `firestore:"metadata,omitempty"`
	CreatedAt         time.Time               `firestore:"createdAt"`
	UpdatedAt         time.Time               `firestore:"updatedAt"`
	PaidAt            *time.Time              `firestore:"paidAt,omitempty"`
	DeliveredAt       *time.Time              `firestore:"deliveredAt,omitempty"`
	RefundedAt        *time.Time              `firestore:"refundedAt,omitempty"`
	CancelledAt       *time.Time              `firestore:"cancelledAt,omitempty"`
}

type customerDocument struct {
	ID          string `firestore:"id"`
	Email       string `firestore:"email"`
	Name        string `firestore:"name,omitempty"`
	LoginMethod string `firestore:"loginMethod,omitempty"`
}

type totalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Shipping int64 `firestore:"shipping"`
	Tax      int64 `firestore:"tax"`
	Discount int64 `firestore:"discount"`
	Total    int64 `firestore:"total"`
}

type addressDocument struct {
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

type orderItemDocument struct {
	SKU       string         `firestore:"sku"`
	Name      string         `firestore:"name"`
	UnitPrice int64          `firestore:"unitPrice"`
	Quantity  int            `firestore:"quantity"`
	LineTotal int64          `firestore:"lineTotal"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
}

type paymentRecordDocument struct {
	ID            string    `firestore:"id"`
	Provider      string    `firestore:"provider"`
	TransactionID string    `firestore:"transactionId"`
	Status        string    `firestore:"status"`
	Amount        int64     `firestore:"amount"`
	Currency      string    `firestore:"currency"`
	OccurredAt    time.Time `firestore:"occurredAt"`
}

type orderEventDocument struct {
	ID        string         `firestore:"id"`
	Type      string         `firestore:"type"`
	Actor     string         `firestore:"actor,omitempty"`
	Message   string         `firestore:"message,omitempty"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

type refundDocument struct {
	ID          string    `firestore:"id"`
	Amount      int64     `firestore:"amount"`
	Reason      string    `firestore:"reason,omitempty"`
	ProcessedBy string    `firestore:"processedBy,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type ownerNoteDocument struct {
	ID        string    `firestore:"id"`
	Content   string    `firestore:"content"`
	CreatedBy string    `firestore:"createdBy,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type shipmentDocument struct {
	ID              string                  `firestore:"id"`
	Carrier         string                  `firestore:"carrier,omitempty"`
	TrackingNumbers []string                `firestore:"trackingNumbers,omitempty"`
	Status          string                  `firestore:"status"`
	Events          []shipmentEventDocument `firestore:"events,omitempty"`
	CreatedAt       time.Time               `firestore:"createdAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
}

type shipmentEventDocument struct {
	Status     string         `firestore:"status"`
	OccurredAt time.Time      `firestore:"occurredAt"`
	Details    map[string]any `firestore:"details,omitempty"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		ID:            strings.TrimSpace(order.ID),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		TransactionID: strings.TrimSpace(order.TransactionID),
		Customer: customerDocument{
			ID:          order.Customer.ID,
			Email:       order.Customer.Email,
			Name:        order.Customer.Name,
			LoginMethod: order.Customer.LoginMethod,
		},
		Currency: strings.ToUpper(strings.TrimSpace(order.Currency)),
		Totals: totalsDocument{
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
		PaymentIntentID:   order.PaymentIntentID,
		ShippingAddress:   encodeAddress(order.ShippingAddress),
		BillingAddress:    encodeAddress(order.BillingAddress),
		TrackingNumbers:   append([]string(nil), order.TrackingNumbers...),
		Metadata:          cloneAnyMap(order.Metadata),
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
		PaidAt:            utcTimePtr(order.PaidAt),
		DeliveredAt:       utcTimePtr(order.DeliveredAt),
		RefundedAt:        utcTimePtr(order.RefundedAt),
		CancelledAt:       utcTimePtr(order.CancelledAt),
	}

	doc.Items = make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			SKU:       item.SKU,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
			Metadata:  cloneAnyMap(item.Metadata),
		})
	}

	for _, record := range order.PaymentTimeline {
		doc.PaymentTimeline = append(doc.PaymentTimeline, paymentRecordDocument{
			ID:            record.ID,
			Provider:      record.Provider,
			TransactionID: record.TransactionID,
			Status:        string(record.Status),
			Amount:        record.Amount,
			Currency:      record.Currency,
			OccurredAt:    record.OccurredAt.UTC(),
		})
	}

	for _, event := range order.Events {
		doc.Events = append(doc.Events, orderEventDocument{
			ID:        event.ID,
			Type:      event.Type,
			Actor:     event.Actor,
			Message:   event.Message,
			Metadata:  cloneAnyMap(event.Metadata),
			CreatedAt: event.CreatedAt.UTC(),
		})
	}

	for _, refund := range order.Refunds {
		doc.Refunds = append(doc.Refunds, refundDocument{
			ID:          refund.ID,
			Amount:      refund.Amount,
			Reason:      refund.Reason,
			ProcessedBy: refund.ProcessedBy,
			CreatedAt:   refund.CreatedAt.UTC(),
		})
	}

	for _, note := range order.OwnerNotes {
		doc.OwnerNotes = append(doc.OwnerNotes, ownerNoteDocument{
			ID:        note.ID,
			Content:   note.Content,
			CreatedBy: note.CreatedBy,
			CreatedAt: note.CreatedAt.UTC(),
			UpdatedAt: note.UpdatedAt.UTC(),
		})
	}

	for _, shipment := range order.Shipments {
		encoded := shipmentDocument{
			ID:              shipment.ID,
			Carrier:         shipment.Carrier,
			TrackingNumbers: append([]string(nil), shipment.TrackingNumbers...),
			Status:          string(shipment.Status),
			CreatedAt:       shipment.CreatedAt.UTC(),
			UpdatedAt:       shipment.UpdatedAt.UTC(),
		}
		for _, event := range shipment.Events {
			encoded.Events = append(encoded.Events, shipmentEventDocument{
				Status:     event.Status,
				OccurredAt: event.OccurredAt.UTC(),
				Details:    cloneAnyMap(event.Details),
			})
		}
		doc.Shipments = append(doc.Shipments, encoded)
	}

	return doc
}

func decodeOrder(doc orderDocument) domain.Order {
	order := domain.Order{
		ID:            doc.ID,
		OrderNumber:   doc.OrderNumber,
		TransactionID: doc.TransactionID,
		Customer: domain.Customer{
			ID:          doc.Customer.ID,
			Email:       doc.Customer.Email,
			Name:        doc.Customer.Name,
			LoginMethod: doc.Customer.LoginMethod,
		},
		Currency: doc.Currency,
		Totals: domain.OrderTotals{
			Subtotal: doc.Totals.Subtotal,
			Shipping: doc.Totals.Shipping,
			Tax:      doc.Totals.Tax,
			Discount: doc.Totals.Discount,
			Total:    doc.Totals.Total,
		},
		PaymentStatus:     domain.PaymentStatus(doc.PaymentStatus),
		FulfillmentStatus: domain.FulfillmentStatus(doc.FulfillmentStatus),
		Status:            domain.OrderStatus(doc.Status),
		PaymentProvider:   doc.PaymentProvider,
		PaymentIntentID:   doc.PaymentIntentID,
		ShippingAddress:   decodeAddress(doc.ShippingAddress),
		BillingAddress:    decodeAddress(doc.BillingAddress),
		TrackingNumbers:   append([]string(nil), doc.TrackingNumbers...),
		Metadata:          cloneAnyMap(doc.Metadata),
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
		PaidAt:            doc.PaidAt,
		DeliveredAt:       doc.DeliveredAt,
		RefundedAt:        doc.RefundedAt,
		CancelledAt:       doc.CancelledAt,
	}

	order.Items = make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			SKU:       item.SKU,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
			Metadata:  cloneAnyMap(item.Metadata),
		})
	}

	for _, record := range doc.PaymentTimeline {
		order.PaymentTimeline = append(order.PaymentTimeline, domain.PaymentRecord{
			ID:            record.ID,
			Provider:      record.Provider,
			TransactionID: record.TransactionID,
			Status:        domain.PaymentStatus(record.Status),
			Amount:        record.Amount,
			Currency:      record.Currency,
			OccurredAt:    record.OccurredAt,
		})
	}

	for _, event := range doc.Events {
		order.Events = append(order.Events, domain.OrderEvent{
			ID:        event.ID,
			Type:      event.Type,
			Actor:     event.Actor,
			Message:   event.Message,
			Metadata:  cloneAnyMap(event.Metadata),
			CreatedAt: event.CreatedAt,
		})
	}

	for _, refund := range doc.Refunds {
		order.Refunds = append(order.Refunds, domain.Refund{
			ID:          refund.ID,
			Amount:      refund.Amount,
			Reason:      refund.Reason,
			ProcessedBy: refund.ProcessedBy,
			CreatedAt:   refund.CreatedAt,
		})
	}

	for _, note := range doc.OwnerNotes {
		order.OwnerNotes = append(order.OwnerNotes, domain.OwnerNote{
			ID:        note.ID,
			Content:   note.Content,
			CreatedBy: note.CreatedBy,
			CreatedAt: note.CreatedAt,
			UpdatedAt: note.UpdatedAt,
		})
	}

	for _, shipment := range doc.Shipments {
		decoded := domain.Shipment{
			ID:              shipment.ID,
			Carrier:         shipment.Carrier,
			TrackingNumbers: append([]string(nil), shipment.TrackingNumbers...),
			Status:          domain.FulfillmentStatus(shipment.Status),
			CreatedAt:       shipment.CreatedAt,
			UpdatedAt:       shipment.UpdatedAt,
		}
		for _, event := range shipment.Events {
			decoded.Events = append(decoded.Events, domain.ShipmentEvent{
				Status:     event.Status,
				OccurredAt: event.OccurredAt,
				Details:    cloneAnyMap(event.Details),
			})
		}
		order.Shipments = append(order.Shipments, decoded)
	}

	return order
}

func decodeOrders(docs []orderDocument) []domain.Order {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc))
	}
	return orders
}

func encodeAddress(addr *domain.Address) *addressDocument {
	if addr == nil {
		return nil
	}
	return &addressDocument{
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

func decodeAddress(doc *addressDocument) *domain.Address {
	if doc == nil {
		return nil
	}
	return &domain.Address{
		Recipient:  doc.Recipient,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		State:      doc.State,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
		Phone:      doc.Phone,
	}
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
