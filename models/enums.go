package models

// OrderStatus is the order's derived lifecycle status. It is a cached
// projection over the order's child-entity graph: nothing outside
// workflow.RecomputeOrderStatus may assign it.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "Open"
	OrderStatusDocIssued OrderStatus = "Doc Issued"
	OrderStatusInTransit OrderStatus = "In Transit"
	OrderStatusArApOpen  OrderStatus = "AR/AP Open"
	OrderStatusClosed    OrderStatus = "Closed"
)

type ContainerStatus string

const (
	ContainerStatusPlanned   ContainerStatus = "Planned"
	ContainerStatusInTransit ContainerStatus = "In Transit"
	ContainerStatusArrived   ContainerStatus = "Arrived"
)

type ShippingDocumentStatus string

const (
	ShippingDocumentStatusIssued    ShippingDocumentStatus = "Issued"
	ShippingDocumentStatusCancelled ShippingDocumentStatus = "Cancelled"
)

// BillStatus is derived from payments applied against the bill; it is never
// set directly except at creation (Open).
type BillStatus string

const (
	BillStatusOpen    BillStatus = "Open"
	BillStatusPartial BillStatus = "Partial"
	BillStatusPaid    BillStatus = "Paid"
)

// PaymentTargetType discriminates the tagged union a payment points at.
type PaymentTargetType string

const (
	PaymentTargetCustomerInvoice PaymentTargetType = "Customer Invoice"
	PaymentTargetVendorBill      PaymentTargetType = "Vendor Bill"
	PaymentTargetLogisticsBill   PaymentTargetType = "Logistics Bill"
)

type PaymentDirection string

const (
	PaymentDirectionIn  PaymentDirection = "In"  // receivables
	PaymentDirectionOut PaymentDirection = "Out" // payables
)

// RateSource distinguishes manually curated rate rows (authoritative, never
// auto-recomputed) from synced rows the refresh sweep owns.
type RateSource string

const (
	RateSourceManual RateSource = "Manual"
	RateSourceSync   RateSource = "Sync"
)
