package order

// Status is the order's current lifecycle stage. The happy path is linear:
// pending → confirmed → preparing → ready → out_for_delivery → delivered.
// Cancellation is reachable from any non-terminal stage and, like delivery,
// is terminal. Orders are never removed from the store; a cancelled order is
// just an order whose status is cancelled.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// successors holds the legal-successor table consulted by Transition. The raw
// SetStatus path bypasses it on purpose: admin tooling may force any status.
var successors = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
	StatusDelivered:      nil,
	StatusCancelled:      nil,
}

// labels maps each status to the label shown in the apps.
var labels = map[Status]string{
	StatusPending:        "Aguardando confirmação",
	StatusConfirmed:      "Confirmado",
	StatusPreparing:      "Em preparo",
	StatusReady:          "Pronto para entrega",
	StatusOutForDelivery: "Saiu para entrega",
	StatusDelivered:      "Entregue",
	StatusCancelled:      "Cancelado",
}

// Valid reports whether s is one of the known lifecycle stages.
func (s Status) Valid() bool {
	_, ok := successors[s]
	return ok
}

// Terminal reports whether the order has reached the end of its lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether next is a legal successor of s.
func (s Status) CanTransition(next Status) bool {
	for _, n := range successors[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Label returns the customer-facing label for the status. Unknown statuses
// are returned as-is.
func (s Status) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}
