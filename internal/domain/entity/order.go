package entity

// Order modelo de lectura del pedido (lo administra otro servicio).
type Order struct {
	ID             string
	OrganizationID string
	Lines          []OrderLine
}

// OrderLine par (sku, cantidad) que impulsa Reserve.
type OrderLine struct {
	ID       string
	SKUID    string
	Quantity int64
}
