package inventory

import "github.com/shopspring/decimal"

// WeightedAverageCost costo promedio ponderado tras un ingreso (servicio de dominio).
// Nuevo = ((enMano * costoActual) + (entrada * costoEntrada)) / (enMano + entrada), redondeado a 4 decimales.
func WeightedAverageCost(onHand int64, currentCost decimal.Decimal, incoming int64, incomingCost decimal.Decimal) decimal.Decimal {
	if onHand < 0 {
		onHand = 0
	}
	total := onHand + incoming
	if total <= 0 {
		return decimal.Zero
	}
	num := decimal.NewFromInt(onHand).Mul(currentCost).Add(decimal.NewFromInt(incoming).Mul(incomingCost))
	return num.Div(decimal.NewFromInt(total)).Round(4)
}
