package orders

type Status string

const (
	StatusUnpaid   Status = "UNPAID"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
	StatusRefunded Status = "REFUNDED"
)

var validNext = map[Status]map[Status]bool{
	StatusUnpaid:   {StatusPaid: true, StatusCanceled: true},
	StatusPaid:     {StatusRefunded: true},
	StatusCanceled: {},
	StatusRefunded: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
